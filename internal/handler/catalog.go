package handler

import (
	"net/http"
	"strconv"

	"safarank-api/internal/middleware"
	"safarank-api/internal/model"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"
)

// CatalogHandler serves the public catalog pages and review posts.
type CatalogHandler struct {
	catalog    *service.CatalogService
	categories *service.CategoryService
	reviews    *service.ReviewService
	rankings   *service.RankingService
	render     *web.Renderer
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(
	catalog *service.CatalogService,
	categories *service.CategoryService,
	reviews *service.ReviewService,
	rankings *service.RankingService,
	render *web.Renderer,
) *CatalogHandler {
	return &CatalogHandler{
		catalog:    catalog,
		categories: categories,
		reviews:    reviews,
		rankings:   rankings,
		render:     render,
	}
}

// Catalog handles GET /catalogo
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.catalog.List(r.Context(), q.Get("q"), service.ParseSort(q.Get("sort")), queryPage(r))
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	h.render.Render(w, http.StatusOK, "catalogo", newPage(w, r, "Catálogo", page))
}

type itemData struct {
	Item     *model.Item
	Reviews  []model.Review
	Score    model.ItemScore
	Mine     *model.Review
	Rankings []model.RankingSummary
	Scores   []int
}

var scoreChoices = []int{5, 4, 3, 2, 1}

// Item handles GET /movil/{id}
func (h *CatalogHandler) Item(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/catalogo")
		return
	}
	item, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err, "/catalogo")
		return
	}
	reviews, score, err := h.reviews.ItemReviews(r.Context(), item)
	if err != nil {
		fail(w, r, err, "/catalogo")
		return
	}

	user := middleware.CurrentUser(r.Context())
	rankings, err := h.rankings.ListForOwner(r.Context(), user.UserID)
	if err != nil {
		fail(w, r, err, "/catalogo")
		return
	}

	h.render.Render(w, http.StatusOK, "movil", newPage(w, r, item.Name, itemData{
		Item:     item,
		Reviews:  reviews,
		Score:    score,
		Mine:     service.ReviewOf(reviews, user.Email),
		Rankings: rankings,
		Scores:   scoreChoices,
	}))
}

// Rate handles POST /movil/{id}/valorar
func (h *CatalogHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/catalogo")
		return
	}
	back := "/movil/" + strconv.FormatInt(id, 10)

	score, err := strconv.Atoi(r.PostFormValue("puntuacion"))
	if err != nil {
		fail(w, r, apierror.ValidationError("La puntuación debe ser un número entre 1 y 5."), back)
		return
	}

	user := middleware.CurrentUser(r.Context())
	if _, err := h.reviews.Rate(r.Context(), user.Email, id, score, r.PostFormValue("comentario")); err != nil {
		if apierror.IsNotFound(err) {
			back = "/catalogo"
		}
		fail(w, r, err, back)
		return
	}
	web.Redirect(w, r, back, web.FlashSuccess, "Valoración guardada.")
}

// Category handles GET /categoria/{id}
func (h *CatalogHandler) Category(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	view, err := h.categories.View(r.Context(), id)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	h.render.Render(w, http.StatusOK, "categoria", newPage(w, r, view.Name, view))
}
