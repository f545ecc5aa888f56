package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"safarank-api/internal/logger"
	"safarank-api/internal/middleware"
	"safarank-api/internal/model"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"
	"safarank-api/pkg/response"
)

const maxReorderBody = 1 << 20

// RankingHandler serves the tier-list pages and the reorder endpoint.
type RankingHandler struct {
	rankings *service.RankingService
	catalog  *service.CatalogService
	render   *web.Renderer
}

// NewRankingHandler creates a ranking handler.
func NewRankingHandler(rankings *service.RankingService, catalog *service.CatalogService, render *web.Renderer) *RankingHandler {
	return &RankingHandler{rankings: rankings, catalog: catalog, render: render}
}

func rankingURL(id int64) string {
	return "/ranking/" + strconv.FormatInt(id, 10)
}

// List handles GET /mis-rankings
func (h *RankingHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	lists, err := h.rankings.ListForOwner(r.Context(), user.UserID)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	h.render.Render(w, http.StatusOK, "mis_rankings", newPage(w, r, "Mis rankings", lists))
}

// Create handles POST /mis-rankings
func (h *RankingHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	list, err := h.rankings.CreateList(r.Context(), user.UserID, r.PostFormValue("nombre"))
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	web.Redirect(w, r, rankingURL(list.ID), web.FlashSuccess, "Ranking creado.")
}

type rankingData struct {
	View    *model.RankingView
	Catalog []model.Item
}

// Show handles GET /ranking/{id}
func (h *RankingHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	user := middleware.CurrentUser(r.Context())
	view, err := h.rankings.LoadForDisplay(r.Context(), id, user.UserID)
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	items, err := h.catalog.All(r.Context())
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	h.render.Render(w, http.StatusOK, "ranking", newPage(w, r, view.List.Name, rankingData{View: view, Catalog: items}))
}

// Add handles POST /ranking/{id}/add
func (h *RankingHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	itemID, err := formID(r, "item_id")
	if err != nil {
		fail(w, r, err, rankingURL(id))
		return
	}

	user := middleware.CurrentUser(r.Context())
	added, err := h.rankings.AddItem(r.Context(), id, user.UserID, itemID)
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	if !added {
		web.Redirect(w, r, rankingURL(id), web.FlashInfo, "El móvil ya está en este ranking.")
		return
	}
	web.Redirect(w, r, rankingURL(id), web.FlashSuccess, "Móvil añadido al ranking.")
}

// Remove handles POST /ranking/{id}/remove
func (h *RankingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	itemID, err := formID(r, "item_id")
	if err != nil {
		fail(w, r, err, rankingURL(id))
		return
	}

	user := middleware.CurrentUser(r.Context())
	removed, err := h.rankings.RemoveItem(r.Context(), id, user.UserID, itemID)
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	if !removed {
		web.Redirect(w, r, rankingURL(id), web.FlashInfo, "El móvil no estaba en este ranking.")
		return
	}
	web.Redirect(w, r, rankingURL(id), web.FlashSuccess, "Móvil quitado del ranking.")
}

// Delete handles POST /ranking/borrar/{id}
func (h *RankingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	user := middleware.CurrentUser(r.Context())
	if err := h.rankings.DeleteList(r.Context(), id, user.UserID); err != nil {
		fail(w, r, err, "/mis-rankings")
		return
	}
	web.Redirect(w, r, "/mis-rankings", web.FlashSuccess, "Ranking borrado.")
}

// ReorderRequest is the body of a reorder call. Identifiers may be JSON
// numbers or numeric strings.
type ReorderRequest struct {
	RankingID json.Number              `json:"ranking_id"`
	Tiers     map[string][]interface{} `json:"tiers"`
}

// Reorder handles POST /ranking/reorder. It replaces the whole tier
// assignment and answers {"status":"ok"} or {"status":"error",...}.
func (h *RankingHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		response.StatusError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var req ReorderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReorderBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		response.StatusError(w, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	listID, err := req.RankingID.Int64()
	if err != nil || listID <= 0 {
		response.StatusError(w, apierror.BadRequest("ranking_id must be a positive integer"))
		return
	}
	if req.Tiers == nil {
		response.StatusError(w, apierror.BadRequest("tiers is required"))
		return
	}

	if err := h.rankings.ReplaceTiers(r.Context(), listID, user.UserID, req.Tiers); err != nil {
		if _, ok := apierror.From(err); !ok {
			logger.FromContext(r.Context()).Error("reorder failed", "ranking_id", listID, "error", err)
			err = apierror.InternalError("")
		}
		response.StatusError(w, err)
		return
	}
	response.StatusOK(w)
}
