package handler

import (
	"net/http"
	"strconv"

	"safarank-api/internal/model"
	"safarank-api/pkg/response"
)

const defaultLogPageSize = 50

type reviewLogData struct {
	Reviews []model.Review
	Total   int64
	Page    int
	Pages   int
}

func logPageSize(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 200 {
		return defaultLogPageSize
	}
	return limit
}

// Reviews handles GET /panel-admin/valoraciones
func (h *AdminHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	page, limit := queryPage(r), logPageSize(r)
	reviews, total, err := h.reviews.Log(r.Context(), page, limit)
	if err != nil {
		fail(w, r, err, "/panel-admin")
		return
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		page = pages
		if reviews, total, err = h.reviews.Log(r.Context(), page, limit); err != nil {
			fail(w, r, err, "/panel-admin")
			return
		}
	}
	h.render.Render(w, http.StatusOK, "valoraciones", newPage(w, r, "Valoraciones", reviewLogData{
		Reviews: reviews,
		Total:   total,
		Page:    page,
		Pages:   pages,
	}))
}

// GetReviews handles GET /api/v1/admin/reviews
func (h *AdminHandler) GetReviews(w http.ResponseWriter, r *http.Request) {
	page, limit := queryPage(r), logPageSize(r)
	reviews, total, err := h.reviews.Log(r.Context(), page, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, reviews, page, limit, total)
}
