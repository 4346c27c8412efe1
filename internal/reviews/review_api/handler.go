package review_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	reviews "venuly/internal/reviews/service"
	"venuly/internal/utils"
)

type Handler struct {
	ReviewService *reviews.ReviewService
	Logger        *logger.Logger
}

// Routes mounts /api/reviews.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListReviews)
	r.Post("/", h.CreateReview)
	r.Patch("/{id}", h.Respond)
	return r
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.ReviewService.ListReviews(r.Context(), q.Get("revieweeId"), q.Get("eventId"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req reviews.CreateReviewRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	review, err := h.ReviewService.CreateReview(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"review": review})
}

func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req reviews.RespondRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	review, err := h.ReviewService.Respond(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"review": review})
}
