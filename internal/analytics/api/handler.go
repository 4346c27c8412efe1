package analytics_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venuly/internal/analytics"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/utils"
)

type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.WithRole(models.RoleOrganizer, h.Logger)).Get("/organizer", h.GetOrganizerDashboard)
	r.With(auth.WithRole(models.RoleAdmin, h.Logger)).Get("/platform", h.GetPlatformDashboard)
	return r
}

func (h *Handler) GetOrganizerDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleOrganizer)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	dash, err := h.Service.OrganizerDashboard(r.Context(), id)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dash)
}

func (h *Handler) GetPlatformDashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireRole(r.Context(), models.RoleAdmin); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	dash, err := h.Service.PlatformDashboard(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dash)
}
