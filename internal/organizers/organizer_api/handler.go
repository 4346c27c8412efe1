package organizer_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	organizers "venuly/internal/organizers/service"
	"venuly/internal/utils"
)

type Handler struct {
	OrganizerService *organizers.OrganizerService
	Logger           *logger.Logger
}

// Routes mounts /api/organizers.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListProfiles)
	r.Route("/profile", func(r chi.Router) {
		r.Use(auth.WithRole(models.RoleOrganizer, h.Logger))
		r.Get("/", h.GetOwnProfile)
		r.Post("/", h.CreateProfile)
		r.Patch("/", h.UpdateProfile)
	})
	r.Get("/{userId}", h.GetProfile)
	return r
}

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := h.OrganizerService.ListProfiles(r.Context(), organizers.DirectoryParams{
		City:           q.Get("city"),
		Specialization: q.Get("specialization"),
		MinRating:      utils.QueryFloat(r, "minRating"),
		Page:           utils.QueryInt(r, "page", 1),
		Limit:          utils.QueryInt(r, "limit", 12),
	})
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dir)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.OrganizerService.GetProfile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h *Handler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleOrganizer)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	profile, err := h.OrganizerService.GetOwnProfile(r.Context(), id)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleOrganizer)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req organizers.ProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	profile, err := h.OrganizerService.CreateProfile(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"profile": profile})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleOrganizer)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req organizers.ProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	profile, err := h.OrganizerService.UpdateProfile(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}
