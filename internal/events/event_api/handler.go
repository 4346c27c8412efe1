package event_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	events "venuly/internal/events/service"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/utils"
)

type Handler struct {
	EventService *events.EventService
	Logger       *logger.Logger
}

// Routes mounts /api/events.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListEvents)
	r.With(auth.WithRole(models.RoleClient, h.Logger)).Post("/", h.CreateEvent)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetEvent)
		r.Patch("/", h.UpdateEvent)
		r.Delete("/", h.DeleteEvent)
		r.Post("/publish", h.PublishEvent)
		r.Get("/qr", h.ShareQR)
	})
	return r
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleClient)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req events.CreateEventRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"event": event})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.EventService.ListEvents(r.Context(), auth.FromContext(r.Context()), events.ListParams{
		Mine:      utils.QueryBool(r, "mine"),
		Type:      models.EventType(q.Get("type")),
		Status:    models.EventStatus(q.Get("status")),
		City:      q.Get("city"),
		MinBudget: utils.QueryFloat(r, "minBudget"),
		MaxBudget: utils.QueryFloat(r, "maxBudget"),
		Query:     q.Get("q"),
		Page:      utils.QueryInt(r, "page", 1),
		Limit:     utils.QueryInt(r, "limit", 12),
	})
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.EventService.GetEvent(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req events.UpdateEventRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	event, err := h.EventService.UpdateEvent(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	event, err := h.EventService.PublishEvent(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	if err := h.EventService.DeleteEvent(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.MessageBody{Message: "Event deleted"})
}

func (h *Handler) ShareQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.EventService.ShareQR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
