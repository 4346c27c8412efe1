package notification_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	notifications "venuly/internal/notifications/service"
	"venuly/internal/sse"
	"venuly/internal/utils"
)

type Handler struct {
	NotificationService *notifications.NotificationService
	Live                *sse.Broker
	Logger              *logger.Logger
}

// Routes mounts /api/notifications. Every route needs a session.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Patch("/", h.MarkRead)
	r.Delete("/", h.Delete)
	if h.Live != nil {
		r.Get("/stream", h.Stream)
	}
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	inbox, err := h.NotificationService.List(r.Context(), id,
		utils.QueryBool(r, "unread"),
		utils.QueryInt(r, "page", 1),
		utils.QueryInt(r, "limit", 20))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, inbox)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req notifications.MarkReadRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	n, err := h.NotificationService.MarkRead(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	n, err := h.NotificationService.Delete(r.Context(), id, r.URL.Query().Get("id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
