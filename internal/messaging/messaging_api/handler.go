package messaging_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	messaging "venuly/internal/messaging/service"
	"venuly/internal/utils"
)

type Handler struct {
	MessagingService *messaging.MessagingService
	Logger           *logger.Logger
}

// Routes mounts /api/conversations.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListConversations)
	r.Post("/", h.StartConversation)
	r.Get("/{id}/messages", h.ListMessages)
	r.Post("/{id}/messages", h.SendMessage)
	return r
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	list, err := h.MessagingService.ListConversations(r.Context(), id)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req messaging.StartConversationRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	conv, err := h.MessagingService.StartConversation(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	page, err := h.MessagingService.ListMessages(r.Context(), id, chi.URLParam(r, "id"),
		utils.QueryInt(r, "page", 1),
		utils.QueryInt(r, "limit", 50))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req messaging.SendMessageRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	msg, err := h.MessagingService.SendMessage(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"message": msg})
}
