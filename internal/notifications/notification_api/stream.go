package notification_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"venuly/internal/auth"
	"venuly/internal/utils"
)

const keepAliveInterval = 25 * time.Second

// Stream pushes the caller's new notifications as server-sent events until
// the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	rc := http.NewResponseController(w)
	// the server's write timeout would otherwise cut the stream
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Debug("SSE", fmt.Sprintf("Cannot lift write deadline: %v", err))
	}

	ctx := r.Context()
	inbox, err := h.NotificationService.List(ctx, id, true, 1, 1)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	// subscribe before announcing the stream so nothing slips between the two
	events := h.Live.Subscribe(ctx, id.UserID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: connected\ndata: {\"unreadCount\":%d}\n\n", inbox.UnreadCount)
	if err := rc.Flush(); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Streaming unsupported: %v", err))
		return
	}

	h.Logger.Debug("SSE", fmt.Sprintf("User %s opened a notification stream", id.UserID))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification: %v", err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
			rc.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			rc.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("User %s closed the notification stream", id.UserID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
