package notification_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/auth/authtest"
	"venuly/internal/database/dbtest"
	"venuly/internal/logger"
	"venuly/internal/models"
	notificationdb "venuly/internal/notifications/db"
	notifications "venuly/internal/notifications/service"
	"venuly/internal/notify"
	"venuly/internal/sse"
	userdb "venuly/internal/users/db"
)

type env struct {
	router     http.Handler
	dispatcher *notify.Dispatcher
}

func newEnv(t *testing.T) env {
	bunDB := dbtest.New(t)
	log := logger.NewNopLogger()
	store := &notificationdb.DB{Bun: bunDB}
	live := sse.NewBroker()
	h := &Handler{NotificationService: notifications.NewNotificationService(store, log), Live: live, Logger: log}

	r := chi.NewRouter()
	r.Use(authtest.Middleware)
	r.Mount("/api/notifications", h.Routes())
	return env{
		router:     r,
		dispatcher: &notify.Dispatcher{Store: store, Users: &userdb.DB{Bun: bunDB}, Live: live, Logger: log},
	}
}

func (e env) deliver(t *testing.T, recipient string) models.DomainEvent {
	t.Helper()
	event := models.DomainEvent{
		ID:          uuid.New().String(),
		Type:        models.NotifyNewMessage,
		RecipientID: recipient,
		Title:       "New message",
		Message:     "You have a new message",
		OccurredAt:  time.Now().UTC(),
	}
	require.NoError(t, e.dispatcher.Handle(context.Background(), event))
	return event
}

func (e env) call(t *testing.T, method, path string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := authtest.As(httptest.NewRequest(method, path, &buf), userID, models.RoleClient)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func inbox(t *testing.T, rec *httptest.ResponseRecorder) notifications.Inbox {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out notifications.Inbox
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestInboxFlow(t *testing.T) {
	e := newEnv(t)
	first := e.deliver(t, "u1")
	e.deliver(t, "u1")
	e.deliver(t, "u2")

	// redelivery of the same event is a no-op
	require.NoError(t, e.dispatcher.Handle(context.Background(), first))

	got := inbox(t, e.call(t, http.MethodGet, "/api/notifications", nil, "u1"))
	assert.Len(t, got.Notifications, 2)
	assert.Equal(t, 2, got.UnreadCount)

	rec := e.call(t, http.MethodPatch, "/api/notifications", map[string]any{"notificationIds": []string{first.ID}}, "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	got = inbox(t, e.call(t, http.MethodGet, "/api/notifications?unread=true", nil, "u1"))
	assert.Len(t, got.Notifications, 1)
	assert.Equal(t, 1, got.UnreadCount)

	rec = e.call(t, http.MethodDelete, "/api/notifications", nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	rec = e.call(t, http.MethodPatch, "/api/notifications", map[string]any{"markAll": true}, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	got = inbox(t, e.call(t, http.MethodGet, "/api/notifications", nil, "u1"))
	assert.Zero(t, got.UnreadCount)
}

func TestMarkReadNeedsATarget(t *testing.T) {
	e := newEnv(t)
	rec := e.call(t, http.MethodPatch, "/api/notifications", map[string]any{}, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUnknownIs404(t *testing.T) {
	e := newEnv(t)
	other := e.deliver(t, "u2")

	rec := e.call(t, http.MethodDelete, "/api/notifications?id="+other.ID, nil, "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInboxRequiresSession(t *testing.T) {
	e := newEnv(t)
	rec := e.call(t, http.MethodGet, "/api/notifications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
