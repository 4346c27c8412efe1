package review_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/auth/authtest"
	"venuly/internal/database/dbtest"
	eventdb "venuly/internal/events/db"
	"venuly/internal/logger"
	"venuly/internal/models"
	reviewdb "venuly/internal/reviews/db"
	reviews "venuly/internal/reviews/service"
)

func newRouter(t *testing.T) http.Handler {
	bunDB := dbtest.New(t)
	events := &eventdb.DB{Bun: bunDB}
	now := time.Now().UTC()
	require.NoError(t, events.CreateEvent(context.Background(), &models.Event{
		ID:                "event-1",
		ClientID:          "client-1",
		Title:             "Graduation party",
		Description:       "Garden party for the graduate",
		EventType:         models.EventTypeParty,
		Status:            models.EventCompleted,
		EventDate:         models.DateRange{Start: now.Add(-72 * time.Hour), End: now.Add(-70 * time.Hour)},
		Location:          models.Location{City: "Eldoret", Country: "Kenya"},
		Budget:            models.Budget{Max: 800, Currency: "USD"},
		GuestCount:        models.GuestCount{Min: 10, Max: 60},
		IsPublished:       true,
		BookedOrganizerID: "org-1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}))

	log := logger.NewNopLogger()
	h := &Handler{ReviewService: reviews.NewReviewService(&reviewdb.DB{Bun: bunDB}, events, nil, log), Logger: log}
	r := chi.NewRouter()
	r.Use(authtest.Middleware)
	r.Mount("/api/reviews", h.Routes())
	return r
}

func call(t *testing.T, router http.Handler, method, path string, body any, userID string, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := authtest.As(httptest.NewRequest(method, path, &buf), userID, role)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateListAndRespond(t *testing.T) {
	router := newRouter(t)

	rec := call(t, router, http.MethodPost, "/api/reviews", map[string]any{
		"eventId": "event-1",
		"rating":  5,
		"comment": "Flawless from start to finish.",
	}, "client-1", models.RoleClient)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Review models.Review `json:"review"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = call(t, router, http.MethodGet, "/api/reviews?revieweeId=org-1", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list reviews.ReviewList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Reviews, 1)
	assert.Equal(t, 5.0, list.Aggregate.AverageRating)

	rec = call(t, router, http.MethodPatch, "/api/reviews/"+created.Review.ID, map[string]any{"response": "Thank you!"}, "org-1", models.RoleOrganizer)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRequiresSession(t *testing.T) {
	router := newRouter(t)
	rec := call(t, router, http.MethodPost, "/api/reviews", map[string]any{"eventId": "event-1"}, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
