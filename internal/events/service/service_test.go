package events_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/database/dbtest"
	eventdb "venuly/internal/events/db"
	events "venuly/internal/events/service"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	"venuly/internal/qr"
)

var (
	client    = &auth.Identity{UserID: "client-1", Role: models.RoleClient}
	otherUser = &auth.Identity{UserID: "client-2", Role: models.RoleClient}
	admin     = &auth.Identity{UserID: "admin-1", Role: models.RoleAdmin}
)

type fixture struct {
	svc       *events.EventService
	store     *eventdb.DB
	published []models.DomainEvent
}

func setup(t *testing.T) *fixture {
	f := &fixture{store: &eventdb.DB{Bun: dbtest.New(t)}}
	log := logger.NewNopLogger()
	publisher := notify.NewPublisher(notify.SinkFunc(func(_ context.Context, e models.DomainEvent) error {
		f.published = append(f.published, e)
		return nil
	}), log)
	f.svc = events.NewEventService(f.store, publisher, qr.NewQRGenerator("secret"), "https://venuly.app", log)
	return f
}

func validRequest() events.CreateEventRequest {
	start := time.Now().Add(30 * 24 * time.Hour).UTC()
	return events.CreateEventRequest{
		Title:       "Garden wedding",
		Description: "An outdoor ceremony for 80 guests",
		EventType:   models.EventTypeWedding,
		EventDate:   events.DateRangeInput{Start: start, End: start.Add(6 * time.Hour)},
		Location:    events.LocationInput{City: "Nairobi", Country: "Kenya"},
		Budget:      events.BudgetInput{Min: 1000, Max: 5000, Currency: "usd"},
		GuestCount:  events.GuestCountInput{Min: 50, Max: 80},
	}
}

func create(t *testing.T, f *fixture) *models.Event {
	t.Helper()
	event, err := f.svc.CreateEvent(context.Background(), client, validRequest())
	require.NoError(t, err)
	return event
}

func TestCreateEventStartsAsDraft(t *testing.T) {
	f := setup(t)
	event := create(t, f)

	assert.Equal(t, models.EventDraft, event.Status)
	assert.False(t, event.IsPublished)
	assert.Equal(t, "client-1", event.ClientID)
	assert.Equal(t, "USD", event.Budget.Currency)
	assert.Equal(t, []string{}, event.ProposalIDs)
}

func TestCreateEventRejectsInvertedRanges(t *testing.T) {
	f := setup(t)
	req := validRequest()
	req.EventDate.End = req.EventDate.Start.Add(-time.Hour)
	req.Budget.Min, req.Budget.Max = 5000, 1000
	req.GuestCount.Min, req.GuestCount.Max = 100, 10

	_, err := f.svc.CreateEvent(context.Background(), client, req)
	require.Error(t, err)
	details := apperr.Details(err)
	assert.Contains(t, details, "eventDate.end")
	assert.Contains(t, details, "budget.max")
	assert.Contains(t, details, "guestCount.max")
}

func TestCreateEventSchemaValidation(t *testing.T) {
	f := setup(t)
	req := validRequest()
	req.Title = ""
	req.EventType = "GALA"
	req.Location.City = ""

	_, err := f.svc.CreateEvent(context.Background(), client, req)
	details := apperr.Details(err)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "eventType")
	assert.Contains(t, details, "location.city")
}

func TestPublishTwice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := create(t, f)

	published, err := f.svc.PublishEvent(ctx, client, event.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	assert.Equal(t, models.EventOpen, published.Status)
	require.NotNil(t, published.PublishedAt)
	firstPublishedAt := *published.PublishedAt

	_, err = f.svc.PublishEvent(ctx, client, event.ID)
	require.Error(t, err)
	assert.Equal(t, "Event is already published", apperr.PublicMessage(err))
	assert.Equal(t, 400, apperr.StatusCode(err))

	stored, err := f.store.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)
	assert.Equal(t, models.EventOpen, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.WithinDuration(t, firstPublishedAt, *stored.PublishedAt, time.Millisecond, "state is unchanged by the rejected publish")

	require.Len(t, f.published, 1)
	assert.Equal(t, models.NotifyEventPublished, f.published[0].Type)
}

func TestPublishRequiresOwner(t *testing.T) {
	f := setup(t)
	event := create(t, f)

	_, err := f.svc.PublishEvent(context.Background(), otherUser, event.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.PublishEvent(context.Background(), nil, event.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestDeleteGuard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, status := range []models.EventStatus{models.EventBooked, models.EventCompleted} {
		event := create(t, f)
		s := status
		_, err := f.svc.UpdateEvent(ctx, client, event.ID, events.UpdateEventRequest{Status: &s})
		require.NoError(t, err)

		err = f.svc.DeleteEvent(ctx, client, event.ID)
		require.Error(t, err)
		assert.Equal(t, 400, apperr.StatusCode(err))

		_, err = f.store.GetEventByID(ctx, event.ID)
		assert.NoError(t, err, "%s event stays persisted", status)
	}

	event := create(t, f)
	assert.ErrorIs(t, f.svc.DeleteEvent(ctx, otherUser, event.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.DeleteEvent(ctx, admin, event.ID))
	_, err := f.svc.GetEvent(ctx, client, event.ID)
	assert.Equal(t, 404, apperr.StatusCode(err))
}

func TestUpdateEventKeepsRangesValid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := create(t, f)

	_, err := f.svc.UpdateEvent(ctx, client, event.ID, events.UpdateEventRequest{
		Budget: &events.BudgetInput{Min: 9000, Max: 100},
	})
	require.Error(t, err)
	assert.Contains(t, apperr.Details(err), "budget.max")

	title := "Renamed wedding"
	updated, err := f.svc.UpdateEvent(ctx, client, event.ID, events.UpdateEventRequest{
		Title:      &title,
		GuestCount: &events.GuestCountInput{Min: 10, Max: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed wedding", updated.Title)

	stored, err := f.store.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed wedding", stored.Title)
	assert.Equal(t, 20, stored.GuestCount.Max)
	assert.Equal(t, 5000.0, stored.Budget.Max, "rejected update left the budget alone")

	_, err = f.svc.UpdateEvent(ctx, otherUser, event.ID, events.UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestGetEventVisibilityAndViews(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := create(t, f)

	_, err := f.svc.GetEvent(ctx, nil, event.ID)
	assert.Equal(t, 404, apperr.StatusCode(err), "drafts are hidden from the public")

	_, err = f.svc.GetEvent(ctx, client, event.ID)
	require.NoError(t, err)
	_, err = f.svc.GetEvent(ctx, admin, event.ID)
	require.NoError(t, err)

	_, err = f.svc.PublishEvent(ctx, client, event.ID)
	require.NoError(t, err)

	got, err := f.svc.GetEvent(ctx, nil, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount, "admin and anonymous reads count, the owner's do not")

	got, err = f.svc.GetEvent(ctx, client, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)
}

func TestListEventsMine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	draft := create(t, f)
	live := create(t, f)
	_, err := f.svc.PublishEvent(ctx, client, live.ID)
	require.NoError(t, err)

	page, err := f.svc.ListEvents(ctx, nil, events.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, 12, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Pages)

	page, err = f.svc.ListEvents(ctx, client, events.ListParams{Mine: true, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 50, page.Pagination.Limit)
	var ids []string
	for _, e := range page.Events {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, draft.ID)

	_, err = f.svc.ListEvents(ctx, nil, events.ListParams{Mine: true})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestShareQR(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := create(t, f)

	_, err := f.svc.ShareQR(ctx, event.ID)
	assert.Equal(t, 404, apperr.StatusCode(err))

	_, err = f.svc.PublishEvent(ctx, client, event.ID)
	require.NoError(t, err)
	png, err := f.svc.ShareQR(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

// MockEventDB exercises the view counter failure path.
type MockEventDB struct {
	mock.Mock
	events.EventDBLayer
}

func (m *MockEventDB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventDB) IncrementViewCount(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func TestGetEventSurvivesViewCountFailure(t *testing.T) {
	mockDB := new(MockEventDB)
	mockDB.On("GetEventByID", "e1").Return(&models.Event{ID: "e1", ClientID: "client-1", IsPublished: true, ViewCount: 7}, nil)
	mockDB.On("IncrementViewCount", "e1").Return(errors.New("database is locked"))

	svc := &events.EventService{DB: mockDB, Logger: logger.NewNopLogger()}
	event, err := svc.GetEvent(context.Background(), nil, "e1")
	require.NoError(t, err)
	assert.Equal(t, 7, event.ViewCount)
	mockDB.AssertExpectations(t)
}
