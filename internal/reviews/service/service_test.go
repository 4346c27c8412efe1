package reviews_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/database/dbtest"
	eventdb "venuly/internal/events/db"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	organizerdb "venuly/internal/organizers/db"
	reviewdb "venuly/internal/reviews/db"
	reviews "venuly/internal/reviews/service"
)

var (
	client    = &auth.Identity{UserID: "client-1", Role: models.RoleClient}
	organizer = &auth.Identity{UserID: "org-1", Role: models.RoleOrganizer}
	outsider  = &auth.Identity{UserID: "org-9", Role: models.RoleOrganizer}
)

type fixture struct {
	svc       *reviews.ReviewService
	events    *eventdb.DB
	profiles  *organizerdb.DB
	published []models.DomainEvent
}

func setup(t *testing.T) *fixture {
	bunDB := dbtest.New(t)
	f := &fixture{events: &eventdb.DB{Bun: bunDB}, profiles: &organizerdb.DB{Bun: bunDB}}
	log := logger.NewNopLogger()
	publisher := notify.NewPublisher(notify.SinkFunc(func(_ context.Context, e models.DomainEvent) error {
		f.published = append(f.published, e)
		return nil
	}), log)
	f.svc = reviews.NewReviewService(&reviewdb.DB{Bun: bunDB}, f.events, publisher, log)
	return f
}

func (f *fixture) seedEvent(t *testing.T, status models.EventStatus) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Event{
		ID:                uuid.New().String(),
		ClientID:          client.UserID,
		Title:             "Anniversary dinner",
		Description:       "Dinner for close family",
		EventType:         models.EventTypeParty,
		Status:            status,
		EventDate:         models.DateRange{Start: now.Add(-48 * time.Hour), End: now.Add(-44 * time.Hour)},
		Location:          models.Location{City: "Nakuru", Country: "Kenya"},
		Budget:            models.Budget{Min: 100, Max: 500, Currency: "USD"},
		GuestCount:        models.GuestCount{Min: 5, Max: 20},
		IsPublished:       true,
		BookedOrganizerID: organizer.UserID,
		BookedProposalID:  "p-1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.events.CreateEvent(context.Background(), e))
	return e
}

func request(eventID string, rating int) reviews.CreateReviewRequest {
	return reviews.CreateReviewRequest{
		EventID:    eventID,
		Rating:     rating,
		Categories: reviews.CategoriesInput{Communication: 5, Quality: 4},
		Comment:    "Everything ran on time and the food was great.",
	}
}

func TestClientReviewUpdatesOrganizerRating(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.profiles.CreateProfile(ctx, &models.OrganizerProfile{
		ID: uuid.New().String(), UserID: organizer.UserID, BusinessName: "Feast Co",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))
	event := f.seedEvent(t, models.EventCompleted)

	r, err := f.svc.CreateReview(ctx, client, request(event.ID, 4))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewClientToOrganizer, r.Type)
	assert.Equal(t, organizer.UserID, r.RevieweeID)
	assert.True(t, r.IsPublic)

	profile, err := f.profiles.GetProfileByUserID(ctx, organizer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, profile.Stats.AverageRating)
	assert.Equal(t, 1, profile.Stats.TotalReviews)

	require.Len(t, f.published, 1)
	assert.Equal(t, models.NotifyReviewReceived, f.published[0].Type)
	assert.Equal(t, organizer.UserID, f.published[0].RecipientID)
}

func TestOrganizerReviewsClient(t *testing.T) {
	f := setup(t)
	event := f.seedEvent(t, models.EventCompleted)

	r, err := f.svc.CreateReview(context.Background(), organizer, request(event.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewOrganizerToClient, r.Type)
	assert.Equal(t, client.UserID, r.RevieweeID)
}

func TestCreateReviewGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	open := f.seedEvent(t, models.EventOpen)
	_, err := f.svc.CreateReview(ctx, client, request(open.ID, 5))
	assert.Equal(t, "Can only review completed events", apperr.PublicMessage(err))

	done := f.seedEvent(t, models.EventCompleted)
	_, err = f.svc.CreateReview(ctx, outsider, request(done.ID, 5))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	self := request(done.ID, 5)
	self.RevieweeID = client.UserID
	_, err = f.svc.CreateReview(ctx, client, self)
	assert.Equal(t, "You cannot review yourself", apperr.PublicMessage(err))

	_, err = f.svc.CreateReview(ctx, client, request(done.ID, 5))
	require.NoError(t, err)
	_, err = f.svc.CreateReview(ctx, client, request(done.ID, 3))
	assert.Equal(t, "You have already reviewed this event", apperr.PublicMessage(err))

	_, err = f.svc.CreateReview(ctx, client, request("missing", 5))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.CreateReview(ctx, client, request(done.ID, 6))
	assert.Contains(t, apperr.Details(err), "rating")
}

func TestListReviewsAggregates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.seedEvent(t, models.EventCompleted)
	second := f.seedEvent(t, models.EventCompleted)

	_, err := f.svc.CreateReview(ctx, client, request(first.ID, 5))
	require.NoError(t, err)
	req := request(second.ID, 4)
	req.Categories = reviews.CategoriesInput{Communication: 4}
	_, err = f.svc.CreateReview(ctx, client, req)
	require.NoError(t, err)

	list, err := f.svc.ListReviews(ctx, organizer.UserID, "")
	require.NoError(t, err)
	assert.Len(t, list.Reviews, 2)
	assert.Equal(t, 4.5, list.Aggregate.AverageRating)
	assert.Equal(t, 2, list.Aggregate.TotalReviews)
	assert.Equal(t, 4.5, list.Aggregate.Categories.Communication)
	assert.Equal(t, 4.0, list.Aggregate.Categories.Quality)
	assert.Equal(t, 0.0, list.Aggregate.Categories.Value)

	empty, err := f.svc.ListReviews(ctx, "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, empty.Reviews)
	assert.Zero(t, empty.Aggregate.TotalReviews)
}

func TestRespondOnlyOnceByReviewee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, models.EventCompleted)
	r, err := f.svc.CreateReview(ctx, client, request(event.ID, 4))
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, client, r.ID, reviews.RespondRequest{Response: "Thanks!"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := f.svc.Respond(ctx, organizer, r.ID, reviews.RespondRequest{Response: "Thank you, it was a pleasure."})
	require.NoError(t, err)
	assert.NotNil(t, got.RespondedAt)

	_, err = f.svc.Respond(ctx, organizer, r.ID, reviews.RespondRequest{Response: "Again"})
	assert.Equal(t, "Review already has a response", apperr.PublicMessage(err))
}

type MockReviewDB struct {
	reviews.ReviewDBLayer
	mock.Mock
}

func (m *MockReviewDB) ReviewExists(ctx context.Context, eventID, reviewerID string) (bool, error) {
	args := m.Called(eventID, reviewerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewDB) CreateReview(ctx context.Context, review *models.Review) (*reviewdb.Rating, error) {
	args := m.Called(review.EventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewdb.Rating), args.Error(1)
}

type stubEvents struct{ event *models.Event }

func (s stubEvents) GetEventByID(context.Context, string) (*models.Event, error) { return s.event, nil }

func TestConcurrentDuplicateCaughtByIndex(t *testing.T) {
	store := new(MockReviewDB)
	event := &models.Event{ID: "e1", ClientID: client.UserID, BookedOrganizerID: organizer.UserID, Status: models.EventCompleted}
	store.On("ReviewExists", "e1", client.UserID).Return(false, nil)
	store.On("CreateReview", "e1").Return(nil, errors.New("UNIQUE constraint failed: reviews.event_id, reviews.reviewer_id"))

	svc := reviews.NewReviewService(store, stubEvents{event}, nil, logger.NewNopLogger())
	_, err := svc.CreateReview(context.Background(), client, request("e1", 5))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, "You have already reviewed this event", apperr.PublicMessage(err))
	store.AssertExpectations(t)
}

func TestReviewWithoutBookedOrganizer(t *testing.T) {
	store := new(MockReviewDB)
	event := &models.Event{ID: "e2", ClientID: client.UserID, Status: models.EventCompleted}
	svc := reviews.NewReviewService(store, stubEvents{event}, nil, logger.NewNopLogger())

	named := request("e2", 4)
	named.RevieweeID = organizer.UserID
	for _, req := range []reviews.CreateReviewRequest{request("e2", 4), named} {
		_, err := svc.CreateReview(context.Background(), client, req)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		assert.Equal(t, "Event has no booked organizer", apperr.PublicMessage(err))
	}
	store.AssertNotCalled(t, "ReviewExists", mock.Anything, mock.Anything)
}
