package proposals_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/database/dbtest"
	eventdb "venuly/internal/events/db"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	proposaldb "venuly/internal/proposals/db"
	proposals "venuly/internal/proposals/service"
	"venuly/internal/qr"
)

var (
	client     = &auth.Identity{UserID: "client-1", Role: models.RoleClient}
	stranger   = &auth.Identity{UserID: "client-2", Role: models.RoleClient}
	organizer  = &auth.Identity{UserID: "org-1", Role: models.RoleOrganizer}
	organizer2 = &auth.Identity{UserID: "org-2", Role: models.RoleOrganizer}
	admin      = &auth.Identity{UserID: "admin-1", Role: models.RoleAdmin}
)

type fixture struct {
	svc       *proposals.ProposalService
	events    *eventdb.DB
	store     *proposaldb.DB
	published []models.DomainEvent
}

func setup(t *testing.T) *fixture {
	bunDB := dbtest.New(t)
	f := &fixture{events: &eventdb.DB{Bun: bunDB}, store: &proposaldb.DB{Bun: bunDB}}
	log := logger.NewNopLogger()
	publisher := notify.NewPublisher(notify.SinkFunc(func(_ context.Context, e models.DomainEvent) error {
		f.published = append(f.published, e)
		return nil
	}), log)
	f.svc = proposals.NewProposalService(f.store, f.events, publisher, qr.NewQRGenerator("pass-secret"), log)
	return f
}

func (f *fixture) seedEvent(t *testing.T, published bool, status models.EventStatus) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Event{
		ID:          uuid.New().String(),
		ClientID:    client.UserID,
		Title:       "Beach wedding",
		Description: "Sunset ceremony and dinner",
		EventType:   models.EventTypeWedding,
		Status:      status,
		EventDate:   models.DateRange{Start: now.Add(40 * 24 * time.Hour), End: now.Add(40*24*time.Hour + 5*time.Hour)},
		Location:    models.Location{City: "Diani", Country: "Kenya"},
		Budget:      models.Budget{Min: 2000, Max: 8000, Currency: "EUR"},
		GuestCount:  models.GuestCount{Min: 30, Max: 60},
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.events.CreateEvent(context.Background(), e))
	return e
}

func proposalRequest(eventID string) proposals.CreateProposalRequest {
	bogus := 1.0
	return proposals.CreateProposalRequest{
		EventID:     eventID,
		CoverLetter: "We specialise in beach weddings along the coast.",
		Services: []proposals.ServiceInput{
			{Name: "Decor", Cost: 1200},
			{Name: "Catering", Description: "Seafood buffet", Cost: 2500.5},
		},
		ValidUntil: time.Now().Add(14 * 24 * time.Hour),
		TotalCost:  &bogus,
	}
}

func (f *fixture) submit(t *testing.T, org *auth.Identity, eventID string) *models.Proposal {
	t.Helper()
	p, err := f.svc.CreateProposal(context.Background(), org, proposalRequest(eventID))
	require.NoError(t, err)
	return p
}

func TestCreateProposalComputesTotalAndNotifiesClient(t *testing.T) {
	f := setup(t)
	event := f.seedEvent(t, true, models.EventOpen)

	p := f.submit(t, organizer, event.ID)
	assert.Equal(t, 3700.5, p.TotalCost)
	assert.Equal(t, models.ProposalPending, p.Status)
	assert.Equal(t, client.UserID, p.ClientID)
	assert.Equal(t, "EUR", p.Currency)

	stored, err := f.events.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, stored.ProposalIDs)

	require.Len(t, f.published, 1)
	assert.Equal(t, models.NotifyProposalReceived, f.published[0].Type)
	assert.Equal(t, client.UserID, f.published[0].RecipientID)
}

func TestCreateProposalGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	draft := f.seedEvent(t, false, models.EventDraft)
	_, err := f.svc.CreateProposal(ctx, organizer, proposalRequest(draft.ID))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, "Event is not accepting proposals", apperr.PublicMessage(err))

	booked := f.seedEvent(t, true, models.EventBooked)
	_, err = f.svc.CreateProposal(ctx, organizer, proposalRequest(booked.ID))
	assert.Equal(t, "Event is not accepting proposals", apperr.PublicMessage(err))

	_, err = f.svc.CreateProposal(ctx, organizer, proposalRequest("missing"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	req := proposalRequest(booked.ID)
	req.ValidUntil = time.Now().Add(-time.Hour)
	_, err = f.svc.CreateProposal(ctx, organizer, req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.Details(err), "validUntil")

	req = proposalRequest(booked.ID)
	req.Services = nil
	_, err = f.svc.CreateProposal(ctx, organizer, req)
	assert.Contains(t, apperr.Details(err), "services")
}

func TestDuplicateActiveProposalConflicts(t *testing.T) {
	f := setup(t)
	event := f.seedEvent(t, true, models.EventOpen)
	f.submit(t, organizer, event.ID)

	_, err := f.svc.CreateProposal(context.Background(), organizer, proposalRequest(event.ID))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "You already have an active proposal for this event", apperr.PublicMessage(err))
}

func TestAcceptBooksEventAndRejectsOthers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)
	winner := f.submit(t, organizer, event.ID)
	loser := f.submit(t, organizer2, event.ID)
	f.published = nil

	accepted := models.ProposalAccepted
	p, err := f.svc.UpdateProposal(ctx, client, winner.ID, proposals.UpdateProposalRequest{Status: &accepted})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalAccepted, p.Status)

	stored, err := f.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventBooked, stored.Status)
	assert.Equal(t, organizer.UserID, stored.BookedOrganizerID)

	other, err := f.svc.GetProposal(ctx, organizer2, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, other.Status)

	require.Len(t, f.published, 2)
	assert.Equal(t, models.NotifyProposalAccepted, f.published[0].Type)
	assert.Equal(t, organizer.UserID, f.published[0].RecipientID)
	assert.Equal(t, models.NotifyProposalRejected, f.published[1].Type)
	assert.Equal(t, organizer2.UserID, f.published[1].RecipientID)

	// a settled proposal cannot change again
	rejected := models.ProposalRejected
	_, err = f.svc.UpdateProposal(ctx, client, winner.ID, proposals.UpdateProposalRequest{Status: &rejected})
	assert.Equal(t, "Proposal is no longer active", apperr.PublicMessage(err))
}

func TestRolesOnUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)
	p := f.submit(t, organizer, event.ID)

	accepted := models.ProposalAccepted
	_, err := f.svc.UpdateProposal(ctx, organizer, p.ID, proposals.UpdateProposalRequest{Status: &accepted})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	withdrawn := models.ProposalWithdrawn
	_, err = f.svc.UpdateProposal(ctx, client, p.ID, proposals.UpdateProposalRequest{Status: &withdrawn})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.UpdateProposal(ctx, stranger, p.ID, proposals.UpdateProposalRequest{Status: &accepted})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := f.svc.UpdateProposal(ctx, organizer, p.ID, proposals.UpdateProposalRequest{Status: &withdrawn})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalWithdrawn, got.Status)

	// withdrawing frees the slot for a fresh proposal
	f.submit(t, organizer, event.ID)
}

func TestAdminMayRejectOrWithdrawButNotAccept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)
	p := f.submit(t, organizer, event.ID)
	other := f.submit(t, organizer2, event.ID)

	accepted := models.ProposalAccepted
	_, err := f.svc.UpdateProposal(ctx, admin, p.ID, proposals.UpdateProposalRequest{Status: &accepted})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	letter := "Rewritten by someone else"
	_, err = f.svc.UpdateProposal(ctx, admin, p.ID, proposals.UpdateProposalRequest{CoverLetter: &letter})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	rejected := models.ProposalRejected
	got, err := f.svc.UpdateProposal(ctx, admin, p.ID, proposals.UpdateProposalRequest{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, got.Status)
	assert.NotNil(t, got.RespondedAt)

	last := f.published[len(f.published)-1]
	assert.Equal(t, models.NotifyProposalRejected, last.Type)
	assert.Equal(t, organizer.UserID, last.RecipientID)

	_, err = f.svc.UpdateProposal(ctx, admin, p.ID, proposals.UpdateProposalRequest{Status: &rejected})
	assert.Equal(t, "Proposal is no longer active", apperr.PublicMessage(err))

	withdrawn := models.ProposalWithdrawn
	got, err = f.svc.UpdateProposal(ctx, admin, other.ID, proposals.UpdateProposalRequest{Status: &withdrawn})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalWithdrawn, got.Status)

	stored, err := f.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOpen, stored.Status)
}

func TestOrganizerRevisionRecomputesTotal(t *testing.T) {
	f := setup(t)
	event := f.seedEvent(t, true, models.EventOpen)
	p := f.submit(t, organizer, event.ID)

	got, err := f.svc.UpdateProposal(context.Background(), organizer, p.ID, proposals.UpdateProposalRequest{
		Services: []proposals.ServiceInput{{Name: "Decor", Cost: 900}, {Name: "Music", Cost: 400}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1300.0, got.TotalCost)

	reloaded, err := f.svc.GetProposal(context.Background(), client, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1300.0, reloaded.TotalCost)
}

func TestLapsedProposalDoesNotBlockResubmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)

	now := time.Now().UTC()
	lapsed := &models.Proposal{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		OrganizerID: organizer.UserID,
		ClientID:    client.UserID,
		Status:      models.ProposalPending,
		CoverLetter: "Last month's offer",
		Services:    []models.ProposalService{{Name: "Decor", Cost: 10}},
		TotalCost:   10,
		Currency:    "EUR",
		ValidUntil:  now.Add(-time.Hour),
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   now.Add(-48 * time.Hour),
	}
	require.NoError(t, f.store.CreateProposal(ctx, lapsed, nil))

	fresh, err := f.svc.CreateProposal(ctx, organizer, proposalRequest(event.ID))
	require.NoError(t, err)
	assert.Equal(t, models.ProposalPending, fresh.Status)

	old, err := f.store.GetProposalByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalExpired, old.Status)

	// the fresh proposal still holds the slot
	_, err = f.svc.CreateProposal(ctx, organizer, proposalRequest(event.ID))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestStaleProposalsExpireOnRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)

	now := time.Now().UTC()
	stale := &models.Proposal{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		OrganizerID: organizer.UserID,
		ClientID:    client.UserID,
		Status:      models.ProposalPending,
		CoverLetter: "An old offer that ran out",
		Services:    []models.ProposalService{{Name: "Decor", Cost: 10}},
		TotalCost:   10,
		Currency:    "EUR",
		ValidUntil:  now.Add(-time.Hour),
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   now.Add(-48 * time.Hour),
	}
	require.NoError(t, f.store.CreateProposal(ctx, stale, nil))

	list, err := f.svc.ListProposals(ctx, client, event.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ProposalExpired, list[0].Status)

	accepted := models.ProposalAccepted
	_, err = f.svc.UpdateProposal(ctx, client, stale.ID, proposals.UpdateProposalRequest{Status: &accepted})
	assert.Equal(t, "Proposal is no longer active", apperr.PublicMessage(err))

	// expiry frees the organizer's slot
	f.submit(t, organizer, event.ID)
}

func TestListProposalsScopesByRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)
	f.submit(t, organizer, event.ID)
	f.submit(t, organizer2, event.ID)

	mine, err := f.svc.ListProposals(ctx, organizer, "", "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	forClient, err := f.svc.ListProposals(ctx, client, event.ID, "")
	require.NoError(t, err)
	assert.Len(t, forClient, 2)

	_, err = f.svc.ListProposals(ctx, stranger, event.ID, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	all, err := f.svc.ListProposals(ctx, admin, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBookingPassRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := f.seedEvent(t, true, models.EventOpen)
	p := f.submit(t, organizer, event.ID)

	_, err := f.svc.BookingPass(ctx, client, p.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	accepted := models.ProposalAccepted
	_, err = f.svc.UpdateProposal(ctx, client, p.ID, proposals.UpdateProposalRequest{Status: &accepted})
	require.NoError(t, err)

	png, err := f.svc.BookingPass(ctx, organizer, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = f.svc.BookingPass(ctx, stranger, p.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, token, err := qr.NewQRGenerator("pass-secret").GenerateEncryptedQR(qr.BookingPass{
		ProposalID: p.ID, EventID: event.ID, ClientID: client.UserID, OrganizerID: organizer.UserID, IssuedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	result, err := f.svc.VerifyPass(ctx, proposals.VerifyPassRequest{Token: token})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Beach wedding", result.EventTitle)

	_, err = f.svc.VerifyPass(ctx, proposals.VerifyPassRequest{Token: "garbage"})
	assert.Equal(t, "Invalid booking pass", apperr.PublicMessage(err))
}
