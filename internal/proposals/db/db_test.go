package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/apperr"
	"venuly/internal/database/dbtest"
	eventdb "venuly/internal/events/db"
	"venuly/internal/models"
	"venuly/internal/proposals/db"
)

type stores struct {
	events    *eventdb.DB
	proposals *db.DB
}

func newStores(t *testing.T) stores {
	bunDB := dbtest.New(t)
	return stores{events: &eventdb.DB{Bun: bunDB}, proposals: &db.DB{Bun: bunDB}}
}

func seedEvent(t *testing.T, s stores) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Event{
		ID:          uuid.New().String(),
		ClientID:    "client-1",
		Title:       "Company retreat",
		Description: "Two days by the lake",
		EventType:   models.EventTypeCorporate,
		Status:      models.EventOpen,
		EventDate:   models.DateRange{Start: now.Add(48 * time.Hour), End: now.Add(72 * time.Hour)},
		Location:    models.Location{City: "Kisumu", Country: "Kenya"},
		Budget:      models.Budget{Min: 100, Max: 900, Currency: "USD"},
		GuestCount:  models.GuestCount{Min: 10, Max: 40},
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.events.CreateEvent(context.Background(), e))
	return e
}

func newProposal(eventID, organizerID string) *models.Proposal {
	now := time.Now().UTC()
	services := []models.ProposalService{{Name: "Catering", Cost: 300}, {Name: "Sound", Cost: 150}}
	return &models.Proposal{
		ID:          uuid.New().String(),
		EventID:     eventID,
		OrganizerID: organizerID,
		ClientID:    "client-1",
		Status:      models.ProposalPending,
		CoverLetter: "We have run retreats for ten years.",
		Services:    services,
		TotalCost:   models.SumServices(services),
		Currency:    "USD",
		ValidUntil:  now.Add(7 * 24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateProposalAppendsToEvent(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	p := newProposal(event.ID, "org-1")
	require.NoError(t, s.proposals.CreateProposal(ctx, p, nil))

	got, err := s.proposals.GetProposalByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 450.0, got.TotalCost)
	assert.Len(t, got.Services, 2)

	stored, err := s.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, stored.ProposalIDs)
}

func TestCreateProposalRollsBackOnCheckFailure(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	closed := errors.New("closed")
	p := newProposal(event.ID, "org-1")
	err := s.proposals.CreateProposal(ctx, p, func(*models.Event) error { return closed })
	assert.ErrorIs(t, err, closed)

	list, err := s.proposals.ListProposals(ctx, db.ProposalFilter{EventID: event.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOneActiveProposalPerOrganizer(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	first := newProposal(event.ID, "org-1")
	require.NoError(t, s.proposals.CreateProposal(ctx, first, nil))

	err := s.proposals.CreateProposal(ctx, newProposal(event.ID, "org-1"), nil)
	assert.True(t, apperr.IsUniqueViolation(err))

	// a withdrawn proposal frees the slot
	first.Status = models.ProposalWithdrawn
	require.NoError(t, s.proposals.UpdateProposal(ctx, first, "status"))
	require.NoError(t, s.proposals.CreateProposal(ctx, newProposal(event.ID, "org-1"), nil))

	stored, err := s.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ProposalIDs, 2)
}

func TestAcceptProposalBooksEventAndRejectsOthers(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	winner := newProposal(event.ID, "org-1")
	loser := newProposal(event.ID, "org-2")
	withdrawn := newProposal(event.ID, "org-3")
	for _, p := range []*models.Proposal{winner, loser, withdrawn} {
		require.NoError(t, s.proposals.CreateProposal(ctx, p, nil))
	}
	withdrawn.Status = models.ProposalWithdrawn
	require.NoError(t, s.proposals.UpdateProposal(ctx, withdrawn, "status"))

	result, err := s.proposals.AcceptProposal(ctx, winner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalAccepted, result.Proposal.Status)
	assert.NotNil(t, result.Proposal.AcceptedAt)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, loser.ID, result.Rejected[0].ID)

	stored, err := s.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventBooked, stored.Status)
	assert.Equal(t, winner.ID, stored.BookedProposalID)
	assert.Equal(t, "org-1", stored.BookedOrganizerID)

	got, err := s.proposals.GetProposalByID(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, got.Status)

	got, err = s.proposals.GetProposalByID(ctx, withdrawn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalWithdrawn, got.Status)
}

func TestAcceptProposalCheckAbortsEverything(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	p := newProposal(event.ID, "org-1")
	require.NoError(t, s.proposals.CreateProposal(ctx, p, nil))

	_, err := s.proposals.AcceptProposal(ctx, p.ID, func(*models.Proposal, *models.Event) error {
		return apperr.Forbidden("nope")
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	stored, err := s.events.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOpen, stored.Status)
	assert.Empty(t, stored.BookedProposalID)
}

func TestListProposalsFilters(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	event := seedEvent(t, s)

	a := newProposal(event.ID, "org-1")
	b := newProposal(event.ID, "org-2")
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	require.NoError(t, s.proposals.CreateProposal(ctx, a, nil))
	require.NoError(t, s.proposals.CreateProposal(ctx, b, nil))

	all, err := s.proposals.ListProposals(ctx, db.ProposalFilter{ClientID: "client-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	mine, err := s.proposals.ListProposals(ctx, db.ProposalFilter{OrganizerID: "org-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	none, err := s.proposals.ListProposals(ctx, db.ProposalFilter{Status: models.ProposalAccepted})
	require.NoError(t, err)
	assert.Empty(t, none)
}
