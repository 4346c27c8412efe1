package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/apperr"
	"venuly/internal/database"
	"venuly/internal/database/dbtest"
	"venuly/internal/models"
)

func TestCreateSchemaIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, database.CreateSchema(context.Background(), db))
	assert.False(t, database.IsPostgres(db))
}

func TestActiveProposalIndexIsPartial(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	newProposal := func(id string, status models.ProposalStatus) *models.Proposal {
		return &models.Proposal{
			ID: id, EventID: "e1", OrganizerID: "o1", ClientID: "c1",
			Status: status, CoverLetter: "hello", Currency: "USD",
			ValidUntil: time.Now().Add(24 * time.Hour),
			Services:   []models.ProposalService{{Name: "DJ", Cost: 100}},
			TotalCost:  100,
		}
	}

	_, err := db.NewInsert().Model(newProposal("p1", models.ProposalPending)).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(newProposal("p2", models.ProposalNegotiating)).Exec(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsUniqueViolation(err))

	_, err = db.NewInsert().Model(newProposal("p3", models.ProposalRejected)).Exec(ctx)
	assert.NoError(t, err)
}

func TestEmbeddedColumnsRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	ev := &models.Event{
		ID: "e1", ClientID: "c1", Title: "Summer gala", Description: "Rooftop party",
		EventType: models.EventTypeParty, Status: models.EventDraft,
		EventDate:    models.DateRange{Start: start, End: start.Add(4 * time.Hour)},
		Location:     models.Location{City: "Lisbon", Country: "PT"},
		Budget:       models.Budget{Min: 1000, Max: 5000, Currency: "EUR"},
		GuestCount:   models.GuestCount{Min: 50, Max: 120},
		Requirements: []string{"catering", "dj"},
	}
	_, err := db.NewInsert().Model(ev).Exec(ctx)
	require.NoError(t, err)

	var got models.Event
	require.NoError(t, db.NewSelect().Model(&got).Where("id = ?", "e1").Scan(ctx))
	assert.Equal(t, "Lisbon", got.Location.City)
	assert.Equal(t, 5000.0, got.Budget.Max)
	assert.Equal(t, 120, got.GuestCount.Max)
	assert.Equal(t, []string{"catering", "dj"}, got.Requirements)
	assert.True(t, got.EventDate.Start.Equal(start))
}
