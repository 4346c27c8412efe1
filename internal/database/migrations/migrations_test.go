package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"venuly/internal/logger"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := sqlFiles.ReadDir("sql")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrationsAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "venuly",
				"POSTGRES_USER":     "venuly",
				"POSTGRES_PASSWORD": "venuly",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://venuly:venuly@%s:%s/venuly?sslmode=disable", host, port.Port())

	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := NewRunner(bunDB, logger.NewNopLogger())
	defer runner.Close()

	require.NoError(t, runner.RunMigrations())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// the partial index admits a second proposal once the first is no longer active
	_, err = bunDB.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, name, role) VALUES
		('c1', 'c@x.io', 'h', 'Client', 'CLIENT'), ('o1', 'o@x.io', 'h', 'Org', 'ORGANIZER')`)
	require.NoError(t, err)
	_, err = bunDB.ExecContext(ctx, `INSERT INTO events (id, client_id, title, description, event_type, status,
		event_date_start, event_date_end, location_city, location_country, budget_min, budget_max, budget_currency,
		guest_count_min, guest_count_max) VALUES
		('e1', 'c1', 'Gala', 'desc', 'PARTY', 'OPEN', NOW(), NOW(), 'Lisbon', 'PT', 1, 2, 'USD', 1, 2)`)
	require.NoError(t, err)

	insert := `INSERT INTO proposals (id, event_id, organizer_id, client_id, status, cover_letter, total_cost, currency, valid_until)
		VALUES (?, 'e1', 'o1', 'c1', ?, 'hi', 10, 'USD', NOW())`
	_, err = bunDB.ExecContext(ctx, insert, "p1", "PENDING")
	require.NoError(t, err)
	_, err = bunDB.ExecContext(ctx, insert, "p2", "PENDING")
	assert.Error(t, err)
	_, err = bunDB.ExecContext(ctx, insert, "p3", "WITHDRAWN")
	assert.NoError(t, err)

	require.NoError(t, runner.MigrateDown())
}
