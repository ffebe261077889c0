//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pgadapter "github.com/rentwatch/rentwatch-api/internal/adapter/driven/postgres"
	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// schema mirrors migrations/0001_init.sql; kept inline so this suite has no
// filesystem dependency on the migrations directory.
const schema = `
CREATE TABLE IF NOT EXISTS queries (
    id            TEXT PRIMARY KEY,
    description   TEXT NOT NULL DEFAULT '',
    canonical_url TEXT NOT NULL DEFAULT '',
    region        TEXT NOT NULL,
    kind          TEXT NOT NULL DEFAULT '0',
    stations      TEXT[] NOT NULL DEFAULT '{}',
    metro_line    TEXT NOT NULL DEFAULT '',
    price_min     INTEGER,
    price_max     INTEGER,
    sections      TEXT[] NOT NULL DEFAULT '{}',
    rooms         TEXT[] NOT NULL DEFAULT '{}',
    floor         TEXT NOT NULL DEFAULT '',
    first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_queries_stations ON queries USING GIN (stations);
CREATE INDEX IF NOT EXISTS idx_queries_price_range ON queries (price_min, price_max);

CREATE TABLE IF NOT EXISTS rentals (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    link          TEXT NOT NULL DEFAULT '',
    house_type    TEXT NOT NULL DEFAULT '',
    rooms         TEXT NOT NULL DEFAULT '',
    tags_list     TEXT[] NOT NULL DEFAULT '{}',
    image_urls    TEXT[] NOT NULL DEFAULT '{}',
    price_text    TEXT NOT NULL DEFAULT '',
    content_hash  TEXT NOT NULL,
    first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metro_distances (
    id               BIGSERIAL PRIMARY KEY,
    listing_id       TEXT NOT NULL REFERENCES rentals (id) ON DELETE CASCADE,
    station_id       TEXT,
    station_name     TEXT NOT NULL DEFAULT '',
    metro_value_text TEXT NOT NULL DEFAULT '',
    distance_meters  INTEGER
);

CREATE TABLE IF NOT EXISTS query_rentals (
    query_id      TEXT NOT NULL REFERENCES queries (id) ON DELETE CASCADE,
    listing_id    TEXT NOT NULL REFERENCES rentals (id) ON DELETE CASCADE,
    first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (query_id, listing_id)
);

CREATE TABLE IF NOT EXISTS crawl_sessions (
    id                  UUID PRIMARY KEY,
    query_id            TEXT NOT NULL REFERENCES queries (id) ON DELETE CASCADE,
    started_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at         TIMESTAMPTZ,
    station_count       INTEGER NOT NULL DEFAULT 1,
    multi_station       BOOLEAN NOT NULL DEFAULT false,
    total_listings      INTEGER NOT NULL DEFAULT 0,
    new_listings        INTEGER NOT NULL DEFAULT 0,
    notifications_sent  BOOLEAN NOT NULL DEFAULT false,
    error_count         INTEGER NOT NULL DEFAULT 0,
    options             JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS crawl_session_rentals (
    session_id UUID NOT NULL REFERENCES crawl_sessions (id) ON DELETE CASCADE,
    listing_id TEXT NOT NULL REFERENCES rentals (id) ON DELETE CASCADE,
    PRIMARY KEY (session_id, listing_id)
);
`

// testDB holds the test database container and its pool.
type testDB struct {
	pool      *pgxpool.Pool
	container testcontainers.Container
	ctx       context.Context
}

func setupTestDB(t *testing.T) *testDB {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rentwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)

	return &testDB{pool: pool, container: container, ctx: ctx}
}

func (db *testDB) cleanup(t *testing.T) {
	db.pool.Close()
	if err := db.container.Terminate(db.ctx); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

func TestStateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.cleanup(t)

	store := pgadapter.NewStateStore(db.pool)
	ctx := db.ctx

	canonical := &port.CanonicalResult{
		QueryID:     "region1_stations4232",
		Description: "region 1, near Central",
		Region:      "1",
		Kind:        "0",
		Stations:    []string{"4232"},
	}

	t.Run("UpsertQuery creates then re-uses the same row", func(t *testing.T) {
		q, err := store.UpsertQuery(ctx, canonical)
		require.NoError(t, err)
		assert.Equal(t, canonical.QueryID, q.ID)
		firstSeen := q.FirstSeenAt

		q2, err := store.UpsertQuery(ctx, canonical)
		require.NoError(t, err)
		assert.Equal(t, firstSeen, q2.FirstSeenAt)
	})

	t.Run("PersistListings then GetExistingPropertyIDs round-trips", func(t *testing.T) {
		sessionID, err := store.OpenSession(ctx, canonical.QueryID, json.RawMessage("{}"), 1, false)
		require.NoError(t, err)

		observed := []domain.ObservedListing{
			{Listing: domain.Listing{ID: "prop-1", Title: "Studio near Central", PriceText: "¥80,000"}},
		}
		err = store.PersistListings(ctx, sessionID, canonical.QueryID, observed, map[string]struct{}{"prop-1": {}})
		require.NoError(t, err)

		ids, err := store.GetExistingPropertyIDs(ctx, canonical.QueryID)
		require.NoError(t, err)
		assert.Contains(t, ids, "prop-1")

		err = store.CloseSession(ctx, sessionID, port.PersistSummary{TotalListings: 1, NewListings: 1})
		require.NoError(t, err)
	})

	t.Run("ListQueryRentals returns the persisted listing", func(t *testing.T) {
		listings, err := store.ListQueryRentals(ctx, canonical.QueryID, 50, nil)
		require.NoError(t, err)
		require.Len(t, listings, 1)
		assert.Equal(t, "prop-1", listings[0].ID)
	})

	t.Run("ListQueriesDueForRecrawl sees the query once it is stale enough", func(t *testing.T) {
		due, err := store.ListQueriesDueForRecrawl(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		var found bool
		for _, q := range due {
			if q.ID == canonical.QueryID {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("ClearQuery removes the query and its only listing", func(t *testing.T) {
		result, err := store.ClearQuery(ctx, canonical.QueryID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ListingsDeleted)

		_, err = store.GetQuery(ctx, canonical.QueryID)
		assert.ErrorIs(t, err, domain.ErrQueryNotFound)
	})
}
