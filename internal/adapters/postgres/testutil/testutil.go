// Package testutil provisions migrated Postgres pools for adapter tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rice-apps/carpool-backend/internal/adapters/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         uuid PRIMARY KEY,
	username   text NOT NULL,
	email      text NOT NULL,
	first_name text,
	last_name  text,
	created_at timestamptz NOT NULL,
	CONSTRAINT users_username_unique UNIQUE (username)
);

CREATE TABLE IF NOT EXISTS rides (
	id             uuid PRIMARY KEY,
	departing_at   timestamptz NOT NULL,
	departing_from text NOT NULL,
	arriving_at    text NOT NULL,
	number_riders  integer NOT NULL,
	comments       text NOT NULL DEFAULT '',
	created_at     timestamptz NOT NULL,
	updated_at     timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS ride_riders (
	ride_id  uuid NOT NULL REFERENCES rides (id) ON DELETE CASCADE,
	user_id  uuid NOT NULL REFERENCES users (id),
	position integer NOT NULL,
	PRIMARY KEY (ride_id, user_id),
	CONSTRAINT ride_riders_position_unique UNIQUE (ride_id, position)
);

CREATE TABLE IF NOT EXISTS reminder_jobs (
	ride_id    uuid PRIMARY KEY,
	fire_at    timestamptz NOT NULL,
	recipients text[] NOT NULL DEFAULT '{}'
);
`

// OpenMigratedPool connects to TEST_DATABASE_URL and applies the schema.
// Tests are skipped when the variable is unset so the suite stays runnable
// without a database.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres adapter tests")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}
