package postgres

import (
	"context"
	"fmt"

	"resourcebooking/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// Step is one idempotent DDL statement.
type Step struct {
	Name string
	SQL  string
}

// Steps run in order. Every statement tolerates an existing object so the
// job can be re-run against a migrated database.
var Steps = []Step{
	{
		Name: "btree_gist extension",
		SQL:  `CREATE EXTENSION IF NOT EXISTS btree_gist`,
	},
	{
		Name: "resources table",
		SQL: `CREATE TABLE IF NOT EXISTS resources (
	id           UUID PRIMARY KEY,
	name         VARCHAR(100) NOT NULL CHECK (length(name) > 0),
	description  VARCHAR(500) NOT NULL DEFAULT '',
	location     VARCHAR(200) NOT NULL DEFAULT '',
	capacity     INTEGER NOT NULL CHECK (capacity >= 1),
	is_available BOOLEAN NOT NULL DEFAULT TRUE,
	version      BIGINT NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		Name: "resources name index",
		SQL:  `CREATE INDEX IF NOT EXISTS resources_name_idx ON resources (lower(name))`,
	},
	{
		Name: "bookings table",
		SQL: `CREATE TABLE IF NOT EXISTS bookings (
	id          UUID PRIMARY KEY,
	resource_id UUID NOT NULL REFERENCES resources (id) ON DELETE RESTRICT,
	start_time  TIMESTAMPTZ NOT NULL,
	end_time    TIMESTAMPTZ NOT NULL,
	booked_by   VARCHAR(100) NOT NULL,
	purpose     VARCHAR(500) NOT NULL,
	version     BIGINT NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT bookings_time_range_check CHECK (end_time > start_time),
	CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
		resource_id WITH =,
		tstzrange(start_time, end_time, '[)') WITH &&
	)
)`,
	},
	{
		Name: "bookings schedule index",
		SQL:  `CREATE INDEX IF NOT EXISTS bookings_start_time_idx ON bookings (start_time, id)`,
	},
	{
		Name: "bookings resource index",
		SQL:  `CREATE INDEX IF NOT EXISTS bookings_resource_start_idx ON bookings (resource_id, start_time)`,
	},
	{
		Name: "booking_locks table",
		SQL: `CREATE TABLE IF NOT EXISTS booking_locks (
	id         TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
}

// RunMigration applies Steps in a single transaction.
func RunMigration(ctx context.Context, conn *sqlx.DB, log *logger.Logger) error {
	log.Info("Running Postgres migrations", "steps", len(Steps))

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range Steps {
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			return fmt.Errorf("migration step %q failed: %w", step.Name, err)
		}
		log.Info("Applied migration step", "step", step.Name)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Info("All Postgres migrations applied successfully")
	return nil
}
