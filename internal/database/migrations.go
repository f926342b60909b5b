package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name: "create transcriptions",
		sql: `CREATE TABLE IF NOT EXISTS transcriptions (
			id          bigserial PRIMARY KEY,
			provider    text NOT NULL,
			text        text NOT NULL,
			language    text NOT NULL,
			encoding    text NOT NULL,
			audio_bytes int NOT NULL,
			fingerprint text NOT NULL,
			confidence  double precision,
			elapsed_ms  bigint NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'transcriptions')`,
	},
	{
		name:  "add transcriptions created_at index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions (created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_transcriptions_created_at')`,
	},
	{
		name:  "add transcriptions provider index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_transcriptions_provider ON transcriptions (provider, created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_transcriptions_provider')`,
	},
}

// Migrate applies any pending migrations. Already-applied ones are skipped
// based on their check query.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		db.log.Debug().Msg("schema up to date")
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply the remaining migrations by hand.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Apply the following SQL as a role that can create tables:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart interview-stt, or unset DATABASE_URL to run without the transcript log.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
