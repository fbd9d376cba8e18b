package database

import "context"

// schemaSQL is the full schema for a fresh database. Everything is
// IF NOT EXISTS so applying it on an initialized database is a no-op.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id    text PRIMARY KEY,
    transcript    jsonb NOT NULL,
    summary       jsonb NOT NULL,
    tier          text NOT NULL,
    language      text,
    word_count    int NOT NULL DEFAULT 0,
    generated_at  timestamptz NOT NULL,
    updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_generated_at ON sessions (generated_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_tier ON sessions (tier);
`

// InitSchema applies the schema on a fresh database. It checks whether the
// "sessions" table exists as a proxy for whether the schema has been loaded.
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'sessions')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh database detected — applying schema")
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	db.log.Info().Msg("schema applied successfully")
	return nil
}
