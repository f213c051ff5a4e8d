package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title TEXT NOT NULL,
	host_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	key_hash TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ended_at TIMESTAMPTZ,
	last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	event_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transcript_entries (
	id TEXT PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	speaker_id TEXT NOT NULL,
	speaker TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	lang TEXT NOT NULL DEFAULT '',
	ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at);
CREATE INDEX IF NOT EXISTS idx_transcript_session_ts ON transcript_entries(session_id, ts);
CREATE INDEX IF NOT EXISTS idx_summaries_session_ts ON summaries(session_id, ts);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
