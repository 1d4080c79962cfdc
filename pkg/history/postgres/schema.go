// Package postgres provides a PostgreSQL-backed implementation of
// [history.Store].
//
// All tables share a single [pgxpool.Pool]. [Migrate] creates them on start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_, _ = store.SaveSummary(ctx, history.Summary{UserID: uid, SummaryText: s})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlHistory = `
CREATE TABLE IF NOT EXISTS ai_summaries (
    id            TEXT         PRIMARY KEY,
    user_id       TEXT         NOT NULL,
    source_text   TEXT         NOT NULL DEFAULT '',
    summary_text  TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ai_summaries_user_created
    ON ai_summaries (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id               TEXT         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    questions        JSONB        NOT NULL DEFAULT '[]',
    score            INTEGER      NOT NULL DEFAULT 0,
    total_questions  INTEGER      NOT NULL DEFAULT 0,
    source_text      TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_created
    ON quiz_attempts (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS canvas_entries (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_canvas_entries_user_created
    ON canvas_entries (user_id, created_at DESC);
`

const ddlReferrals = `
CREATE TABLE IF NOT EXISTS therapist_referrals (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    mobile      TEXT         NOT NULL,
    age         TEXT         NOT NULL DEFAULT '',
    message     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates all required tables and indexes. It is idempotent and safe
// to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlHistory, ddlReferrals} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
