package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — users
// ─────────────────────────────────────────────────────────────────────────────

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL    PRIMARY KEY,
    username      TEXT         NOT NULL UNIQUE,
    password_hash TEXT         NOT NULL,
    role          TEXT         NOT NULL DEFAULT 'lecturer',
    token         TEXT,
    disabled_at   TIMESTAMPTZ,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_users_token ON users (token);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — lectures
// ─────────────────────────────────────────────────────────────────────────────

const ddlLectures = `
CREATE TABLE IF NOT EXISTS lectures (
    id          BIGSERIAL    PRIMARY KEY,
    title       TEXT         NOT NULL,
    creator_id  BIGINT       NOT NULL REFERENCES users (id),
    status      TEXT         NOT NULL DEFAULT 'init',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at    TIMESTAMPTZ,
    deleted_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_lectures_creator
    ON lectures (creator_id, created_at DESC);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — utterances
//
// The (lecture_id, seq, source) primary key carries the conflict-ignore
// append semantics: a repeated persistence attempt for the same event is a
// silent no-op at the SQL level (ON CONFLICT DO NOTHING in Append).
// ─────────────────────────────────────────────────────────────────────────────

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    lecture_id  BIGINT       NOT NULL REFERENCES lectures (id),
    seq         BIGINT       NOT NULL,
    start_ms    BIGINT       NOT NULL,
    end_ms      BIGINT       NOT NULL,
    text_source TEXT         NOT NULL,
    text_target TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL DEFAULT 'realtime',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (lecture_id, seq, source)
);
`

// Migrate creates all required tables and indexes if they do not exist.
// It is safe to run repeatedly and on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlUsers, ddlLectures, ddlUtterances} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
