package postgres

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS timetable_cache (
    id          TEXT PRIMARY KEY,
    scope       TEXT NOT NULL,
    subject_key TEXT NOT NULL,
    range_start BIGINT,
    range_end   BIGINT,
    payload     JSONB NOT NULL,
    created_at  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_key
    ON timetable_cache (scope, subject_key, range_start, range_end, created_at DESC);

CREATE TABLE IF NOT EXISTS homework (
    subject_key TEXT NOT NULL,
    upstream_id BIGINT NOT NULL,
    lesson_id   BIGINT,
    due_date    INTEGER NOT NULL,
    subject     TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL DEFAULT '',
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    fetched_at  BIGINT NOT NULL,
    PRIMARY KEY (subject_key, upstream_id)
);

CREATE TABLE IF NOT EXISTS exams (
    subject_key TEXT NOT NULL,
    upstream_id BIGINT NOT NULL,
    exam_date   INTEGER NOT NULL,
    start_time  INTEGER NOT NULL DEFAULT 0,
    end_time    INTEGER NOT NULL DEFAULT 0,
    subject     TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL DEFAULT '',
    teachers    JSONB NOT NULL DEFAULT '[]',
    rooms       JSONB NOT NULL DEFAULT '[]',
    fetched_at  BIGINT NOT NULL,
    PRIMARY KEY (subject_key, upstream_id)
);

CREATE TABLE IF NOT EXISTS untis_credentials (
    user_id    TEXT PRIMARY KEY,
    username   TEXT NOT NULL,
    host       TEXT NOT NULL,
    school     TEXT NOT NULL,
    secret     BYTEA NOT NULL,
    created_at BIGINT NOT NULL
);
`

// EnsureSchema creates the tables when they do not exist yet. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
