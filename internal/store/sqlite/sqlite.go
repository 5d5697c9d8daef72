// Package sqlite implements the store interfaces on modernc.org/sqlite,
// used for local runs and in-memory tests. Timestamps are kept as unix
// milliseconds so that nullable range bounds compare exactly.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/store"
)

// Open opens (or creates) a SQLite database at the given path, enables WAL
// journal mode and bootstraps the schema. Pass ":memory:" for an ephemeral
// database.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and sidesteps
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS timetable_cache (
    id          TEXT PRIMARY KEY,
    scope       TEXT NOT NULL,
    subject_key TEXT NOT NULL,
    range_start INTEGER,
    range_end   INTEGER,
    payload     TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_key
    ON timetable_cache (scope, subject_key, range_start, range_end, created_at DESC);

CREATE TABLE IF NOT EXISTS homework (
    subject_key TEXT NOT NULL,
    upstream_id INTEGER NOT NULL,
    lesson_id   INTEGER,
    due_date    INTEGER NOT NULL,
    subject     TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL DEFAULT '',
    completed   INTEGER NOT NULL DEFAULT 0,
    fetched_at  INTEGER NOT NULL,
    PRIMARY KEY (subject_key, upstream_id)
);

CREATE TABLE IF NOT EXISTS exams (
    subject_key TEXT NOT NULL,
    upstream_id INTEGER NOT NULL,
    exam_date   INTEGER NOT NULL,
    start_time  INTEGER NOT NULL DEFAULT 0,
    end_time    INTEGER NOT NULL DEFAULT 0,
    subject     TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL DEFAULT '',
    teachers    TEXT NOT NULL DEFAULT '[]',
    rooms       TEXT NOT NULL DEFAULT '[]',
    fetched_at  INTEGER NOT NULL,
    PRIMARY KEY (subject_key, upstream_id)
);

CREATE TABLE IF NOT EXISTS untis_credentials (
    user_id    TEXT PRIMARY KEY,
    username   TEXT NOT NULL,
    host       TEXT NOT NULL,
    school     TEXT NOT NULL,
    secret     BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// New constructs a SQLite-backed store from an open database handle.
func New(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) TimetableCache() store.TimetableCache { return &cache{db: s.db} }
func (s *sqliteStore) Homework() store.Homework             { return &homework{db: s.db} }
func (s *sqliteStore) Exams() store.Exams                   { return &exams{db: s.db} }
func (s *sqliteStore) Credentials() store.Credentials       { return &credentials{db: s.db} }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteStore) Close() error                   { return s.db.Close() }

func boundMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisBound(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

// --- TimetableCache ---

type cache struct{ db *sql.DB }

const cacheColumns = `id, scope, subject_key, range_start, range_end, payload, created_at`

func (c *cache) Insert(ctx context.Context, rec *model.CacheRecord) (*model.CacheRecord, error) {
	out := *rec
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(out.Payload)
	if err != nil {
		return nil, err
	}
	_, err = c.db.ExecContext(ctx, `
        INSERT INTO timetable_cache (id, scope, subject_key, range_start, range_end, payload, created_at)
        VALUES (?,?,?,?,?,?,?)
    `, out.ID, string(out.Scope), out.SubjectKey, boundMillis(out.RangeStart), boundMillis(out.RangeEnd), string(payload), out.CreatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *cache) LookupFresh(ctx context.Context, scope model.Scope, subjectKey string, start, end *time.Time, ttl time.Duration) (*model.CacheRecord, error) {
	cutoff := time.Now().Add(-ttl).UnixMilli()
	row := c.db.QueryRowContext(ctx, `
        SELECT `+cacheColumns+` FROM timetable_cache
        WHERE scope=? AND subject_key=? AND range_start IS ? AND range_end IS ? AND created_at >= ?
        ORDER BY created_at DESC, rowid DESC LIMIT 1
    `, string(scope), subjectKey, boundMillis(start), boundMillis(end), cutoff)
	return scanRecord(row)
}

func (c *cache) LookupLatestOrFallback(ctx context.Context, scope model.Scope, subjectKey string, start, end *time.Time) (*model.CacheRecord, error) {
	row := c.db.QueryRowContext(ctx, `
        SELECT `+cacheColumns+` FROM timetable_cache
        WHERE scope=? AND subject_key=? AND range_start IS ? AND range_end IS ?
        ORDER BY created_at DESC, rowid DESC LIMIT 1
    `, string(scope), subjectKey, boundMillis(start), boundMillis(end))
	rec, err := scanRecord(row)
	if err != nil || rec != nil {
		return rec, err
	}
	row = c.db.QueryRowContext(ctx, `
        SELECT `+cacheColumns+` FROM timetable_cache
        WHERE scope=? AND subject_key=?
        ORDER BY created_at DESC, rowid DESC LIMIT 1
    `, string(scope), subjectKey)
	return scanRecord(row)
}

func (c *cache) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM timetable_cache WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *cache) TrimHistory(ctx context.Context, keep int) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
        DELETE FROM timetable_cache WHERE id IN (
            SELECT id FROM (
                SELECT id, ROW_NUMBER() OVER (
                    PARTITION BY scope, subject_key, range_start, range_end
                    ORDER BY created_at DESC, rowid DESC
                ) AS rn
                FROM timetable_cache
            ) WHERE rn > ?
        )
    `, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(row *sql.Row) (*model.CacheRecord, error) {
	var (
		rec        model.CacheRecord
		scope      string
		start, end sql.NullInt64
		payload    string
		createdMs  int64
	)
	err := row.Scan(&rec.ID, &scope, &rec.SubjectKey, &start, &end, &payload, &createdMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Scope = model.Scope(scope)
	rec.RangeStart = millisBound(start)
	rec.RangeEnd = millisBound(end)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, err
	}
	return &rec, nil
}

// --- Homework ---

type homework struct{ db *sql.DB }

func (h *homework) Upsert(ctx context.Context, hw *model.HomeworkRecord) error {
	_, err := h.db.ExecContext(ctx, `
        INSERT INTO homework (subject_key, upstream_id, lesson_id, due_date, subject, text, completed, fetched_at)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(subject_key, upstream_id) DO UPDATE SET
            lesson_id=excluded.lesson_id, due_date=excluded.due_date,
            subject=excluded.subject, text=excluded.text,
            completed=excluded.completed, fetched_at=excluded.fetched_at
    `, hw.SubjectKey, hw.UpstreamID, hw.LessonID, hw.DueDate, hw.Subject, hw.Text, hw.Completed, hw.FetchedAt.UnixMilli())
	return err
}

func (h *homework) ListForWindow(ctx context.Context, subjectKey string, from, to int) ([]*model.HomeworkRecord, error) {
	q := `SELECT subject_key, upstream_id, lesson_id, due_date, subject, text, completed, fetched_at
          FROM homework WHERE subject_key=?`
	args := []any{subjectKey}
	if from != 0 || to != 0 {
		q += ` AND due_date >= ? AND due_date <= ?`
		args = append(args, from, to)
	}
	q += ` ORDER BY due_date ASC, upstream_id ASC`

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.HomeworkRecord
	for rows.Next() {
		var (
			hw       model.HomeworkRecord
			lessonID sql.NullInt64
			fetched  int64
		)
		if err := rows.Scan(&hw.SubjectKey, &hw.UpstreamID, &lessonID, &hw.DueDate, &hw.Subject, &hw.Text, &hw.Completed, &fetched); err != nil {
			return nil, err
		}
		if lessonID.Valid {
			id := lessonID.Int64
			hw.LessonID = &id
		}
		hw.FetchedAt = time.UnixMilli(fetched).UTC()
		out = append(out, &hw)
	}
	return out, rows.Err()
}

// --- Exams ---

type exams struct{ db *sql.DB }

func (e *exams) Upsert(ctx context.Context, ex *model.ExamRecord) error {
	teachers, err := json.Marshal(ex.Teachers)
	if err != nil {
		return err
	}
	rooms, err := json.Marshal(ex.Rooms)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
        INSERT INTO exams (subject_key, upstream_id, exam_date, start_time, end_time, subject, name, text, teachers, rooms, fetched_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(subject_key, upstream_id) DO UPDATE SET
            exam_date=excluded.exam_date, start_time=excluded.start_time,
            end_time=excluded.end_time, subject=excluded.subject,
            name=excluded.name, text=excluded.text,
            teachers=excluded.teachers, rooms=excluded.rooms,
            fetched_at=excluded.fetched_at
    `, ex.SubjectKey, ex.UpstreamID, ex.Date, ex.StartTime, ex.EndTime, ex.Subject, ex.Name, ex.Text, string(teachers), string(rooms), ex.FetchedAt.UnixMilli())
	return err
}

func (e *exams) ListForWindow(ctx context.Context, subjectKey string, from, to int) ([]*model.ExamRecord, error) {
	q := `SELECT subject_key, upstream_id, exam_date, start_time, end_time, subject, name, text, teachers, rooms, fetched_at
          FROM exams WHERE subject_key=?`
	args := []any{subjectKey}
	if from != 0 || to != 0 {
		q += ` AND exam_date >= ? AND exam_date <= ?`
		args = append(args, from, to)
	}
	q += ` ORDER BY exam_date ASC, upstream_id ASC`

	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ExamRecord
	for rows.Next() {
		var (
			ex              model.ExamRecord
			teachers, rooms string
			fetched         int64
		)
		if err := rows.Scan(&ex.SubjectKey, &ex.UpstreamID, &ex.Date, &ex.StartTime, &ex.EndTime, &ex.Subject, &ex.Name, &ex.Text, &teachers, &rooms, &fetched); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(teachers), &ex.Teachers); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rooms), &ex.Rooms); err != nil {
			return nil, err
		}
		ex.FetchedAt = time.UnixMilli(fetched).UTC()
		out = append(out, &ex)
	}
	return out, rows.Err()
}

// --- Credentials ---

type credentials struct{ db *sql.DB }

func (c *credentials) Get(ctx context.Context, userID string) (*model.Credential, error) {
	var (
		cred    model.Credential
		created int64
	)
	row := c.db.QueryRowContext(ctx, `
        SELECT user_id, username, host, school, secret, created_at
        FROM untis_credentials WHERE user_id=?
    `, userID)
	err := row.Scan(&cred.UserID, &cred.Username, &cred.Host, &cred.School, &cred.Secret, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credential for %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	cred.CreatedAt = time.UnixMilli(created).UTC()
	return &cred, nil
}

func (c *credentials) Put(ctx context.Context, cred *model.Credential) error {
	created := cred.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO untis_credentials (user_id, username, host, school, secret, created_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET
            username=excluded.username, host=excluded.host,
            school=excluded.school, secret=excluded.secret
    `, cred.UserID, cred.Username, cred.Host, cred.School, cred.Secret, created.UnixMilli())
	return err
}

func (c *credentials) Delete(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM untis_credentials WHERE user_id=?`, userID)
	return err
}

func (c *credentials) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT user_id FROM untis_credentials ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
