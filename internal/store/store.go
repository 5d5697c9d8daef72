package store

import (
	"context"
	"time"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// Store exposes persistence operations required by the orchestration core.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	TimetableCache() TimetableCache
	Homework() Homework
	Exams() Exams
	Credentials() Credentials

	Ping(ctx context.Context) error
	Close() error
}

// TimetableCache is the append-only snapshot store. Records are immutable:
// a new fetch inserts a new record, only the pruner deletes.
type TimetableCache interface {
	// Insert appends a new record and returns it with its assigned ID and
	// CreatedAt. It never overwrites.
	Insert(ctx context.Context, rec *model.CacheRecord) (*model.CacheRecord, error)

	// LookupFresh returns the newest record matching scope, subject and the
	// exact range bounds (nullable-aware equality) whose CreatedAt is within
	// ttl of now, or nil when none qualifies.
	LookupFresh(ctx context.Context, scope model.Scope, subjectKey string, start, end *time.Time, ttl time.Duration) (*model.CacheRecord, error)

	// LookupLatestOrFallback returns the newest record matching the exact
	// bounds regardless of age; when none exists it falls back to the newest
	// record for the subject under any bounds. Staleness is unbounded, so
	// callers must flag results from this path explicitly.
	LookupLatestOrFallback(ctx context.Context, scope model.Scope, subjectKey string, start, end *time.Time) (*model.CacheRecord, error)

	// DeleteOlderThan removes records created before cutoff, across all
	// subjects, returning the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimHistory keeps only the `keep` most recent records per
	// (scope, subjectKey, rangeStart, rangeEnd) and deletes the rest.
	TrimHistory(ctx context.Context, keep int) (int64, error)
}

// Homework stores upstream homework items keyed by (subjectKey, upstreamId).
type Homework interface {
	Upsert(ctx context.Context, hw *model.HomeworkRecord) error

	// ListForWindow returns the subject's homework whose due date falls in
	// [from, to] as YYYYMMDD integers; from==0 && to==0 returns everything.
	ListForWindow(ctx context.Context, subjectKey string, from, to int) ([]*model.HomeworkRecord, error)
}

// Exams stores upstream exam items keyed by (subjectKey, upstreamId).
type Exams interface {
	Upsert(ctx context.Context, ex *model.ExamRecord) error
	ListForWindow(ctx context.Context, subjectKey string, from, to int) ([]*model.ExamRecord, error)
}

// Credentials stores encrypted upstream logins.
type Credentials interface {
	Get(ctx context.Context, userID string) (*model.Credential, error) // model.ErrNotFound when absent
	Put(ctx context.Context, cred *model.Credential) error
	Delete(ctx context.Context, userID string) error

	// ListUserIDs returns every user with a stored credential, for the
	// periodic update sweep.
	ListUserIDs(ctx context.Context) ([]string, error)
}
