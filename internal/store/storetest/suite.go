// Package storetest exercises a compliance suite against a store.Store
// implementation. Drivers provide a clean, isolated store via makeStore.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/store"
)

// Run exercises the cache, homework, exam and credential collections.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("CacheInsertAndFreshLookup", func(t *testing.T) { testCacheFreshLookup(t, makeStore(t)) })
	t.Run("CacheTTLGating", func(t *testing.T) { testCacheTTLGating(t, makeStore(t)) })
	t.Run("CacheExactBounds", func(t *testing.T) { testCacheExactBounds(t, makeStore(t)) })
	t.Run("CacheAppendOnly", func(t *testing.T) { testCacheAppendOnly(t, makeStore(t)) })
	t.Run("CacheFallbackLookup", func(t *testing.T) { testCacheFallback(t, makeStore(t)) })
	t.Run("CacheRetention", func(t *testing.T) { testCacheRetention(t, makeStore(t)) })
	t.Run("CacheHistoryCap", func(t *testing.T) { testCacheHistoryCap(t, makeStore(t)) })
	t.Run("HomeworkUpsertAndWindow", func(t *testing.T) { testHomework(t, makeStore(t)) })
	t.Run("ExamUpsertAndWindow", func(t *testing.T) { testExams(t, makeStore(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, makeStore(t)) })
}

func week(t *testing.T) (*time.Time, *time.Time) {
	t.Helper()
	s := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := time.Date(2024, 1, 21, 23, 59, 59, 999_000_000, time.UTC)
	return &s, &e
}

func subjectKey() string { return "u-" + uuid.New().String() }

func insertAt(t *testing.T, c store.TimetableCache, key string, start, end *time.Time, created time.Time, lessons ...model.Lesson) *model.CacheRecord {
	t.Helper()
	rec, err := c.Insert(context.Background(), &model.CacheRecord{
		Scope:      model.ScopeUser,
		SubjectKey: key,
		RangeStart: start,
		RangeEnd:   end,
		Payload:    lessons,
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return rec
}

func testCacheFreshLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)

	rec := insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC(),
		model.Lesson{ID: 1, Date: 20240115, Subject: "Math"})
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("Insert returned incomplete record: %+v", rec)
	}

	got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, ws, we, 5*time.Minute)
	if err != nil {
		t.Fatalf("LookupFresh: %v", err)
	}
	if got == nil || got.ID != rec.ID {
		t.Fatalf("LookupFresh: got %+v, want id %s", got, rec.ID)
	}
	if len(got.Payload) != 1 || got.Payload[0].Subject != "Math" {
		t.Fatalf("payload round-trip: %+v", got.Payload)
	}
}

func testCacheTTLGating(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)

	// Only a record older than the TTL exists.
	insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC().Add(-10*time.Minute))

	got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, ws, we, 5*time.Minute)
	if err != nil {
		t.Fatalf("LookupFresh: %v", err)
	}
	if got != nil {
		t.Fatalf("LookupFresh returned a record older than the TTL: %+v", got)
	}
}

func testCacheExactBounds(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)

	// Week-scoped and unscoped records must not satisfy each other's lookups.
	insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC())

	ds := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	de := time.Date(2024, 1, 16, 23, 59, 59, 999_000_000, time.UTC)
	if got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, &ds, &de, time.Hour); err != nil || got != nil {
		t.Fatalf("day-scoped lookup hit a week record: got=%v err=%v", got, err)
	}
	if got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, nil, nil, time.Hour); err != nil || got != nil {
		t.Fatalf("unscoped lookup hit a week record: got=%v err=%v", got, err)
	}

	// A class-scoped record with the same key never satisfies a user lookup.
	if got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeClass, key, ws, we, time.Hour); err != nil || got != nil {
		t.Fatalf("class lookup hit a user record: got=%v err=%v", got, err)
	}

	// Unscoped record is found by an unscoped lookup.
	insertAt(t, s.TimetableCache(), key, nil, nil, time.Now().UTC())
	if got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, nil, nil, time.Hour); err != nil || got == nil {
		t.Fatalf("unscoped lookup missed: got=%v err=%v", got, err)
	}
}

func testCacheAppendOnly(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)
	base := time.Now().UTC().Add(-time.Minute)

	first := insertAt(t, s.TimetableCache(), key, ws, we, base,
		model.Lesson{ID: 1, Date: 20240115, Subject: "Math"})
	for i := 1; i < 5; i++ {
		insertAt(t, s.TimetableCache(), key, ws, we, base.Add(time.Duration(i)*time.Second),
			model.Lesson{ID: int64(i + 1), Date: 20240115})
	}

	// After N inserts for the same key, N records exist and the newest wins.
	deleted, err := s.TimetableCache().TrimHistory(ctx, 5)
	if err != nil {
		t.Fatalf("TrimHistory: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 5 records to survive keep=5, %d deleted", deleted)
	}

	got, err := s.TimetableCache().LookupFresh(ctx, model.ScopeUser, key, ws, we, time.Hour)
	if err != nil || got == nil {
		t.Fatalf("LookupFresh: got=%v err=%v", got, err)
	}
	if got.Payload[0].ID != 5 {
		t.Fatalf("newest record not returned: %+v", got.Payload)
	}
	// The first record's payload is untouched.
	if first.Payload[0].Subject != "Math" {
		t.Fatalf("insert mutated a prior record")
	}
}

func testCacheFallback(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)

	// No record at all: fallback finds nothing.
	got, err := s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, key, ws, we)
	if err != nil || got != nil {
		t.Fatalf("empty fallback: got=%v err=%v", got, err)
	}

	// A day-old exact match is returned regardless of age.
	old := insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC().Add(-24*time.Hour))
	got, err = s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, key, ws, we)
	if err != nil || got == nil || got.ID != old.ID {
		t.Fatalf("exact fallback: got=%v err=%v", got, err)
	}

	// A different window falls back to the newest record under any bounds.
	ns := ws.AddDate(0, 0, 7)
	ne := we.AddDate(0, 0, 7)
	got, err = s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, key, &ns, &ne)
	if err != nil || got == nil || got.ID != old.ID {
		t.Fatalf("any-bounds fallback: got=%v err=%v", got, err)
	}
}

func testCacheRetention(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)

	ancient := insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC().Add(-50*24*time.Hour))
	recent := insertAt(t, s.TimetableCache(), key, ws, we, time.Now().UTC())

	deleted, err := s.TimetableCache().DeleteOlderThan(ctx, time.Now().UTC().Add(-45*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("DeleteOlderThan removed %d records, want 1", deleted)
	}

	got, err := s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, key, ws, we)
	if err != nil || got == nil {
		t.Fatalf("lookup after retention: got=%v err=%v", got, err)
	}
	if got.ID != recent.ID || got.ID == ancient.ID {
		t.Fatalf("wrong survivor: %s", got.ID)
	}
}

func testCacheHistoryCap(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	ws, we := week(t)
	base := time.Now().UTC().Add(-time.Hour)

	var last *model.CacheRecord
	for i := 0; i < 50; i++ {
		last = insertAt(t, s.TimetableCache(), key, ws, we, base.Add(time.Duration(i)*time.Second),
			model.Lesson{ID: int64(i), Date: 20240115})
	}
	// An unrelated key must keep its single record.
	otherKey := subjectKey()
	other := insertAt(t, s.TimetableCache(), otherKey, ws, we, base)

	deleted, err := s.TimetableCache().TrimHistory(ctx, 2)
	if err != nil {
		t.Fatalf("TrimHistory: %v", err)
	}
	if deleted != 48 {
		t.Fatalf("TrimHistory deleted %d, want 48", deleted)
	}

	got, err := s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, key, ws, we)
	if err != nil || got == nil || got.ID != last.ID {
		t.Fatalf("newest record lost: got=%v err=%v", got, err)
	}
	if got, err := s.TimetableCache().LookupLatestOrFallback(ctx, model.ScopeUser, otherKey, ws, we); err != nil || got == nil || got.ID != other.ID {
		t.Fatalf("unrelated key pruned: got=%v err=%v", got, err)
	}
}

func testHomework(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()
	lessonID := int64(99)

	hw := &model.HomeworkRecord{
		SubjectKey: key,
		UpstreamID: 7,
		LessonID:   &lessonID,
		DueDate:    20240117,
		Subject:    "Math",
		Text:       "p. 42",
		FetchedAt:  time.Now().UTC(),
	}
	if err := s.Homework().Upsert(ctx, hw); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Second upsert with the same key updates rather than duplicates.
	hw.Completed = true
	hw.Text = "p. 42-43"
	if err := s.Homework().Upsert(ctx, hw); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}

	got, err := s.Homework().ListForWindow(ctx, key, 20240115, 20240121)
	if err != nil {
		t.Fatalf("ListForWindow: %v", err)
	}
	if len(got) != 1 || !got[0].Completed || got[0].Text != "p. 42-43" {
		t.Fatalf("upsert semantics: %+v", got)
	}
	if got[0].LessonID == nil || *got[0].LessonID != lessonID {
		t.Fatalf("lesson id round-trip: %+v", got[0].LessonID)
	}

	// Outside the window: filtered out. Zero window: everything.
	if got, err := s.Homework().ListForWindow(ctx, key, 20240201, 20240207); err != nil || len(got) != 0 {
		t.Fatalf("window filter: n=%d err=%v", len(got), err)
	}
	if got, err := s.Homework().ListForWindow(ctx, key, 0, 0); err != nil || len(got) != 1 {
		t.Fatalf("unbounded list: n=%d err=%v", len(got), err)
	}
}

func testExams(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := subjectKey()

	ex := &model.ExamRecord{
		SubjectKey: key,
		UpstreamID: 11,
		Date:       20240118,
		StartTime:  800,
		EndTime:    930,
		Subject:    "Physics",
		Name:       "Mechanics exam",
		Teachers:   []string{"NEW"},
		Rooms:      []string{"A113"},
		FetchedAt:  time.Now().UTC(),
	}
	if err := s.Exams().Upsert(ctx, ex); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ex.Rooms = []string{"A113", "A114"}
	if err := s.Exams().Upsert(ctx, ex); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}

	got, err := s.Exams().ListForWindow(ctx, key, 20240115, 20240121)
	if err != nil {
		t.Fatalf("ListForWindow: %v", err)
	}
	if len(got) != 1 || len(got[0].Rooms) != 2 || got[0].Teachers[0] != "NEW" {
		t.Fatalf("upsert semantics: %+v", got)
	}
	if got, err := s.Exams().ListForWindow(ctx, key, 20240201, 20240207); err != nil || len(got) != 0 {
		t.Fatalf("window filter: n=%d err=%v", len(got), err)
	}
}

func testCredentials(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := subjectKey()

	if _, err := s.Credentials().Get(ctx, userID); err == nil {
		t.Fatal("Get on missing credential should fail")
	}

	cred := &model.Credential{
		UserID:   userID,
		Username: "student1",
		Host:     "untis.example.test",
		School:   "gymnasium",
		Secret:   []byte{1, 2, 3, 4},
	}
	if err := s.Credentials().Put(ctx, cred); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Credentials().Get(ctx, userID)
	if err != nil || got.Username != "student1" || len(got.Secret) != 4 {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}

	ids, err := s.Credentials().ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListUserIDs missing %s", userID)
	}

	if err := s.Credentials().Delete(ctx, userID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Credentials().Get(ctx, userID); err == nil {
		t.Fatal("Get after delete should fail")
	}
}
