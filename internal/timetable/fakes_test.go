package timetable

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/store"
	"github.com/LimoEisbxr/periodix/server/internal/untis"
)

// --- in-memory store ---

type fakeStore struct {
	cache *fakeCache
	hw    *fakeHomework
	ex    *fakeExams
	creds *fakeCredentials
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cache: &fakeCache{},
		hw:    &fakeHomework{byKey: map[string][]*model.HomeworkRecord{}},
		ex:    &fakeExams{byKey: map[string][]*model.ExamRecord{}},
		creds: &fakeCredentials{byUser: map[string]*model.Credential{}},
	}
}

func (f *fakeStore) TimetableCache() store.TimetableCache { return f.cache }
func (f *fakeStore) Homework() store.Homework             { return f.hw }
func (f *fakeStore) Exams() store.Exams                   { return f.ex }
func (f *fakeStore) Credentials() store.Credentials       { return f.creds }
func (f *fakeStore) Ping(ctx context.Context) error       { return nil }
func (f *fakeStore) Close() error                         { return nil }

type fakeCache struct {
	mu   sync.Mutex
	recs []*model.CacheRecord

	deleteOlderCalls int
	trimCalls        int
}

func boundsEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (c *fakeCache) Insert(ctx context.Context, rec *model.CacheRecord) (*model.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := *rec
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	c.recs = append(c.recs, &out)
	return &out, nil
}

func (c *fakeCache) newest(scope model.Scope, key string, start, end *time.Time, matchBounds bool, cutoff time.Time) *model.CacheRecord {
	var best *model.CacheRecord
	for _, r := range c.recs {
		if r.Scope != scope || r.SubjectKey != key {
			continue
		}
		if matchBounds && (!boundsEqual(r.RangeStart, start) || !boundsEqual(r.RangeEnd, end)) {
			continue
		}
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	return best
}

func (c *fakeCache) LookupFresh(ctx context.Context, scope model.Scope, key string, start, end *time.Time, ttl time.Duration) (*model.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newest(scope, key, start, end, true, time.Now().Add(-ttl)), nil
}

func (c *fakeCache) LookupLatestOrFallback(ctx context.Context, scope model.Scope, key string, start, end *time.Time) (*model.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec := c.newest(scope, key, start, end, true, time.Time{}); rec != nil {
		return rec, nil
	}
	return c.newest(scope, key, nil, nil, false, time.Time{}), nil
}

func (c *fakeCache) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteOlderCalls++
	var kept []*model.CacheRecord
	var deleted int64
	for _, r := range c.recs {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	c.recs = kept
	return deleted, nil
}

func (c *fakeCache) TrimHistory(ctx context.Context, keep int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trimCalls++
	type key struct {
		scope      model.Scope
		subject    string
		start, end int64
	}
	ms := func(t *time.Time) int64 {
		if t == nil {
			return -1
		}
		return t.UnixMilli()
	}
	groups := map[key][]*model.CacheRecord{}
	for _, r := range c.recs {
		k := key{r.Scope, r.SubjectKey, ms(r.RangeStart), ms(r.RangeEnd)}
		groups[k] = append(groups[k], r)
	}
	var kept []*model.CacheRecord
	var deleted int64
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].CreatedAt.After(g[j].CreatedAt) })
		for i, r := range g {
			if i < keep {
				kept = append(kept, r)
			} else {
				deleted++
			}
		}
	}
	c.recs = kept
	return deleted, nil
}

func (c *fakeCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func (c *fakeCache) all() []*model.CacheRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.CacheRecord, len(c.recs))
	copy(out, c.recs)
	return out
}

type fakeHomework struct {
	mu    sync.Mutex
	byKey map[string][]*model.HomeworkRecord
}

func (h *fakeHomework) Upsert(ctx context.Context, hw *model.HomeworkRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *hw
	for i, existing := range h.byKey[hw.SubjectKey] {
		if existing.UpstreamID == hw.UpstreamID {
			h.byKey[hw.SubjectKey][i] = &cp
			return nil
		}
	}
	h.byKey[hw.SubjectKey] = append(h.byKey[hw.SubjectKey], &cp)
	return nil
}

func (h *fakeHomework) ListForWindow(ctx context.Context, key string, from, to int) ([]*model.HomeworkRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*model.HomeworkRecord
	for _, hw := range h.byKey[key] {
		if (from == 0 && to == 0) || (hw.DueDate >= from && hw.DueDate <= to) {
			out = append(out, hw)
		}
	}
	return out, nil
}

type fakeExams struct {
	mu    sync.Mutex
	byKey map[string][]*model.ExamRecord
}

func (e *fakeExams) Upsert(ctx context.Context, ex *model.ExamRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *ex
	for i, existing := range e.byKey[ex.SubjectKey] {
		if existing.UpstreamID == ex.UpstreamID {
			e.byKey[ex.SubjectKey][i] = &cp
			return nil
		}
	}
	e.byKey[ex.SubjectKey] = append(e.byKey[ex.SubjectKey], &cp)
	return nil
}

func (e *fakeExams) ListForWindow(ctx context.Context, key string, from, to int) ([]*model.ExamRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*model.ExamRecord
	for _, ex := range e.byKey[key] {
		if (from == 0 && to == 0) || (ex.Date >= from && ex.Date <= to) {
			out = append(out, ex)
		}
	}
	return out, nil
}

type fakeCredentials struct {
	mu     sync.Mutex
	byUser map[string]*model.Credential
}

func (c *fakeCredentials) Get(ctx context.Context, userID string) (*model.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.byUser[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cred, nil
}

func (c *fakeCredentials) Put(ctx context.Context, cred *model.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[cred.UserID] = cred
	return nil
}

func (c *fakeCredentials) Delete(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byUser, userID)
	return nil
}

func (c *fakeCredentials) ListUserIDs(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id := range c.byUser {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// --- fake upstream ---

type fakeSession struct {
	owner *fakeClient

	lessons  []model.Lesson
	homework []model.HomeworkRecord
	exams    []model.ExamRecord
	classes  []model.ClassInfo

	fetchErr error
	gate     chan struct{} // when set, Timetable blocks until closed
}

type fakeClient struct {
	mu       sync.Mutex
	loginErr error
	failUser string // when set, only this username fails to log in
	sess     fakeSession

	logins     int
	fetches    int
	classCalls int
	logouts    int
}

func (c *fakeClient) Login(ctx context.Context, cred untis.Credentials) (untis.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	if c.loginErr != nil && (c.failUser == "" || c.failUser == cred.Username) {
		return nil, c.loginErr
	}
	sess := c.sess
	sess.owner = c
	return &sess, nil
}

func (c *fakeClient) loginCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

func (c *fakeClient) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (s *fakeSession) countFetch() {
	s.owner.mu.Lock()
	s.owner.fetches++
	s.owner.mu.Unlock()
}

// cloneLessons guards the fixture slice against in-place enrichment.
func cloneLessons(in []model.Lesson) []model.Lesson {
	out := make([]model.Lesson, len(in))
	copy(out, in)
	return out
}

func (s *fakeSession) Timetable(ctx context.Context, start, end time.Time) ([]model.Lesson, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.countFetch()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return cloneLessons(s.lessons), nil
}

func (s *fakeSession) TimetableToday(ctx context.Context) ([]model.Lesson, error) {
	s.countFetch()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return cloneLessons(s.lessons), nil
}

func (s *fakeSession) ClassTimetable(ctx context.Context, start, end time.Time, classID int64) ([]model.Lesson, error) {
	s.countFetch()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return cloneLessons(s.lessons), nil
}

func (s *fakeSession) Homework(ctx context.Context, start, end time.Time) ([]model.HomeworkRecord, error) {
	return s.homework, nil
}

func (s *fakeSession) Exams(ctx context.Context, start, end time.Time) ([]model.ExamRecord, error) {
	return s.exams, nil
}

func (s *fakeSession) OwnClasses(ctx context.Context) ([]model.ClassInfo, error) {
	s.owner.mu.Lock()
	s.owner.classCalls++
	s.owner.mu.Unlock()
	return s.classes, nil
}

func (s *fakeSession) AllClasses(ctx context.Context) ([]model.ClassInfo, error) {
	return s.classes, nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.owner.mu.Lock()
	s.owner.logouts++
	s.owner.mu.Unlock()
	return nil
}

// --- fake decrypter ---

type fakeDecrypter struct{ err error }

func (d *fakeDecrypter) Decrypt(ciphertext []byte) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return string(ciphertext), nil
}
