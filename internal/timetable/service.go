// Package timetable is the fetch/cache/fallback orchestration core: it
// normalizes requested ranges, serves freshness-gated cache hits, coordinates
// upstream fetches, enriches lessons with stored homework and exams, falls
// back to stale cache when the upstream fails, and schedules background
// prefetch and retention pruning.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/LimoEisbxr/periodix/server/internal/metrics"
	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/secrets"
	"github.com/LimoEisbxr/periodix/server/internal/store"
	"github.com/LimoEisbxr/periodix/server/internal/timerange"
	"github.com/LimoEisbxr/periodix/server/internal/untis"
)

// Config carries the orchestrator's tuning knobs.
type Config struct {
	CacheTTL        time.Duration
	PruneInterval   time.Duration
	MaxRecordAge    time.Duration
	HistoryKeep     int
	ClassCacheTTL   time.Duration
	SweepLookahead  time.Duration
	PrefetchEnabled bool
}

// Service coordinates cache, upstream and enrichment for timetable requests.
type Service struct {
	store   store.Store
	client  untis.Client
	dec     secrets.Decrypter
	log     zerolog.Logger
	cfg     Config
	pruner  *Pruner
	classes *classCache
	enrich  *enricher
	flight  singleflight.Group

	now func() time.Time
	// bg runs detached background tasks; replaced in tests to run inline.
	bg func(fn func())
}

// New constructs the orchestrator.
func New(st store.Store, client untis.Client, dec secrets.Decrypter, cfg Config, log zerolog.Logger) *Service {
	s := &Service{
		store:  st,
		client: client,
		dec:    dec,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		bg:     func(fn func()) { go fn() },
	}
	s.pruner = NewPruner(st.TimetableCache(), cfg.PruneInterval, cfg.MaxRecordAge, cfg.HistoryKeep, log)
	s.classes = newClassCache(cfg.ClassCacheTTL, func() time.Time { return s.now() })
	s.enrich = &enricher{homework: st.Homework(), exams: st.Exams()}
	return s
}

// Pruner exposes the retention pruner for the operator CLI.
func (s *Service) Pruner() *Pruner { return s.pruner }

// FetchUserRange serves a user's timetable for the requested window: fresh
// cache hit, upstream fetch, or stale fallback, in that order.
func (s *Service) FetchUserRange(ctx context.Context, requesterID, userID, start, end string) (*model.RangeResult, error) {
	rs, re, err := timerange.Normalize(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return s.fetchRange(ctx, fetchSpec{
		scope:      model.ScopeUser,
		subjectKey: userID,
		credUserID: userID,
		rangeStart: rs,
		rangeEnd:   re,
	})
}

// FetchClassRange serves a class timetable. The requested class identifier is
// resolved against the classes the requester may view; an unpermitted
// identifier silently becomes the first permitted class.
func (s *Service) FetchClassRange(ctx context.Context, requesterID, classID, start, end string) (*model.RangeResult, error) {
	rs, re, err := timerange.Normalize(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	resolved, err := s.resolveClass(ctx, requesterID, classID)
	if err != nil {
		return nil, err
	}

	return s.fetchRange(ctx, fetchSpec{
		scope:      model.ScopeClass,
		subjectKey: strconv.FormatInt(resolved.ID, 10),
		credUserID: requesterID,
		classID:    resolved.ID,
		rangeStart: rs,
		rangeEnd:   re,
	})
}

// PermittedClasses lists the classes the user may view, served from the
// short-TTL cache when possible.
func (s *Service) PermittedClasses(ctx context.Context, userID string) ([]model.ClassInfo, error) {
	if classes, ok := s.classes.get(userID); ok {
		return classes, nil
	}
	sess, err := s.openSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Logout(ctx) }()

	classes, err := sess.OwnClasses(ctx)
	if err != nil {
		return nil, model.FetchFailed(err)
	}
	s.classes.put(userID, classes)
	return classes, nil
}

// fetchSpec identifies one cache key plus the credential that can fill it.
type fetchSpec struct {
	scope      model.Scope
	subjectKey string
	credUserID string
	classID    int64 // only for ScopeClass
	rangeStart *time.Time
	rangeEnd   *time.Time
}

func (f fetchSpec) scoped() bool { return f.rangeStart != nil && f.rangeEnd != nil }

func (f fetchSpec) flightKey() string {
	ms := func(t *time.Time) int64 {
		if t == nil {
			return -1
		}
		return t.UnixMilli()
	}
	return fmt.Sprintf("%s|%s|%d|%d", f.scope, f.subjectKey, ms(f.rangeStart), ms(f.rangeEnd))
}

func (s *Service) fetchRange(ctx context.Context, spec fetchSpec) (*model.RangeResult, error) {
	cache := s.store.TimetableCache()

	if spec.scoped() {
		rec, err := cache.LookupFresh(ctx, spec.scope, spec.subjectKey, spec.rangeStart, spec.rangeEnd, s.cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &model.RangeResult{
				RangeStart:  rec.RangeStart,
				RangeEnd:    rec.RangeEnd,
				Payload:     rec.Payload,
				Cached:      true,
				Source:      model.SourceCache,
				LastUpdated: rec.CreatedAt,
			}, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	rec, err := s.fetchDeduplicated(ctx, spec)
	if err != nil {
		if fallback := s.staleFallback(ctx, spec, err); fallback != nil {
			return fallback, nil
		}
		return nil, err
	}

	if spec.scoped() && s.cfg.PrefetchEnabled {
		s.bg(func() { s.prefetchAdjacent(spec) })
	}

	return &model.RangeResult{
		RangeStart:  rec.RangeStart,
		RangeEnd:    rec.RangeEnd,
		Payload:     rec.Payload,
		Source:      model.SourceUpstream,
		LastUpdated: rec.CreatedAt,
	}, nil
}

// fetchDeduplicated collapses concurrent misses for the same key onto one
// upstream fetch; late arrivals share the first caller's record.
func (s *Service) fetchDeduplicated(ctx context.Context, spec fetchSpec) (*model.CacheRecord, error) {
	v, err, _ := s.flight.Do(spec.flightKey(), func() (any, error) {
		return s.fetchAndPersist(ctx, spec)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.CacheRecord), nil
}

// fetchAndPersist runs one full upstream round trip: open a session, pull
// lessons plus homework and exams, upsert the side records, enrich, and
// append a new immutable cache record.
func (s *Service) fetchAndPersist(ctx context.Context, spec fetchSpec) (*model.CacheRecord, error) {
	sess, err := s.openSession(ctx, spec.credUserID)
	if err != nil {
		return nil, err
	}
	// Logout is always attempted, success or not; its failure is ignored.
	defer func() { _ = sess.Logout(ctx) }()

	var (
		lessons  []model.Lesson
		from, to time.Time
	)
	if spec.scoped() {
		from, to = *spec.rangeStart, *spec.rangeEnd
		if spec.scope == model.ScopeClass {
			lessons, err = sess.ClassTimetable(ctx, from, to, spec.classID)
		} else {
			lessons, err = sess.Timetable(ctx, from, to)
		}
	} else {
		now := s.now()
		from, to = timerange.StartOfDay(now), timerange.EndOfDay(now)
		lessons, err = sess.TimetableToday(ctx)
	}
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues("fetch").Inc()
		return nil, model.FetchFailed(err)
	}

	s.storeHomework(ctx, sess, spec.credUserID, from, to)
	s.storeExams(ctx, sess, spec.credUserID, from, to)

	fromYmd := timerange.ToYYYYMMDD(from)
	toYmd := timerange.ToYYYYMMDD(to)
	enriched, err := s.enrich.enrich(ctx, spec.credUserID, lessons, fromYmd, toYmd)
	if err != nil {
		// Enrichment is a best-effort enhancement; serve the raw lessons.
		s.log.Error().Err(err).Str("subject", spec.subjectKey).Msg("enrichment failed")
		enriched = lessons
	}

	rec, err := s.store.TimetableCache().Insert(ctx, &model.CacheRecord{
		Scope:      spec.scope,
		SubjectKey: spec.subjectKey,
		RangeStart: spec.rangeStart,
		RangeEnd:   spec.rangeEnd,
		Payload:    enriched,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// storeHomework pulls and upserts homework for the window. Persistence
// failures never fail the primary response.
func (s *Service) storeHomework(ctx context.Context, sess untis.Session, subjectKey string, from, to time.Time) {
	hws, err := sess.Homework(ctx, from, to)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", subjectKey).Msg("homework fetch failed")
		return
	}
	for i := range hws {
		hw := hws[i]
		hw.SubjectKey = subjectKey
		hw.FetchedAt = s.now().UTC()
		if err := s.store.Homework().Upsert(ctx, &hw); err != nil {
			s.log.Warn().Err(err).Int64("id", hw.UpstreamID).Msg("homework upsert failed")
		}
	}
}

func (s *Service) storeExams(ctx context.Context, sess untis.Session, subjectKey string, from, to time.Time) {
	exs, err := sess.Exams(ctx, from, to)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", subjectKey).Msg("exam fetch failed")
		return
	}
	for i := range exs {
		ex := exs[i]
		ex.SubjectKey = subjectKey
		ex.FetchedAt = s.now().UTC()
		if err := s.store.Exams().Upsert(ctx, &ex); err != nil {
			s.log.Warn().Err(err).Int64("id", ex.UpstreamID).Msg("exam upsert failed")
		}
	}
}

// openSession loads and decrypts the stored credential, then logs in.
func (s *Service) openSession(ctx context.Context, userID string) (untis.Session, error) {
	cred, err := s.store.Credentials().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.MissingSecret(userID)
		}
		return nil, err
	}
	password, err := s.dec.Decrypt(cred.Secret)
	if err != nil {
		return nil, model.DecryptFailed(err)
	}

	sess, err := s.client.Login(ctx, untis.Credentials{
		Host:     cred.Host,
		School:   cred.School,
		Username: cred.Username,
		Password: password,
	})
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues("login").Inc()
		if errors.Is(err, untis.ErrBadCredentials) {
			return nil, model.BadCredentials(err)
		}
		return nil, model.LoginFailed(err)
	}
	return sess, nil
}

// staleFallback tries to serve the most recent cache entry after an upstream
// failure. Only the three availability-class errors are eligible; anything
// else propagates unchanged. Returns nil when no fallback exists.
func (s *Service) staleFallback(ctx context.Context, spec fetchSpec, cause error) *model.RangeResult {
	if !model.IsUpstreamUnavailable(cause) {
		return nil
	}
	rec, err := s.store.TimetableCache().LookupLatestOrFallback(ctx, spec.scope, spec.subjectKey, spec.rangeStart, spec.rangeEnd)
	if err != nil {
		s.log.Error().Err(err).Str("subject", spec.subjectKey).Msg("stale fallback lookup failed")
		return nil
	}
	if rec == nil {
		return nil
	}

	reason := model.FallbackUntisUnavailable
	if model.IsBadCredentials(cause) {
		reason = model.FallbackBadCredentials
	}
	metrics.StaleFallbacks.WithLabelValues(reason).Inc()
	s.log.Warn().Err(cause).Str("subject", spec.subjectKey).Str("reason", reason).Msg("serving stale cache")

	return &model.RangeResult{
		RangeStart:     rec.RangeStart,
		RangeEnd:       rec.RangeEnd,
		Payload:        rec.Payload,
		Cached:         true,
		Stale:          true,
		Source:         model.SourceStaleCache,
		LastUpdated:    rec.CreatedAt,
		FallbackReason: reason,
	}
}

// prefetchAdjacent warms the windows exactly seven days before and after the
// fetched range, then triggers a retention pass. Detached from the request
// that scheduled it; failures are logged and ignored.
func (s *Service) prefetchAdjacent(spec fetchSpec) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, offset := range []int{-7, 7} {
		ns := spec.rangeStart.AddDate(0, 0, offset)
		ne := spec.rangeEnd.AddDate(0, 0, offset)
		adjacent := spec
		adjacent.rangeStart = &ns
		adjacent.rangeEnd = &ne

		rec, err := s.store.TimetableCache().LookupFresh(ctx, adjacent.scope, adjacent.subjectKey, adjacent.rangeStart, adjacent.rangeEnd, s.cfg.CacheTTL)
		if err == nil && rec != nil {
			metrics.PrefetchRuns.WithLabelValues("skipped").Inc()
			continue
		}
		if _, err := s.fetchDeduplicated(ctx, adjacent); err != nil {
			metrics.PrefetchRuns.WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).Str("subject", spec.subjectKey).Int("offset_days", offset).Msg("prefetch failed")
			continue
		}
		metrics.PrefetchRuns.WithLabelValues("done").Inc()
	}

	s.pruner.MaybeRun(ctx)
}

// resolveClass maps the caller-requested class identifier onto a class the
// requester may view, substituting the first permitted class when the
// requested one is not.
func (s *Service) resolveClass(ctx context.Context, requesterID, classID string) (model.ClassInfo, error) {
	classes, err := s.PermittedClasses(ctx, requesterID)
	if err != nil {
		return model.ClassInfo{}, err
	}
	if len(classes) == 0 {
		return model.ClassInfo{}, model.NoClassesFound(requesterID)
	}

	if id, err := strconv.ParseInt(classID, 10, 64); err == nil {
		for _, ci := range classes {
			if ci.ID == id {
				return ci, nil
			}
		}
	} else {
		for _, ci := range classes {
			if ci.Name == classID {
				return ci, nil
			}
		}
	}
	return classes[0], nil
}
