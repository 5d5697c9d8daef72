package timetable

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LimoEisbxr/periodix/server/internal/metrics"
	"github.com/LimoEisbxr/periodix/server/internal/store"
)

// Pruner deletes cache records past the hard age limit and caps how many
// historical copies survive per cache key. It is best-effort housekeeping:
// errors are logged and swallowed, never surfaced to a request.
type Pruner struct {
	cache    store.TimetableCache
	log      zerolog.Logger
	interval time.Duration
	maxAge   time.Duration
	keep     int
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewPruner constructs a pruner that runs at most once per interval.
func NewPruner(cache store.TimetableCache, interval, maxAge time.Duration, keep int, log zerolog.Logger) *Pruner {
	return &Pruner{
		cache:    cache,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
		keep:     keep,
		now:      time.Now,
	}
}

// MaybeRun prunes if the throttle interval has elapsed since the last pass.
// The last-run marker is process-local; extra passes across replicas are
// redundant but harmless.
func (p *Pruner) MaybeRun(ctx context.Context) {
	p.mu.Lock()
	if p.now().Sub(p.lastRun) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastRun = p.now()
	p.mu.Unlock()

	p.Run(ctx)
}

// Run prunes unconditionally. Used by MaybeRun and the operator CLI.
func (p *Pruner) Run(ctx context.Context) {
	cutoff := p.now().Add(-p.maxAge)
	aged, err := p.cache.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error().Err(err).Msg("retention: delete aged records")
		return
	}
	trimmed, err := p.cache.TrimHistory(ctx, p.keep)
	if err != nil {
		p.log.Error().Err(err).Msg("retention: trim history")
		return
	}
	metrics.PrunedRecords.Add(float64(aged + trimmed))
	if aged+trimmed > 0 {
		p.log.Info().Int64("aged", aged).Int64("trimmed", trimmed).Msg("retention pass complete")
	}
}
