package timetable

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// SweeperConfig controls the periodic exam refresh cadence.
type SweeperConfig struct {
	StartDelay time.Duration // wait after process start before the first cycle
	Interval   time.Duration // time between cycles
	Lookahead  time.Duration // exam window fetched per subject
	Pacing     time.Duration // delay between subjects within a cycle
}

// Sweeper proactively refreshes exam data for every subject with a stored
// upstream credential, independent of inbound requests. A per-subject failure
// is logged and the cycle moves on.
type Sweeper struct {
	svc *Service
	log zerolog.Logger
	cfg SweeperConfig
}

// NewSweeper constructs a sweeper bound to the orchestrator.
func NewSweeper(svc *Service, cfg SweeperConfig, log zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Sweeper{svc: svc, log: log, cfg: cfg}
}

// Run starts the sweep loop until ctx is canceled.
func (w *Sweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.Interval).Dur("lookahead", w.cfg.Lookahead).Msg("update sweeper starting")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.cfg.StartDelay):
	}
	w.sweepOnce(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("update sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	userIDs, err := w.svc.store.Credentials().ListUserIDs(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep: list credentials")
		return
	}

	for i, userID := range userIDs {
		if i > 0 && w.cfg.Pacing > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.Pacing):
			}
		}
		if err := w.svc.SweepExams(ctx, userID); err != nil {
			w.log.Warn().Err(err).Str("user", userID).Msg("sweep: exam refresh failed")
		}
	}
	w.log.Info().Int("subjects", len(userIDs)).Msg("sweep cycle complete")
}

// SweepExams refreshes one subject's exams for the configured look-ahead
// window and upserts them.
func (s *Service) SweepExams(ctx context.Context, userID string) error {
	sess, err := s.openSession(ctx, userID)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Logout(ctx) }()

	from := s.now()
	to := from.Add(s.cfg.SweepLookahead)
	exs, err := sess.Exams(ctx, from, to)
	if err != nil {
		return model.FetchFailed(err)
	}
	for i := range exs {
		ex := exs[i]
		ex.SubjectKey = userID
		ex.FetchedAt = s.now().UTC()
		if err := s.store.Exams().Upsert(ctx, &ex); err != nil {
			s.log.Warn().Err(err).Int64("id", ex.UpstreamID).Msg("sweep: exam upsert failed")
		}
	}
	return nil
}
