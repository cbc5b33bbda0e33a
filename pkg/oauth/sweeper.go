package oauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/getmockd/mockidp/pkg/logging"
)

// DefaultSweepInterval is how often expired codes and refresh tokens are
// purged.
const DefaultSweepInterval = time.Minute

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Codes    *CodeStore
	Refresh  *RefreshStore
	Interval time.Duration
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Sweeper periodically removes expired entries from both stores and
// reports their sizes.
type Sweeper struct {
	codes    *CodeStore
	refresh  *RefreshStore
	interval time.Duration
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper. Either store may be nil.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		codes:    cfg.Codes,
		refresh:  cfg.Refresh,
		interval: interval,
		recorder: orNopRecorder(cfg.Recorder),
		logger:   logging.Component(cfg.Logger, "sweeper"),
		now:      clockOrNow(cfg.Now),
	}
}

// Run sweeps every interval until ctx is done. It always returns nil so
// it can run directly under an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce purges expired entries now and returns how many were removed
// from each store.
func (s *Sweeper) SweepOnce() (codes, refresh int) {
	now := s.now()
	var codeLen, refreshLen int
	if s.codes != nil {
		codes = s.codes.Sweep(now)
		codeLen = s.codes.Len()
	}
	if s.refresh != nil {
		refresh = s.refresh.Sweep(now)
		refreshLen = s.refresh.Len()
	}
	s.recorder.StoreSizes(codeLen, refreshLen)

	if codes > 0 || refresh > 0 {
		s.logger.Debug("swept expired entries", "codes", codes, "refresh_tokens", refresh)
	}
	return codes, refresh
}
