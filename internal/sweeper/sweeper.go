package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// StaleSweeper is the slice of the lifecycle service the sweeper drives.
type StaleSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Sweeper periodically drives stale PENDING requests to REJECTED through
// the lifecycle service's auto-reject path.
type Sweeper struct {
	Service  StaleSweeper
	Interval time.Duration
	Logger   *slog.Logger
}

// Run blocks until ctx is done, sweeping once per interval. An immediate
// first sweep runs at startup so a restart never extends the staleness
// window by a full period.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Service.SweepStale(ctx)
	if err != nil {
		s.Logger.Error("sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("sweep complete", "rejected", n)
	}
}
