package scheduler

import (
	"context"
	"time"

	"realty_portal_backend/platform/logger"
)

// Sweeper periodically expires lapsed reservations straight from the
// database. It backstops the per-lead scheduled tasks: if an enqueue was
// lost, the sweep still catches the reservation within one interval.
type Sweeper struct {
	engine   Engine
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(engine Engine, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{engine: engine, interval: interval, log: log}
}

// Run blocks until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("reservation sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reservation sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			expired, err := s.engine.SweepDue(ctx)
			if err != nil {
				s.log.Error("reservation sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				s.log.Info("reservation sweep expired leads", "count", expired)
			}
		}
	}
}
