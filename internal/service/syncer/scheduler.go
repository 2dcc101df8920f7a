// internal/service/syncer/scheduler.go
package syncer

import (
	"context"
	"errors"
	"time"

	xerrors "erp-sync-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Scheduler runs a customer sync followed by an order sync every interval.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(runner *Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sync scheduler disabled")
		return
	}

	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.runner.RunCustomers(ctx, s.runner.CustomerParams(nil, nil)); err != nil {
		s.logResult("customers", err)
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunOrders(ctx, s.runner.OrderParams(nil, nil)); err != nil {
		s.logResult("orders", err)
	}
}

func (s *Scheduler) logResult(kind string, err error) {
	if errors.Is(err, xerrors.ErrSyncInProgress) {
		s.logger.Info("scheduled sync skipped, already running", zap.String("kind", kind))
		return
	}
	s.logger.Error("scheduled sync aborted", zap.String("kind", kind), zap.Error(err))
}
