// internal/service/syncer/runner.go
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "erp-sync-service/internal/domain/sync"
	wstypes "erp-sync-service/internal/domain/websocket"
	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Defaults fill request fields the caller left out.
type Defaults struct {
	WindowMonths  int
	MaxCustomers  int
	OrderDaysBack int
	BatchSize     int
}

// Runner is the entry point for every sync run. It serializes runs of the
// same kind, records their history and announces their transitions.
type Runner struct {
	customers *CustomerSyncService
	orders    *OrderSyncService
	runs      RunStore
	locker    Locker
	notifier  Notifier
	defaults  Defaults
	logger    *zap.Logger
}

func NewRunner(
	customers *CustomerSyncService,
	orders *OrderSyncService,
	runs RunStore,
	locker Locker,
	notifier Notifier,
	defaults Defaults,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		customers: customers,
		orders:    orders,
		runs:      runs,
		locker:    locker,
		notifier:  notifier,
		defaults:  defaults,
		logger:    logger,
	}
}

func (r *Runner) CustomerParams(req *domain.CustomerSyncRequest, triggeredBy *int64) domain.CustomerSyncParams {
	p := domain.CustomerSyncParams{
		WindowMonths: r.defaults.WindowMonths,
		MaxCustomers: r.defaults.MaxCustomers,
		TriggeredBy:  triggeredBy,
	}
	if req != nil {
		if req.WindowMonths != nil {
			p.WindowMonths = *req.WindowMonths
		}
		if req.MaxCustomers != nil {
			p.MaxCustomers = *req.MaxCustomers
		}
	}
	return p
}

func (r *Runner) OrderParams(req *domain.OrderSyncRequest, triggeredBy *int64) domain.OrderSyncParams {
	p := domain.OrderSyncParams{
		DaysBack:    r.defaults.OrderDaysBack,
		BatchSize:   r.defaults.BatchSize,
		TriggeredBy: triggeredBy,
	}
	if req != nil {
		if req.DaysBack != nil {
			p.DaysBack = *req.DaysBack
		}
		if req.BatchSize != nil {
			p.BatchSize = *req.BatchSize
		}
		p.CustomerID = req.CustomerID
	}
	return p
}

// RunCustomers runs a customer sync. It returns xerrors.ErrSyncInProgress and
// a nil result when another customer sync holds the lock.
func (r *Runner) RunCustomers(ctx context.Context, p domain.CustomerSyncParams) (*domain.CustomerSyncResult, error) {
	params := map[string]interface{}{
		"window_months": p.WindowMonths,
		"max_customers": p.MaxCustomers,
	}

	var result *domain.CustomerSyncResult
	err := r.execute(ctx, domain.KindCustomers, params, p.TriggeredBy, func(ctx context.Context, runID string) (*domain.Outcome, map[string]int, error) {
		res, err := r.customers.SyncCustomers(ctx, p.WindowMonths, p.MaxCustomers)
		res.RunID = runID
		result = res
		return &res.Outcome, res.Counters(), err
	})
	return result, err
}

// RunOrders runs an order sync under the same rules as RunCustomers.
func (r *Runner) RunOrders(ctx context.Context, p domain.OrderSyncParams) (*domain.OrderSyncResult, error) {
	params := map[string]interface{}{
		"days_back":  p.DaysBack,
		"batch_size": p.BatchSize,
	}
	if p.CustomerID != nil {
		params["customer_id"] = *p.CustomerID
	}

	var result *domain.OrderSyncResult
	err := r.execute(ctx, domain.KindOrders, params, p.TriggeredBy, func(ctx context.Context, runID string) (*domain.Outcome, map[string]int, error) {
		res, err := r.orders.SyncOrders(ctx, p.DaysBack, p.CustomerID, p.BatchSize)
		res.RunID = runID
		result = res
		return &res.Outcome, res.Counters(), err
	})
	return result, err
}

type runFunc func(ctx context.Context, runID string) (*domain.Outcome, map[string]int, error)

func (r *Runner) execute(ctx context.Context, kind domain.Kind, params map[string]interface{}, triggeredBy *int64, fn runFunc) error {
	release, err := r.locker.Acquire(ctx, string(kind))
	if err != nil {
		if errors.Is(err, xerrors.ErrSyncInProgress) {
			r.logger.Info("sync already running", zap.String("kind", string(kind)))
		}
		return err
	}
	// bookkeeping must outlive a cancelled request
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := release(bg); err != nil {
			r.logger.Warn("failed to release sync lock", zap.String("kind", string(kind)), zap.Error(err))
		}
	}()

	run := &domain.SyncRun{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Status:    domain.StatusRunning,
		Params:    params,
		StartedAt: time.Now().UTC(),
	}
	if triggeredBy != nil {
		run.TriggeredBy = sql.NullInt64{Int64: *triggeredBy, Valid: true}
	}

	recorded := true
	if err := r.runs.Create(bg, run); err != nil {
		recorded = false
		r.logger.Warn("failed to record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}

	r.notify(wstypes.EventTypeSyncStarted, &wstypes.SyncEventData{
		RunID:  run.ID,
		Kind:   string(kind),
		Status: string(domain.StatusRunning),
	})

	outcome, counters, runErr := fn(ctx, run.ID)

	run.Status = outcome.Status
	run.Counters = counters
	run.Errors = outcome.Errors
	run.CompletedAt = sql.NullTime{Time: outcome.CompletedAt, Valid: true}
	if outcome.FatalError != "" {
		run.ErrorMessage = sql.NullString{String: outcome.FatalError, Valid: true}
	}

	if recorded {
		if err := r.runs.Finish(bg, run); err != nil {
			r.logger.Warn("failed to finish sync run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	event := wstypes.EventTypeSyncCompleted
	if outcome.Status == domain.StatusAborted {
		event = wstypes.EventTypeSyncFailed
	}
	r.notify(event, &wstypes.SyncEventData{
		RunID:    run.ID,
		Kind:     string(kind),
		Status:   string(outcome.Status),
		Counters: counters,
		Errors:   len(outcome.Errors),
		Message:  outcome.FatalError,
	})

	return runErr
}

func (r *Runner) notify(event wstypes.EventType, data *wstypes.SyncEventData) {
	if r.notifier == nil {
		return
	}
	r.notifier.BroadcastSyncEvent(event, data)
}
