// internal/service/syncer/customer_sync.go
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"erp-sync-service/internal/domain/customer"
	erpdomain "erp-sync-service/internal/domain/erp"
	domain "erp-sync-service/internal/domain/sync"
	"erp-sync-service/internal/service/scoring"

	"go.uber.org/zap"
)

var errPartnerMissing = errors.New("customer details not returned by remote; stored contact kept")

type CustomerSyncService struct {
	remote  RemoteReader
	avatars AvatarStore
	scorer  scoring.Calculator
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

func NewCustomerSyncService(remote RemoteReader, avatars AvatarStore, scorer scoring.Calculator, opts Options, logger *zap.Logger) *CustomerSyncService {
	return &CustomerSyncService{
		remote:  remote,
		avatars: avatars,
		scorer:  scorer,
		opts:    opts.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the time source; tests only.
func (s *CustomerSyncService) SetClock(now func() time.Time) { s.now = now }

// SyncCustomers rebuilds the avatar of every customer with a qualifying order
// in the last windowMonths months. maxCustomers <= 0 means no bound.
//
// A result is always returned. The error is non-nil only when the run aborted,
// either because an initial fetch failed or because ctx was cancelled;
// per-customer failures land in result.Errors and never stop the run.
func (s *CustomerSyncService) SyncCustomers(ctx context.Context, windowMonths, maxCustomers int) (*domain.CustomerSyncResult, error) {
	now := s.now().UTC()
	result := domain.NewCustomerSyncResult(now)
	cutoff := now.AddDate(0, -windowMonths, 0)

	s.logger.Info("customer sync started",
		zap.Int("window_months", windowMonths),
		zap.Int("max_customers", maxCustomers),
		zap.Time("cutoff", cutoff),
	)

	orders, err := s.remote.FetchAllQualifyingOrders(ctx, cutoff, nil, s.opts.PageSize)
	if err != nil {
		return s.abort(result, fmt.Errorf("failed to fetch qualifying orders: %w", err))
	}

	byCustomer := groupByCustomer(orders)
	ids := make([]int64, 0, len(byCustomer))
	for id := range byCustomer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if maxCustomers > 0 && len(ids) > maxCustomers {
		result.Skipped = len(ids) - maxCustomers
		ids = ids[:maxCustomers]
	}

	partners, err := s.remote.FetchPartners(ctx, ids)
	if err != nil {
		return s.abort(result, fmt.Errorf("failed to fetch customer details: %w", err))
	}
	partnerByID := make(map[int64]erpdomain.Partner, len(partners))
	for _, p := range partners {
		partnerByID[p.ID] = p
	}

	var (
		mu   sync.Mutex
		errs errorLog
	)
	ctxErr := runUnits(ctx, len(ids), s.opts.Concurrency,
		func(ctx context.Context, i int) error {
			id := ids[i]
			partner, found := partnerByID[id]
			inserted, err := s.syncOne(ctx, id, partner, found, byCustomer[id], now)
			if err != nil {
				return err
			}
			if !found {
				// The avatar is still refreshed; the stored contact survives.
				s.logger.Warn("customer details missing from remote",
					zap.Int64("remote_customer_id", id),
				)
				errs.add("customer", strconv.FormatInt(id, 10), errPartnerMissing)
			}
			mu.Lock()
			result.Synced++
			if inserted {
				result.Created++
			} else {
				result.Updated++
			}
			mu.Unlock()
			return nil
		},
		func(i int, err error) {
			s.logger.Warn("customer sync failed",
				zap.Int64("remote_customer_id", ids[i]),
				zap.Error(err),
			)
			errs.add("customer", strconv.FormatInt(ids[i], 10), err)
		},
	)
	result.Errors = append(result.Errors, errs.drain()...)

	if ctxErr != nil {
		return s.abort(result, fmt.Errorf("customer sync interrupted: %w", ctxErr))
	}

	result.Complete(s.now().UTC())
	s.logger.Info("customer sync completed",
		zap.Int("synced", result.Synced),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

func (s *CustomerSyncService) syncOne(ctx context.Context, remoteID int64, partner erpdomain.Partner, found bool, orders []erpdomain.SaleOrder, now time.Time) (bool, error) {
	metrics := ComputeMetrics(orders, now)
	scores := s.scorer.Score(metrics.ScoringInput())

	avatar := &customer.CustomerAvatar{
		RemoteCustomerID:     remoteID,
		Name:                 nullString(partner.Name),
		Email:                nullString(partner.Email),
		Phone:                nullString(partner.Phone),
		City:                 nullString(partner.City),
		FirstOrderDate:       sql.NullTime{Time: metrics.FirstOrderDate, Valid: true},
		LastOrderDate:        sql.NullTime{Time: metrics.LastOrderDate, Valid: true},
		TotalOrders:          metrics.TotalOrders,
		TotalRevenue:         metrics.TotalRevenue,
		AvgOrderValue:        metrics.AvgOrderValue,
		DaysSinceLastOrder:   metrics.DaysSinceLastOrder,
		HealthScore:          scores.Health,
		ChurnRiskScore:       scores.ChurnRisk,
		UpsellPotentialScore: scores.UpsellPotential,
		EngagementScore:      scores.Engagement,
		LastSyncedAt:         now,
	}
	if !found {
		avatar.KeepContact = true
		avatar.Name = orderPartnerName(orders)
	}
	if metrics.OrderFrequencyDays != nil {
		avatar.OrderFrequencyDays = sql.NullInt32{Int32: int32(*metrics.OrderFrequencyDays), Valid: true}
	}

	return s.avatars.Upsert(ctx, avatar)
}

func (s *CustomerSyncService) abort(result *domain.CustomerSyncResult, err error) (*domain.CustomerSyncResult, error) {
	result.Abort(s.now().UTC(), err)
	s.logger.Error("customer sync aborted", zap.Error(err))
	return result, err
}

// groupByCustomer keeps dated, qualifying orders that have a customer.
func groupByCustomer(orders []erpdomain.SaleOrder) map[int64][]erpdomain.SaleOrder {
	out := make(map[int64][]erpdomain.SaleOrder)
	for _, o := range orders {
		if !o.PartnerID.Valid || !o.DateOrder.Valid || !qualifies(o.State) {
			continue
		}
		out[o.PartnerID.ID] = append(out[o.PartnerID.ID], o)
	}
	return out
}

func qualifies(state string) bool {
	for _, s := range erpdomain.QualifyingOrderStates {
		if s == state {
			return true
		}
	}
	return false
}

// orderPartnerName is the display name the orders carry for their customer.
func orderPartnerName(orders []erpdomain.SaleOrder) sql.NullString {
	for _, o := range orders {
		if o.PartnerID.Name != "" {
			return sql.NullString{String: o.PartnerID.Name, Valid: true}
		}
	}
	return sql.NullString{}
}

func nullString(t erpdomain.Text) sql.NullString {
	return sql.NullString{String: t.String, Valid: t.Valid}
}
