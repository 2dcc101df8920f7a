// internal/service/customer/customer.go
package customer

import (
	"context"
	"fmt"
	"math"

	"erp-sync-service/internal/domain/customer"
	"erp-sync-service/internal/domain/order"
	xerrors "erp-sync-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const recentOrdersLimit = 10

type AvatarReader interface {
	List(ctx context.Context, filters *customer.CustomerListFilters) ([]customer.CustomerAvatar, int64, error)
	FindByRemoteID(ctx context.Context, remoteID int64) (*customer.CustomerAvatar, error)
	GetStats(ctx context.Context) (*customer.CustomerStats, error)
}

type OrderReader interface {
	ListByCustomer(ctx context.Context, remoteCustomerID int64, limit int) ([]order.OrderRecord, error)
	ListLines(ctx context.Context, orderIDs []int64) (map[int64][]order.OrderLineRecord, error)
}

// CustomerService is the read side over synced avatars.
type CustomerService struct {
	avatars AvatarReader
	orders  OrderReader
	logger  *zap.Logger
}

func NewCustomerService(avatars AvatarReader, orders OrderReader, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		avatars: avatars,
		orders:  orders,
		logger:  logger,
	}
}

// ListAvatars lists avatars with filters and pagination
func (s *CustomerService) ListAvatars(ctx context.Context, filters *customer.CustomerListFilters) (*customer.CustomerListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	avatars, total, err := s.avatars.List(ctx, filters)
	if err != nil {
		s.logger.Error("failed to list customer avatars", zap.Error(err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return &customer.CustomerListResponse{
		Customers:  avatars,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(filters.PageSize))),
	}, nil
}

// GetAvatar returns one avatar with its most recent synced orders and
// their lines. Order lookups failing degrade to an empty or line-less list.
func (s *CustomerService) GetAvatar(ctx context.Context, remoteID int64) (*customer.CustomerDetail, error) {
	avatar, err := s.avatars.FindByRemoteID(ctx, remoteID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	detail := &customer.CustomerDetail{Avatar: avatar, RecentOrders: []customer.RecentOrder{}}

	orders, err := s.orders.ListByCustomer(ctx, remoteID, recentOrdersLimit)
	if err != nil {
		// the avatar alone is still useful
		s.logger.Warn("failed to load recent orders",
			zap.Int64("remote_customer_id", remoteID),
			zap.Error(err),
		)
		return detail, nil
	}
	if len(orders) == 0 {
		return detail, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := s.orders.ListLines(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load order lines",
			zap.Int64("remote_customer_id", remoteID),
			zap.Error(err),
		)
	}

	for _, o := range orders {
		ol := lines[o.ID]
		if ol == nil {
			ol = []order.OrderLineRecord{}
		}
		detail.RecentOrders = append(detail.RecentOrders, customer.RecentOrder{OrderRecord: o, Lines: ol})
	}
	return detail, nil
}

// GetStats returns aggregate avatar statistics
func (s *CustomerService) GetStats(ctx context.Context) (*customer.CustomerStats, error) {
	stats, err := s.avatars.GetStats(ctx)
	if err != nil {
		s.logger.Error("failed to get customer stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get customer stats: %w", err)
	}
	return stats, nil
}
