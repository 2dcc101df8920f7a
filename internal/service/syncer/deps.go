// internal/service/syncer/deps.go
package syncer

import (
	"context"
	"time"

	"erp-sync-service/internal/domain/customer"
	erpdomain "erp-sync-service/internal/domain/erp"
	"erp-sync-service/internal/domain/order"
	domain "erp-sync-service/internal/domain/sync"
	wstypes "erp-sync-service/internal/domain/websocket"
	erpclient "erp-sync-service/internal/erp"
)

// RemoteReader is the slice of the ERP client the engines read through.
type RemoteReader interface {
	FetchAllQualifyingOrders(ctx context.Context, since time.Time, customerID *int64, pageSize int) ([]erpdomain.SaleOrder, error)
	FetchQualifyingOrders(ctx context.Context, q erpclient.OrderQuery) ([]erpdomain.SaleOrder, error)
	FetchPartners(ctx context.Context, ids []int64) ([]erpdomain.Partner, error)
	FetchOrderLines(ctx context.Context, orderIDs []int64) ([]erpdomain.SaleOrderLine, error)
	FetchProducts(ctx context.Context, ids []int64) ([]erpdomain.Product, error)
}

type AvatarStore interface {
	Upsert(ctx context.Context, a *customer.CustomerAvatar) (bool, error)
	FindIDsByRemoteIDs(ctx context.Context, remoteIDs []int64) (map[int64]int64, error)
}

type OrderStore interface {
	UpsertOrder(ctx context.Context, o *order.OrderRecord) (bool, error)
	ReplaceLines(ctx context.Context, orderID int64, lines []order.OrderLineRecord) error
}

type RunStore interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
}

// Locker serializes runs of one kind across replicas.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// Notifier publishes run transitions to live listeners.
type Notifier interface {
	BroadcastSyncEvent(event wstypes.EventType, data *wstypes.SyncEventData)
}

// Options tune both engines.
type Options struct {
	Concurrency int // per-unit workers; 1 keeps units strictly sequential
	PageSize    int // remote page size for the customer population fetch
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 500
	}
	return o
}
