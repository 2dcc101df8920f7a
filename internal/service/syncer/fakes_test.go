package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"erp-sync-service/internal/domain/customer"
	erpdomain "erp-sync-service/internal/domain/erp"
	"erp-sync-service/internal/domain/order"
	domain "erp-sync-service/internal/domain/sync"
	wstypes "erp-sync-service/internal/domain/websocket"
	erpclient "erp-sync-service/internal/erp"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func day(s string) erpdomain.DateTime {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return erpdomain.DateTime{Time: t, Valid: true}
}

func saleOrder(id, customerID int64, date string, total int64) erpdomain.SaleOrder {
	return erpdomain.SaleOrder{
		ID:          id,
		Name:        "S" + decimal.NewFromInt(id).String(),
		PartnerID:   erpdomain.Many2One{ID: customerID, Name: "Customer", Valid: true},
		DateOrder:   day(date),
		AmountTotal: decimal.NewFromInt(total),
		State:       erpdomain.OrderStateConfirmed,
	}
}

type fakeRemote struct {
	mu sync.Mutex

	orders   []erpdomain.SaleOrder
	partners map[int64]erpdomain.Partner
	lines    []erpdomain.SaleOrderLine
	products map[int64]erpdomain.Product

	ordersErr      error
	failOffsets    map[int]error
	partnersErr    error
	linesErr       error
	productsErr    error
	orderPageCalls int
}

func (f *fakeRemote) FetchQualifyingOrders(_ context.Context, q erpclient.OrderQuery) ([]erpdomain.SaleOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderPageCalls++
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	if err, ok := f.failOffsets[q.Offset]; ok {
		return nil, err
	}

	var matched []erpdomain.SaleOrder
	for _, o := range f.orders {
		if o.DateOrder.Time.Before(q.Since) {
			continue
		}
		if q.CustomerID != nil && o.PartnerID.ID != *q.CustomerID {
			continue
		}
		matched = append(matched, o)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if q.Offset >= len(matched) {
		return nil, nil
	}
	end := len(matched)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], nil
}

func (f *fakeRemote) FetchAllQualifyingOrders(ctx context.Context, since time.Time, customerID *int64, pageSize int) ([]erpdomain.SaleOrder, error) {
	var all []erpdomain.SaleOrder
	for offset := 0; ; offset += pageSize {
		page, err := f.FetchQualifyingOrders(ctx, erpclient.OrderQuery{Since: since, CustomerID: customerID, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (f *fakeRemote) FetchPartners(_ context.Context, ids []int64) ([]erpdomain.Partner, error) {
	if f.partnersErr != nil {
		return nil, f.partnersErr
	}
	var out []erpdomain.Partner
	for _, id := range ids {
		if p, ok := f.partners[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) FetchOrderLines(_ context.Context, orderIDs []int64) ([]erpdomain.SaleOrderLine, error) {
	if f.linesErr != nil {
		return nil, f.linesErr
	}
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []erpdomain.SaleOrderLine
	for _, l := range f.lines {
		if want[l.OrderID.ID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRemote) FetchProducts(_ context.Context, ids []int64) ([]erpdomain.Product, error) {
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	var out []erpdomain.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAvatars struct {
	mu      sync.Mutex
	rows    map[int64]customer.CustomerAvatar
	nextID  int64
	failOn  map[int64]error
	panicOn map[int64]bool
	// afterUpsert runs once a row is stored, outside the lock.
	afterUpsert func(remoteID int64)
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{rows: make(map[int64]customer.CustomerAvatar)}
}

func (f *fakeAvatars) Upsert(_ context.Context, a *customer.CustomerAvatar) (bool, error) {
	if f.panicOn[a.RemoteCustomerID] {
		panic("unexpected record shape")
	}
	if err := f.failOn[a.RemoteCustomerID]; err != nil {
		return false, err
	}

	if f.afterUpsert != nil {
		defer f.afterUpsert(a.RemoteCustomerID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rows[a.RemoteCustomerID]
	if ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		if a.KeepContact {
			if existing.Name.Valid {
				a.Name = existing.Name
			}
			a.Email, a.Phone, a.City = existing.Email, existing.Phone, existing.City
		}
	} else {
		f.nextID++
		a.ID = f.nextID
		a.CreatedAt = a.LastSyncedAt
	}
	a.UpdatedAt = a.LastSyncedAt
	f.rows[a.RemoteCustomerID] = *a
	return !ok, nil
}

func (f *fakeAvatars) FindIDsByRemoteIDs(_ context.Context, remoteIDs []int64) (map[int64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int64)
	for _, id := range remoteIDs {
		if row, ok := f.rows[id]; ok {
			out[id] = row.ID
		}
	}
	return out, nil
}

func (f *fakeAvatars) get(remoteID int64) (customer.CustomerAvatar, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[remoteID]
	return a, ok
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[int64]order.OrderRecord
	lines     map[int64][]order.OrderLineRecord // by local order id
	nextID    int64
	failOrder map[int64]error
	failLines map[int64]error // by local order id
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders: make(map[int64]order.OrderRecord),
		lines:  make(map[int64][]order.OrderLineRecord),
	}
}

func (f *fakeOrders) UpsertOrder(_ context.Context, o *order.OrderRecord) (bool, error) {
	if err := f.failOrder[o.RemoteOrderID]; err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.orders[o.RemoteOrderID]
	if ok {
		o.ID = existing.ID
	} else {
		f.nextID++
		o.ID = f.nextID
	}
	f.orders[o.RemoteOrderID] = *o
	return !ok, nil
}

func (f *fakeOrders) ReplaceLines(_ context.Context, orderID int64, lines []order.OrderLineRecord) error {
	if err := f.failLines[orderID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[orderID] = append([]order.OrderLineRecord(nil), lines...)
	return nil
}

type fakeRuns struct {
	mu       sync.Mutex
	created  []domain.SyncRun
	finished []domain.SyncRun
}

func (f *fakeRuns) Create(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *run)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []wstypes.EventType
	data   []*wstypes.SyncEventData
}

func (f *fakeNotifier) BroadcastSyncEvent(event wstypes.EventType, data *wstypes.SyncEventData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.data = append(f.data, data)
}

func testLogger() *zap.Logger { return zap.NewNop() }
