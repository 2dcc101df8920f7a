// internal/service/syncer/order_sync.go
package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	erpdomain "erp-sync-service/internal/domain/erp"
	"erp-sync-service/internal/domain/order"
	domain "erp-sync-service/internal/domain/sync"
	erpclient "erp-sync-service/internal/erp"

	"go.uber.org/zap"
)

// maxConsecutiveBatchFailures stops paging when the remote keeps failing.
const maxConsecutiveBatchFailures = 3

type OrderSyncService struct {
	remote  RemoteReader
	avatars AvatarStore
	orders  OrderStore
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

func NewOrderSyncService(remote RemoteReader, avatars AvatarStore, orders OrderStore, opts Options, logger *zap.Logger) *OrderSyncService {
	return &OrderSyncService{
		remote:  remote,
		avatars: avatars,
		orders:  orders,
		opts:    opts.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the time source; tests only.
func (s *OrderSyncService) SetClock(now func() time.Time) { s.now = now }

// SyncOrders mirrors qualifying orders from the last daysBack days, and their
// lines, page by page. customerID restricts the run to one remote customer.
//
// Only a failure to fetch the first page aborts the run. Later page failures
// are recorded per batch; order and line failures are recorded per order.
func (s *OrderSyncService) SyncOrders(ctx context.Context, daysBack int, customerID *int64, batchSize int) (*domain.OrderSyncResult, error) {
	if batchSize < 1 {
		batchSize = 100
	}
	now := s.now().UTC()
	result := domain.NewOrderSyncResult(now)
	since := now.AddDate(0, 0, -daysBack)

	fields := []zap.Field{zap.Int("days_back", daysBack), zap.Int("batch_size", batchSize), zap.Time("since", since)}
	if customerID != nil {
		fields = append(fields, zap.Int64("remote_customer_id", *customerID))
	}
	s.logger.Info("order sync started", fields...)

	seen := make(map[int64]bool)
	var errs errorLog
	failures := 0

	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, errs.drain()...)
			return s.abort(result, fmt.Errorf("order sync interrupted: %w", err))
		}

		page, err := s.remote.FetchQualifyingOrders(ctx, erpclient.OrderQuery{
			Since:      since,
			CustomerID: customerID,
			Limit:      batchSize,
			Offset:     offset,
		})
		if err != nil {
			if offset == 0 {
				return s.abort(result, fmt.Errorf("failed to fetch orders: %w", err))
			}
			s.logger.Warn("order batch fetch failed", zap.Int("offset", offset), zap.Error(err))
			errs.add("batch", batchKey(offset), err)
			failures++
			if failures >= maxConsecutiveBatchFailures {
				break
			}
			continue
		}
		failures = 0

		// rows may shift between pages; never process an order twice
		fresh := page[:0:0]
		for _, o := range page {
			if !seen[o.ID] {
				seen[o.ID] = true
				fresh = append(fresh, o)
			}
		}

		if err := s.syncBatch(ctx, offset, fresh, now, result, &errs); err != nil {
			s.logger.Warn("order batch failed", zap.Int("offset", offset), zap.Error(err))
			errs.add("batch", batchKey(offset), err)
		}
		result.Batches++

		if len(page) < batchSize {
			break
		}
	}

	result.Errors = append(result.Errors, errs.drain()...)
	result.Complete(s.now().UTC())
	s.logger.Info("order sync completed",
		zap.Int("orders_processed", result.OrdersProcessed),
		zap.Int("orders_inserted", result.OrdersInserted),
		zap.Int("orders_updated", result.OrdersUpdated),
		zap.Int("order_lines_processed", result.OrderLinesProcessed),
		zap.Int("batches", result.Batches),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

// syncBatch upserts one page of orders and reconciles their lines. The
// returned error covers failures that affect the whole batch.
func (s *OrderSyncService) syncBatch(ctx context.Context, offset int, orders []erpdomain.SaleOrder, now time.Time, result *domain.OrderSyncResult, errs *errorLog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if len(orders) == 0 {
		return nil
	}

	customerIDs := make([]int64, 0, len(orders))
	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		if o.PartnerID.Valid {
			customerIDs = append(customerIDs, o.PartnerID.ID)
		}
	}

	avatarIDs, err := s.avatars.FindIDsByRemoteIDs(ctx, customerIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve customer avatars: %w", err)
	}

	linesByOrder, linesErr := s.fetchLines(ctx, orderIDs)
	if linesErr != nil {
		s.logger.Warn("order lines fetch failed; headers still synced",
			zap.Int("offset", offset),
			zap.Error(linesErr),
		)
		errs.add("order_lines", batchKey(offset), linesErr)
	}

	var mu sync.Mutex
	ctxErr := runUnits(ctx, len(orders), s.opts.Concurrency,
		func(ctx context.Context, i int) error {
			o := orders[i]
			rec := toOrderRecord(o, avatarIDs, now)
			inserted, err := s.orders.UpsertOrder(ctx, rec)
			if err != nil {
				return err
			}
			mu.Lock()
			result.OrdersProcessed++
			if inserted {
				result.OrdersInserted++
			} else {
				result.OrdersUpdated++
			}
			mu.Unlock()

			if linesErr != nil {
				return nil
			}
			lines := linesByOrder[o.ID]
			if err := s.orders.ReplaceLines(ctx, rec.ID, lines); err != nil {
				// line failures never fail the header
				s.logger.Warn("order lines sync failed",
					zap.Int64("remote_order_id", o.ID),
					zap.Error(err),
				)
				errs.add("order_lines", strconv.FormatInt(o.ID, 10), err)
				return nil
			}
			mu.Lock()
			result.OrderLinesProcessed += len(lines)
			mu.Unlock()
			return nil
		},
		func(i int, err error) {
			s.logger.Warn("order sync failed",
				zap.Int64("remote_order_id", orders[i].ID),
				zap.Error(err),
			)
			errs.add("order", strconv.FormatInt(orders[i].ID, 10), err)
		},
	)
	return ctxErr
}

// fetchLines loads the lines of a batch grouped by remote order id. Product
// categories are best effort: a failed lookup leaves them empty.
func (s *OrderSyncService) fetchLines(ctx context.Context, orderIDs []int64) (map[int64][]order.OrderLineRecord, error) {
	lines, err := s.remote.FetchOrderLines(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	productIDs := make([]int64, 0, len(lines))
	seen := make(map[int64]bool)
	for _, l := range lines {
		if l.ProductID.Valid && !seen[l.ProductID.ID] {
			seen[l.ProductID.ID] = true
			productIDs = append(productIDs, l.ProductID.ID)
		}
	}

	products := make(map[int64]erpdomain.Product, len(productIDs))
	if found, err := s.remote.FetchProducts(ctx, productIDs); err != nil {
		s.logger.Warn("product lookup failed; categories left empty", zap.Error(err))
	} else {
		for _, p := range found {
			products[p.ID] = p
		}
	}

	out := make(map[int64][]order.OrderLineRecord)
	for _, l := range lines {
		if !l.OrderID.Valid {
			continue
		}
		out[l.OrderID.ID] = append(out[l.OrderID.ID], toLineRecord(l, products))
	}
	return out, nil
}

func toOrderRecord(o erpdomain.SaleOrder, avatarIDs map[int64]int64, now time.Time) *order.OrderRecord {
	rec := &order.OrderRecord{
		RemoteOrderID: o.ID,
		OrderName:     o.Name,
		AmountTotal:   o.AmountTotal,
		State:         o.State,
		LastSyncedAt:  now,
	}
	if o.DateOrder.Valid {
		rec.OrderDate = sql.NullTime{Time: o.DateOrder.Time, Valid: true}
	}
	if o.PartnerID.Valid {
		rec.RemoteCustomerID = sql.NullInt64{Int64: o.PartnerID.ID, Valid: true}
		if id, ok := avatarIDs[o.PartnerID.ID]; ok {
			rec.CustomerAvatarID = sql.NullInt64{Int64: id, Valid: true}
		}
	}
	if o.UserID.Valid {
		rec.SalespersonID = sql.NullInt64{Int64: o.UserID.ID, Valid: true}
		rec.SalespersonName = sql.NullString{String: o.UserID.Name, Valid: o.UserID.Name != ""}
	}
	return rec
}

func toLineRecord(l erpdomain.SaleOrderLine, products map[int64]erpdomain.Product) order.OrderLineRecord {
	rec := order.OrderLineRecord{
		RemoteLineID: l.ID,
		ProductName:  l.Name.String,
		Quantity:     l.ProductUOMQty,
		UnitPrice:    l.PriceUnit,
		Subtotal:     l.PriceSubtotal,
	}
	if !l.ProductID.Valid {
		return rec
	}

	rec.ProductID = sql.NullInt64{Int64: l.ProductID.ID, Valid: true}
	if l.ProductID.Name != "" {
		rec.ProductName = l.ProductID.Name
	}

	code := erpdomain.ParseProductCode(l.ProductID.Name)
	p, ok := products[l.ProductID.ID]
	if code == "" && ok && p.DefaultCode.Valid {
		code = p.DefaultCode.String
	}
	if code != "" {
		rec.ProductCode = sql.NullString{String: code, Valid: true}
	}
	if ok && p.CategID.Valid {
		rec.ProductCategory = sql.NullString{String: p.CategID.Name, Valid: true}
	}
	return rec
}

func (s *OrderSyncService) abort(result *domain.OrderSyncResult, err error) (*domain.OrderSyncResult, error) {
	result.Abort(s.now().UTC(), err)
	s.logger.Error("order sync aborted", zap.Error(err))
	return result, err
}

func batchKey(offset int) string {
	return "offset=" + strconv.Itoa(offset)
}
