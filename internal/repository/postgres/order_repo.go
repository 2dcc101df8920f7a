// internal/repository/postgres/order_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"erp-sync-service/internal/domain/order"
	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type OrderRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewOrderRepository(db *pgxpool.Pool, dbWrapper *DB) *OrderRepository {
	return &OrderRepository{db: db, dbWrapper: dbWrapper}
}

const orderColumns = `
	id, remote_order_id, customer_avatar_id, remote_customer_id, order_name, order_date,
	amount_total, state, salesperson_id, salesperson_name, last_synced_at, created_at, updated_at`

func scanOrder(row pgx.Row, o *order.OrderRecord) error {
	return row.Scan(
		&o.ID, &o.RemoteOrderID, &o.CustomerAvatarID, &o.RemoteCustomerID, &o.OrderName, &o.OrderDate,
		&o.AmountTotal, &o.State, &o.SalespersonID, &o.SalespersonName, &o.LastSyncedAt, &o.CreatedAt, &o.UpdatedAt,
	)
}

// UpsertOrder inserts or updates an order header keyed by remote order id.
// Reports whether a row was inserted.
func (r *OrderRepository) UpsertOrder(ctx context.Context, o *order.OrderRecord) (bool, error) {
	query := `
		INSERT INTO sale_orders (
			remote_order_id, customer_avatar_id, remote_customer_id, order_name, order_date,
			amount_total, state, salesperson_id, salesperson_name,
			last_synced_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10)
		ON CONFLICT (remote_order_id) DO UPDATE SET
			customer_avatar_id = EXCLUDED.customer_avatar_id,
			remote_customer_id = EXCLUDED.remote_customer_id,
			order_name = EXCLUDED.order_name,
			order_date = EXCLUDED.order_date,
			amount_total = EXCLUDED.amount_total,
			state = EXCLUDED.state,
			salesperson_id = EXCLUDED.salesperson_id,
			salesperson_name = EXCLUDED.salesperson_name,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	syncedAt := o.LastSyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	var inserted bool
	err := r.db.QueryRow(
		ctx, query,
		o.RemoteOrderID, o.CustomerAvatarID, o.RemoteCustomerID, o.OrderName, o.OrderDate,
		o.AmountTotal, o.State, o.SalespersonID, o.SalespersonName, syncedAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &inserted)
	if err != nil {
		return false, &xerrors.PersistenceError{
			Op:  "upsert sale_order",
			Key: strconv.FormatInt(o.RemoteOrderID, 10),
			Err: err,
		}
	}

	o.LastSyncedAt = syncedAt
	return inserted, nil
}

// ReplaceLines makes the stored lines of an order equal to lines. The parent
// row is locked for the duration so concurrent syncs of one order serialize;
// lines no longer present remotely are deleted, the rest upserted by remote id.
func (r *OrderRepository) ReplaceLines(ctx context.Context, orderID int64, lines []order.OrderLineRecord) error {
	key := strconv.FormatInt(orderID, 10)

	err := r.dbWrapper.InTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM sale_orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xerrors.ErrNotFound
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		keep := make([]int64, 0, len(lines))
		for _, l := range lines {
			keep = append(keep, l.RemoteLineID)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM sale_order_lines WHERE order_id = $1 AND NOT (remote_line_id = ANY($2))`,
			orderID, pq.Array(keep),
		); err != nil {
			return fmt.Errorf("failed to delete stale lines: %w", err)
		}

		if len(lines) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, l := range lines {
			batch.Queue(`
				INSERT INTO sale_order_lines (
					order_id, remote_line_id, product_id, product_name, product_code,
					product_category, quantity, unit_price, subtotal
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (order_id, remote_line_id) DO UPDATE SET
					product_id = EXCLUDED.product_id,
					product_name = EXCLUDED.product_name,
					product_code = EXCLUDED.product_code,
					product_category = EXCLUDED.product_category,
					quantity = EXCLUDED.quantity,
					unit_price = EXCLUDED.unit_price,
					subtotal = EXCLUDED.subtotal
			`,
				orderID, l.RemoteLineID, l.ProductID, l.ProductName, l.ProductCode,
				l.ProductCategory, l.Quantity, l.UnitPrice, l.Subtotal,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range lines {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to write line: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return &xerrors.PersistenceError{Op: "replace sale_order_lines", Key: key, Err: err}
	}

	return nil
}

// FindByRemoteID retrieves an order header by remote order id
func (r *OrderRepository) FindByRemoteID(ctx context.Context, remoteOrderID int64) (*order.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM sale_orders WHERE remote_order_id = $1`

	var o order.OrderRecord
	err := scanOrder(r.db.QueryRow(ctx, query, remoteOrderID), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return &o, nil
}

// ListByCustomer returns the newest orders of one remote customer
func (r *OrderRepository) ListByCustomer(ctx context.Context, remoteCustomerID int64, limit int) ([]order.OrderRecord, error) {
	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT ` + orderColumns + `
		FROM sale_orders
		WHERE remote_customer_id = $1
		ORDER BY order_date DESC NULLS LAST, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, remoteCustomerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	defer rows.Close()

	orders := []order.OrderRecord{}
	for rows.Next() {
		var o order.OrderRecord
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// ListLines returns the stored lines of the given local orders, keyed by
// order id. Orders without lines are absent from the map.
func (r *OrderRepository) ListLines(ctx context.Context, orderIDs []int64) (map[int64][]order.OrderLineRecord, error) {
	lines := make(map[int64][]order.OrderLineRecord, len(orderIDs))
	if len(orderIDs) == 0 {
		return lines, nil
	}

	query := `
		SELECT id, order_id, remote_line_id, product_id, product_name, product_code,
		       product_category, quantity, unit_price, subtotal, created_at
		FROM sale_order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, remote_line_id
	`

	rows, err := r.db.Query(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l order.OrderLineRecord
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.RemoteLineID, &l.ProductID, &l.ProductName, &l.ProductCode,
			&l.ProductCategory, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines[l.OrderID] = append(lines[l.OrderID], l)
	}

	return lines, rows.Err()
}
