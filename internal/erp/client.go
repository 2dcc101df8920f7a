// internal/erp/client.go
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "erp-sync-service/internal/domain/erp"
)

// Caller is the one capability the client needs; *session.Manager has it.
type Caller interface {
	CallRemote(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error)
}

// Client is a typed façade over Caller. It holds no session state and is
// cheap to create per request.
type Client struct {
	caller Caller
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// SearchRead runs search_read and decodes the rows into out (a pointer to a slice).
func (c *Client) SearchRead(ctx context.Context, model string, filter Domain, fields []string, opts SearchOptions, out any) error {
	if filter == nil {
		filter = Domain{}
	}
	raw, err := c.caller.CallRemote(ctx, model, "search_read", []any{filter}, opts.kwargs(fields))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", model, err)
	}
	return nil
}

// Create inserts a record and returns its id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	raw, err := c.caller.CallRemote(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		// newer servers answer create with a list of ids
		var ids []int64
		if err2 := json.Unmarshal(raw, &ids); err2 != nil || len(ids) == 0 {
			return 0, fmt.Errorf("failed to decode %s create result: %w", model, err)
		}
		id = ids[0]
	}
	return id, nil
}

// Write updates the given records.
func (c *Client) Write(ctx context.Context, model string, ids []int64, values map[string]any) (bool, error) {
	raw, err := c.caller.CallRemote(ctx, model, "write", []any{ids, values}, nil)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, fmt.Errorf("failed to decode %s write result: %w", model, err)
	}
	return ok, nil
}

// OrderQuery selects qualifying (confirmed or done) sale orders.
type OrderQuery struct {
	Since      time.Time
	CustomerID *int64
	Limit      int
	Offset     int
}

// FetchQualifyingOrders returns one page of confirmed/done orders placed on
// or after q.Since, oldest first.
func (c *Client) FetchQualifyingOrders(ctx context.Context, q OrderQuery) ([]domain.SaleOrder, error) {
	filter := Domain{}.And(
		Cond("date_order", ">=", q.Since.UTC().Format(domain.DateTimeLayout)),
		Cond("state", "in", domain.QualifyingOrderStates),
	)
	if q.CustomerID != nil {
		filter = filter.And(Cond("partner_id", "=", *q.CustomerID))
	}

	var orders []domain.SaleOrder
	err := c.SearchRead(ctx, domain.ModelSaleOrder, filter, domain.SaleOrderFields, SearchOptions{
		Limit:  q.Limit,
		Offset: q.Offset,
		Order:  "date_order asc, id asc",
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchAllQualifyingOrders pages through FetchQualifyingOrders until exhausted.
func (c *Client) FetchAllQualifyingOrders(ctx context.Context, since time.Time, customerID *int64, pageSize int) ([]domain.SaleOrder, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var all []domain.SaleOrder
	for offset := 0; ; offset += pageSize {
		page, err := c.FetchQualifyingOrders(ctx, OrderQuery{
			Since:      since,
			CustomerID: customerID,
			Limit:      pageSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// FetchPartners bulk-loads customer details. Archived partners are
// included; search_read drops them otherwise.
func (c *Client) FetchPartners(ctx context.Context, ids []int64) ([]domain.Partner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var partners []domain.Partner
	err := c.SearchRead(ctx, domain.ModelPartner, Domain{}.And(Cond("id", "in", ids)), domain.PartnerFields,
		SearchOptions{Context: map[string]any{"active_test": false}}, &partners)
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// FetchOrderLines loads every line belonging to the given orders.
func (c *Client) FetchOrderLines(ctx context.Context, orderIDs []int64) ([]domain.SaleOrderLine, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var lines []domain.SaleOrderLine
	err := c.SearchRead(ctx, domain.ModelSaleLine, Domain{}.And(Cond("order_id", "in", orderIDs)), domain.SaleOrderLineFields, SearchOptions{Order: "order_id asc, id asc"}, &lines)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// FetchProducts loads products (for their category) by id.
func (c *Client) FetchProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []domain.Product
	err := c.SearchRead(ctx, domain.ModelProduct, Domain{}.And(Cond("id", "in", ids)), domain.ProductFields, SearchOptions{}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FetchPickingBatches lists the most recent stock picking batches.
func (c *Client) FetchPickingBatches(ctx context.Context, state string, limit int) ([]domain.PickingBatch, error) {
	filter := Domain{}
	if state != "" {
		filter = filter.And(Cond("state", "=", state))
	}
	var batches []domain.PickingBatch
	err := c.SearchRead(ctx, domain.ModelPickingBatch, filter, domain.PickingBatchFields, SearchOptions{Limit: limit, Order: "scheduled_date desc, id desc"}, &batches)
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// FetchMoveLines lists the move lines of every picking in a batch.
func (c *Client) FetchMoveLines(ctx context.Context, batchID int64) ([]domain.MoveLine, error) {
	var lines []domain.MoveLine
	err := c.SearchRead(ctx, domain.ModelMoveLine, Domain{}.And(Cond("picking_id.batch_id", "=", batchID)), domain.MoveLineFields, SearchOptions{Order: "picking_id asc, id asc"}, &lines)
	if err != nil {
		return nil, err
	}
	return lines, nil
}
