package syncer

import (
	"context"
	"errors"
	"testing"

	"erp-sync-service/internal/domain/customer"
	erpdomain "erp-sync-service/internal/domain/erp"
	domain "erp-sync-service/internal/domain/sync"

	"github.com/shopspring/decimal"
)

func saleLine(id, orderID, productID int64, productName string, qty int64) erpdomain.SaleOrderLine {
	l := erpdomain.SaleOrderLine{
		ID:            id,
		OrderID:       erpdomain.Many2One{ID: orderID, Valid: true},
		Name:          erpdomain.Text{String: "line", Valid: true},
		ProductUOMQty: decimal.NewFromInt(qty),
		PriceUnit:     decimal.NewFromInt(5),
		PriceSubtotal: decimal.NewFromInt(5 * qty),
	}
	if productID != 0 {
		l.ProductID = erpdomain.Many2One{ID: productID, Name: productName, Valid: true}
	}
	return l
}

func orderFixture() *fakeRemote {
	remote := &fakeRemote{
		products: map[int64]erpdomain.Product{
			50: {ID: 50, CategID: erpdomain.Many2One{ID: 1, Name: "Furniture", Valid: true}},
			51: {ID: 51, DefaultCode: erpdomain.Text{String: "LAMP-2", Valid: true}},
		},
	}
	for id := int64(1); id <= 5; id++ {
		remote.orders = append(remote.orders, saleOrder(id, 10+id, "2024-02-20", 100))
	}
	remote.lines = []erpdomain.SaleOrderLine{
		saleLine(1001, 1, 50, "[DESK-01] Office desk", 2),
		saleLine(1002, 1, 51, "Desk lamp", 1),
		saleLine(1003, 2, 0, "", 1),
		saleLine(1004, 5, 50, "[DESK-01] Office desk", 4),
	}
	return remote
}

func newOrderSync(remote *fakeRemote, avatars *fakeAvatars, orders *fakeOrders) *OrderSyncService {
	s := NewOrderSyncService(remote, avatars, orders, Options{Concurrency: 2}, testLogger())
	s.SetClock(fixedClock)
	return s
}

func TestSyncOrdersPagesAndReplacesLines(t *testing.T) {
	remote := orderFixture()
	avatars := newFakeAvatars()
	orders := newFakeOrders()

	res, err := newOrderSync(remote, avatars, orders).SyncOrders(context.Background(), 30, nil, 2)
	if err != nil {
		t.Fatalf("SyncOrders() error: %v", err)
	}
	if res.OrdersProcessed != 5 || res.OrdersInserted != 5 || res.OrdersUpdated != 0 {
		t.Errorf("unexpected order counts %+v", res)
	}
	if res.OrderLinesProcessed != 4 {
		t.Errorf("OrderLinesProcessed = %d, want 4", res.OrderLinesProcessed)
	}
	if res.Batches != 3 {
		t.Errorf("Batches = %d, want 3", res.Batches)
	}
	if res.Status != domain.StatusCompleted {
		t.Errorf("Status = %s, errors %+v", res.Status, res.Errors)
	}

	first := orders.orders[1]
	if first.CustomerAvatarID.Valid {
		t.Error("customer avatar id should stay null before the customer is synced")
	}
	lines := orders.lines[first.ID]
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines for order 1, got %d", len(lines))
	}
	desk, lamp := lines[0], lines[1]
	if desk.ProductCode.String != "DESK-01" || desk.ProductCategory.String != "Furniture" {
		t.Errorf("unexpected desk line %+v", desk)
	}
	if lamp.ProductCode.String != "LAMP-2" || lamp.ProductCategory.Valid {
		t.Errorf("unexpected lamp line %+v", lamp)
	}
	if noProduct := orders.lines[orders.orders[2].ID][0]; noProduct.ProductID.Valid || noProduct.ProductName != "line" {
		t.Errorf("unexpected product-less line %+v", noProduct)
	}

	again, err := newOrderSync(remote, avatars, orders).SyncOrders(context.Background(), 30, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if again.OrdersInserted != 0 || again.OrdersUpdated != 5 {
		t.Errorf("second run inserted=%d updated=%d, want 0/5", again.OrdersInserted, again.OrdersUpdated)
	}
	if len(orders.lines[first.ID]) != 2 {
		t.Error("re-sync must not duplicate lines")
	}
}

func TestSyncOrdersLinksSyncedCustomers(t *testing.T) {
	avatars := newFakeAvatars()
	avatars.rows[11] = customer.CustomerAvatar{ID: 42, RemoteCustomerID: 11}
	orders := newFakeOrders()

	if _, err := newOrderSync(orderFixture(), avatars, orders).SyncOrders(context.Background(), 30, nil, 10); err != nil {
		t.Fatal(err)
	}
	if got := orders.orders[1].CustomerAvatarID; !got.Valid || got.Int64 != 42 {
		t.Errorf("CustomerAvatarID = %+v, want 42", got)
	}
}

func TestSyncOrdersCustomerFilter(t *testing.T) {
	orders := newFakeOrders()
	only := int64(13)

	res, err := newOrderSync(orderFixture(), newFakeAvatars(), orders).SyncOrders(context.Background(), 30, &only, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrdersProcessed != 1 {
		t.Errorf("OrdersProcessed = %d, want 1", res.OrdersProcessed)
	}
	if _, ok := orders.orders[3]; !ok {
		t.Error("expected order 3 (customer 13) to be synced")
	}
}

func TestSyncOrdersLineFailureKeepsHeader(t *testing.T) {
	remote := orderFixture()
	remote.linesErr = errors.New("timeout")
	orders := newFakeOrders()

	res, err := newOrderSync(remote, newFakeAvatars(), orders).SyncOrders(context.Background(), 30, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrdersProcessed != 5 || res.OrderLinesProcessed != 0 {
		t.Errorf("unexpected counts %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Unit != "order_lines" {
		t.Errorf("expected one order_lines error, got %+v", res.Errors)
	}
	if res.Status != domain.StatusCompletedWithErrors {
		t.Errorf("Status = %s", res.Status)
	}
}

func TestSyncOrdersPerOrderFailures(t *testing.T) {
	orders := newFakeOrders()
	orders.failOrder = map[int64]error{3: errors.New("constraint violation")}

	res, err := newOrderSync(orderFixture(), newFakeAvatars(), orders).SyncOrders(context.Background(), 30, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrdersProcessed != 4 {
		t.Errorf("OrdersProcessed = %d, want 4", res.OrdersProcessed)
	}
	if len(res.Errors) != 1 || res.Errors[0].Unit != "order" || res.Errors[0].Key != "3" {
		t.Errorf("unexpected errors %+v", res.Errors)
	}
}

func TestSyncOrdersProductLookupIsBestEffort(t *testing.T) {
	remote := orderFixture()
	remote.productsErr = errors.New("access denied")
	orders := newFakeOrders()

	res, err := newOrderSync(remote, newFakeAvatars(), orders).SyncOrders(context.Background(), 30, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrderLinesProcessed != 4 || len(res.Errors) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	desk := orders.lines[orders.orders[1].ID][0]
	if desk.ProductCode.String != "DESK-01" || desk.ProductCategory.Valid {
		t.Errorf("expected parsed code without category, got %+v", desk)
	}
}

func TestSyncOrdersFirstPageFailureAborts(t *testing.T) {
	remote := orderFixture()
	remote.ordersErr = errors.New("connection refused")

	res, err := newOrderSync(remote, newFakeAvatars(), newFakeOrders()).SyncOrders(context.Background(), 30, nil, 2)
	if err == nil {
		t.Fatal("expected an error")
	}
	if res.Status != domain.StatusAborted || res.OrdersProcessed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSyncOrdersLaterBatchFailureContinues(t *testing.T) {
	remote := orderFixture()
	remote.failOffsets = map[int]error{2: errors.New("gateway timeout")}

	res, err := newOrderSync(remote, newFakeAvatars(), newFakeOrders()).SyncOrders(context.Background(), 30, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrdersProcessed != 3 {
		t.Errorf("OrdersProcessed = %d, want 3 (orders of the failed batch skipped)", res.OrdersProcessed)
	}
	if len(res.Errors) != 1 || res.Errors[0].Unit != "batch" || res.Errors[0].Key != "offset=2" {
		t.Errorf("unexpected errors %+v", res.Errors)
	}
}
