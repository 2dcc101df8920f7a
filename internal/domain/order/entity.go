// internal/domain/order/entity.go
package order

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is one remote sale order, keyed by RemoteOrderID.
// CustomerAvatarID is null until the customer itself has been synced.
type OrderRecord struct {
	ID               int64           `json:"id" db:"id"`
	RemoteOrderID    int64           `json:"remote_order_id" db:"remote_order_id"`
	CustomerAvatarID sql.NullInt64   `json:"customer_avatar_id,omitempty" db:"customer_avatar_id"`
	RemoteCustomerID sql.NullInt64   `json:"remote_customer_id,omitempty" db:"remote_customer_id"`
	OrderName        string          `json:"order_name" db:"order_name"`
	OrderDate        sql.NullTime    `json:"order_date,omitempty" db:"order_date"`
	AmountTotal      decimal.Decimal `json:"amount_total" db:"amount_total"`
	State            string          `json:"state" db:"state"`
	SalespersonID    sql.NullInt64   `json:"salesperson_id,omitempty" db:"salesperson_id"`
	SalespersonName  sql.NullString  `json:"salesperson_name,omitempty" db:"salesperson_name"`
	LastSyncedAt     time.Time       `json:"last_synced_at" db:"last_synced_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderLineRecord is a child of OrderRecord, recreated on every sync of its parent.
type OrderLineRecord struct {
	ID              int64           `json:"id" db:"id"`
	OrderID         int64           `json:"order_id" db:"order_id"`
	RemoteLineID    int64           `json:"remote_line_id" db:"remote_line_id"`
	ProductID       sql.NullInt64   `json:"product_id,omitempty" db:"product_id"`
	ProductName     string          `json:"product_name" db:"product_name"`
	ProductCode     sql.NullString  `json:"product_code,omitempty" db:"product_code"`
	ProductCategory sql.NullString  `json:"product_category,omitempty" db:"product_category"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
