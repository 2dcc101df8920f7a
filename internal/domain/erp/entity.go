// internal/domain/erp/entity.go
package erp

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Models consumed from the ERP.
const (
	ModelPartner      = "res.partner"
	ModelSaleOrder    = "sale.order"
	ModelSaleLine     = "sale.order.line"
	ModelProduct      = "product.product"
	ModelPickingBatch = "stock.picking.batch"
	ModelMoveLine     = "stock.move.line"
)

// Sale order states. Only confirmed and done orders count toward metrics.
const (
	OrderStateDraft     = "draft"
	OrderStateSent      = "sent"
	OrderStateConfirmed = "sale"
	OrderStateDone      = "done"
	OrderStateCancel    = "cancel"
)

// QualifyingOrderStates is the business filter applied to every order fetch.
var QualifyingOrderStates = []string{OrderStateConfirmed, OrderStateDone}

type Partner struct {
	ID    int64 `json:"id"`
	Name  Text  `json:"name"`
	Email Text  `json:"email"`
	Phone Text  `json:"phone"`
	City  Text  `json:"city"`
	Ref   Text  `json:"ref"`
}

var PartnerFields = []string{"id", "name", "email", "phone", "city", "ref"}

type SaleOrder struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	PartnerID   Many2One        `json:"partner_id"`
	DateOrder   DateTime        `json:"date_order"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	State       string          `json:"state"`
	UserID      Many2One        `json:"user_id"`
	OrderLine   []int64         `json:"order_line"`
}

var SaleOrderFields = []string{"id", "name", "partner_id", "date_order", "amount_total", "state", "user_id", "order_line"}

type SaleOrderLine struct {
	ID            int64           `json:"id"`
	OrderID       Many2One        `json:"order_id"`
	ProductID     Many2One        `json:"product_id"`
	Name          Text            `json:"name"`
	ProductUOMQty decimal.Decimal `json:"product_uom_qty"`
	PriceUnit     decimal.Decimal `json:"price_unit"`
	PriceSubtotal decimal.Decimal `json:"price_subtotal"`
}

var SaleOrderLineFields = []string{"id", "order_id", "product_id", "name", "product_uom_qty", "price_unit", "price_subtotal"}

type Product struct {
	ID          int64    `json:"id"`
	DisplayName Text     `json:"display_name"`
	DefaultCode Text     `json:"default_code"`
	CategID     Many2One `json:"categ_id"`
}

var ProductFields = []string{"id", "display_name", "default_code", "categ_id"}

type PickingBatch struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	UserID        Many2One `json:"user_id"`
	ScheduledDate DateTime `json:"scheduled_date"`
	PickingIDs    []int64  `json:"picking_ids"`
}

var PickingBatchFields = []string{"id", "name", "state", "user_id", "scheduled_date", "picking_ids"}

type MoveLine struct {
	ID           int64           `json:"id"`
	PickingID    Many2One        `json:"picking_id"`
	ProductID    Many2One        `json:"product_id"`
	LotID        Many2One        `json:"lot_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	LocationID   Many2One        `json:"location_id"`
	LocationDest Many2One        `json:"location_dest_id"`
	State        string          `json:"state"`
}

var MoveLineFields = []string{"id", "picking_id", "product_id", "lot_id", "quantity", "location_id", "location_dest_id", "state"}

var productCodePattern = regexp.MustCompile(`^\s*\[([^\]]+)\]`)

// ParseProductCode extracts the bracketed internal reference from a product
// display name such as "[DESK-01] Office desk". Returns "" when absent.
func ParseProductCode(displayName string) string {
	m := productCodePattern.FindStringSubmatch(displayName)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
