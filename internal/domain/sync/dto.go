// internal/domain/sync/dto.go
package sync

type CustomerSyncRequest struct {
	WindowMonths *int `json:"window_months" binding:"omitempty,min=1,max=120"`
	MaxCustomers *int `json:"max_customers" binding:"omitempty,min=0"`
}

type OrderSyncRequest struct {
	DaysBack   *int   `json:"days_back" binding:"omitempty,min=1,max=3650"`
	CustomerID *int64 `json:"customer_id" binding:"omitempty,min=1"`
	BatchSize  *int   `json:"batch_size" binding:"omitempty,min=1,max=1000"`
}

// CustomerSyncParams are the resolved inputs of a customer sync.
type CustomerSyncParams struct {
	WindowMonths int
	MaxCustomers int
	TriggeredBy  *int64
}

// OrderSyncParams are the resolved inputs of an order sync.
type OrderSyncParams struct {
	DaysBack    int
	CustomerID  *int64
	BatchSize   int
	TriggeredBy *int64
}
