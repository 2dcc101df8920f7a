// internal/domain/sync/entity.go
package sync

import (
	"database/sql"
	"time"
)

type Kind string

const (
	KindCustomers Kind = "customers"
	KindOrders    Kind = "orders"
)

type Status string

const (
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusAborted             Status = "aborted"
)

// UnitError records a failure isolated to one customer, order or batch.
type UnitError struct {
	Unit    string `json:"unit"` // customer, order, order_lines, batch
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Outcome is shared by both result types.
type Outcome struct {
	RunID       string      `json:"run_id,omitempty"`
	Status      Status      `json:"status"`
	Errors      []UnitError `json:"errors"`
	FatalError  string      `json:"fatal_error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	DurationMs  int64       `json:"duration_ms"`
}

// Complete stamps the end of a run that got past its initial fetch.
func (o *Outcome) Complete(at time.Time) {
	o.CompletedAt = at
	o.DurationMs = at.Sub(o.StartedAt).Milliseconds()
	if len(o.Errors) > 0 {
		o.Status = StatusCompletedWithErrors
	} else {
		o.Status = StatusCompleted
	}
}

// Abort stamps a run that stopped early: an initial fetch failed or the
// context was cancelled mid-run. Unit errors gathered so far are kept.
func (o *Outcome) Abort(at time.Time, err error) {
	o.CompletedAt = at
	o.DurationMs = at.Sub(o.StartedAt).Milliseconds()
	o.Status = StatusAborted
	o.FatalError = err.Error()
}

type CustomerSyncResult struct {
	Outcome
	Synced  int `json:"synced"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"` // beyond max_customers
}

func NewCustomerSyncResult(startedAt time.Time) *CustomerSyncResult {
	return &CustomerSyncResult{Outcome: Outcome{Status: StatusRunning, StartedAt: startedAt, Errors: []UnitError{}}}
}

func (r *CustomerSyncResult) Counters() map[string]int {
	return map[string]int{
		"synced":  r.Synced,
		"created": r.Created,
		"updated": r.Updated,
		"skipped": r.Skipped,
		"errors":  len(r.Errors),
	}
}

type OrderSyncResult struct {
	Outcome
	OrdersProcessed     int `json:"orders_processed"`
	OrdersInserted      int `json:"orders_inserted"`
	OrdersUpdated       int `json:"orders_updated"`
	OrderLinesProcessed int `json:"order_lines_processed"`
	Batches             int `json:"batches"`
}

func NewOrderSyncResult(startedAt time.Time) *OrderSyncResult {
	return &OrderSyncResult{Outcome: Outcome{Status: StatusRunning, StartedAt: startedAt, Errors: []UnitError{}}}
}

func (r *OrderSyncResult) Counters() map[string]int {
	return map[string]int{
		"orders_processed":      r.OrdersProcessed,
		"orders_inserted":       r.OrdersInserted,
		"orders_updated":        r.OrdersUpdated,
		"order_lines_processed": r.OrderLinesProcessed,
		"batches":               r.Batches,
		"errors":                len(r.Errors),
	}
}

// SyncRun is the durable history row of one run.
type SyncRun struct {
	ID           string                 `json:"id" db:"id"`
	Kind         Kind                   `json:"kind" db:"kind"`
	Status       Status                 `json:"status" db:"status"`
	Params       map[string]interface{} `json:"params,omitempty" db:"params"`
	Counters     map[string]int         `json:"counters,omitempty" db:"counters"`
	Errors       []UnitError            `json:"errors,omitempty" db:"errors"`
	ErrorMessage sql.NullString         `json:"error_message,omitempty" db:"error_message"`
	TriggeredBy  sql.NullInt64          `json:"triggered_by,omitempty" db:"triggered_by"`
	StartedAt    time.Time              `json:"started_at" db:"started_at"`
	CompletedAt  sql.NullTime           `json:"completed_at,omitempty" db:"completed_at"`
}
