// internal/domain/customer/entity.go
package customer

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerAvatar is the local, derived summary of one remote customer.
// RemoteCustomerID is the unique key; rows are updated in place and never
// deleted by the sync path.
type CustomerAvatar struct {
	ID               int64 `json:"id" db:"id"`
	RemoteCustomerID int64 `json:"remote_customer_id" db:"remote_customer_id"`

	// Contact details mirrored from the ERP
	Name  sql.NullString `json:"name,omitempty" db:"name"`
	Email sql.NullString `json:"email,omitempty" db:"email"`
	Phone sql.NullString `json:"phone,omitempty" db:"phone"`
	City  sql.NullString `json:"city,omitempty" db:"city"`

	// Order metrics
	FirstOrderDate     sql.NullTime    `json:"first_order_date,omitempty" db:"first_order_date"`
	LastOrderDate      sql.NullTime    `json:"last_order_date,omitempty" db:"last_order_date"`
	TotalOrders        int             `json:"total_orders" db:"total_orders"`
	TotalRevenue       decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	AvgOrderValue      decimal.Decimal `json:"avg_order_value" db:"avg_order_value"`
	OrderFrequencyDays sql.NullInt32   `json:"order_frequency_days,omitempty" db:"order_frequency_days"`
	DaysSinceLastOrder int             `json:"days_since_last_order" db:"days_since_last_order"`

	// Scores, each in [0,100]
	HealthScore          int `json:"health_score" db:"health_score"`
	ChurnRiskScore       int `json:"churn_risk_score" db:"churn_risk_score"`
	UpsellPotentialScore int `json:"upsell_potential_score" db:"upsell_potential_score"`
	EngagementScore      int `json:"engagement_score" db:"engagement_score"`

	// Timestamps
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	LastSyncedAt time.Time `json:"last_synced_at" db:"last_synced_at"`

	// KeepContact makes an upsert leave the stored contact fields alone.
	// Name is used only when none is stored yet.
	KeepContact bool `json:"-" db:"-"`
}

type CustomerStats struct {
	TotalCustomers int64           `json:"total_customers"`
	AtRisk         int64           `json:"at_risk"`
	HighUpsell     int64           `json:"high_upsell"`
	AvgHealthScore float64         `json:"avg_health_score"`
	AvgChurnScore  float64         `json:"avg_churn_score"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty"`
}

// AtRiskChurnScore is the churn score from which a customer counts as at risk.
const AtRiskChurnScore = 70

// HighUpsellScore is the upsell score from which a customer counts as a lead.
const HighUpsellScore = 60
