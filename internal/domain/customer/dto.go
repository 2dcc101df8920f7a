// internal/domain/customer/dto.go
package customer

import "erp-sync-service/internal/domain/order"

type CustomerListFilters struct {
	Search       string `form:"search"` // name, email, phone, city
	MinChurnRisk *int   `form:"min_churn" binding:"omitempty,min=0,max=100"`
	MaxHealth    *int   `form:"max_health" binding:"omitempty,min=0,max=100"`
	MinUpsell    *int   `form:"min_upsell" binding:"omitempty,min=0,max=100"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy       string `form:"sort_by"` // health_score, churn_risk_score, upsell_potential_score, total_revenue, last_order_date
	SortOrder    string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type CustomerListResponse struct {
	Customers  []CustomerAvatar `json:"customers"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// CustomerDetail is one avatar with its most recent synced orders.
type CustomerDetail struct {
	Avatar       *CustomerAvatar `json:"avatar"`
	RecentOrders []RecentOrder   `json:"recent_orders"`
}

// RecentOrder is a stored order header with its line items.
type RecentOrder struct {
	order.OrderRecord
	Lines []order.OrderLineRecord `json:"lines"`
}
