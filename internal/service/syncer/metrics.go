// internal/service/syncer/metrics.go
package syncer

import (
	"sort"
	"time"

	erpdomain "erp-sync-service/internal/domain/erp"
	"erp-sync-service/internal/service/scoring"

	"github.com/shopspring/decimal"
)

// CustomerMetrics are the order aggregates of one customer.
type CustomerMetrics struct {
	FirstOrderDate     time.Time
	LastOrderDate      time.Time
	TotalOrders        int
	TotalRevenue       decimal.Decimal
	AvgOrderValue      decimal.Decimal
	OrderFrequencyDays *int // nil with fewer than two orders
	DaysSinceLastOrder int
}

// ScoringInput converts the aggregates to calculator input.
func (m CustomerMetrics) ScoringInput() scoring.Metrics {
	return scoring.Metrics{
		DaysSinceLastOrder: m.DaysSinceLastOrder,
		OrderFrequencyDays: m.OrderFrequencyDays,
		TotalOrders:        m.TotalOrders,
		AvgOrderValue:      m.AvgOrderValue.InexactFloat64(),
		TotalRevenue:       m.TotalRevenue.InexactFloat64(),
	}
}

// ComputeMetrics aggregates dated orders of a single customer. Day counts are
// whole calendar days in UTC. orders must be non-empty.
func ComputeMetrics(orders []erpdomain.SaleOrder, now time.Time) CustomerMetrics {
	sorted := make([]erpdomain.SaleOrder, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DateOrder.Time.Equal(sorted[j].DateOrder.Time) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].DateOrder.Time.Before(sorted[j].DateOrder.Time)
	})

	m := CustomerMetrics{
		FirstOrderDate: sorted[0].DateOrder.Time,
		LastOrderDate:  sorted[len(sorted)-1].DateOrder.Time,
		TotalOrders:    len(sorted),
		TotalRevenue:   decimal.Zero,
	}
	for _, o := range sorted {
		m.TotalRevenue = m.TotalRevenue.Add(o.AmountTotal)
	}
	m.AvgOrderValue = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalOrders))).Round(2)

	if m.TotalOrders >= 2 {
		freq := daysBetween(m.FirstOrderDate, m.LastOrderDate) / (m.TotalOrders - 1)
		m.OrderFrequencyDays = &freq
	}

	if d := daysBetween(m.LastOrderDate, now); d > 0 {
		m.DaysSinceLastOrder = d
	}

	return m
}

func dayOf(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dayOf(to).Sub(dayOf(from)).Hours() / 24)
}
