package syncer

import (
	"testing"

	erpdomain "erp-sync-service/internal/domain/erp"
	"erp-sync-service/internal/service/scoring"

	"github.com/shopspring/decimal"
)

func TestComputeMetricsTwoOrders(t *testing.T) {
	m := ComputeMetrics([]erpdomain.SaleOrder{
		saleOrder(2, 7, "2024-02-01", 150),
		saleOrder(1, 7, "2024-01-01", 100),
	}, testNow)

	if m.TotalOrders != 2 {
		t.Errorf("TotalOrders = %d, want 2", m.TotalOrders)
	}
	if !m.TotalRevenue.Equal(decimal.NewFromInt(250)) {
		t.Errorf("TotalRevenue = %s, want 250", m.TotalRevenue)
	}
	if !m.AvgOrderValue.Equal(decimal.NewFromInt(125)) {
		t.Errorf("AvgOrderValue = %s, want 125", m.AvgOrderValue)
	}
	if m.OrderFrequencyDays == nil || *m.OrderFrequencyDays != 31 {
		t.Errorf("OrderFrequencyDays = %v, want 31", m.OrderFrequencyDays)
	}
	if m.FirstOrderDate.Day() != 1 || m.FirstOrderDate.Month() != 1 {
		t.Errorf("unexpected first order date %v", m.FirstOrderDate)
	}
	// 2024 is a leap year: Feb 1 to Mar 1 is 29 days
	if m.DaysSinceLastOrder != 29 {
		t.Errorf("DaysSinceLastOrder = %d, want 29", m.DaysSinceLastOrder)
	}
}

func TestComputeMetricsSingleOrder(t *testing.T) {
	m := ComputeMetrics([]erpdomain.SaleOrder{saleOrder(1, 3, "2024-01-31", 80)}, testNow)

	if m.OrderFrequencyDays != nil {
		t.Fatalf("expected no frequency for a single order, got %d", *m.OrderFrequencyDays)
	}
	// absolute-days branch: min(100, floor(30/2))
	if got := scoring.ChurnRisk(m.DaysSinceLastOrder, m.OrderFrequencyDays); got != 15 {
		t.Errorf("ChurnRisk = %d, want 15 (days=%d)", got, m.DaysSinceLastOrder)
	}
}

func TestComputeMetricsAverageGapFloors(t *testing.T) {
	m := ComputeMetrics([]erpdomain.SaleOrder{
		saleOrder(1, 1, "2024-01-01", 10),
		saleOrder(2, 1, "2024-01-11", 10),
		saleOrder(3, 1, "2024-01-16", 10),
	}, testNow)

	// gaps 10 and 5 average to 7.5
	if m.OrderFrequencyDays == nil || *m.OrderFrequencyDays != 7 {
		t.Errorf("OrderFrequencyDays = %v, want 7", m.OrderFrequencyDays)
	}
}

func TestComputeMetricsFutureOrderClampsRecency(t *testing.T) {
	m := ComputeMetrics([]erpdomain.SaleOrder{saleOrder(1, 1, "2024-03-05", 10)}, testNow)
	if m.DaysSinceLastOrder != 0 {
		t.Errorf("DaysSinceLastOrder = %d, want 0", m.DaysSinceLastOrder)
	}
}
