// Package scoring derives bounded customer heuristics from order metrics.
// Everything here is pure: no I/O, no clock, no shared state.
package scoring

import "math"

// Metrics are the inputs of every score.
type Metrics struct {
	DaysSinceLastOrder int
	OrderFrequencyDays *int // nil for single-order customers
	TotalOrders        int
	AvgOrderValue      float64
	TotalRevenue       float64
}

// Scores are integers in [0,100].
type Scores struct {
	Health          int `json:"health_score"`
	ChurnRisk       int `json:"churn_risk_score"`
	UpsellPotential int `json:"upsell_potential_score"`
	Engagement      int `json:"engagement_score"`
}

// Calculator is the scoring strategy used by the customer sync.
type Calculator interface {
	Score(m Metrics) Scores
}

// Thresholds tune the heuristic. Zero values fall back to defaults.
type Thresholds struct {
	ChurnCadenceMultiplier float64 `yaml:"churn_cadence_multiplier"`
	ChurnDaysDivisor       float64 `yaml:"churn_days_divisor"`
	EngagementDaysDivisor  float64 `yaml:"engagement_days_divisor"`
	EngagementPerOrder     int     `yaml:"engagement_per_order"`
	EngagementOrderCap     int     `yaml:"engagement_order_cap"`

	UpsellAvgOrderValue float64 `yaml:"upsell_avg_order_value"`
	UpsellMinOrders     int     `yaml:"upsell_min_orders"`
	UpsellRevenue       float64 `yaml:"upsell_revenue"`
	UpsellMaxChurn      int     `yaml:"upsell_max_churn"`
}

// DefaultThresholds are the production heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChurnCadenceMultiplier: 50,
		ChurnDaysDivisor:       2,
		EngagementDaysDivisor:  3,
		EngagementPerOrder:     5,
		EngagementOrderCap:     30,
		UpsellAvgOrderValue:    500,
		UpsellMinOrders:        5,
		UpsellRevenue:          5000,
		UpsellMaxChurn:         30,
	}
}

// Merge fills zero fields of t from the defaults.
func (t Thresholds) Merge() Thresholds {
	d := DefaultThresholds()
	if t.ChurnCadenceMultiplier <= 0 {
		t.ChurnCadenceMultiplier = d.ChurnCadenceMultiplier
	}
	if t.ChurnDaysDivisor <= 0 {
		t.ChurnDaysDivisor = d.ChurnDaysDivisor
	}
	if t.EngagementDaysDivisor <= 0 {
		t.EngagementDaysDivisor = d.EngagementDaysDivisor
	}
	if t.EngagementPerOrder <= 0 {
		t.EngagementPerOrder = d.EngagementPerOrder
	}
	if t.EngagementOrderCap <= 0 {
		t.EngagementOrderCap = d.EngagementOrderCap
	}
	if t.UpsellAvgOrderValue <= 0 {
		t.UpsellAvgOrderValue = d.UpsellAvgOrderValue
	}
	if t.UpsellMinOrders <= 0 {
		t.UpsellMinOrders = d.UpsellMinOrders
	}
	if t.UpsellRevenue <= 0 {
		t.UpsellRevenue = d.UpsellRevenue
	}
	if t.UpsellMaxChurn <= 0 {
		t.UpsellMaxChurn = d.UpsellMaxChurn
	}
	return t
}

// Heuristic is the default Calculator.
type Heuristic struct {
	t Thresholds
}

func NewHeuristic(t Thresholds) *Heuristic {
	return &Heuristic{t: t.Merge()}
}

func (h *Heuristic) Score(m Metrics) Scores {
	churn := h.ChurnRisk(m.DaysSinceLastOrder, m.OrderFrequencyDays)
	engagement := h.Engagement(m.DaysSinceLastOrder, m.TotalOrders)
	return Scores{
		ChurnRisk:       churn,
		Engagement:      engagement,
		Health:          Health(churn, engagement),
		UpsellPotential: h.UpsellPotential(m.AvgOrderValue, m.TotalOrders, m.TotalRevenue, churn),
	}
}

// ChurnRisk scales with how far past their own cadence a customer is; single
// order customers fall back to absolute days.
func (h *Heuristic) ChurnRisk(daysSinceLastOrder int, orderFrequencyDays *int) int {
	days := float64(nonNegative(daysSinceLastOrder))
	if orderFrequencyDays != nil && *orderFrequencyDays > 0 {
		return Clamp(floorInt(days/float64(*orderFrequencyDays)*h.t.ChurnCadenceMultiplier), 0, 100)
	}
	return Clamp(floorInt(days/h.t.ChurnDaysDivisor), 0, 100)
}

func (h *Heuristic) Engagement(daysSinceLastOrder, totalOrders int) int {
	decay := floorInt(float64(nonNegative(daysSinceLastOrder)) / h.t.EngagementDaysDivisor)
	bonus := min(h.t.EngagementOrderCap, nonNegative(totalOrders)*h.t.EngagementPerOrder)
	return Clamp(100-decay+bonus, 0, 100)
}

func (h *Heuristic) UpsellPotential(avgOrderValue float64, totalOrders int, totalRevenue float64, churnRisk int) int {
	score := 0
	if finite(avgOrderValue) > h.t.UpsellAvgOrderValue {
		score += 30
	}
	if totalOrders > h.t.UpsellMinOrders {
		score += 30
	}
	if finite(totalRevenue) > h.t.UpsellRevenue {
		score += 20
	}
	if churnRisk < h.t.UpsellMaxChurn {
		score += 20
	}
	return Clamp(score, 0, 100)
}

// Health balances risk against activity.
func Health(churnRisk, engagement int) int {
	return Clamp(floorDiv(100-churnRisk+engagement, 2), 0, 100)
}

var defaultHeuristic = NewHeuristic(DefaultThresholds())

// ChurnRisk with default thresholds.
func ChurnRisk(daysSinceLastOrder int, orderFrequencyDays *int) int {
	return defaultHeuristic.ChurnRisk(daysSinceLastOrder, orderFrequencyDays)
}

// Engagement with default thresholds.
func Engagement(daysSinceLastOrder, totalOrders int) int {
	return defaultHeuristic.Engagement(daysSinceLastOrder, totalOrders)
}

// UpsellPotential with default thresholds.
func UpsellPotential(avgOrderValue float64, totalOrders int, totalRevenue float64, churnRisk int) int {
	return defaultHeuristic.UpsellPotential(avgOrderValue, totalOrders, totalRevenue, churnRisk)
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorInt(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(math.Floor(f))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
