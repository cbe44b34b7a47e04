package pipeline

import (
	"math"
	"sort"
)

// Insights is the load stage's output: the headline numbers shown at the top
// of the dashboard.
type Insights struct {
	TotalRevenue     float64 `json:"total_revenue"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	TotalOrders      int     `json:"total_orders"`
	UniqueCustomers  int     `json:"unique_customers"`
	TopCategory      string  `json:"top_category"`
	BestRegion       string  `json:"best_region"`
	MonthlyGrowthPct float64 `json:"monthly_growth_pct"`
}

// analyze derives the headline insights from transformed rows.
func analyze(rows []Row) *Insights {
	ins := &Insights{TotalOrders: len(rows)}

	customers := map[string]struct{}{}
	byCategory := map[string]float64{}
	byRegion := map[string]float64{}
	byMonth := map[string]float64{}

	for _, r := range rows {
		ins.TotalRevenue += r.Revenue
		customers[r.CustomerID] = struct{}{}
		byCategory[r.Category] += r.Revenue
		byRegion[r.Region] += r.Revenue
		if r.Month != "" {
			byMonth[r.Month] += r.Revenue
		}
	}

	ins.TotalRevenue = round2(ins.TotalRevenue)
	ins.UniqueCustomers = len(customers)
	if len(rows) > 0 {
		ins.AvgOrderValue = round2(ins.TotalRevenue / float64(len(rows)))
	}
	ins.TopCategory = argmax(byCategory)
	ins.BestRegion = argmax(byRegion)
	ins.MonthlyGrowthPct = monthlyGrowth(byMonth)

	return ins
}

// monthlyGrowth is the percent change between the two most recent months'
// revenue. 0 when fewer than two months are present.
func monthlyGrowth(byMonth map[string]float64) float64 {
	if len(byMonth) < 2 {
		return 0
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	prev := byMonth[months[len(months)-2]]
	curr := byMonth[months[len(months)-1]]
	if prev == 0 {
		return 0
	}
	return round2((curr - prev) / prev * 100)
}

// argmax returns the key with the largest value; ties break toward the
// lexicographically smaller key so results are deterministic.
func argmax(m map[string]float64) string {
	var best string
	bestV := math.Inf(-1)
	for k, v := range m {
		if v > bestV || (v == bestV && k < best) {
			best, bestV = k, v
		}
	}
	return best
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
