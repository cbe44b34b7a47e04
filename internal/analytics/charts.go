package analytics

import (
	"math"
	"sort"

	"github.com/etlboard/etlboard/internal/pipeline"
)

// NameValue is one labelled value in a pie or bar series.
type NameValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MonthPoint is one point in the monthly revenue trend line.
type MonthPoint struct {
	Month   string  `json:"month"` // "2026-03"
	Revenue float64 `json:"revenue"`
}

// RegionStats is one row of the regional performance table.
type RegionStats struct {
	Region          string  `json:"region"`
	Revenue         float64 `json:"revenue"`
	Orders          int     `json:"orders"`
	UniqueCustomers int     `json:"unique_customers"`
	AvgOrderValue   float64 `json:"avg_order_value"`
}

// CategoryRevenue sums revenue per category, sorted by revenue descending.
func CategoryRevenue(rows []pipeline.Row) []NameValue {
	sums := map[string]float64{}
	for _, r := range rows {
		sums[r.Category] += r.Revenue
	}
	return sortedByValue(sums)
}

// MonthlyRevenue sums revenue per month in chronological order. Rows without
// a parseable order date carry no month and are skipped.
func MonthlyRevenue(rows []pipeline.Row) []MonthPoint {
	sums := map[string]float64{}
	for _, r := range rows {
		if r.Month != "" {
			sums[r.Month] += r.Revenue
		}
	}
	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthPoint, 0, len(months))
	for _, m := range months {
		out = append(out, MonthPoint{Month: m, Revenue: round2(sums[m])})
	}
	return out
}

// RegionPerformance aggregates per-region revenue, order count, unique
// customers and average order value, sorted by revenue descending.
func RegionPerformance(rows []pipeline.Row) []RegionStats {
	type acc struct {
		revenue   float64
		orders    int
		customers map[string]struct{}
	}
	accs := map[string]*acc{}
	for _, r := range rows {
		a, ok := accs[r.Region]
		if !ok {
			a = &acc{customers: map[string]struct{}{}}
			accs[r.Region] = a
		}
		a.revenue += r.Revenue
		a.orders++
		a.customers[r.CustomerID] = struct{}{}
	}

	out := make([]RegionStats, 0, len(accs))
	for region, a := range accs {
		rs := RegionStats{
			Region:          region,
			Revenue:         round2(a.revenue),
			Orders:          a.orders,
			UniqueCustomers: len(a.customers),
		}
		if a.orders > 0 {
			rs.AvgOrderValue = round2(a.revenue / float64(a.orders))
		}
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// SegmentCounts counts orders per customer segment in fixed VIP → Regular →
// New order.
func SegmentCounts(rows []pipeline.Row) []NameValue {
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.CustomerSegment]++
	}
	out := make([]NameValue, 0, 3)
	for _, seg := range []string{pipeline.SegmentVIP, pipeline.SegmentRegular, pipeline.SegmentNew} {
		out = append(out, NameValue{Name: seg, Value: float64(counts[seg])})
	}
	return out
}

// TierRevenue sums revenue per price tier in fixed Budget → Luxury order.
// Rows without a tier (invalid price) are grouped under "Unpriced".
func TierRevenue(rows []pipeline.Row) []NameValue {
	sums := map[string]float64{}
	for _, r := range rows {
		tier := r.PriceTier
		if tier == "" {
			tier = "Unpriced"
		}
		sums[tier] += r.Revenue
	}
	out := make([]NameValue, 0, 5)
	for _, tier := range []string{pipeline.TierBudget, pipeline.TierMidRange, pipeline.TierPremium, pipeline.TierLuxury, "Unpriced"} {
		if v, ok := sums[tier]; ok {
			out = append(out, NameValue{Name: tier, Value: round2(v)})
		}
	}
	return out
}

// StatusCounts counts orders per order status, sorted by count descending.
func StatusCounts(rows []pipeline.Row) []NameValue {
	counts := map[string]float64{}
	for _, r := range rows {
		counts[r.OrderStatus]++
	}
	return sortedByValue(counts)
}

// sortedByValue converts a sum map to a slice sorted by value descending,
// ties broken by name for deterministic output.
func sortedByValue(sums map[string]float64) []NameValue {
	out := make([]NameValue, 0, len(sums))
	for name, v := range sums {
		out = append(out, NameValue{Name: name, Value: round2(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
