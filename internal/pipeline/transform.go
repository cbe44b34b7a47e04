package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/etlboard/etlboard/internal/dataset"
)

// Quality flag kinds set on rows that fail validation.
const (
	FlagInvalidEmail    = "invalid_email"
	FlagInvalidPrice    = "invalid_price"
	FlagInvalidQuantity = "invalid_quantity"
	FlagInvalidDate     = "invalid_date"
)

// Price tier labels, from the fixed tier boundaries in tierFor.
const (
	TierBudget   = "Budget"
	TierMidRange = "Mid-range"
	TierPremium  = "Premium"
	TierLuxury   = "Luxury"
)

// Customer segment labels, from lifetime spend across the current dataset.
const (
	SegmentVIP     = "VIP"
	SegmentRegular = "Regular"
	SegmentNew     = "New"
)

// Customer segment spend thresholds.
const (
	vipThreshold     = 1000.0
	regularThreshold = 300.0
)

// Row is one transformed, enriched order record.
type Row struct {
	dataset.Order

	// QualityFlag names the first validation failure, or "" when clean.
	QualityFlag string `json:"quality_flag,omitempty"`

	PriceTier       string  `json:"price_tier,omitempty"`
	Revenue         float64 `json:"revenue"`
	Month           string  `json:"month,omitempty"`   // "2026-03"
	Quarter         string  `json:"quarter,omitempty"` // "2026Q1"
	CustomerSegment string  `json:"customer_segment"`
	DaysSinceOrder  int     `json:"days_since_order"`
	WeekendOrder    bool    `json:"weekend_order"`
}

// Clean reports whether the row passed all validation checks.
func (r Row) Clean() bool { return r.QualityFlag == "" }

// Issue is one kind of validation failure and how many rows it affected.
type Issue struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// QualityReport summarizes validation results for one transform run.
type QualityReport struct {
	TotalRecords int     `json:"total_records"`
	CleanRecords int     `json:"clean_records"`
	ErrorRecords int     `json:"error_records"`
	Score        float64 `json:"score"` // clean/total in percent
	Issues       []Issue `json:"issues"`
}

// IssueCount returns the count for the given issue kind, or 0.
func (r *QualityReport) IssueCount(kind string) int {
	for _, is := range r.Issues {
		if is.Kind == kind {
			return is.Count
		}
	}
	return 0
}

// transform validates and enriches raw orders. now anchors the derived
// days-since-order values.
func transform(raw []dataset.Order, now time.Time) ([]Row, *QualityReport) {
	rows := make([]Row, len(raw))
	issueCounts := map[string]int{}

	// First pass: validation, date-derived fields, tiers.
	for i, o := range raw {
		row := Row{Order: o, Revenue: o.TotalAmount}

		orderTime, dateErr := dataset.ParseDate(o.OrderDate)

		// Every failed check counts toward its issue total; the row's own
		// flag names the first failure only.
		checks := []struct {
			failed bool
			kind   string
		}{
			{!strings.Contains(o.CustomerEmail, "@"), FlagInvalidEmail},
			{o.Price <= 0, FlagInvalidPrice},
			{o.Quantity <= 0, FlagInvalidQuantity},
			{dateErr != nil, FlagInvalidDate},
		}
		for _, c := range checks {
			if !c.failed {
				continue
			}
			issueCounts[c.kind]++
			if row.QualityFlag == "" {
				row.QualityFlag = c.kind
			}
		}

		if o.Price > 0 {
			row.PriceTier = tierFor(o.Price)
		}
		if dateErr == nil {
			row.Month = orderTime.Format("2006-01")
			row.Quarter = quarterOf(orderTime)
			row.DaysSinceOrder = int(now.Sub(orderTime).Hours() / 24)
			wd := orderTime.Weekday()
			row.WeekendOrder = wd == time.Saturday || wd == time.Sunday
		}

		rows[i] = row
	}

	// Second pass: customer segmentation from lifetime spend across the
	// whole dataset, flagged rows included.
	totals := map[string]float64{}
	for _, r := range rows {
		totals[r.CustomerID] += r.TotalAmount
	}
	for i := range rows {
		rows[i].CustomerSegment = segmentFor(totals[rows[i].CustomerID])
	}

	report := &QualityReport{TotalRecords: len(rows)}
	for _, r := range rows {
		if r.Clean() {
			report.CleanRecords++
		}
	}
	report.ErrorRecords = report.TotalRecords - report.CleanRecords
	if report.TotalRecords > 0 {
		report.Score = math.Round(float64(report.CleanRecords)/float64(report.TotalRecords)*10000) / 100
	}
	// Stable issue order: worst offenders first, then by kind.
	for _, kind := range []string{FlagInvalidEmail, FlagInvalidPrice, FlagInvalidQuantity, FlagInvalidDate} {
		if n := issueCounts[kind]; n > 0 {
			report.Issues = append(report.Issues, Issue{Kind: kind, Count: n})
		}
	}

	return rows, report
}

// tierFor buckets a positive price into the fixed demo tiers.
func tierFor(price float64) string {
	switch {
	case price < 50:
		return TierBudget
	case price < 200:
		return TierMidRange
	case price < 500:
		return TierPremium
	default:
		return TierLuxury
	}
}

// segmentFor buckets a customer's dataset-lifetime spend.
func segmentFor(total float64) string {
	switch {
	case total > vipThreshold:
		return SegmentVIP
	case total > regularThreshold:
		return SegmentRegular
	default:
		return SegmentNew
	}
}

func quarterOf(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", t.Year(), q)
}
