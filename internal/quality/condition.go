package quality

import (
	"strconv"
	"strings"

	"github.com/etlboard/etlboard/internal/pipeline"
)

// evalCondition evaluates a rule condition string against a QualityReport.
//
// Supported expressions (field operator value):
//
//	quality_score < 90
//	total_records < 100
//	clean_records < 900
//	error_records > 25
//	invalid_emails > 0
//	invalid_prices > 0
//	invalid_quantities > 0
//	invalid_dates > 0
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, report *pipeline.QualityReport) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}

	var value float64
	switch field {
	case "quality_score":
		value = report.Score
	case "total_records":
		value = float64(report.TotalRecords)
	case "clean_records":
		value = float64(report.CleanRecords)
	case "error_records":
		value = float64(report.ErrorRecords)
	case "invalid_emails":
		value = float64(report.IssueCount(pipeline.FlagInvalidEmail))
	case "invalid_prices":
		value = float64(report.IssueCount(pipeline.FlagInvalidPrice))
	case "invalid_quantities":
		value = float64(report.IssueCount(pipeline.FlagInvalidQuantity))
	case "invalid_dates":
		value = float64(report.IssueCount(pipeline.FlagInvalidDate))
	default:
		return false, 0
	}

	switch op {
	case ">":
		return value > threshold, value
	case ">=":
		return value >= threshold, value
	case "<":
		return value < threshold, value
	case "<=":
		return value <= threshold, value
	case "==":
		return value == threshold, value
	default:
		return false, 0
	}
}
