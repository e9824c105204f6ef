package dashboard

import (
	"math"
	"strconv"
	"strings"

	"github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"
	"github.com/shopspring/decimal"
)

// ParseInt reads an integer metric. Empty or malformed input yields 0.
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// integer metrics occasionally arrive as "12.0"
	f := ParseFloat(s)
	if f >= float64(math.MaxInt64) || f <= float64(math.MinInt64) {
		return 0
	}
	return int(f)
}

// ParseFloat reads a float metric. Empty, malformed, NaN or infinite input yields 0.
func ParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseDecimal reads a currency metric. Empty or malformed input yields zero.
func ParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// GrowthPercent returns the percentage change from previous to current, or 0 when previous is not positive.
func GrowthPercent(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

// Percent turns a 0..1 fraction into a percentage.
func Percent(fraction float64) float64 {
	return round2(fraction * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func metric(row ga4.ReportRow, i int) string {
	if i < len(row.MetricValues) {
		return row.MetricValues[i]
	}
	return ""
}

func dimension(row ga4.ReportRow, i int) string {
	if i < len(row.DimensionValues) {
		return row.DimensionValues[i]
	}
	return ""
}

// firstRow returns the totals row of an undimensioned report, or an empty row.
func firstRow(rows []ga4.ReportRow) ga4.ReportRow {
	if len(rows) == 0 {
		return ga4.ReportRow{}
	}
	return rows[0]
}
