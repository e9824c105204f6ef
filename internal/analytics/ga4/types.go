package ga4

import (
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

// DateRange accepts YYYY-MM-DD or relative dates such as "30daysAgo" and "today".
type DateRange struct {
	Start string
	End   string
}

// OrderBy sorts by either a metric or a dimension.
type OrderBy struct {
	Metric    string
	Dimension string
	Desc      bool
}

// ReportRequest describes one report query. Name labels it in errors and metrics only.
type ReportRequest struct {
	Name       string
	DateRanges []DateRange
	Metrics    []string
	Dimensions []string
	OrderBys   []OrderBy
	Limit      int64
}

// ReportRow represents a single row in the response. Values stay strings at this layer.
type ReportRow struct {
	DimensionValues []string
	MetricValues    []string
}

func (r *ReportRequest) toAPI() *analyticsdata.RunReportRequest {
	out := &analyticsdata.RunReportRequest{Limit: r.Limit}
	for _, d := range r.DateRanges {
		out.DateRanges = append(out.DateRanges, &analyticsdata.DateRange{StartDate: d.Start, EndDate: d.End})
	}
	for _, m := range r.Metrics {
		out.Metrics = append(out.Metrics, &analyticsdata.Metric{Name: m})
	}
	for _, d := range r.Dimensions {
		out.Dimensions = append(out.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, o := range r.OrderBys {
		ob := &analyticsdata.OrderBy{Desc: o.Desc}
		if o.Metric != "" {
			ob.Metric = &analyticsdata.MetricOrderBy{MetricName: o.Metric}
		} else {
			ob.Dimension = &analyticsdata.DimensionOrderBy{DimensionName: o.Dimension}
		}
		out.OrderBys = append(out.OrderBys, ob)
	}
	return out
}

func rowsFromAPI(rows []*analyticsdata.Row) []ReportRow {
	out := make([]ReportRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		r := ReportRow{
			DimensionValues: make([]string, len(row.DimensionValues)),
			MetricValues:    make([]string, len(row.MetricValues)),
		}
		for i, v := range row.DimensionValues {
			if v != nil {
				r.DimensionValues[i] = v.Value
			}
		}
		for i, v := range row.MetricValues {
			if v != nil {
				r.MetricValues[i] = v.Value
			}
		}
		out = append(out, r)
	}
	return out
}
