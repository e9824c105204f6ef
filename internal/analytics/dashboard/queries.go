package dashboard

import "github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"

// PeriodLast30Days labels the window every summary covers.
const PeriodLast30Days = "last_30_days"

const (
	reportRealtime       = "realtime"
	reportOverview       = "overview"
	reportEcommerce      = "ecommerce"
	reportPrevious       = "previous_period"
	reportTopPages       = "top_pages"
	reportTrafficSources = "traffic_sources"
	reportDevices        = "devices"
	reportCities         = "cities"
)

var (
	current30Days  = []ga4.DateRange{{Start: "30daysAgo", End: "today"}}
	previous30Days = []ga4.DateRange{{Start: "60daysAgo", End: "31daysAgo"}}
)

// reports are the historical queries of one summary. The realtime query runs alongside them.
// Metric order here is the column order the assemble step reads.
var reports = []ga4.ReportRequest{
	{
		Name:       reportOverview,
		DateRanges: current30Days,
		Metrics: []string{
			"sessions",
			"totalUsers",
			"newUsers",
			"screenPageViews",
			"bounceRate",
			"averageSessionDuration",
			"engagementRate",
		},
	},
	{
		Name:       reportEcommerce,
		DateRanges: current30Days,
		Metrics: []string{
			"ecommercePurchases",
			"purchaseRevenue",
			"transactions",
			"sessionKeyEventRate",
		},
	},
	{
		Name:       reportPrevious,
		DateRanges: previous30Days,
		Metrics:    []string{"sessions", "totalUsers", "screenPageViews"},
	},
	{
		Name:       reportTopPages,
		DateRanges: current30Days,
		Dimensions: []string{"pagePath", "pageTitle"},
		Metrics:    []string{"screenPageViews"},
		OrderBys:   []ga4.OrderBy{{Metric: "screenPageViews", Desc: true}},
		Limit:      10,
	},
	{
		Name:       reportTrafficSources,
		DateRanges: current30Days,
		Dimensions: []string{"sessionSource"},
		Metrics:    []string{"sessions", "totalUsers"},
		OrderBys:   []ga4.OrderBy{{Metric: "sessions", Desc: true}},
	},
	{
		Name:       reportDevices,
		DateRanges: current30Days,
		Dimensions: []string{"deviceCategory"},
		Metrics:    []string{"sessions", "totalUsers"},
		OrderBys:   []ga4.OrderBy{{Metric: "sessions", Desc: true}},
	},
	{
		Name:       reportCities,
		DateRanges: current30Days,
		Dimensions: []string{"city"},
		Metrics:    []string{"sessions", "totalUsers"},
		OrderBys:   []ga4.OrderBy{{Metric: "sessions", Desc: true}},
		Limit:      10,
	},
}
