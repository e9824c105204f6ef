package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricReportQueries  = "analytics_report_queries_total"
	MetricReportDuration = "analytics_report_query_duration_seconds"
	MetricSummaries      = "analytics_summaries_total"
)

// Metrics contains Prometheus metrics for summary builds. A nil *Metrics records nothing.
type Metrics struct {
	reportQueries  *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
	summaries      *prometheus.CounterVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		reportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricReportQueries,
			Help: "Report queries sent to the analytics provider by report and outcome",
		}, []string{"report", "outcome"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricReportDuration,
			Help:    "Latency of report queries in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSummaries,
			Help: "Summary builds by outcome (ok, config, auth, overview)",
		}, []string{"outcome"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.reportQueries, m.reportDuration, m.summaries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeQuery(report string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reportQueries.WithLabelValues(report, outcome).Inc()
	m.reportDuration.WithLabelValues(report).Observe(d.Seconds())
}

func (m *Metrics) observeSummary(outcome string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome).Inc()
}
