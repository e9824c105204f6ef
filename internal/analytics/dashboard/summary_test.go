package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"
	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPropertyID = "299206603"

type staticTokens struct {
	tok *ga4.AccessToken
	err error
}

func (s staticTokens) Token(context.Context) (*ga4.AccessToken, error) { return s.tok, s.err }

type fakeRunner struct {
	delay    time.Duration
	rows     map[string][]ga4.ReportRow
	errs     map[string]error
	realtime int

	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeRunner) RunReport(ctx context.Context, tok *ga4.AccessToken, propertyID string, req ga4.ReportRequest) ([]ga4.ReportRow, error) {
	f.record(req.Name)
	time.Sleep(f.delay)
	if err := f.errs[req.Name]; err != nil {
		return nil, err
	}
	return f.rows[req.Name], nil
}

func (f *fakeRunner) RunRealtime(ctx context.Context, tok *ga4.AccessToken, propertyID string) (int, error) {
	f.record(reportRealtime)
	time.Sleep(f.delay)
	if err := f.errs[reportRealtime]; err != nil {
		return 0, err
	}
	return f.realtime, nil
}

func row(dims []string, metrics ...string) ga4.ReportRow {
	return ga4.ReportRow{DimensionValues: dims, MetricValues: metrics}
}

func fullRunner() *fakeRunner {
	return &fakeRunner{
		realtime: 12,
		rows: map[string][]ga4.ReportRow{
			reportOverview:  {row(nil, "150", "120", "40", "600", "0.4235", "93.5", "0.61")},
			reportEcommerce: {row(nil, "9", "1234.567", "8", "0.0125")},
			reportPrevious:  {row(nil, "100", "0", "abc")},
			reportTopPages: {
				row([]string{"/shop", "Shop"}, "300"),
				row([]string{"/", "Home"}, "200"),
			},
			reportTrafficSources: {
				row([]string{"google"}, "90", "80"),
				row([]string{"(direct)"}, "60", "50"),
			},
			reportDevices: {
				row([]string{"mobile"}, "100", "90"),
				row([]string{"desktop"}, "50", "40"),
			},
			reportCities: {
				row([]string{"Riga"}, "70", "60"),
				row([]string{"Berlin"}, "30", "25"),
			},
		},
		errs: map[string]error{},
	}
}

func newService(r ReportRunner) *Service {
	return New(staticTokens{tok: &ga4.AccessToken{Value: "tok"}}, r, nil)
}

func TestBuildSummary_Full(t *testing.T) {
	s := newService(fullRunner())
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sum, err := s.BuildSummary(context.Background(), testPropertyID)
	require.NoError(t, err)

	assert.Equal(t, 12, sum.RealtimeActiveUsers)
	assert.Equal(t, Overview{
		Sessions:           150,
		Users:              120,
		NewUsers:           40,
		PageViews:          600,
		BounceRate:         42.35,
		AvgSessionDuration: 93.5,
		EngagementRate:     61,
	}, sum.Overview)

	assert.True(t, sum.Ecommerce.Available)
	assert.Equal(t, 9, sum.Ecommerce.Purchases)
	assert.Equal(t, "1234.57", sum.Ecommerce.Revenue.String())
	assert.Equal(t, 8, sum.Ecommerce.Transactions)
	assert.Equal(t, 1.25, sum.Ecommerce.ConversionRate)

	// previous users is 0 and page views unparsable, so only sessions grow
	assert.Equal(t, Growth{Sessions: 50}, sum.Growth)

	assert.Equal(t, []PageStat{{"/shop", "Shop", 300}, {"/", "Home", 200}}, sum.TopPages)
	assert.Equal(t, "google", sum.TrafficSources[0].Source)
	assert.Equal(t, "(direct)", sum.TrafficSources[1].Source)
	assert.Equal(t, []DeviceStat{{"mobile", 100, 90}, {"desktop", 50, 40}}, sum.Devices)
	assert.Equal(t, "Riga", sum.Cities[0].City)

	assert.Equal(t, PeriodLast30Days, sum.Period)
	assert.Equal(t, now, sum.GeneratedAt)
	assert.Empty(t, sum.Warnings)
}

func TestBuildSummary_EcommerceFailureDegrades(t *testing.T) {
	r := fullRunner()
	r.errs[reportEcommerce] = &gerr.QueryError{Report: reportEcommerce, Code: 400, Status: "INVALID_ARGUMENT", Message: "bad metric"}

	sum, err := newService(r).BuildSummary(context.Background(), testPropertyID)
	require.NoError(t, err)
	assert.True(t, sum.Ecommerce.Revenue.IsZero())
	assert.False(t, sum.Ecommerce.Available)
	assert.Zero(t, sum.Ecommerce.Purchases)
	assert.Equal(t, 150, sum.Overview.Sessions)
	require.Len(t, sum.Warnings, 1)
	assert.Contains(t, sum.Warnings[0], "bad metric")
}

func TestBuildSummary_OverviewFailureIsFatal(t *testing.T) {
	r := fullRunner()
	r.errs[reportOverview] = &gerr.QueryError{Report: reportOverview, Message: "quota exhausted"}

	sum, err := newService(r).BuildSummary(context.Background(), testPropertyID)
	assert.Nil(t, sum)
	var ge *gerr.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gerr.StageOverview, ge.Stage)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestBuildSummary_TokenFailures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		stage gerr.Stage
	}{
		{"config", &gerr.ConfigError{Reason: gerr.MissingKey, Field: "ga4.private_key"}, gerr.StageConfig},
		{"auth", &gerr.AuthError{Reason: gerr.Rejected, Message: "invalid_grant"}, gerr.StageAuth},
		{"signing", &gerr.SigningError{Err: errors.New("bad key")}, gerr.StageAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fullRunner()
			s := New(staticTokens{err: tt.err}, r, nil)

			_, err := s.BuildSummary(context.Background(), testPropertyID)
			var ge *gerr.GatewayError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.stage, ge.Stage)
			assert.Empty(t, r.calls, "no report may run without a token")
		})
	}
}

func TestBuildSummary_ConcurrentPartialFailure(t *testing.T) {
	const delay = 150 * time.Millisecond
	r := fullRunner()
	r.delay = delay
	r.errs[reportRealtime] = errors.New("realtime down")
	r.errs[reportDevices] = errors.New("devices down")
	r.errs[reportEcommerce] = errors.New("ecommerce down")

	reg := prometheus.NewRegistry()
	m := NewMetrics()
	require.NoError(t, m.Register(reg))
	s := New(staticTokens{tok: &ga4.AccessToken{Value: "tok"}}, r, m)

	start := time.Now()
	sum, err := s.BuildSummary(context.Background(), testPropertyID)
	took := time.Since(start)
	require.NoError(t, err)

	assert.Len(t, r.calls, 8)
	assert.Less(t, took, 3*delay, "queries must run concurrently")

	assert.Zero(t, sum.RealtimeActiveUsers)
	assert.Empty(t, sum.Devices)
	assert.False(t, sum.Ecommerce.Available)
	assert.Equal(t, 150, sum.Overview.Sessions)
	assert.Len(t, sum.TopPages, 2)
	assert.Len(t, sum.Cities, 2)
	assert.Len(t, sum.TrafficSources, 2)
	assert.Equal(t, 50.0, sum.Growth.Sessions)
	assert.Len(t, sum.Warnings, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportQueries.WithLabelValues(reportDevices, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportQueries.WithLabelValues(reportOverview, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.summaries.WithLabelValues("ok")))
}

func TestBuildSummary_EmptyListsSerializeAsArrays(t *testing.T) {
	r := &fakeRunner{
		rows: map[string][]ga4.ReportRow{reportOverview: {row(nil, "1")}},
		errs: map[string]error{},
	}
	sum, err := newService(r).BuildSummary(context.Background(), testPropertyID)
	require.NoError(t, err)

	b, err := json.Marshal(sum)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	for _, k := range []string{"topPages", "trafficSources", "devices", "cities"} {
		assert.Equal(t, []any{}, out[k], k)
	}
	assert.NotContains(t, out, "Warnings")
	assert.Equal(t, 1.0, out["overview"].(map[string]any)["sessions"])
}
