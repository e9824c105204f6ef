package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"
	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReportRunner runs report queries with an already obtained token.
type ReportRunner interface {
	RunReport(ctx context.Context, tok *ga4.AccessToken, propertyID string, req ga4.ReportRequest) ([]ga4.ReportRow, error)
	RunRealtime(ctx context.Context, tok *ga4.AccessToken, propertyID string) (int, error)
}

// Service builds dashboard summaries.
type Service struct {
	tokens  ga4.TokenProvider
	runner  ReportRunner
	metrics *Metrics
	now     func() time.Time
}

// New creates a summary service. metrics may be nil.
func New(tokens ga4.TokenProvider, runner ReportRunner, metrics *Metrics) *Service {
	return &Service{
		tokens:  tokens,
		runner:  runner,
		metrics: metrics,
		now:     time.Now,
	}
}

// result is the outcome of one report query.
type result struct {
	rows []ga4.ReportRow
	err  error
}

// BuildSummary authenticates once, runs every report concurrently and assembles the summary.
// Only configuration, authentication and overview failures are returned; other failed reports
// leave their section empty.
func (s *Service) BuildSummary(ctx context.Context, propertyID string) (*Summary, error) {
	started := s.now()
	log := slog.Default().With(
		slog.String("run_id", uuid.NewString()),
		slog.String("property_id", propertyID),
	)

	tok, err := s.tokens.Token(ctx)
	if err != nil {
		stage := gerr.StageAuth
		var ce *gerr.ConfigError
		if errors.As(err, &ce) {
			stage = gerr.StageConfig
		}
		s.metrics.observeSummary(string(stage))
		log.ErrorContext(ctx, "can't obtain analytics token",
			slog.String("stage", string(stage)),
			slog.String("err", err.Error()),
		)
		return nil, &gerr.GatewayError{Stage: stage, Err: err}
	}

	var (
		g           errgroup.Group
		realtime    int
		realtimeErr error
		results     = make(map[string]*result, len(reports))
	)
	for _, req := range reports {
		results[req.Name] = &result{}
	}

	// tasks never return an error so one failed report can't cancel the rest
	g.Go(func() error {
		t := time.Now()
		realtime, realtimeErr = s.runner.RunRealtime(ctx, tok, propertyID)
		s.metrics.observeQuery(reportRealtime, time.Since(t), realtimeErr)
		return nil
	})
	for _, req := range reports {
		r := results[req.Name]
		g.Go(func() error {
			t := time.Now()
			r.rows, r.err = s.runner.RunReport(ctx, tok, propertyID, req)
			s.metrics.observeQuery(req.Name, time.Since(t), r.err)
			return nil
		})
	}
	_ = g.Wait()

	if err := results[reportOverview].err; err != nil {
		s.metrics.observeSummary(string(gerr.StageOverview))
		log.ErrorContext(ctx, "overview report failed",
			slog.String("err", err.Error()),
		)
		return nil, &gerr.GatewayError{Stage: gerr.StageOverview, Err: err}
	}

	sum := assemble(results)
	sum.RealtimeActiveUsers = realtime
	if realtimeErr != nil {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: %v", reportRealtime, realtimeErr))
	}
	sum.Period = PeriodLast30Days
	sum.GeneratedAt = s.now().UTC()

	for _, w := range sum.Warnings {
		log.WarnContext(ctx, "optional report failed, section left empty",
			slog.String("warning", w),
		)
	}
	s.metrics.observeSummary("ok")
	log.InfoContext(ctx, "analytics summary built",
		slog.Duration("took", s.now().Sub(started)),
		slog.Int("warnings", len(sum.Warnings)),
	)
	return sum, nil
}

// assemble reduces report results into a summary. The overview result must be successful.
func assemble(results map[string]*result) *Summary {
	sum := &Summary{
		TopPages:       []PageStat{},
		TrafficSources: []TrafficSource{},
		Devices:        []DeviceStat{},
		Cities:         []CityStat{},
	}
	// report order keeps warnings deterministic
	for _, req := range reports {
		if err := results[req.Name].err; err != nil {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: %v", req.Name, err))
		}
	}

	ov := firstRow(results[reportOverview].rows)
	sum.Overview = Overview{
		Sessions:           ParseInt(metric(ov, 0)),
		Users:              ParseInt(metric(ov, 1)),
		NewUsers:           ParseInt(metric(ov, 2)),
		PageViews:          ParseInt(metric(ov, 3)),
		BounceRate:         Percent(ParseFloat(metric(ov, 4))),
		AvgSessionDuration: ParseFloat(metric(ov, 5)),
		EngagementRate:     Percent(ParseFloat(metric(ov, 6))),
	}

	sum.Ecommerce = Ecommerce{Revenue: decimal.Zero}
	if ec := results[reportEcommerce]; ec.err == nil {
		row := firstRow(ec.rows)
		sum.Ecommerce = Ecommerce{
			Available:      true,
			Purchases:      ParseInt(metric(row, 0)),
			Revenue:        ParseDecimal(metric(row, 1)).Round(2),
			Transactions:   ParseInt(metric(row, 2)),
			ConversionRate: Percent(ParseFloat(metric(row, 3))),
		}
	}

	if prev := results[reportPrevious]; prev.err == nil {
		row := firstRow(prev.rows)
		sum.Growth = Growth{
			Sessions:  growth(sum.Overview.Sessions, ParseInt(metric(row, 0))),
			Users:     growth(sum.Overview.Users, ParseInt(metric(row, 1))),
			PageViews: growth(sum.Overview.PageViews, ParseInt(metric(row, 2))),
		}
	}

	for _, row := range results[reportTopPages].rows {
		sum.TopPages = append(sum.TopPages, PageStat{
			Path:      dimension(row, 0),
			Title:     dimension(row, 1),
			PageViews: ParseInt(metric(row, 0)),
		})
	}
	for _, row := range results[reportTrafficSources].rows {
		sum.TrafficSources = append(sum.TrafficSources, TrafficSource{
			Source:   dimension(row, 0),
			Sessions: ParseInt(metric(row, 0)),
			Users:    ParseInt(metric(row, 1)),
		})
	}
	for _, row := range results[reportDevices].rows {
		sum.Devices = append(sum.Devices, DeviceStat{
			Category: dimension(row, 0),
			Sessions: ParseInt(metric(row, 0)),
			Users:    ParseInt(metric(row, 1)),
		})
	}
	for _, row := range results[reportCities].rows {
		sum.Cities = append(sum.Cities, CityStat{
			City:     dimension(row, 0),
			Sessions: ParseInt(metric(row, 0)),
			Users:    ParseInt(metric(row, 1)),
		})
	}
	return sum
}

func growth(current, previous int) float64 {
	return GrowthPercent(float64(current), float64(previous))
}
