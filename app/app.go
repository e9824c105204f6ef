package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jekabolt/grbpwr-analytics/config"
	"github.com/jekabolt/grbpwr-analytics/internal/analytics/dashboard"
	"github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"
	"github.com/jekabolt/grbpwr-analytics/internal/analytics/tokenrefresh"
	httpapi "github.com/jekabolt/grbpwr-analytics/internal/api/http"
	"github.com/jekabolt/grbpwr-analytics/internal/auth/jwt"
	"github.com/jekabolt/grbpwr-analytics/internal/ratelimit"
)

// Gateway groups the analytics components shared by the server and the CLI.
type Gateway struct {
	Loader  *ga4.CredentialLoader
	Tokens  ga4.TokenProvider
	Cache   *ga4.TokenCache // nil unless ga4.token_cache is set
	Summary *dashboard.Service
	Metrics *dashboard.Metrics
}

// NewGateway wires credential loading, signing, token exchange and report queries.
func NewGateway(c *config.Config) (*Gateway, error) {
	signer, err := ga4.NewSigner(c.GA4.Signer)
	if err != nil {
		return nil, err
	}

	loader := ga4.NewCredentialLoader(c.Getter())
	var tokens ga4.TokenProvider = ga4.NewAuthenticator(
		loader,
		signer,
		ga4.NewTokenExchanger(c.GA4.HTTPTimeout),
		c.GA4.TokenURL,
		c.GA4.Scope,
	)

	g := &Gateway{
		Loader:  loader,
		Metrics: dashboard.NewMetrics(),
	}
	if c.GA4.TokenCache {
		g.Cache = ga4.NewTokenCache(tokens, c.GA4.TokenLeeway)
		tokens = g.Cache
	}
	g.Tokens = tokens
	g.Summary = dashboard.New(tokens, ga4.NewClient(&c.GA4), g.Metrics)
	return g, nil
}

// App is the main application
type App struct {
	hs      *httpapi.Server
	refresh *tokenrefresh.Worker
	c       *config.Config
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
	}
}

// Start starts the app
func (a *App) Start(ctx context.Context) error {
	slog.Default().InfoContext(ctx, "starting analytics gateway")

	g, err := NewGateway(a.c)
	if err != nil {
		return fmt.Errorf("can't create analytics gateway: %w", err)
	}

	jwtAuth, err := jwt.New(&a.c.Auth)
	if err != nil {
		return fmt.Errorf("can't create operator auth: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := g.Metrics.Register(reg); err != nil {
		return fmt.Errorf("can't register metrics: %w", err)
	}

	ctx, a.cancel = context.WithCancel(ctx)

	limiter := ratelimit.NewSummaryLimiter(a.c.RateLimit)
	go limiter.Cleanup(ctx, time.Minute)

	if a.c.TokenRefresh.Enabled && g.Cache != nil {
		a.refresh = tokenrefresh.New(g.Cache, &a.c.TokenRefresh)
		if err := a.refresh.Start(ctx); err != nil {
			return fmt.Errorf("can't start token refresh worker: %w", err)
		}
	}

	a.hs = httpapi.New(&a.c.HTTP, httpapi.Deps{
		Summary:  g.Summary,
		Property: g.Loader,
		Auth:     jwtAuth,
		Limiter:  limiter,
		Gatherer: reg,
	})
	if err := a.hs.Start(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server",
			slog.String("err", err.Error()),
		)
		return err
	}

	go func() {
		<-a.hs.Done()
		a.shutdown()
	}()

	return nil
}

// Stop stops the application and waits for all services to exit
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.hs.Stop(ctx); err != nil {
			slog.Default().ErrorContext(ctx, "http server shutdown failed",
				slog.String("err", err.Error()),
			)
		}
		<-a.done
		return
	}
	a.shutdown()
}

func (a *App) shutdown() {
	if a.refresh != nil {
		a.refresh.Stop()
		a.refresh = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

// Done returns a channel that is closed after the application has exited
func (a *App) Done() <-chan struct{} {
	return a.done
}
