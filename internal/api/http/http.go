package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jekabolt/grbpwr-analytics/internal/analytics/dashboard"
	"github.com/jekabolt/grbpwr-analytics/internal/auth/jwt"
	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
	mw "github.com/jekabolt/grbpwr-analytics/internal/middleware"
)

// SummaryPath is the dashboard summary endpoint.
const SummaryPath = "/api/admin/analytics/summary"

// Config is the configuration for the http server
type Config struct {
	Port           string        `mapstructure:"port"`
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SummaryBuilder builds the analytics summary for a property.
type SummaryBuilder interface {
	BuildSummary(ctx context.Context, propertyID string) (*dashboard.Summary, error)
}

// PropertySource resolves the analytics property per request.
type PropertySource interface {
	PropertyID() (string, error)
}

// Deps are the collaborators the routes are served by.
type Deps struct {
	Summary  SummaryBuilder
	Property PropertySource
	Auth     *jwtauth.JWTAuth
	Limiter  mw.SummaryChecker
	Gatherer prometheus.Gatherer
}

// Server is the http server
type Server struct {
	hs   *http.Server
	c    *Config
	d    Deps
	done chan struct{}
}

// New creates a new server
func New(config *Config, d Deps) *Server {
	return &Server{
		c:    config,
		d:    d,
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the http server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return isOriginAllowed(origin, s.c.AllowedOrigins)
		},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.ClientIdentifier(s.c.TrustProxy))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.d.Auth))
		r.Use(jwt.Authenticator)
		if s.d.Limiter != nil {
			r.Use(mw.RateLimit(s.d.Limiter, jwt.Subject))
		}
		r.Get(SummaryPath, s.getSummary)
	})

	return r
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.c.RequestTimeout)
		defer cancel()
	}

	propertyID, err := s.d.Property.PropertyID()
	if err != nil {
		s.writeError(ctx, w, &gerr.GatewayError{Stage: gerr.StageConfig, Err: err})
		return
	}

	sum, err := s.d.Summary.BuildSummary(ctx, propertyID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := gerr.HTTPStatus(err)
	slog.Default().ErrorContext(ctx, "can't build analytics summary",
		slog.String("err", err.Error()),
		slog.Int("status", status),
		slog.String("request_id", middleware.GetReqID(ctx)),
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("can't write response", slog.String("err", err.Error()))
	}
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:              listenerAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Default().InfoContext(ctx, fmt.Sprintf("grbpwr-analytics new listener on: http://%v", listenerAddr))
		err := s.hs.ListenAndServe()
		if err == http.ErrServerClosed {
			slog.Default().InfoContext(ctx, "http server returned")
		} else {
			slog.Default().ErrorContext(ctx, "http server exited with an error",
				slog.String("err", err.Error()),
			)
		}
		cancel()
		close(s.done)
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Always allow localhost origins
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "https://localhost:") {
		return true
	}

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return true
		}
	}

	return false
}
