package tokenrefresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Warmer is implemented by ga4.TokenCache.
type Warmer interface {
	Warm(ctx context.Context, window time.Duration) error
}

// Config holds configuration for the token refresh worker.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	WorkerInterval time.Duration `mapstructure:"worker_interval"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		WorkerInterval: 5 * time.Minute,
	}
}

// Worker keeps the cached analytics token fresh so dashboard requests skip the exchange.
type Worker struct {
	cache Warmer
	c     *Config
	ctx   context.Context
	stop  context.CancelFunc
}

// New creates a new token refresh worker.
func New(cache Warmer, c *Config) *Worker {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.WorkerInterval == 0 {
		c.WorkerInterval = 5 * time.Minute
	}
	return &Worker{
		cache: cache,
		c:     c,
	}
}

// Start starts the worker.
func (w *Worker) Start(ctx context.Context) error {
	if w.ctx != nil && w.stop != nil {
		return fmt.Errorf("token refresh worker already started")
	}
	w.ctx, w.stop = context.WithCancel(ctx)
	go w.worker(w.ctx)
	return nil
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() error {
	if w.stop == nil {
		return fmt.Errorf("token refresh worker already stopped or not started")
	}
	w.stop()
	w.stop = nil
	return nil
}

func (w *Worker) worker(ctx context.Context) {
	w.warm(ctx)

	ticker := time.NewTicker(w.c.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.warm(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// warm refreshes a token that would expire before the next tick.
func (w *Worker) warm(ctx context.Context) {
	if err := w.cache.Warm(ctx, 2*w.c.WorkerInterval); err != nil {
		slog.Default().ErrorContext(ctx, "can't refresh analytics token",
			slog.String("err", err.Error()),
		)
	}
}
