package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds configuration for the identity sync worker.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	WorkerInterval time.Duration `mapstructure:"worker_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		WorkerInterval: 15 * time.Minute,
		BatchSize:      500,
	}
}

// Worker periodically runs the identity merge.
type Worker struct {
	merger *Merger
	c      *Config
	ctx    context.Context
	stop   context.CancelFunc
}

// NewWorker creates a new identity sync worker.
func NewWorker(merger *Merger, c *Config) *Worker {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.WorkerInterval == 0 {
		c.WorkerInterval = DefaultConfig().WorkerInterval
	}
	return &Worker{
		merger: merger,
		c:      c,
	}
}

// Start starts the worker.
func (w *Worker) Start(ctx context.Context) error {
	if w.ctx != nil && w.stop != nil {
		return fmt.Errorf("identity sync worker already started")
	}
	w.ctx, w.stop = context.WithCancel(ctx)
	go w.worker(w.ctx)
	return nil
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() error {
	if w.stop == nil {
		return fmt.Errorf("identity sync worker already stopped or not started")
	}
	w.stop()
	w.stop = nil
	return nil
}

func (w *Worker) worker(ctx context.Context) {
	w.run(ctx)

	ticker := time.NewTicker(w.c.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if _, err := w.merger.Sync(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "identity sync failed",
			slog.String("err", err.Error()))
	}
}
