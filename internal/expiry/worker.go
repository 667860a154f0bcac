// Package expiry evicts idle conversations and deletes old stored ones.
package expiry

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops live sessions idle longer than ttl and reports how many.
type Sweeper interface {
	SweepIdle(ttl time.Duration) int
}

// Cleaner deletes stored conversations not updated within ttl.
type Cleaner interface {
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// Config controls a Worker.
type Config struct {
	Interval  time.Duration // time between sweeps
	IdleTTL   time.Duration // live sessions idle this long leave memory
	Retention time.Duration // stored conversations older than this are deleted
}

// Worker periodically sweeps idle sessions.
type Worker struct {
	sessions Sweeper
	store    Cleaner
	cfg      Config
}

// NewWorker creates a worker. Start runs it.
func NewWorker(sessions Sweeper, store Cleaner, cfg Config) *Worker {
	return &Worker{sessions: sessions, store: store, cfg: cfg}
}

// Start runs a background goroutine that sweeps every interval until ctx
// is done. The returned channel closes when the goroutine exits.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(w.cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Expiry worker started", "interval", w.cfg.Interval, "ttl", w.cfg.IdleTTL, "retention", w.cfg.Retention)

		for {
			select {
			case <-ticker.C:
				w.Sweep(ctx)
			case <-ctx.Done():
				slog.Info("Expiry worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep runs one pass.
func (w *Worker) Sweep(ctx context.Context) {
	if n := w.sessions.SweepIdle(w.cfg.IdleTTL); n > 0 {
		slog.Info("Expiry worker evicted idle sessions", "count", n)
	}

	deleted, err := w.store.CleanupExpiredSessions(ctx, w.cfg.Retention)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Expiry worker: context canceled during cleanup", "error", err)
			return
		}
		slog.Error("Expiry worker failed to delete old conversations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Expiry worker deleted old conversations", "count", deleted)
	}
}
