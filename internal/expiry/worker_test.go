package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeSweeper) SweepIdle(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ttl)
	return 1
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCleaner struct {
	mu   sync.Mutex
	ttls []time.Duration
	err  error
}

func (f *fakeCleaner) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls = append(f.ttls, ttl)
	return 2, f.err
}

func TestSweepUsesConfiguredTTLs(t *testing.T) {
	s := &fakeSweeper{}
	c := &fakeCleaner{}
	w := NewWorker(s, c, Config{Interval: time.Minute, IdleTTL: time.Hour, Retention: 48 * time.Hour})

	w.Sweep(context.Background())

	if len(s.calls) != 1 || s.calls[0] != time.Hour {
		t.Errorf("SweepIdle calls = %v", s.calls)
	}
	if len(c.ttls) != 1 || c.ttls[0] != 48*time.Hour {
		t.Errorf("cleanup ttls = %v", c.ttls)
	}
}

func TestSweepSurvivesStoreErrors(t *testing.T) {
	s := &fakeSweeper{}
	c := &fakeCleaner{err: errors.New("database is locked")}
	w := NewWorker(s, c, Config{Interval: time.Minute, IdleTTL: time.Hour, Retention: time.Hour})

	w.Sweep(context.Background())
	w.Sweep(context.Background())

	if s.count() != 2 {
		t.Errorf("sweeps = %d, want 2", s.count())
	}
}

func TestStartStopsWithContext(t *testing.T) {
	s := &fakeSweeper{}
	w := NewWorker(s, &fakeCleaner{}, Config{Interval: 5 * time.Millisecond, IdleTTL: time.Hour, Retention: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for s.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.count() < 2 {
		t.Fatalf("worker ran %d sweeps", s.count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
