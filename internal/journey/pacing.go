package journey

import (
	"context"
	"time"
)

// Pacer waits between scripted messages so the conversation reads naturally.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerPacer sleeps the scripted delay multiplied by Scale.
// A Scale of zero or less disables waiting.
type TimerPacer struct {
	Scale float64
}

// Wait blocks for d*Scale or until ctx is done.
func (p TimerPacer) Wait(ctx context.Context, d time.Duration) error {
	scaled := time.Duration(float64(d) * p.Scale)
	if scaled <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(scaled)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay never waits. It still reports cancellation.
type NoDelay struct{}

// Wait returns ctx.Err().
func (NoDelay) Wait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// echoDelay separates the echoed user choice from the agent's reply.
const echoDelay = 800 * time.Millisecond
