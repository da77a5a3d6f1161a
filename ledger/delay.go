/*
delay.go - Injectable simulated-latency policy

PURPOSE:
  The demo UX wants operations to feel like network calls. The original
  system hard-coded randomized setTimeout delays inside its business logic;
  here the delay is a policy applied at the boundary between UI and
  processor, never inside the atomic unit, so tests run with zero delay and
  the lock is never held while sleeping.
*/
package ledger

import (
	"context"
	"math/rand"
	"time"
)

// DelayPolicy injects artificial latency before an operation starts.
type DelayPolicy interface {
	Wait(ctx context.Context)
}

// NoDelay runs everything synchronously. The test and default policy.
type NoDelay struct{}

func (NoDelay) Wait(context.Context) {}

// RandomDelay sleeps a uniformly random duration in [Min, Max], or until
// the context is done.
type RandomDelay struct {
	Min, Max time.Duration
}

func (d RandomDelay) Wait(ctx context.Context) {
	span := d.Max - d.Min
	wait := d.Min
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span)))
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
