package campaign

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer throttles a campaign run. Wait is called before every row except the first. failed reports whether the
// previous row failed. Wait returns the context error when ctx is done before the wait is over.
type Pacer interface {
	Wait(ctx context.Context, failed bool) error
}

// DelayPacer sleeps a fixed delay between rows with a longer delay after a failed row.
type DelayPacer struct {
	AfterSuccess time.Duration
	AfterFailure time.Duration
}

func (p DelayPacer) Wait(ctx context.Context, failed bool) error {
	delay := p.AfterSuccess
	if failed {
		delay = p.AfterFailure
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RatePacer is a token bucket shared by the workers of [Dispatcher.RunConcurrent].
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer allows perSecond rows per second with bursts of burst rows.
func NewRatePacer(perSecond float64, burst int) *RatePacer {
	return &RatePacer{limiter: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))}
}

func (p *RatePacer) Wait(ctx context.Context, _ bool) error {
	return p.limiter.Wait(ctx) //nolint:wrapcheck // context errors are inspected by the caller.
}

// NoPacing never waits.
type NoPacing struct{}

func (NoPacing) Wait(ctx context.Context, _ bool) error {
	return ctx.Err()
}
