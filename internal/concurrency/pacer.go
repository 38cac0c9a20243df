package concurrency

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to a rate limited remote API. The first call passes
// immediately, later calls wait for the next token.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per interval. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// ItemFn handles one item of a sequential batch.
type ItemFn[T any] func(ctx context.Context, index int, item T)

// ForEach runs fn over items one at a time, waiting on the pacer before each call.
// It returns the context error when the batch is cut short.
func ForEach[T any](ctx context.Context, p *Pacer, items []T, fn ItemFn[T]) error {
	for i, item := range items {
		if err := p.Wait(ctx); err != nil {
			return err
		}
		fn(ctx, i, item)
	}
	return nil
}
