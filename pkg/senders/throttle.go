package senders

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled paces a sender with a token bucket so bursts from a batch do not
// trip provider rate limits.
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled allows perSecond sends per second with the given burst.
// A non-positive perSecond disables pacing.
func NewThrottled(next Sender, perSecond float64, burst int) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Throttled{next: next, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

func (t *Throttled) Send(ctx context.Context, message Message) (Receipt, error) {
	err := t.limiter.Wait(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to wait for send slot: %w", err)
	}

	return t.next.Send(ctx, message)
}
