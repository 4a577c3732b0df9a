package publisher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Publisher
	limiter *rate.Limiter
}

// RateLimited bounds how often next is called. Waiting past the context
// deadline is reported as an error so the job is retried later.
func RateLimited(next Publisher, perSecond float64, burst int) Publisher {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *rateLimited) Publish(ctx context.Context, cred Credential, content Content) (Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}
	return p.next.Publish(ctx, cred, content)
}
