package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider spaces calls to a provider so that at most rpm start per
// minute, allowing a burst of rpm after an idle period.
type RateLimitedProvider struct {
	provider Provider
	interval time.Duration
	burst    int

	mu sync.Mutex
	// next is when the next call may start if the bucket were empty.
	next time.Time
}

// NewRateLimitedProvider wraps provider. rpm <= 0 disables limiting.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		interval: time.Minute / time.Duration(rpm),
		burst:    rpm,
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// reserve books a slot and returns how long the caller must wait for it.
func (r *RateLimitedProvider) reserve(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Idle time refills at most a full burst.
	earliest := now.Add(-time.Duration(r.burst-1) * r.interval)
	if r.next.Before(earliest) {
		r.next = earliest
	}
	delay := r.next.Sub(now)
	r.next = r.next.Add(r.interval)
	if delay < 0 {
		return 0
	}
	return delay
}

func (r *RateLimitedProvider) wait(ctx context.Context) error {
	delay := r.reserve(time.Now())
	if delay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
