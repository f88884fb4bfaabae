package request

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// ProviderBackoff spaces out requests to a host after it fails. Each failure
// doubles the pause up to maxDelay; each success undoes one failure.
type ProviderBackoff struct {
	mu    sync.Mutex
	hosts map[string]*hostState
	base  time.Duration
	max   time.Duration

	now    func() time.Time
	jitter func(time.Duration) time.Duration
}

type hostState struct {
	failures int
	until    time.Time
}

// NewProviderBackoff creates a backoff with up to 10% random jitter.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		hosts: make(map[string]*hostState),
		base:  baseDelay,
		max:   maxDelay,
		now:   time.Now,
		jitter: func(d time.Duration) time.Duration {
			return time.Duration(rand.Float64() * 0.1 * float64(d))
		},
	}
}

// Wait blocks until provider is out of its penalty window or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	_, until := b.GetState(provider)
	wait := until.Sub(b.now())
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure extends the penalty window for provider.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.hosts[provider]
	if s == nil {
		s = &hostState{}
		b.hosts[provider] = s
	}
	s.failures++
	d := b.delay(s.failures)
	s.until = b.now().Add(d + b.jitter(d))
}

// RecordSuccess forgives one failure and clears the window once none remain.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.hosts[provider]
	if s == nil {
		return
	}
	if s.failures > 0 {
		s.failures--
	}
	if s.failures == 0 {
		delete(b.hosts, provider)
	}
}

// GetState reports the failure count and the end of the penalty window.
func (b *ProviderBackoff) GetState(provider string) (failureCount int, nextAllowed time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.hosts[provider]; s != nil {
		return s.failures, s.until
	}
	return 0, time.Time{}
}

// delay is base * 2^(failures-1), capped at max.
func (b *ProviderBackoff) delay(failures int) time.Duration {
	d := b.base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= b.max || d <= 0 {
			return b.max
		}
	}
	return min(d, b.max)
}
