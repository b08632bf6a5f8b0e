// Package speedlimit implements the global, mutably-rated token bucket
// shared across every NNTP fetcher.
package speedlimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate with a mutable limit and an
// unlimited fast path. After SetLimit(0), every later Acquire returns at
// once, and so do the remaining chunks of callers already inside Acquire;
// a chunk that is already waiting finishes the wait it reserved.
type Limiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter // nil means unlimited
	currentBps uint64
}

// New constructs a Limiter. A nil/zero bps means unlimited.
func New(bps uint64) *Limiter {
	l := &Limiter{}
	l.SetLimit(bps)
	return l
}

// Acquire blocks the caller until n bytes worth of tokens are available,
// or ctx is cancelled. It is a no-op under an unlimited rate.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	l.mu.RLock()
	rl := l.limiter
	l.mu.RUnlock()
	if rl == nil || n <= 0 {
		return nil
	}
	// The burst is a tenth of the current bps, so n is taken in chunks
	// of at most the burst size; concurrent callers interleave their
	// chunks and share the rate rather than finishing one after another.
	burst := rl.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := rl.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// SetLimit replaces the rate. bps == 0 means unlimited.
func (l *Limiter) SetLimit(bps uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentBps = bps
	if bps == 0 {
		if l.limiter != nil {
			l.limiter.SetLimit(rate.Inf)
		}
		l.limiter = nil
		return
	}
	burst := int(bps / 10)
	if burst < 1 {
		burst = 1
	}
	if l.limiter == nil {
		l.limiter = rate.NewLimiter(rate.Limit(bps), burst)
		return
	}
	l.limiter.SetLimit(rate.Limit(bps))
	l.limiter.SetBurst(burst)
}

// CurrentLimit returns the configured bps, or 0 for unlimited.
func (l *Limiter) CurrentLimit() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentBps
}
