package retry

import (
	"sync"
	"time"

	"drafter/internal/config"
	"drafter/internal/services"
)

// BreakerState is the circuit breaker's lifecycle position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker opens after a run of consecutive transient failures within a
// sliding window and fails calls fast until a cool-down elapses. After
// the cool-down a single probe call is let through; its outcome decides
// whether the circuit closes or reopens.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration

	failures []time.Time
	openedAt time.Time
	open     bool
	probing  bool

	now func() time.Time
}

func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func NewBreakerFromConfig(cfg *config.Config) *Breaker {
	return NewBreaker(
		cfg.Translation.CircuitThreshold,
		time.Duration(cfg.Translation.CircuitWindow)*time.Second,
		time.Duration(cfg.Translation.CircuitCooldown)*time.Second,
	)
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen; once the cool-down has elapsed a single probe passes
// and concurrent calls keep failing fast until the probe settles.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return services.Wrap(services.ErrCircuitOpen, "retry", "allow", "provider circuit open", nil)
	}
	if b.probing {
		return services.Wrap(services.ErrCircuitOpen, "retry", "allow", "probe in flight", nil)
	}
	b.probing = true
	return nil
}

// RecordSuccess closes the circuit and clears the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = b.failures[:0]
	b.open = false
	b.probing = false
}

// RecordFailure notes a transient failure. A failed probe reopens the
// circuit immediately; otherwise the breaker opens once the run of
// failures inside the window reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.open {
		// Probe failed.
		b.openedAt = now
		b.probing = false
		return
	}

	b.failures = append(b.failures, now)
	b.prune(now)
	if b.threshold > 0 && len(b.failures) >= b.threshold {
		b.open = true
		b.openedAt = now
		b.failures = b.failures[:0]
	}
}

// State reports the current breaker position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case !b.open:
		return BreakerClosed
	case b.now().Sub(b.openedAt) >= b.cooldown:
		return BreakerHalfOpen
	default:
		return BreakerOpen
	}
}

func (b *Breaker) prune(now time.Time) {
	if b.window <= 0 {
		return
	}
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, at := range b.failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.failures = kept
}
