package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"drafter/internal/config"
)

// jitterFraction widens each delay to a uniform band around the
// exponential value so synchronized retries spread out.
const jitterFraction = 0.2

// Policy describes the attempt budget and backoff curve for provider
// calls.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
}

// PolicyFromConfig derives the retry policy from translation settings.
// MaxRetries counts retries after the first attempt.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts: cfg.Translation.MaxRetries + 1,
		BaseDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		MaxDelay:    time.Duration(cfg.Translation.PollIntervalMax) * time.Second,
		Factor:      cfg.Translation.BackoffFactor,
	}
}

// Delay returns the jittered backoff before the given retry. Attempt 1
// is the first retry. The unjittered value is BaseDelay * Factor^(n-1),
// capped at MaxDelay; jitter keeps the result within ±20% of that.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && base > max {
		base = max
	}
	spread := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	return time.Duration(base * spread)
}
