package retry

import (
	"context"
	"log/slog"
	"time"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/services"
)

// Controller runs provider calls under the retry policy and the shared
// circuit breaker.
type Controller struct {
	policy  Policy
	breaker *Breaker
	logger  *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, p Policy, attempt int) error
}

func NewController(cfg *config.Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		policy:  PolicyFromConfig(cfg),
		breaker: NewBreakerFromConfig(cfg),
		logger:  logging.NewComponentLogger(logger, "retry"),
		sleep:   sleepBackoff,
	}
}

// Breaker exposes the shared breaker so callers can inspect its state.
func (c *Controller) Breaker() *Breaker { return c.breaker }

// Do runs fn until it succeeds, exhausts the attempt budget, or fails
// with a non-retryable error. Circuit-open short circuits return
// immediately without consuming the budget.
func (c *Controller) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.DoTracked(ctx, operation, fn, nil)
}

// DoTracked behaves like Do and additionally reports each consumed unit
// of the retry budget through onRetry, before the backoff sleep, so
// callers can persist attempt counts next to the work being retried.
func (c *Controller) DoTracked(ctx context.Context, operation string, fn func(context.Context) error, onRetry func(context.Context)) error {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.breaker.Allow(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			c.breaker.RecordSuccess()
			return nil
		}
		if !services.IsRetryable(lastErr) {
			return lastErr
		}

		c.breaker.RecordFailure()
		c.logger.Warn("transient failure", logging.Args(
			logging.String("operation", operation),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(lastErr),
		)...)

		if attempt == c.policy.MaxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(ctx)
		}
		if err := c.sleep(ctx, c.policy, attempt); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepBackoff(ctx context.Context, p Policy, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
