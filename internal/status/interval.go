package status

import (
	"math/rand/v2"
	"time"

	"drafter/internal/config"
)

const intervalJitter = 0.2

// NextInterval picks the next poll delay for a job that has been running
// for elapsed time. The delay starts at the configured minimum and
// multiplies by the backoff factor each time the elapsed time covers the
// delays already spent, settling at the configured maximum for
// long-running translations. The result carries ±20% jitter.
func NextInterval(cfg *config.Config, elapsed time.Duration) time.Duration {
	min := time.Duration(cfg.Translation.PollIntervalMin) * time.Second
	max := time.Duration(cfg.Translation.PollIntervalMax) * time.Second
	factor := cfg.Translation.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := min
	var covered time.Duration
	for covered+delay < elapsed && delay < max {
		covered += delay
		delay = time.Duration(float64(delay) * factor)
	}
	if delay > max {
		delay = max
	}

	spread := 1 - intervalJitter + 2*intervalJitter*rand.Float64()
	return time.Duration(float64(delay) * spread)
}
