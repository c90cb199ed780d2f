package llm

import (
	"math"
	"math/rand/v2"
	"time"
)

// jitterFraction spreads each backoff by up to +/-25%.
const jitterFraction = 0.25

// RetryConfig controls how often one model is retried before the client
// moves to the next model of the chain.
type RetryConfig struct {
	// MaxAttempts counts tries per model, including the first.
	MaxAttempts int

	// BackoffBase is the wait after the first failed try. Each further try
	// multiplies it by BackoffMultiplier, up to MaxBackoff.
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryConfig suits hosted APIs: three tries spread over a few
// seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2,
		MaxBackoff:        30 * time.Second,
	}
}

// Backoff returns the wait after failed try number attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.BackoffBase) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d * (1 + jitterFraction*(2*rand.Float64()-1)))
}
