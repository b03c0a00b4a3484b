package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/config"
)

// RetryFromConfig builds a retry policy for one service. attempts overrides
// the configured attempt count when positive, so the crawler can keep its own
// (default single-attempt) budget while sharing the backoff settings.
func RetryFromConfig(c config.ResilienceConfig, attempts int, service, operation string) RetryConfig {
	cfg := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if c.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		cfg.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		cfg.JitterFraction = c.JitterFraction
	}
	cfg.OnRetry = RetryLogger(service, operation)
	return cfg
}

// BreakerFromConfig builds a circuit breaker config that logs transitions.
func BreakerFromConfig(c config.ResilienceConfig, service string) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	cfg.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("circuit breaker state change",
			zap.String("service", service),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return cfg
}
