package resilience

import "time"

// CircuitBreakerConfig is read per external dependency from the
// <PREFIX>_CIRCUIT_* keys (ZAPRITE_, OTS_).
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int

	// Name labels transitions and open-circuit errors.
	Name string
	// OnStateChange, when set, is called outside the breaker lock.
	OnStateChange func(name string, from, to CircuitState)
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
		HalfOpenMaxReq:   2,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	c.FailureThreshold = cmpOr(c.FailureThreshold, defaults.FailureThreshold)
	c.HalfOpenMaxReq = cmpOr(c.HalfOpenMaxReq, defaults.HalfOpenMaxReq)
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaults.OpenTimeout
	}
	return c
}

func cmpOr(v, fallback int) int {
	if v < 1 {
		return fallback
	}
	return v
}
