package resilience

import "time"

// Breaker defaults for a long-running caller such as an MCP server.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// One-shot CLI invocations give up quickly.
	CLIThreshold         = 2
	CLIResetTimeout      = 5 * time.Second
	CLIHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
	// IsFailure decides which errors count against the breaker. Domain
	// rejections such as an already active session are answers, not
	// outages. Defaults to IsTransportFailure.
	IsFailure func(error) bool
}

func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

func CLIConfig() Config {
	return Config{
		Threshold:         CLIThreshold,
		ResetTimeout:      CLIResetTimeout,
		HalfOpenSuccesses: CLIHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.IsFailure == nil {
		c.IsFailure = IsTransportFailure
	}
	return c
}
