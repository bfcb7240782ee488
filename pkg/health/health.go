package health

import (
	"context"
	"time"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result
}

// Config controls how Probe polls a Checker
type Config struct {
	// Interval is the time between health checks
	Interval time.Duration

	// Retries is the number of consecutive failures before giving up
	Retries int
}

// DefaultConfig returns a Config suited to a freshly started deployment
func DefaultConfig() Config {
	return Config{
		Interval: 2 * time.Second,
		Retries:  3,
	}
}

// Status tracks the outcome of consecutive checks
type Status struct {
	ConsecutiveFailures int
	LastResult          Result
	Healthy             bool
}

// Update records a new result
func (s *Status) Update(result Result, config Config) {
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// Probe checks until the first healthy result or until Retries consecutive
// failures, and returns the last result
func Probe(ctx context.Context, checker Checker, config Config) Result {
	if config.Retries < 1 {
		config.Retries = 1
	}
	status := &Status{}

	for {
		status.Update(checker.Check(ctx), config)
		if status.Healthy || status.ConsecutiveFailures >= config.Retries {
			return status.LastResult
		}

		select {
		case <-ctx.Done():
			return status.LastResult
		case <-time.After(config.Interval):
		}
	}
}
