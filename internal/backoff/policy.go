// Package backoff computes reconnection delays.
//
// The policy is pure and deterministic: the same attempt number always
// yields the same delay. Callers own the attempt counter, reset it to zero
// on every successful connect, and stop consulting the policy once
// Exhausted reports true.
package backoff

import "time"

// Default policy values, matching the reconnect behavior of the streaming
// transport: 1s doubling per attempt, capped at 30s, give up after 10.
const (
	DefaultBase        = 1 * time.Second
	DefaultCeiling     = 30 * time.Second
	DefaultMaxAttempts = 10
)

// Policy is an exponential backoff schedule with a ceiling.
type Policy struct {
	Base        time.Duration // delay for attempt 0
	Ceiling     time.Duration // maximum delay
	MaxAttempts int           // attempts before the caller goes exhausted
}

// Default returns the standard reconnection policy.
func Default() Policy {
	return Policy{
		Base:        DefaultBase,
		Ceiling:     DefaultCeiling,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// NextDelay returns the wait before reconnection attempt n (0-indexed).
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Ceiling {
			return p.Ceiling
		}
	}

	if delay > p.Ceiling {
		return p.Ceiling
	}
	return delay
}

// Exhausted reports whether the attempt counter has passed the maximum.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
