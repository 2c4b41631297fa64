package retry

import "time"

const (
	// DefaultMaxRetries is the number of delivery retries before a log entry is terminal.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the backoff base between delivery retries.
	DefaultBaseDelay = 300 * time.Second
)

// Policy decides whether and when a failed delivery attempt is retried.
// Attempt indexes are the retry count before the attempt is recorded, so the
// first failure is attempt 0.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy returns the stock policy: 3 retries, 300s exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// ShouldRetry reports whether another retry is allowed after the given attempt.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

// NextDelay returns the backoff delay for the given attempt: BaseDelay * 2^attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}
