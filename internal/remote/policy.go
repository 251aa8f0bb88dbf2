package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Policy is the per-request timeout and retry policy shared by paged reads and mutations
type Policy struct {
	Timeout     time.Duration // Hard deadline for one attempt
	MaxAttempts int           // Attempts per request, first included
	BackoffMin  time.Duration // Delay before the first retry
	BackoffMax  time.Duration // Delay cap
}

// DefaultPolicy returns 30s per request, 3 attempts, 1s/2s/4s backoff
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BackoffMin:  1 * time.Second,
		BackoffMax:  4 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0-based): min, 2*min, 4*min ... capped at max
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BackoffMin
	for i := 0; i < attempt && delay < p.BackoffMax; i++ {
		delay *= 2
	}
	if delay > p.BackoffMax {
		delay = p.BackoffMax
	}
	return delay
}

// shouldRetry decides whether one attempt is retried.
// 429/503 and other 5xx are retried, other 4xx never. Timeouts fail at once.
func (p Policy) shouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		if isTimeout(err) {
			return false, err
		}
		return true, nil
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, nil
	case resp.StatusCode >= 500:
		return true, nil
	}
	return false, nil
}

// isRateLimit reports whether status means "slow down" rather than "broken"
func isRateLimit(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
