package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for membership operations
var (
	// ErrTimeout indicates a single request hit its deadline
	ErrTimeout = errors.New("request timed out")

	// ErrRateLimited indicates the service kept answering 429/503 after all retries
	ErrRateLimited = errors.New("rate limited by remote service")

	// ErrRemoteRejected indicates a non-retryable 4xx answer
	ErrRemoteRejected = errors.New("request rejected by remote service")

	// ErrRemoteUnavailable indicates 5xx or transport failures after all retries
	ErrRemoteUnavailable = errors.New("remote service is unavailable")

	// ErrNotFound indicates a mutation against a playlist unknown to the cache
	ErrNotFound = errors.New("playlist not found")

	// ErrAlreadyPending indicates a toggle for the same item and playlist is in flight
	ErrAlreadyPending = errors.New("toggle already pending")

	// ErrCancelled indicates a rebuild was cancelled before publishing
	ErrCancelled = errors.New("rebuild cancelled")

	// ErrAmbiguous indicates a playlist name matched more than one playlist equally well
	ErrAmbiguous = errors.New("playlist name is ambiguous")
)

// RemoteError describes a failed remote call. It unwraps to one of the sentinels above.
type RemoteError struct {
	Op       string // e.g. "get playlist items"
	Status   int    // last HTTP status, 0 if none was received
	Attempts int    // attempts made, including the first
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d after %d attempt(s): %v", e.Op, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying at a later time
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrRemoteUnavailable)
}
