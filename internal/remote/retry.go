package remote

import (
	"errors"
	"math/rand"
	"time"
)

// transientError marks a failure worth retrying: network errors and
// server-side (5xx) responses. Client-side statuses are final.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// backoff returns the delay before retry attempt n (0-indexed), capped
// with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
