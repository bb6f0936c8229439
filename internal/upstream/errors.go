package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream API failure. Anything else (connection reset,
// timeout, bad gateway) is a transport error and stays an ordinary error.
type Kind int

const (
	KindNotFound Kind = iota
	KindForbidden
	KindRateLimited
)

// APIError is a typed upstream failure, distinguishable from transport
// errors.
type APIError struct {
	Kind   Kind
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error (%d): %s", e.Status, e.Msg)
}

// IsGone reports whether the error means the content is permanently
// unavailable (deleted or private). Terminal for the referencing item:
// convert to a tombstone, do not retry.
func IsGone(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindNotFound || apiErr.Kind == KindForbidden
	}
	return false
}

// IsRateLimited reports whether the error is an upstream rate limit.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindRateLimited
	}
	return false
}
