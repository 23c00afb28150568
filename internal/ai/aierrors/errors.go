// Package aierrors holds the AI sentinel errors in a leaf package so that
// provider subpackages can wrap them without importing the factory package.
package aierrors

import "errors"

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrRateLimited         = errors.New("ai provider rate limited")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// Transient reports whether an error is worth retrying with backoff, as
// opposed to a permanent failure of the request itself.
func Transient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInferenceTimeout) ||
		errors.Is(err, ErrRateLimited)
}
