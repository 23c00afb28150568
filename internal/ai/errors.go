package ai

import "github.com/prospecthq/prospector/internal/ai/aierrors"

var (
	ErrProviderUnavailable = aierrors.ErrProviderUnavailable
	ErrInferenceTimeout    = aierrors.ErrInferenceTimeout
	ErrRateLimited         = aierrors.ErrRateLimited
	ErrInvalidResponse     = aierrors.ErrInvalidResponse
)

// Transient reports whether an error is worth retrying with backoff, as
// opposed to a permanent failure of the request itself.
func Transient(err error) bool {
	return aierrors.Transient(err)
}
