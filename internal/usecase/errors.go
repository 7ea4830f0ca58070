package usecase

import "errors"

// Sentinel kinds wrapped by every service error. The HTTP layer maps each to
// one status code.
var (
	ErrInvalidInput = errors.New("invalid input")      // 400
	ErrUnauthorized = errors.New("unauthorized")       // 401
	ErrForbidden    = errors.New("forbidden")          // 403
	ErrNotFound     = errors.New("resource not found") // 404
	ErrConflict     = errors.New("conflict")           // 409
	ErrExpired      = errors.New("expired")            // 410
	ErrRateLimited  = errors.New("rate limited")       // 429

	ErrDependencyUnavailable = errors.New("dependency unavailable") // 503
)

func isClientError(err error) bool {
	for _, kind := range []error{ErrInvalidInput, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrExpired, ErrRateLimited} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
