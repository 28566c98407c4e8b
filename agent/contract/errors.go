package contract

import "errors"

// Sentinel errors classifying the failure taxonomy. Callers use
// errors.Is/errors.As against these after fmt.Errorf("%w: ...") wrapping.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDependencyMissing   = errors.New("dependency missing")
	ErrTimeout             = errors.New("timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrIOFailure           = errors.New("io failure")
	ErrInternal            = errors.New("internal error")
)
