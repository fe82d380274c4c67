package meting

import "errors"

// Error kinds reported by the resolution and probe subsystems. Callers match
// them with errors.Is; the concrete error carries the detail.
var (
	// ErrMissingParameter is returned when a required query field is absent.
	ErrMissingParameter = errors.New("missing query param")
	// ErrUnsupportedOperation is returned for unknown request types or servers.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrUpstreamResolution wraps a failed Provider Client call.
	ErrUpstreamResolution = errors.New("upstream resolution failed")
	// ErrProbeTimeout is returned when a single probe request exceeds its timeout.
	ErrProbeTimeout = errors.New("request timeout")
	// ErrTooManyRedirects is returned when a probe exhausts its hop budget.
	ErrTooManyRedirects = errors.New("too many redirects")
)
