package lifecycle

import "errors"

// Error taxonomy surfaced to callers. The HTTP boundary maps these with
// errors.Is; everything else is an internal error.
var (
	// ErrNotFound means the request id is unknown.
	ErrNotFound = errors.New("request not found")
	// ErrForbidden means the actor is banned or is neither the sender nor
	// the assigned carrier for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState means the request is not in the source state the
	// operation requires.
	ErrInvalidState = errors.New("invalid request state")
	// ErrInvalidToken means an action token is expired, malformed, or was
	// issued for a different request.
	ErrInvalidToken = errors.New("invalid action token")
)
