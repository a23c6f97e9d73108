package generation

import "errors"

// ErrEmptyText indicates blank input text.
var ErrEmptyText = errors.New("text is empty")

var (
	errNoEndpoint   = errors.New("no endpoint configured")
	errRateLimited  = errors.New("local rate limit reached")
	errBadStatus    = errors.New("non-2xx status")
	errInvalidJSON  = errors.New("response is not valid JSON")
	errInvalidShape = errors.New("response has no usable content")
)

// failureReason is the metrics label for a fallback cause.
func failureReason(err error) string {
	switch {
	case errors.Is(err, errNoEndpoint):
		return "no_endpoint"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, errBadStatus):
		return "status"
	case errors.Is(err, errInvalidJSON):
		return "invalid_json"
	case errors.Is(err, errInvalidShape):
		return "shape"
	default:
		return "transport"
	}
}
