package genai

import "errors"

// Sentinel errors for generator outcomes.
var (
	// ErrFiltered indicates the service declined to answer on content
	// safety grounds, or returned a payload with no content.
	ErrFiltered = errors.New("genai: response filtered")

	// ErrRateLimit indicates the service returned a rate limit response.
	ErrRateLimit = errors.New("genai: rate limited")

	// ErrServiceDown indicates the service is temporarily unavailable.
	ErrServiceDown = errors.New("genai: service unavailable")

	// ErrMalformed indicates the service returned a response that could
	// not be parsed at all.
	ErrMalformed = errors.New("genai: malformed response")

	// ErrNoCredentials indicates the credential pool is empty. This is a
	// configuration error and fatal at startup.
	ErrNoCredentials = errors.New("genai: credential pool is empty")
)

// IsTransient reports whether the error is temporary and a later attempt
// may succeed without any configuration change.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrServiceDown)
}
