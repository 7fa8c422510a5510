package prismacloud

import (
	"errors"
	"fmt"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// maxBodySnippet caps how much of a failing response body is kept on the
// error for logging.
const maxBodySnippet = 2048

// APIError is a platform-level failure: a non-2xx status or a 200 response
// carrying the top-level error marker. It aborts the pagination sequence it
// occurred in and nothing else.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
	Body     string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prismacloud: %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("prismacloud: %s returned %d", e.Endpoint, e.Status)
}

// newAPIError builds an APIError with the body snippet bounded.
func newAPIError(endpoint string, status int, message string, body []byte) *APIError {
	snippet := body
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet]
	}
	return &APIError{
		Endpoint: endpoint,
		Status:   status,
		Message:  message,
		Body:     string(snippet),
	}
}

// IsAPIError reports whether err is (or wraps) a platform APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// authError wraps a failed login exchange so callers can match it with
// errors.Is(err, domain.ErrAuthFailure).
func authError(status int, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w: login returned %d: %s", domain.ErrAuthFailure, status, detail)
	}
	return fmt.Errorf("%w: login returned %d", domain.ErrAuthFailure, status)
}
