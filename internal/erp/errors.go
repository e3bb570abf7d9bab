package erp

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means credentials were rejected even after a token refresh.
	ErrAuth = errors.New("erp: authentication failed")
	// ErrUpstream means the upstream stayed unreachable after retries.
	ErrUpstream = errors.New("erp: upstream unavailable")

	errUnauthorized = errors.New("erp: unauthorized")
)

// APIError is a well-formed response with a non-zero business code.
type APIError struct {
	Endpoint string
	Code     string
	Msg      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("erp %s: code %s: %s", e.Endpoint, e.Code, e.Msg)
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("erp returned %d: %s", e.StatusCode, e.Body)
}
