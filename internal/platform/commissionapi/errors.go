package commissionapi

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("commission not found")
	ErrUpstreamDenied = errors.New("commission backend denied the request")
)

// StatusError is a non-2xx answer the client has no better mapping for.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: commission backend returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: commission backend returned %d: %s", e.Operation, e.StatusCode, e.Body)
}
