package controller

import (
	"errors"
	"fmt"

	"github.com/kalambet/mmx/internal/backend"
)

// ValidationError reports input that failed a client-side rule. It is always
// raised before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError reports a transport-level failure on a read operation. Callers
// recover by presenting an empty result alongside the advisory message.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// QueryError is the sole error state for a dispatched search: either the
// transport failed or the backend signalled an application-level error.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	var apiErr *backend.APIError
	if errors.As(e.Err, &apiErr) && apiErr.StatusCode == 0 {
		return apiErr.Message
	}
	return fmt.Sprintf("search failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ServerError reports a collection-create rejected by the backend, carrying
// the backend-provided message.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// ErrSuperseded is returned by Dispatch when a newer query started before
// this one resolved; the outcome was discarded and no state changed.
var ErrSuperseded = errors.New("query superseded by a newer dispatch")
