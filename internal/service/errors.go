package service

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the caller aborted an in-flight request.
var ErrCancelled = errors.New("operation cancelled")

// GenericFailure is shown when an error response carries no message.
const GenericFailure = "operation failed"

// ServiceError is a non-2xx response. Message is safe to show verbatim.
type ServiceError struct {
	Status    int
	Message   string
	Details   string
	RequestID string
}

func (e *ServiceError) Error() string { return e.Message }

// ConnectivityError means no response arrived at all.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach service at %s; make sure the server is running", e.Endpoint)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// MalformedResponseError is a 2xx response whose body could not be decoded
// or lacks a mandatory field.
type MalformedResponseError struct {
	Endpoint string
	Field    string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed response from " + e.Endpoint
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ErrorKind names the failure class of err for logs.
func ErrorKind(err error) string {
	var (
		serviceErr      *ServiceError
		connectivityErr *ConnectivityError
		malformedErr    *MalformedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.As(err, &serviceErr):
		return "service"
	case errors.As(err, &connectivityErr):
		return "connectivity"
	case errors.As(err, &malformedErr):
		return "malformed_response"
	default:
		return "internal"
	}
}
