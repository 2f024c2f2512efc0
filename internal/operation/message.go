package operation

import (
	"errors"

	"github.com/rbright/voxseal/internal/service"
	"github.com/rbright/voxseal/internal/session"
	"github.com/rbright/voxseal/internal/upload"
)

// Message is the single user-facing line for err.
func Message(err error) string {
	var (
		validationErr   *upload.ValidationError
		serviceErr      *service.ServiceError
		connectivityErr *service.ConnectivityError
		malformedErr    *service.MalformedResponseError
		captureErr      *session.CaptureError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, service.ErrCancelled):
		return "Request cancelled"
	case errors.As(err, &validationErr):
		return validationErr.Reason
	case errors.As(err, &serviceErr):
		return serviceErr.Message
	case errors.As(err, &connectivityErr):
		return connectivityErr.Error()
	case errors.As(err, &malformedErr):
		return service.GenericFailure + ": the service returned an unexpected response"
	case errors.As(err, &captureErr):
		return "Error accessing microphone. Please make sure you have granted permission."
	default:
		return service.GenericFailure
	}
}
