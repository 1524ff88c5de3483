package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/device"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/remote"
	"github.com/camera-remote/ccb/internal/timelapse"
)

// APIError is an error with its HTTP representation.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates an APIError.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, StatusCode: statusCode}
}

// ToAPIError classifies err. Unknown errors become INTERNAL.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var vendorErr *adapter.VendorError
	details := interface{}(nil)
	if errors.As(err, &vendorErr) {
		if vendorErr.Original != nil {
			details = map[string]string{"vendor": vendorErr.Original.Error()}
		}
	}

	switch {
	case errors.Is(err, command.ErrInvalidParameter):
		return NewAPIError("BAD_REQUEST", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, device.ErrNotFound):
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound, nil)
	case errors.Is(err, adapter.ErrInvalidRange), errors.Is(err, exposure.ErrInvalidConfig), errors.Is(err, timelapse.ErrInvalid):
		return NewAPIError("INVALID_RANGE", err.Error(), http.StatusBadRequest, details)
	case errors.Is(err, adapter.ErrBusy), errors.Is(err, exposure.ErrBusy),
		errors.Is(err, remote.ErrQueueFull), errors.Is(err, timelapse.ErrRunning):
		return NewAPIError("BUSY", "Camera is busy, retry with backoff", http.StatusServiceUnavailable, details)
	case errors.Is(err, adapter.ErrTimeout), errors.Is(err, meter.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return NewAPIError("TIMEOUT", "Camera did not answer in time", http.StatusGatewayTimeout, nil)
	case errors.Is(err, adapter.ErrNetwork), errors.Is(err, meter.ErrSocket):
		return NewAPIError("NETWORK", "Camera is unreachable", http.StatusBadGateway, nil)
	case errors.Is(err, adapter.ErrUnavailable), errors.Is(err, exposure.ErrTimedShutter),
		errors.Is(err, command.ErrNoAutoExposure), errors.Is(err, remote.ErrClosed):
		return NewAPIError("UNAVAILABLE", err.Error(), http.StatusServiceUnavailable, details)
	}
	return NewAPIError("INTERNAL", "Internal server error", http.StatusInternalServerError,
		map[string]string{"original": err.Error()})
}
