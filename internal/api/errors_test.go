package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/device"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/remote"
	"github.com/camera-remote/ccb/internal/timelapse"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"bad request", fmt.Errorf("%w: no settings", command.ErrInvalidParameter), "BAD_REQUEST", http.StatusBadRequest},
		{"not found", device.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"range", adapter.ErrInvalidRange, "INVALID_RANGE", http.StatusBadRequest},
		{"exposure config", exposure.ErrInvalidConfig, "INVALID_RANGE", http.StatusBadRequest},
		{"timelapse args", timelapse.ErrInvalid, "INVALID_RANGE", http.StatusBadRequest},
		{"camera busy", adapter.ErrBusy, "BUSY", http.StatusServiceUnavailable},
		{"engine busy", exposure.ErrBusy, "BUSY", http.StatusServiceUnavailable},
		{"queue full", remote.ErrQueueFull, "BUSY", http.StatusServiceUnavailable},
		{"timelapse running", timelapse.ErrRunning, "BUSY", http.StatusServiceUnavailable},
		{"camera timeout", adapter.ErrTimeout, "TIMEOUT", http.StatusGatewayTimeout},
		{"meter timeout", fmt.Errorf("metering: %w", meter.ErrTimeout), "TIMEOUT", http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, "TIMEOUT", http.StatusGatewayTimeout},
		{"network", adapter.ErrNetwork, "NETWORK", http.StatusBadGateway},
		{"meter socket", meter.ErrSocket, "NETWORK", http.StatusBadGateway},
		{"unavailable", adapter.ErrUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable},
		{"timed shutter", exposure.ErrTimedShutter, "UNAVAILABLE", http.StatusServiceUnavailable},
		{"no engine", command.ErrNoAutoExposure, "UNAVAILABLE", http.StatusServiceUnavailable},
		{"bridge closed", remote.ErrClosed, "UNAVAILABLE", http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), "INTERNAL", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Code != tt.code {
				t.Errorf("Code = %q, want %q", got.Code, tt.code)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
		})
	}
}

func TestToAPIErrorVendorDetails(t *testing.T) {
	err := &adapter.VendorError{Code: adapter.ErrBusy, Original: errors.New("err_busy")}

	got := ToAPIError(fmt.Errorf("setISO: %w", err))
	if got.Code != "BUSY" {
		t.Fatalf("Code = %q, want BUSY", got.Code)
	}
	details, ok := got.Details.(map[string]string)
	if !ok {
		t.Fatalf("Details = %T, want map[string]string", got.Details)
	}
	if details["vendor"] != "err_busy" {
		t.Errorf("vendor detail = %q, want err_busy", details["vendor"])
	}
}

func TestToAPIErrorPassesThrough(t *testing.T) {
	orig := NewAPIError("CUSTOM", "custom", http.StatusTeapot, nil)
	if got := ToAPIError(fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Errorf("ToAPIError() = %v, want the wrapped APIError", got)
	}
	if orig.Error() != "CUSTOM: custom" {
		t.Errorf("Error() = %q", orig.Error())
	}
}

func TestToAPIErrorInternalDetails(t *testing.T) {
	got := ToAPIError(errors.New("disk on fire"))
	details, ok := got.Details.(map[string]string)
	if !ok || details["original"] != "disk on fire" {
		t.Errorf("Details = %v, want original error text", got.Details)
	}
}
