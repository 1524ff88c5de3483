package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeVendorError(t *testing.T) {
	tests := []struct {
		name         string
		vendorErr    error
		vendorID     string
		expectedCode error
		expectedMsg  string
	}{
		{
			name:         "nil error returns nil",
			vendorErr:    nil,
			vendorID:     "lumix",
			expectedCode: nil,
		},
		{
			name:         "unknown token maps to INTERNAL",
			vendorErr:    errors.New("err_something_new"),
			vendorID:     "lumix",
			expectedCode: ErrInternal,
			expectedMsg:  "INTERNAL (vendor: err_something_new)",
		},
		{
			name:         "lumix busy maps to BUSY",
			vendorErr:    errors.New("err_busy"),
			vendorID:     "lumix",
			expectedCode: ErrBusy,
			expectedMsg:  "BUSY (vendor: err_busy)",
		},
		{
			name:         "lumix reject maps to UNAVAILABLE",
			vendorErr:    errors.New("err_reject"),
			vendorID:     "lumix",
			expectedCode: ErrUnavailable,
			expectedMsg:  "UNAVAILABLE (vendor: err_reject)",
		},
		{
			name:         "lumix param maps to INVALID_RANGE",
			vendorErr:    errors.New("err_param"),
			vendorID:     "lumix",
			expectedCode: ErrInvalidRange,
			expectedMsg:  "INVALID_RANGE (vendor: err_param)",
		},
		{
			name:         "unknown vendor falls back to generic",
			vendorErr:    errors.New("CAMERA BUSY"),
			vendorID:     "nikon",
			expectedCode: ErrBusy,
			expectedMsg:  "BUSY (vendor: CAMERA BUSY)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVendorErrorWithVendor(tt.vendorErr, nil, tt.vendorID)

			if tt.expectedCode == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", result)
				}
				return
			}

			vendorErr, ok := result.(*VendorError)
			if !ok {
				t.Fatalf("Expected VendorError, got %T", result)
			}
			if vendorErr.Code != tt.expectedCode {
				t.Errorf("Expected code %v, got %v", tt.expectedCode, vendorErr.Code)
			}
			if vendorErr.Error() != tt.expectedMsg {
				t.Errorf("Expected message %q, got %q", tt.expectedMsg, vendorErr.Error())
			}
			if !errors.Is(result, tt.expectedCode) {
				t.Errorf("errors.Is(%v, %v) = false", result, tt.expectedCode)
			}
		})
	}
}

func TestNormalizePassesChannelErrorsThrough(t *testing.T) {
	chErr := NewChannelError(Camcmd("capture"), errors.New("connection refused"))

	got := NormalizeVendorErrorWithVendor(chErr, nil, "lumix")
	if got != chErr {
		t.Fatalf("expected channel error to pass through, got %v", got)
	}
	if !errors.Is(got, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", got)
	}
}

func TestNewChannelErrorClassifiesTimeouts(t *testing.T) {
	cmd := Camcmd("recmode")

	timeout := NewChannelError(cmd, fmt.Errorf("get: %w", context.DeadlineExceeded))
	if !errors.Is(timeout, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", timeout.Kind)
	}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Errorf("expected cause to be preserved")
	}

	network := NewChannelError(cmd, errors.New("no route to host"))
	if !errors.Is(network, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", network.Kind)
	}
	if network.Command != "mode=camcmd&value=recmode" {
		t.Errorf("unexpected command %q", network.Command)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "SUCCESS"},
		{NewChannelError(Camcmd("capture"), context.DeadlineExceeded), "TIMEOUT"},
		{NewChannelError(Camcmd("capture"), errors.New("refused")), "NETWORK"},
		{NormalizeVendorErrorWithVendor(errors.New("err_busy"), nil, "lumix"), "BUSY"},
		{fmt.Errorf("wrapped: %w", ErrInvalidRange), "INVALID_RANGE"},
		{errors.New("plain"), "ERROR"},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
