package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Normalized camera errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrInternal     = errors.New("INTERNAL")
)

// Command channel failures.
var (
	ErrNetwork = errors.New("NETWORK")
	ErrTimeout = errors.New("TIMEOUT")
)

// ChannelError reports a failed command exchange.
type ChannelError struct {
	Kind    error // ErrNetwork or ErrTimeout
	Command string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Command, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *ChannelError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewChannelError classifies err as a timeout or a network failure.
func NewChannelError(cmd Command, err error) *ChannelError {
	kind := ErrNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrTimeout
	}
	return &ChannelError{Kind: kind, Command: cmd.Query(), Err: err}
}

// VendorMap defines the result token mapping for a specific vendor.
type VendorMap struct {
	Range       []string // Tokens that map to INVALID_RANGE
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// VendorErrorMappings contains the result token tables per vendor.
//
// Unknown tokens map to INTERNAL. Vendors without an entry fall back to
// "generic".
var VendorErrorMappings = map[string]VendorMap{
	"lumix": {
		Range: []string{
			"err_param",
			"err_value",
			"err_non_support",
		},
		Busy: []string{
			"err_busy",
			"err_capturing",
			"err_sd_access",
		},
		Unavailable: []string{
			"err_reject",
			"err_unsuitable_app",
			"err_not_connected",
			"err_lens_off",
			"err_no_sd",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_RANGE",
			"BAD_VALUE",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"TOO_MANY_REQUESTS",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"REJECT",
			"OFFLINE",
			"NOT_READY",
		},
	},
}

// VendorError wraps a camera result code with its normalized code.
type VendorError struct {
	Code     error       // Normalized code
	Original error       // Vendor error
	Details  interface{} // Vendor payload (opaque)
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor: %v)", e.Code, e.Original)
}

func (e *VendorError) Unwrap() error {
	return e.Code
}

// NormalizeVendorError maps vendor errors using the generic table.
func NormalizeVendorError(vendorErr error, vendorPayload interface{}) error {
	return NormalizeVendorErrorWithVendor(vendorErr, vendorPayload, "generic")
}

// NormalizeVendorErrorWithVendor maps vendor errors using a specific vendor table.
// Channel errors and already normalized errors pass through unchanged.
func NormalizeVendorErrorWithVendor(vendorErr error, vendorPayload interface{}, vendorID string) error {
	if vendorErr == nil {
		return nil
	}

	var chErr *ChannelError
	var vErr *VendorError
	if errors.As(vendorErr, &chErr) || errors.As(vendorErr, &vErr) {
		return vendorErr
	}

	return &VendorError{
		Code:     mapVendorErrorToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
		Details:  vendorPayload,
	}
}

// mapVendorErrorToCode maps a vendor error message to a normalized code.
func mapVendorErrorToCode(msg string, vendorID string) error {
	vendorMap, exists := VendorErrorMappings[vendorID]
	if !exists {
		vendorMap = VendorErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range vendorMap.Range {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrInvalidRange
		}
	}

	for _, token := range vendorMap.Busy {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrBusy
		}
	}

	for _, token := range vendorMap.Unavailable {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrUnavailable
		}
	}

	return ErrInternal
}

// Code returns the normalized code name of err, or "ERROR" when err carries none.
func Code(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrNetwork):
		return "NETWORK"
	case errors.Is(err, ErrInvalidRange):
		return "INVALID_RANGE"
	case errors.Is(err, ErrBusy):
		return "BUSY"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrInternal):
		return "INTERNAL"
	default:
		return "ERROR"
	}
}
