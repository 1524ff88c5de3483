package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxBackoff        = 10.0
	minCommandTimeout = 100 * time.Millisecond
	maxCommandTimeout = 5 * time.Minute
)

// durationField names one timing value for validation messages.
type durationField struct {
	name  string
	value time.Duration
}

func commandTimeouts(t *TimingConfig) []durationField {
	return []durationField{
		{"commandTimeoutSetting", t.CommandTimeoutSetting},
		{"commandTimeoutCapture", t.CommandTimeoutCapture},
		{"commandTimeoutMode", t.CommandTimeoutMode},
		{"commandTimeoutState", t.CommandTimeoutState},
		{"commandTimeoutStream", t.CommandTimeoutStream},
	}
}

// ValidateTiming checks the timing values for consistency.
func ValidateTiming(t *TimingConfig) error {
	if t == nil {
		return fmt.Errorf("timing config cannot be nil")
	}

	positive := append([]durationField{
		{"heartbeatInterval", t.HeartbeatInterval},
		{"probeNormalInterval", t.ProbeNormalInterval},
		{"probeRecoveringInitial", t.ProbeRecoveringInitial},
		{"probeOfflineInitial", t.ProbeOfflineInitial},
		{"meterTimeout", t.MeterTimeout},
		{"eventBufferRetention", t.EventBufferRetention},
	}, commandTimeouts(t)...)
	for _, f := range positive {
		if f.value <= 0 {
			return &FieldError{Field: "timing." + f.name, Err: fmt.Errorf("must be positive, got %v", f.value)}
		}
	}

	switch {
	case t.HeartbeatJitter < 0 || t.HeartbeatJitter > t.HeartbeatInterval/2:
		return &FieldError{Field: "timing.heartbeatJitter",
			Err: fmt.Errorf("%v must be within half the interval %v", t.HeartbeatJitter, t.HeartbeatInterval)}
	case t.HeartbeatTimeout < t.HeartbeatInterval:
		return &FieldError{Field: "timing.heartbeatTimeout",
			Err: fmt.Errorf("%v is shorter than the interval %v", t.HeartbeatTimeout, t.HeartbeatInterval)}
	case t.ProbeRecoveringBackoff < 1:
		return &FieldError{Field: "timing.probeRecoveringBackoff", Err: fmt.Errorf("%v is below 1", t.ProbeRecoveringBackoff)}
	case t.ProbeOfflineBackoff < 1:
		return &FieldError{Field: "timing.probeOfflineBackoff", Err: fmt.Errorf("%v is below 1", t.ProbeOfflineBackoff)}
	case t.ProbeRecoveringMax < t.ProbeRecoveringInitial:
		return &FieldError{Field: "timing.probeRecoveringMax",
			Err: fmt.Errorf("%v is below the initial delay %v", t.ProbeRecoveringMax, t.ProbeRecoveringInitial)}
	case t.ProbeOfflineMax < t.ProbeOfflineInitial:
		return &FieldError{Field: "timing.probeOfflineMax",
			Err: fmt.Errorf("%v is below the initial delay %v", t.ProbeOfflineMax, t.ProbeOfflineInitial)}
	case t.EventBufferSize <= 0:
		return &FieldError{Field: "timing.eventBufferSize", Err: fmt.Errorf("must be positive, got %d", t.EventBufferSize)}
	}
	return nil
}

// ValidateTimingConstraints rejects values that are legal but unworkable:
// backoff factors above 10 and command timeouts outside 100ms..5m.
func ValidateTimingConstraints(t *TimingConfig) error {
	if t.ProbeRecoveringBackoff > maxBackoff {
		return &FieldError{Field: "timing.probeRecoveringBackoff", Err: fmt.Errorf("%v exceeds %v", t.ProbeRecoveringBackoff, maxBackoff)}
	}
	if t.ProbeOfflineBackoff > maxBackoff {
		return &FieldError{Field: "timing.probeOfflineBackoff", Err: fmt.Errorf("%v exceeds %v", t.ProbeOfflineBackoff, maxBackoff)}
	}
	for _, f := range commandTimeouts(t) {
		if f.value < minCommandTimeout || f.value > maxCommandTimeout {
			return &FieldError{Field: "timing." + f.name,
				Err: fmt.Errorf("%v outside [%v, %v]", f.value, minCommandTimeout, maxCommandTimeout)}
		}
	}
	return nil
}

// ValidateTimingComplete runs both timing checks.
func ValidateTimingComplete(t *TimingConfig) error {
	if err := ValidateTiming(t); err != nil {
		return err
	}
	return ValidateTimingConstraints(t)
}

// Validate checks the whole configuration except the camera address,
// which may still arrive from the command line.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := ValidateTimingComplete(cfg.Timing); err != nil {
		return err
	}

	if cfg.Camera.Port <= 0 || cfg.Camera.Port > 65535 {
		return &FieldError{Field: "camera.port", Err: fmt.Errorf("%d out of range", cfg.Camera.Port)}
	}
	if cfg.Camera.MeterPort < 0 || cfg.Camera.MeterPort > 65535 {
		return &FieldError{Field: "camera.meterPort", Err: fmt.Errorf("%d out of range", cfg.Camera.MeterPort)}
	}
	if cfg.Server.Listen == "" {
		return &FieldError{Field: "server.listen", Err: fmt.Errorf("must not be empty")}
	}
	for field, value := range map[string]string{
		"server.readTimeout":  cfg.Server.ReadTimeout,
		"server.writeTimeout": cfg.Server.WriteTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return &FieldError{Field: field, Err: err}
		}
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return &FieldError{Field: "logging.level", Err: err}
	}
	if cfg.Logging.Format != "console" && cfg.Logging.Format != "json" {
		return &FieldError{Field: "logging.format", Err: fmt.Errorf("must be console or json, got %q", cfg.Logging.Format)}
	}

	if cfg.Auth.Enabled {
		switch cfg.Auth.Algorithm {
		case "HS256":
			if cfg.Auth.Secret == "" {
				return &FieldError{Field: "auth.secret", Err: fmt.Errorf("HS256 requires a secret")}
			}
		case "RS256":
			if cfg.Auth.PublicKeyPEM == "" && cfg.Auth.JWKSURL == "" {
				return &FieldError{Field: "auth", Err: fmt.Errorf("RS256 requires publicKeyPem or jwksUrl")}
			}
		default:
			return &FieldError{Field: "auth.algorithm", Err: fmt.Errorf("unsupported %q", cfg.Auth.Algorithm)}
		}
	}

	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		return &FieldError{Field: "audit.path", Err: fmt.Errorf("must not be empty when audit is enabled")}
	}

	return nil
}

// ValidateCamera checks the camera address once all sources are applied.
func ValidateCamera(c CameraConfig) error {
	if c.Simulate {
		return nil
	}
	if len(c.Address) < 7 {
		return &FieldError{Field: "camera.address", Err: fmt.Errorf("%q is not a camera address", c.Address)}
	}
	return nil
}
