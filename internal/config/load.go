package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Load merges defaults + optional config file + env overrides (CCB_*),
// then validates. An empty path falls back to CCB_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CCB_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	timing, err := mergeTimingOverrides(cfg.Timing, cfg.Timings)
	if err != nil {
		return nil, err
	}
	cfg.Timing = timing

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes a YAML or TOML file onto cfg, chosen by extension.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(filename))
	}
}

// applyEnvOverrides applies CCB_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	// Camera
	cfg.Camera.ID = GetEnvVar("CCB_CAMERA_ID", cfg.Camera.ID)
	cfg.Camera.Address = GetEnvVar("CCB_CAMERA_ADDRESS", cfg.Camera.Address)
	cfg.Camera.Port = GetEnvInt("CCB_CAMERA_PORT", cfg.Camera.Port)
	cfg.Camera.MeterPort = GetEnvInt("CCB_METER_PORT", cfg.Camera.MeterPort)
	if val := os.Getenv("CCB_SIMULATE"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return &FieldError{Field: "CCB_SIMULATE", Err: err}
		}
		cfg.Camera.Simulate = b
	}

	// Server
	cfg.Server.Listen = GetEnvVar("CCB_LISTEN", cfg.Server.Listen)
	cfg.Server.PagePath = GetEnvVar("CCB_PAGE_PATH", cfg.Server.PagePath)

	// Auth
	if val := os.Getenv("CCB_AUTH_ENABLED"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return &FieldError{Field: "CCB_AUTH_ENABLED", Err: err}
		}
		cfg.Auth.Enabled = b
	}
	cfg.Auth.Algorithm = GetEnvVar("CCB_AUTH_ALGORITHM", cfg.Auth.Algorithm)
	cfg.Auth.Secret = GetEnvVar("CCB_AUTH_SECRET", cfg.Auth.Secret)
	cfg.Auth.JWKSURL = GetEnvVar("CCB_AUTH_JWKS_URL", cfg.Auth.JWKSURL)

	// Logging
	cfg.Logging.Level = GetEnvVar("CCB_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = GetEnvVar("CCB_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = GetEnvVar("CCB_LOG_FILE", cfg.Logging.File)

	// Audit
	cfg.Audit.Path = GetEnvVar("CCB_AUDIT_PATH", cfg.Audit.Path)

	// Timing
	t := cfg.Timing
	t.HeartbeatInterval = GetEnvDuration("CCB_TIMING_HEARTBEAT_INTERVAL", t.HeartbeatInterval)
	t.HeartbeatJitter = GetEnvDuration("CCB_TIMING_HEARTBEAT_JITTER", t.HeartbeatJitter)
	t.HeartbeatTimeout = GetEnvDuration("CCB_TIMING_HEARTBEAT_TIMEOUT", t.HeartbeatTimeout)
	t.ProbeNormalInterval = GetEnvDuration("CCB_TIMING_PROBE_NORMAL_INTERVAL", t.ProbeNormalInterval)
	t.ProbeRecoveringInitial = GetEnvDuration("CCB_TIMING_PROBE_RECOVERING_INITIAL", t.ProbeRecoveringInitial)
	t.ProbeRecoveringBackoff = GetEnvFloat("CCB_TIMING_PROBE_RECOVERING_BACKOFF", t.ProbeRecoveringBackoff)
	t.ProbeRecoveringMax = GetEnvDuration("CCB_TIMING_PROBE_RECOVERING_MAX", t.ProbeRecoveringMax)
	t.ProbeOfflineInitial = GetEnvDuration("CCB_TIMING_PROBE_OFFLINE_INITIAL", t.ProbeOfflineInitial)
	t.ProbeOfflineBackoff = GetEnvFloat("CCB_TIMING_PROBE_OFFLINE_BACKOFF", t.ProbeOfflineBackoff)
	t.ProbeOfflineMax = GetEnvDuration("CCB_TIMING_PROBE_OFFLINE_MAX", t.ProbeOfflineMax)
	t.CommandTimeoutSetting = GetEnvDuration("CCB_TIMING_COMMAND_SETTING", t.CommandTimeoutSetting)
	t.CommandTimeoutCapture = GetEnvDuration("CCB_TIMING_COMMAND_CAPTURE", t.CommandTimeoutCapture)
	t.CommandTimeoutMode = GetEnvDuration("CCB_TIMING_COMMAND_MODE", t.CommandTimeoutMode)
	t.CommandTimeoutState = GetEnvDuration("CCB_TIMING_COMMAND_STATE", t.CommandTimeoutState)
	t.CommandTimeoutStream = GetEnvDuration("CCB_TIMING_COMMAND_STREAM", t.CommandTimeoutStream)
	t.MeterTimeout = GetEnvDuration("CCB_TIMING_METER_TIMEOUT", t.MeterTimeout)
	t.EventBufferSize = GetEnvInt("CCB_TIMING_EVENT_BUFFER_SIZE", t.EventBufferSize)
	t.EventBufferRetention = GetEnvDuration("CCB_TIMING_EVENT_BUFFER_RETENTION", t.EventBufferRetention)

	return nil
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns the value of an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvFloat returns the value of an environment variable as a float64 with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
