package config

import (
	"fmt"
)

// Config is the complete bridge configuration.
type Config struct {
	Camera  CameraConfig    `yaml:"camera" toml:"camera"`
	Server  ServerConfig    `yaml:"server" toml:"server"`
	Auth    AuthConfig      `yaml:"auth" toml:"auth"`
	Logging LoggingConfig   `yaml:"logging" toml:"logging"`
	Audit   AuditConfig     `yaml:"audit" toml:"audit"`
	Timings TimingOverrides `yaml:"timing" toml:"timing"`

	// Timing is the resolved timing configuration.
	Timing *TimingConfig `yaml:"-" toml:"-"`
}

// CameraConfig addresses the camera.
type CameraConfig struct {
	ID        string `yaml:"id" toml:"id"`
	Address   string `yaml:"address" toml:"address"`
	Port      int    `yaml:"port" toml:"port"`
	MeterPort int    `yaml:"meterPort" toml:"meterPort"`
	Vendor    string `yaml:"vendor" toml:"vendor"`
	Simulate  bool   `yaml:"simulate" toml:"simulate"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen       string `yaml:"listen" toml:"listen"`
	ReadTimeout  string `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout string `yaml:"writeTimeout" toml:"writeTimeout"`
	// PagePath replaces the embedded remote page when set.
	PagePath string `yaml:"pagePath" toml:"pagePath"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	Algorithm    string `yaml:"algorithm" toml:"algorithm"` // "HS256" or "RS256"
	Secret       string `yaml:"secret" toml:"secret"`
	PublicKeyPEM string `yaml:"publicKeyPem" toml:"publicKeyPem"`
	JWKSURL      string `yaml:"jwksUrl" toml:"jwksUrl"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"` // "console" or "json"
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb" toml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"maxAgeDays"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Path       string `yaml:"path" toml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMb" toml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			ID:        "camera-01",
			Port:      80,
			MeterPort: 49199,
			Vendor:    "lumix",
		},
		Server: ServerConfig{
			Listen:       ":8080",
			ReadTimeout:  "30s",
			WriteTimeout: "0s",
		},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Path:       "audit/audit.jsonl",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Timing: LoadTimingBaseline(),
	}
}

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
