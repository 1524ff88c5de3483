package config

import (
	"time"
)

// TimingConfig groups every duration the bridge uses.
type TimingConfig struct {
	// Telemetry heartbeat
	HeartbeatInterval time.Duration
	HeartbeatJitter   time.Duration
	HeartbeatTimeout  time.Duration

	// Camera status probe cadences
	ProbeNormalInterval    time.Duration
	ProbeRecoveringInitial time.Duration
	ProbeRecoveringBackoff float64
	ProbeRecoveringMax     time.Duration
	ProbeOfflineInitial    time.Duration
	ProbeOfflineBackoff    float64
	ProbeOfflineMax        time.Duration

	// Camera command timeout classes
	CommandTimeoutSetting time.Duration
	CommandTimeoutCapture time.Duration
	CommandTimeoutMode    time.Duration
	CommandTimeoutState   time.Duration
	CommandTimeoutStream  time.Duration

	// Live metering
	MeterTimeout time.Duration

	// Telemetry replay buffer
	EventBufferSize      int
	EventBufferRetention time.Duration
}

// LoadTimingBaseline returns the baseline timing values.
func LoadTimingBaseline() *TimingConfig {
	return &TimingConfig{
		HeartbeatInterval: 15 * time.Second,
		HeartbeatJitter:   2 * time.Second,
		HeartbeatTimeout:  45 * time.Second,

		ProbeNormalInterval:    30 * time.Second,
		ProbeRecoveringInitial: 5 * time.Second,
		ProbeRecoveringBackoff: 1.5,
		ProbeRecoveringMax:     15 * time.Second,
		ProbeOfflineInitial:    10 * time.Second,
		ProbeOfflineBackoff:    2.0,
		ProbeOfflineMax:        300 * time.Second,

		CommandTimeoutSetting: 5 * time.Second,
		CommandTimeoutCapture: 10 * time.Second,
		CommandTimeoutMode:    5 * time.Second,
		CommandTimeoutState:   5 * time.Second,
		CommandTimeoutStream:  5 * time.Second,

		// The camera streams a packet well within this when it is awake.
		MeterTimeout: 4 * time.Second,

		EventBufferSize:      50,
		EventBufferRetention: 1 * time.Hour,
	}
}

// TimingOverrides is the file form of TimingConfig. Durations are Go
// duration strings ("15s"); empty or zero values keep the baseline.
type TimingOverrides struct {
	HeartbeatInterval      string  `yaml:"heartbeatInterval" toml:"heartbeatInterval"`
	HeartbeatJitter        string  `yaml:"heartbeatJitter" toml:"heartbeatJitter"`
	HeartbeatTimeout       string  `yaml:"heartbeatTimeout" toml:"heartbeatTimeout"`
	ProbeNormalInterval    string  `yaml:"probeNormalInterval" toml:"probeNormalInterval"`
	ProbeRecoveringInitial string  `yaml:"probeRecoveringInitial" toml:"probeRecoveringInitial"`
	ProbeRecoveringBackoff float64 `yaml:"probeRecoveringBackoff" toml:"probeRecoveringBackoff"`
	ProbeRecoveringMax     string  `yaml:"probeRecoveringMax" toml:"probeRecoveringMax"`
	ProbeOfflineInitial    string  `yaml:"probeOfflineInitial" toml:"probeOfflineInitial"`
	ProbeOfflineBackoff    float64 `yaml:"probeOfflineBackoff" toml:"probeOfflineBackoff"`
	ProbeOfflineMax        string  `yaml:"probeOfflineMax" toml:"probeOfflineMax"`
	CommandTimeoutSetting  string  `yaml:"commandTimeoutSetting" toml:"commandTimeoutSetting"`
	CommandTimeoutCapture  string  `yaml:"commandTimeoutCapture" toml:"commandTimeoutCapture"`
	CommandTimeoutMode     string  `yaml:"commandTimeoutMode" toml:"commandTimeoutMode"`
	CommandTimeoutState    string  `yaml:"commandTimeoutState" toml:"commandTimeoutState"`
	CommandTimeoutStream   string  `yaml:"commandTimeoutStream" toml:"commandTimeoutStream"`
	MeterTimeout           string  `yaml:"meterTimeout" toml:"meterTimeout"`
	EventBufferSize        int     `yaml:"eventBufferSize" toml:"eventBufferSize"`
	EventBufferRetention   string  `yaml:"eventBufferRetention" toml:"eventBufferRetention"`
}

// mergeTimingOverrides applies file overrides onto current.
// File values take precedence over current values.
func mergeTimingOverrides(current *TimingConfig, file TimingOverrides) (*TimingConfig, error) {
	merged := *current

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"heartbeatInterval", file.HeartbeatInterval, &merged.HeartbeatInterval},
		{"heartbeatJitter", file.HeartbeatJitter, &merged.HeartbeatJitter},
		{"heartbeatTimeout", file.HeartbeatTimeout, &merged.HeartbeatTimeout},
		{"probeNormalInterval", file.ProbeNormalInterval, &merged.ProbeNormalInterval},
		{"probeRecoveringInitial", file.ProbeRecoveringInitial, &merged.ProbeRecoveringInitial},
		{"probeRecoveringMax", file.ProbeRecoveringMax, &merged.ProbeRecoveringMax},
		{"probeOfflineInitial", file.ProbeOfflineInitial, &merged.ProbeOfflineInitial},
		{"probeOfflineMax", file.ProbeOfflineMax, &merged.ProbeOfflineMax},
		{"commandTimeoutSetting", file.CommandTimeoutSetting, &merged.CommandTimeoutSetting},
		{"commandTimeoutCapture", file.CommandTimeoutCapture, &merged.CommandTimeoutCapture},
		{"commandTimeoutMode", file.CommandTimeoutMode, &merged.CommandTimeoutMode},
		{"commandTimeoutState", file.CommandTimeoutState, &merged.CommandTimeoutState},
		{"commandTimeoutStream", file.CommandTimeoutStream, &merged.CommandTimeoutStream},
		{"meterTimeout", file.MeterTimeout, &merged.MeterTimeout},
		{"eventBufferRetention", file.EventBufferRetention, &merged.EventBufferRetention},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, &FieldError{Field: "timing." + d.name, Err: err}
		}
		*d.dst = v
	}

	if file.ProbeRecoveringBackoff != 0 {
		merged.ProbeRecoveringBackoff = file.ProbeRecoveringBackoff
	}
	if file.ProbeOfflineBackoff != 0 {
		merged.ProbeOfflineBackoff = file.ProbeOfflineBackoff
	}
	if file.EventBufferSize != 0 {
		merged.EventBufferSize = file.EventBufferSize
	}

	return &merged, nil
}
