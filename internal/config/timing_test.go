package config

import (
	"testing"
	"time"
)

func TestLoadTimingBaseline(t *testing.T) {
	cfg := LoadTimingBaseline()

	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 15s", cfg.HeartbeatInterval)
	}
	if cfg.ProbeRecoveringBackoff != 1.5 {
		t.Errorf("ProbeRecoveringBackoff = %v, want 1.5", cfg.ProbeRecoveringBackoff)
	}
	if cfg.MeterTimeout != 4*time.Second {
		t.Errorf("MeterTimeout = %v, want 4s", cfg.MeterTimeout)
	}
	if cfg.EventBufferSize != 50 {
		t.Errorf("EventBufferSize = %d, want 50", cfg.EventBufferSize)
	}
	if err := ValidateTimingComplete(cfg); err != nil {
		t.Errorf("baseline should validate: %v", err)
	}
}

func TestValidateTiming_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*TimingConfig)
		wantErr bool
	}{
		{
			name:    "baseline",
			modify:  func(c *TimingConfig) {},
			wantErr: false,
		},
		{
			name: "invalid_heartbeat_interval",
			modify: func(c *TimingConfig) {
				c.HeartbeatInterval = 0
			},
			wantErr: true,
		},
		{
			name: "jitter_exceeds_half_interval",
			modify: func(c *TimingConfig) {
				c.HeartbeatJitter = 10 * time.Second
			},
			wantErr: true,
		},
		{
			name: "timeout_below_interval",
			modify: func(c *TimingConfig) {
				c.HeartbeatTimeout = time.Second
			},
			wantErr: true,
		},
		{
			name: "recovering_backoff_below_one",
			modify: func(c *TimingConfig) {
				c.ProbeRecoveringBackoff = 0.5
			},
			wantErr: true,
		},
		{
			name: "offline_max_below_initial",
			modify: func(c *TimingConfig) {
				c.ProbeOfflineMax = time.Second
			},
			wantErr: true,
		},
		{
			name: "zero_setting_timeout",
			modify: func(c *TimingConfig) {
				c.CommandTimeoutSetting = 0
			},
			wantErr: true,
		},
		{
			name: "zero_meter_timeout",
			modify: func(c *TimingConfig) {
				c.MeterTimeout = 0
			},
			wantErr: true,
		},
		{
			name: "zero_event_buffer",
			modify: func(c *TimingConfig) {
				c.EventBufferSize = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadTimingBaseline()
			tt.modify(cfg)
			err := ValidateTiming(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTiming() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimingConstraints(t *testing.T) {
	cfg := LoadTimingBaseline()
	cfg.ProbeOfflineBackoff = 12
	if err := ValidateTimingConstraints(cfg); err == nil {
		t.Error("expected aggressive backoff to be rejected")
	}

	cfg = LoadTimingBaseline()
	cfg.CommandTimeoutCapture = 10 * time.Minute
	if err := ValidateTimingConstraints(cfg); err == nil {
		t.Error("expected long capture timeout to be rejected")
	}
}

func TestMergeTimingOverrides(t *testing.T) {
	merged, err := mergeTimingOverrides(LoadTimingBaseline(), TimingOverrides{
		HeartbeatInterval:   "20s",
		MeterTimeout:        "2500ms",
		ProbeOfflineBackoff: 3,
		EventBufferSize:     10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if merged.HeartbeatInterval != 20*time.Second {
		t.Errorf("HeartbeatInterval = %v", merged.HeartbeatInterval)
	}
	if merged.MeterTimeout != 2500*time.Millisecond {
		t.Errorf("MeterTimeout = %v", merged.MeterTimeout)
	}
	if merged.ProbeOfflineBackoff != 3 || merged.EventBufferSize != 10 {
		t.Errorf("numeric overrides not applied: %+v", merged)
	}
	if merged.CommandTimeoutSetting != 5*time.Second {
		t.Errorf("unset field changed: %v", merged.CommandTimeoutSetting)
	}

	if _, err := mergeTimingOverrides(LoadTimingBaseline(), TimingOverrides{MeterTimeout: "soon"}); err == nil {
		t.Error("expected bad duration to fail")
	}
}
