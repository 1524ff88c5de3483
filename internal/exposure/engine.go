package exposure

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/metrics"
	"github.com/camera-remote/ccb/internal/params"
)

// Engine errors.
var (
	ErrTimedShutter = errors.New("auto-exposure is not supported with the timed shutter")
	ErrBusy         = errors.New("auto-exposure run already in progress")
)

// applyOrder is the order the camera accepts setting changes in.
var applyOrder = [3]params.Kind{params.Shutter, params.ISO, params.Aperture}

// Applier writes settings to the camera.
type Applier interface {
	// ApplySetting sets one parameter; unchanged values are no-ops.
	ApplySetting(ctx context.Context, kind params.Kind, id int) error
	// SettingsApplied is called once after a successful run.
	SettingsApplied(ctx context.Context, s Settings)
}

// Engine runs measure-then-converge cycles.
type Engine struct {
	meter   meter.Meter
	applier Applier
	timeout time.Duration
	logger  zerolog.Logger

	running atomic.Bool
}

// NewEngine creates an engine. A zero timeout uses meter.DefaultTimeout.
func NewEngine(m meter.Meter, applier Applier, timeout time.Duration, logger zerolog.Logger) *Engine {
	if timeout <= 0 {
		timeout = meter.DefaultTimeout
	}
	return &Engine{meter: m, applier: applier, timeout: timeout, logger: logger}
}

// Run measures once and moves the camera toward correct exposure.
//
// A metering failure leaves the camera untouched. A setter failure
// aborts the remaining setters and is returned as is.
func (e *Engine) Run(ctx context.Context, cur Settings, cfg Config, timedShutter int) (Outcome, error) {
	if timedShutter != 0 {
		metrics.RecordAutoExposure("rejected")
		return Outcome{Start: cur, Target: cur}, ErrTimedShutter
	}
	if !e.running.CompareAndSwap(false, true) {
		metrics.RecordAutoExposure("busy")
		return Outcome{Start: cur, Target: cur}, ErrBusy
	}
	defer e.running.Store(false)

	sample, err := meter.Measure(ctx, e.meter, e.timeout, e.logger)
	if err != nil {
		metrics.RecordAutoExposure("error")
		return Outcome{Start: cur, Target: cur}, fmt.Errorf("metering: %w", err)
	}
	metrics.ObserveMeteringSample(sample)
	e.logger.Info().
		Int("sample", sample).
		Float64("ev", params.EVStops(sample)).
		Msg("current exposure")

	out := Plan(sample, cur, cfg)
	if out.Limited {
		direction := "raise"
		if sample > 0 {
			direction = "lower"
		}
		e.logger.Warn().
			Str("direction", direction).
			Int("steps", len(out.Steps)).
			Msg("exposure limit reached")
	}
	if sample == 0 {
		metrics.RecordAutoExposure("unchanged")
		return out, nil
	}

	e.logger.Info().
		Int("shutter", out.Target.Shutter).
		Int("aperture", out.Target.Aperture).
		Int("iso", out.Target.ISO).
		Msg("applying exposure")
	for _, kind := range applyOrder {
		id := out.Target.Get(kind)
		if id == out.Start.Get(kind) {
			continue
		}
		if err := e.applier.ApplySetting(ctx, kind, id); err != nil {
			metrics.RecordAutoExposure("error")
			return out, fmt.Errorf("apply %s: %w", kind, err)
		}
	}

	e.applier.SettingsApplied(ctx, out.Target)
	if out.Limited {
		metrics.RecordAutoExposure("limited")
	} else {
		metrics.RecordAutoExposure("ok")
	}
	return out, nil
}

// MeasureOnly takes one metering sample without touching the settings.
func (e *Engine) MeasureOnly(ctx context.Context) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer e.running.Store(false)

	sample, err := meter.Measure(ctx, e.meter, e.timeout, e.logger)
	if err != nil {
		return 0, fmt.Errorf("metering: %w", err)
	}
	metrics.ObserveMeteringSample(sample)
	return sample, nil
}
