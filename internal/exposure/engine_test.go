package exposure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/params"
)

type applyCall struct {
	Kind params.Kind
	ID   int
}

type recordingApplier struct {
	mu      sync.Mutex
	calls   []applyCall
	applied []Settings
	failOn  params.Kind
	failErr error
}

func (r *recordingApplier) ApplySetting(ctx context.Context, kind params.Kind, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, applyCall{kind, id})
	if r.failErr != nil && kind == r.failOn {
		return r.failErr
	}
	return nil
}

func (r *recordingApplier) SettingsApplied(ctx context.Context, s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, s)
}

func TestEngineZeroSampleIssuesNoSetters(t *testing.T) {
	app := &recordingApplier{}
	e := NewEngine(meter.NewScripted(0), app, time.Second, zerolog.Nop())

	out, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultSettings, out.Target)
	assert.Empty(t, app.calls)
}

func TestEngineSingleStep(t *testing.T) {
	app := &recordingApplier{}
	e := NewEngine(meter.NewScripted(-1), app, time.Second, zerolog.Nop())

	out, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Target.Shutter)
	assert.Equal(t, []applyCall{{params.Shutter, 10}}, app.calls)
	assert.Equal(t, []Settings{out.Target}, app.applied)
}

func TestEngineAppliesShutterISOAperture(t *testing.T) {
	app := &recordingApplier{}
	cfg := fullConfig(DefaultOrder)
	cfg.Limits.Shutter = Range{9, 11}
	e := NewEngine(meter.NewScripted(-5), app, time.Second, zerolog.Nop())

	_, err := e.Run(context.Background(), defaultSettings, cfg, 0)
	require.NoError(t, err)
	assert.Equal(t, []applyCall{
		{params.Shutter, 11},
		{params.ISO, 4},
		{params.Aperture, 0},
	}, app.calls)
}

func TestEngineSetterFailureAborts(t *testing.T) {
	boom := errors.New("BUSY")
	app := &recordingApplier{failOn: params.ISO, failErr: boom}
	cfg := fullConfig(DefaultOrder)
	cfg.Limits.Shutter = Range{9, 11}
	e := NewEngine(meter.NewScripted(-5), app, time.Second, zerolog.Nop())

	_, err := e.Run(context.Background(), defaultSettings, cfg, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []applyCall{{params.Shutter, 11}, {params.ISO, 4}}, app.calls)
	assert.Empty(t, app.applied)
}

func TestEngineMeteringFailureLeavesSettings(t *testing.T) {
	m := meter.NewScripted()
	m.Push(meter.Step{Err: meter.ErrTimeout})
	app := &recordingApplier{}
	e := NewEngine(m, app, time.Second, zerolog.Nop())

	out, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 0)
	assert.ErrorIs(t, err, meter.ErrTimeout)
	assert.Equal(t, defaultSettings, out.Target)
	assert.Empty(t, app.calls)

	_, _, stops := m.Counts()
	assert.Equal(t, 1, stops)
}

func TestEngineLimitIsNotAnError(t *testing.T) {
	app := &recordingApplier{}
	cfg := Config{
		Enabled: true,
		Limits:  Limits{ISO: Range{3, 3}, Aperture: Range{1, 9}, Shutter: Range{1, 9}},
		Order:   DefaultOrder,
	}
	e := NewEngine(meter.NewScripted(-1), app, time.Second, zerolog.Nop())

	out, err := e.Run(context.Background(), defaultSettings, cfg, 0)
	require.NoError(t, err)
	assert.True(t, out.Limited)
	assert.Empty(t, app.calls)
}

func TestEngineRejectsTimedShutter(t *testing.T) {
	m := meter.NewScripted(-3)
	e := NewEngine(m, &recordingApplier{}, time.Second, zerolog.Nop())

	_, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 5)
	assert.ErrorIs(t, err, ErrTimedShutter)

	starts, _, _ := m.Counts()
	assert.Zero(t, starts)
}

// blockingMeter holds ReadSample until released.
type blockingMeter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingMeter) Start(ctx context.Context) error {
	close(b.started)
	return nil
}

func (b *blockingMeter) ReadSample(ctx context.Context, timeout time.Duration) (int, error) {
	<-b.release
	return 0, nil
}

func (b *blockingMeter) Stop(ctx context.Context) error { return nil }

func TestEngineSingleFlight(t *testing.T) {
	bm := &blockingMeter{started: make(chan struct{}), release: make(chan struct{})}
	e := NewEngine(bm, &recordingApplier{}, time.Second, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 0)
		done <- err
	}()
	<-bm.started

	_, err := e.Run(context.Background(), defaultSettings, fullConfig(DefaultOrder), 0)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.MeasureOnly(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(bm.release)
	require.NoError(t, <-done)
}

func TestEngineMeasureOnly(t *testing.T) {
	app := &recordingApplier{}
	e := NewEngine(meter.NewScripted(4), app, time.Second, zerolog.Nop())

	sample, err := e.MeasureOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sample)
	assert.Empty(t, app.calls)
}
