package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/protocol"
	"github.com/camera-remote/ccb/internal/telemetry"
	"github.com/camera-remote/ccb/internal/timelapse"
)

// DefaultQueueSize is the number of pending jobs a Bridge accepts.
const DefaultQueueSize = 64

var (
	// ErrClosed is returned when submitting to a stopped Bridge.
	ErrClosed = errors.New("bridge closed")
	// ErrQueueFull is returned when the job queue has no room.
	ErrQueueFull = errors.New("job queue full")
)

// EventSource is the hub side a Bridge needs.
type EventSource interface {
	Attach(ctx context.Context) (<-chan telemetry.Event, func())
	PublishTimelapse(st timelapse.State)
}

type job struct {
	name string
	run  func(ctx context.Context) error
	done chan error
	// values carries request-scoped values such as the audit user.
	values context.Context
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithTickerFactory replaces the timelapse ticker, for tests.
func WithTickerFactory(f timelapse.TickerFactory) Option {
	return func(b *Bridge) { b.tickerFactory = f }
}

// Bridge serializes camera work coming from remote sessions, the HTTP API
// and the timelapse scheduler.
type Bridge struct {
	ctrl      command.ControllerPort
	events    EventSource
	timelapse *timelapse.Scheduler
	logger    zerolog.Logger

	queueSize     int
	tickerFactory timelapse.TickerFactory

	jobs    chan job
	mu      sync.RWMutex
	closed  bool
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewBridge creates a Bridge and starts its worker.
func NewBridge(ctrl command.ControllerPort, events EventSource, opts ...Option) *Bridge {
	b := &Bridge{
		ctrl:      ctrl,
		events:    events,
		logger:    zerolog.Nop(),
		queueSize: DefaultQueueSize,
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.jobs = make(chan job, b.queueSize)

	tlOpts := []timelapse.Option{timelapse.WithLogger(b.logger)}
	if b.tickerFactory != nil {
		tlOpts = append(tlOpts, timelapse.WithTickerFactory(b.tickerFactory))
	}
	b.timelapse = timelapse.NewScheduler(b.timelapseTick, events, tlOpts...)

	go b.worker()
	return b
}

// Timelapse returns the timelapse countdown.
func (b *Bridge) Timelapse() timelapse.State {
	return b.timelapse.State()
}

// StartTimelapse begins a run of count captures every interval seconds.
func (b *Bridge) StartTimelapse(interval, count int) error {
	return b.timelapse.Start(interval, count)
}

// StopTimelapse ends the current run, if any.
func (b *Bridge) StopTimelapse() {
	b.timelapse.Stop()
}

// Submit queues fn without waiting for it to run.
func (b *Bridge) Submit(name string, fn func(ctx context.Context) error) error {
	return b.enqueue(job{name: name, run: fn})
}

// Do queues fn and waits for its result. fn sees the values of ctx but
// not its cancellation: a queued job runs even if the caller gives up.
func (b *Bridge) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	j := job{name: name, run: fn, done: make(chan error, 1), values: ctx}
	if err := b.enqueue(j); err != nil {
		return err
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureSession opens the camera session unless it is already open.
// Reading the settings afterwards is best effort: failures are logged and
// the session stays open.
func (b *Bridge) EnsureSession(ctx context.Context) error {
	if b.ctrl.Snapshot().Connected {
		return nil
	}
	return b.Do(ctx, "connect", func(ctx context.Context) error {
		if b.ctrl.Snapshot().Connected {
			return nil
		}
		if _, err := b.ctrl.Connect(ctx); err != nil {
			return err
		}
		if err := b.ctrl.LoadSettings(ctx); err != nil {
			b.logger.Warn().Err(err).Msg("camera settings only partially read")
		}
		b.logger.Info().Msg("camera session established")
		return nil
	})
}

func (b *Bridge) enqueue(j job) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.jobs <- j:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, j.name)
	}
}

func (b *Bridge) worker() {
	defer close(b.stopped)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.quit
		cancel()
	}()

	for {
		select {
		case <-b.quit:
			b.drain()
			return
		case j := <-b.jobs:
			b.execute(ctx, j)
		}
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case j := <-b.jobs:
			if j.done != nil {
				j.done <- ErrClosed
			}
		default:
			return
		}
	}
}

func (b *Bridge) execute(ctx context.Context, j job) {
	if j.values != nil {
		jctx, cancel := context.WithCancel(context.WithoutCancel(j.values))
		stop := context.AfterFunc(ctx, cancel)
		defer func() {
			stop()
			cancel()
		}()
		ctx = jctx
	}
	err := j.run(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Str("job", j.name).Msg("job failed")
	} else {
		b.logger.Debug().Str("job", j.name).Msg("job done")
	}
	if j.done != nil {
		j.done <- err
	}
}

// Dispatch turns a decoded client command into a job. READY packets for
// the requesting session are sent by Serve; Dispatch only handles the
// camera side.
func (b *Bridge) Dispatch(cmd protocol.Command) error {
	name := cmd.Opcode().String()
	switch c := cmd.(type) {
	case protocol.Ready:
		return b.Submit(name, b.ctrl.EnsureReady)
	case protocol.Capture:
		return b.Submit(name, b.ctrl.Capture)
	case protocol.LastPicture:
		snap := b.ctrl.Snapshot()
		b.logger.Info().Str("picture", snap.LastPicture.String()).Msg("last picture requested; image transfer not supported")
		return nil
	case protocol.SetISO:
		return b.Submit(name, func(ctx context.Context) error {
			_, err := b.ctrl.SetISO(ctx, c.ID)
			return err
		})
	case protocol.SetAperture:
		return b.Submit(name, func(ctx context.Context) error {
			_, err := b.ctrl.SetAperture(ctx, c.ID)
			return err
		})
	case protocol.SetShutter:
		return b.Submit(name, func(ctx context.Context) error {
			_, err := b.ctrl.SetShutter(ctx, c.ID)
			return err
		})
	case protocol.SetWhiteBalance:
		return b.Submit(name, func(ctx context.Context) error {
			_, err := b.ctrl.SetWhiteBalance(ctx, c.Kelvin)
			return err
		})
	case protocol.CancelCapture:
		return b.Submit(name, b.ctrl.CancelCapture)
	case protocol.Timelapse:
		return b.Submit(name, func(context.Context) error {
			if c.Stop() {
				b.StopTimelapse()
				return nil
			}
			return b.StartTimelapse(c.Interval, c.Count)
		})
	case protocol.AutoExposure:
		return b.Submit(name, func(ctx context.Context) error {
			if c.Disable {
				return b.ctrl.SetAutoExposure(ctx, exposure.DefaultConfig())
			}
			cfg, err := exposure.NewConfig(c.Limits, c.Selector)
			if err != nil {
				return err
			}
			return b.ctrl.SetAutoExposure(ctx, cfg)
		})
	case protocol.TimedShutter:
		return b.Submit(name, func(ctx context.Context) error {
			return b.ctrl.SetTimedShutter(ctx, c.Seconds)
		})
	case protocol.PhotoMode:
		return b.Submit(name, func(ctx context.Context) error {
			return b.ctrl.SelectPhotoMode(ctx, c.Mode)
		})
	}
	return fmt.Errorf("unhandled command %s", name)
}

// timelapseTick runs on the scheduler goroutine.
func (b *Bridge) timelapseTick(st timelapse.State) {
	if err := b.Submit("timelapse-capture", b.ctrl.Capture); err != nil {
		b.logger.Warn().Err(err).Int("remaining", st.Remaining).Msg("timelapse capture not queued")
	}
}

// Close stops the timelapse, then the worker. Jobs still queued fail with
// ErrClosed.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.timelapse.Close()
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.quit)
		<-b.stopped
	})
}
