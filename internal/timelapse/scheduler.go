// Package timelapse triggers a fixed number of captures at a fixed interval.
package timelapse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/metrics"
)

var (
	ErrRunning = errors.New("timelapse already running")
	ErrInvalid = errors.New("invalid timelapse parameters")
)

// State is the countdown of a run. The zero State means idle.
type State struct {
	Total     int `json:"total"`
	Interval  int `json:"interval"`
	Remaining int `json:"remaining"`
}

// Running reports whether captures are still pending.
func (s State) Running() bool {
	return s.Remaining > 0
}

// Ticker is the part of time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker with period d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// TickFunc triggers one capture. st already has Remaining decremented.
type TickFunc func(st State)

// Publisher receives every state change.
type Publisher interface {
	PublishTimelapse(st State)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickerFactory replaces time.NewTicker.
func WithTickerFactory(f TickerFactory) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler runs at most one timelapse at a time. Each run holds a
// generation number; ticks from an older generation are dropped.
type Scheduler struct {
	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	onTick    TickFunc
	publisher Publisher
	newTicker TickerFactory
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewScheduler creates an idle scheduler. publisher may be nil.
func NewScheduler(onTick TickFunc, publisher Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		onTick:    onTick,
		publisher: publisher,
		newTicker: newRealTicker,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules count captures, one every interval seconds. The first
// capture happens one interval after Start.
func (s *Scheduler) Start(interval, count int) error {
	if interval <= 0 || count <= 0 {
		return fmt.Errorf("%w: interval %d count %d", ErrInvalid, interval, count)
	}

	s.mu.Lock()
	if s.state.Running() {
		s.mu.Unlock()
		return ErrRunning
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = State{Total: count, Interval: interval, Remaining: count}
	st := s.state
	ticker := s.newTicker(time.Duration(interval) * time.Second)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info().Int("interval", interval).Int("count", count).Msg("timelapse started")
	metrics.SetTimelapseRemaining(count)
	s.publish(st)

	go s.run(ctx, gen, ticker)
	return nil
}

// Stop ends the current run immediately. It is safe to call when idle,
// in which case nothing is published.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.state.Running()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = State{}
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	s.logger.Info().Msg("timelapse stopped")
	metrics.SetTimelapseRemaining(0)
	s.publish(State{})
}

// State returns the current countdown.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops any run and waits for its goroutine to exit.
func (s *Scheduler) Close() {
	s.Stop()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, gen uint64, ticker Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !s.tick(gen) {
				return
			}
		}
	}
}

// tick advances the countdown and reports whether more ticks are due.
func (s *Scheduler) tick(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || !s.state.Running() {
		s.mu.Unlock()
		return false
	}
	s.state.Remaining--
	st := s.state
	done := !st.Running()
	if done {
		s.gen++
		s.cancel()
		s.cancel = nil
		s.state = State{}
	}
	s.mu.Unlock()

	s.logger.Debug().Int("remaining", st.Remaining).Msg("timelapse tick")
	metrics.RecordTimelapseCapture()
	metrics.SetTimelapseRemaining(st.Remaining)

	if s.onTick != nil {
		s.onTick(st)
	}
	s.publish(st)

	if done {
		s.logger.Info().Int("total", st.Total).Msg("timelapse finished")
	}
	return !done
}

func (s *Scheduler) publish(st State) {
	if s.publisher != nil {
		s.publisher.PublishTimelapse(st)
	}
}
