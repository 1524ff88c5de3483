package device

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/config"
)

// offlineAfter is the number of consecutive failures that turn a
// recovering camera offline.
const offlineAfter = 3

// StateFunc reads the camera status once.
type StateFunc func(ctx context.Context) (*adapter.CameraStatus, error)

// StatusPublisher is told about status transitions.
type StatusPublisher interface {
	PublishCameraStatus(status string, st *adapter.CameraStatus)
}

// Prober polls one camera and keeps its inventory status current.
type Prober struct {
	cameraID  string
	manager   *Manager
	readState StateFunc
	publisher StatusPublisher
	timing    *config.TimingConfig
	logger    zerolog.Logger
	after     func(d time.Duration) <-chan time.Time
	reachable func(ctx context.Context)

	failures int
	delay    time.Duration
}

// NewProber creates a prober for cameraID.
func NewProber(cameraID string, manager *Manager, readState StateFunc, publisher StatusPublisher, timing *config.TimingConfig, logger zerolog.Logger) *Prober {
	return &Prober{
		cameraID:  cameraID,
		manager:   manager,
		readState: readState,
		publisher: publisher,
		timing:    timing,
		logger:    logger,
		after:     time.After,
	}
}

// OnReachable sets f to run on the prober goroutine after every
// successful probe. Set it before Run.
func (p *Prober) OnReachable(f func(ctx context.Context)) {
	p.reachable = f
}

// Run probes until ctx is done. The first probe is immediate.
func (p *Prober) Run(ctx context.Context) {
	for {
		d := p.ProbeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-p.after(d):
		}
	}
}

// ProbeOnce performs one probe, updates the inventory and returns the
// delay before the next probe.
func (p *Prober) ProbeOnce(ctx context.Context) time.Duration {
	st, err := p.readState(ctx)
	if ctx.Err() != nil {
		return p.timing.ProbeNormalInterval
	}

	if err == nil {
		p.failures = 0
		p.delay = p.timing.ProbeNormalInterval
		prev, _ := p.manager.Get(p.cameraID)
		if uerr := p.manager.UpdateState(p.cameraID, st); uerr != nil {
			p.logger.Warn().Err(uerr).Msg("camera not registered")
		}
		if st != nil && st.Version != "" && prev.Model != st.Version {
			_ = p.manager.SetModel(p.cameraID, st.Version)
		}
		if prev.Status != StatusOnline {
			p.logger.Info().Str("from", prev.Status).Msg("camera online")
			p.publish(StatusOnline, st)
		}
		if p.reachable != nil {
			p.reachable(ctx)
		}
		return p.delay
	}

	p.failures++
	cam, _ := p.manager.Get(p.cameraID)
	next := StatusRecovering
	if p.failures >= offlineAfter {
		next = StatusOffline
	}

	if cam.Status != next {
		p.logger.Warn().Err(err).Str("from", cam.Status).Str("to", next).Int("failures", p.failures).Msg("camera status changed")
		_, _ = p.manager.UpdateStatus(p.cameraID, next)
		p.publish(next, nil)
		if next == StatusOffline {
			p.delay = p.timing.ProbeOfflineInitial
		} else {
			p.delay = p.timing.ProbeRecoveringInitial
		}
		return p.delay
	}

	p.logger.Debug().Err(err).Str("status", next).Int("failures", p.failures).Msg("camera probe failed")
	if next == StatusOffline {
		p.delay = backoff(p.delay, p.timing.ProbeOfflineBackoff, p.timing.ProbeOfflineMax)
	} else {
		p.delay = backoff(p.delay, p.timing.ProbeRecoveringBackoff, p.timing.ProbeRecoveringMax)
	}
	return p.delay
}

func (p *Prober) publish(status string, st *adapter.CameraStatus) {
	if p.publisher != nil {
		p.publisher.PublishCameraStatus(status, st)
	}
}

func backoff(cur time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next > max {
		return max
	}
	return next
}
