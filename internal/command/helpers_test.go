package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/adapter/fake"
	"github.com/camera-remote/ccb/internal/audit"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/config"
	"github.com/camera-remote/ccb/internal/exposure"
)

type auditRecord struct {
	Action string
	Result string
}

type mockAuditLogger struct {
	mu      sync.Mutex
	records []auditRecord
	params  []map[string]interface{}
}

func (m *mockAuditLogger) LogAction(ctx context.Context, action, cameraID, result string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, auditRecord{action, result})
	m.params = append(m.params, audit.ParamsFromContext(ctx))
}

// paramsOf returns the parameters of the latest record for action.
func (m *mockAuditLogger) paramsOf(action string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Action == action {
			return m.params[i]
		}
	}
	return nil
}

func (m *mockAuditLogger) last() auditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return auditRecord{}
	}
	return m.records[len(m.records)-1]
}

type recordingPublisher struct {
	mu       sync.Mutex
	settings []camera.Snapshot
	ae       []exposure.Config
	statuses []*adapter.CameraStatus
	faults   []error
}

func (p *recordingPublisher) PublishSettings(snap camera.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = append(p.settings, snap)
}

func (p *recordingPublisher) PublishAutoExposure(cfg exposure.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ae = append(p.ae, cfg)
}

func (p *recordingPublisher) PublishCameraStatus(status string, st *adapter.CameraStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, st)
}

func (p *recordingPublisher) PublishFault(action string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults = append(p.faults, err)
}

func (p *recordingPublisher) settingsCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.settings)
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped
	t.stopped = true
	return active
}

// fire runs the callback unless the timer was stopped.
func (t *manualTimer) fire() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.f()
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) last() *manualTimer {
	return c.timers[len(c.timers)-1]
}

type fixture struct {
	cam       *fake.Camera
	session   *camera.Session
	ctrl      *Controller
	publisher *recordingPublisher
	audit     *mockAuditLogger
	clock     *manualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cam:       fake.NewCamera(),
		session:   camera.NewSession(),
		publisher: &recordingPublisher{},
		audit:     &mockAuditLogger{},
		clock:     &manualClock{},
	}
	f.ctrl = NewController("camera-01", f.cam, f.session, config.LoadTimingBaseline(),
		WithPublisher(f.publisher),
		WithAuditLogger(f.audit),
		WithAfterFunc(f.clock.AfterFunc),
	)
	return f
}

// queue collects submitted jobs so tests decide when they run.
type queue struct {
	jobs []func(ctx context.Context) error
	err  error
}

func (q *queue) submit(name string, fn func(ctx context.Context) error) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, fn)
	return nil
}

func (q *queue) runAll(t *testing.T) {
	t.Helper()
	jobs := q.jobs
	q.jobs = nil
	for _, fn := range jobs {
		_ = fn(context.Background())
	}
}
