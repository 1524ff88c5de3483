package command

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/audit"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/config"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/metrics"
	"github.com/camera-remote/ccb/internal/params"
)

// Result is the outcome of a setter.
type Result struct {
	Unchanged bool   `json:"unchanged"`
	Reply     string `json:"reply,omitempty"`
}

// Audit results besides the normalized error codes.
const (
	resultSuccess   = "SUCCESS"
	resultUnchanged = "UNCHANGED"
)

// Controller owns the command path to one camera.
type Controller struct {
	cameraID string
	vendor   string
	channel  adapter.Channel
	session  *camera.Session
	config   *config.TimingConfig
	logger   zerolog.Logger

	publisher   Publisher
	auditLogger AuditLogger
	exposer     AutoExposer
	afterFunc   AfterFunc
	submit      SubmitFunc

	// Pending timed-shutter cancel. gen invalidates timers that fire
	// after CancelCapture or a newer capture.
	captureMu    sync.Mutex
	captureTimer Timer
	captureGen   uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets the state sink.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l AuditLogger) Option {
	return func(c *Controller) { c.auditLogger = l }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithVendor selects the result-token table used to normalize replies.
func WithVendor(vendor string) Option {
	return func(c *Controller) { c.vendor = vendor }
}

// WithAfterFunc replaces time.AfterFunc for delayed capture work.
func WithAfterFunc(f AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = f }
}

// NewController creates a controller for the camera behind channel.
func NewController(cameraID string, channel adapter.Channel, session *camera.Session, timing *config.TimingConfig, opts ...Option) *Controller {
	c := &Controller{
		cameraID: cameraID,
		vendor:   "lumix",
		channel:  channel,
		session:  session,
		config:   timing,
		logger:   zerolog.Nop(),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAutoExposer attaches the engine used by Capture. The engine in turn
// applies settings through the controller, so it is wired after creation.
func (c *Controller) SetAutoExposer(e AutoExposer) {
	c.exposer = e
}

// SetSubmitter routes work started by timers through submit so it runs
// in order with the other camera commands. Without one, that work runs
// on the timer goroutine.
func (c *Controller) SetSubmitter(submit SubmitFunc) {
	c.submit = submit
}

// Session returns the session the controller mutates.
func (c *Controller) Session() *camera.Session {
	return c.session
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() camera.Snapshot {
	return c.session.Snapshot()
}

// SetShutter sets the shutter speed by table id. Id 0 is T.
func (c *Controller) SetShutter(ctx context.Context, id int) (Result, error) {
	return c.setSetting(ctx, params.Shutter, id, true)
}

// SetAperture sets the aperture by table id.
func (c *Controller) SetAperture(ctx context.Context, id int) (Result, error) {
	return c.setSetting(ctx, params.Aperture, id, true)
}

// SetISO sets the sensitivity by table id.
func (c *Controller) SetISO(ctx context.Context, id int) (Result, error) {
	return c.setSetting(ctx, params.ISO, id, true)
}

// ApplySetting implements exposure.Applier. Settings are published once
// by SettingsApplied rather than per parameter.
func (c *Controller) ApplySetting(ctx context.Context, kind params.Kind, id int) error {
	_, err := c.setSetting(ctx, kind, id, false)
	return err
}

// SettingsApplied implements exposure.Applier.
func (c *Controller) SettingsApplied(ctx context.Context, s exposure.Settings) {
	c.publishSettings()
}

func (c *Controller) setSetting(ctx context.Context, kind params.Kind, id int, publish bool) (Result, error) {
	start := time.Now()
	action := "set" + settingAction[kind]
	auditParams := map[string]interface{}{"id": id}
	ctx = audit.WithParams(ctx, auditParams)

	cmd, label, err := encodeSetting(kind, id)
	if err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		return Result{}, err
	}
	auditParams["value"] = label

	if prev := c.session.SwapSetting(kind, id); prev == id {
		c.logger.Info().Str("setting", kind.String()).Str("value", label).Msg("setting unchanged")
		c.logAudit(ctx, action, resultUnchanged, time.Since(start))
		return Result{Unchanged: true}, nil
	}

	reply, err := c.send(ctx, cmd, c.config.CommandTimeoutSetting)
	if err != nil {
		c.logger.Error().Err(err).Str("setting", kind.String()).Str("value", label).Msg("failed to apply setting")
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return Result{Reply: reply}, err
	}

	c.logger.Info().Str("setting", kind.String()).Str("value", label).Msg("setting applied")
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	if publish {
		c.publishSettings()
	}
	return Result{Reply: reply}, nil
}

var settingAction = map[params.Kind]string{
	params.Shutter:  "Shutter",
	params.Aperture: "Aperture",
	params.ISO:      "ISO",
}

// encodeSetting returns the setsetting command for kind and id along
// with a display label.
func encodeSetting(kind params.Kind, id int) (adapter.Command, string, error) {
	switch kind {
	case params.Shutter:
		v, err := params.ShutterValue(id)
		if err != nil {
			return adapter.Command{}, "", fmt.Errorf("%w: %v", adapter.ErrInvalidRange, err)
		}
		return adapter.SetSetting("shtrspeed", v), params.ShutterLabel(id), nil
	case params.Aperture:
		v, err := params.ApertureValue(id)
		if err != nil {
			return adapter.Command{}, "", fmt.Errorf("%w: %v", adapter.ErrInvalidRange, err)
		}
		return adapter.SetSetting("focal", v), params.ApertureLabel(id), nil
	case params.ISO:
		v, err := params.ISOValue(id)
		if err != nil {
			return adapter.Command{}, "", fmt.Errorf("%w: %v", adapter.ErrInvalidRange, err)
		}
		return adapter.SetSetting("iso", strconv.Itoa(v)), params.ISOLabel(id), nil
	}
	return adapter.Command{}, "", fmt.Errorf("%w: unknown setting %v", ErrInvalidParameter, kind)
}

// MaxWhiteBalance is the largest color temperature the two-byte wire
// field can carry.
const MaxWhiteBalance = 65535

// SetWhiteBalance sets a manual color temperature in kelvin.
func (c *Controller) SetWhiteBalance(ctx context.Context, kelvin int) (Result, error) {
	start := time.Now()
	const action = "setWhiteBalance"
	ctx = audit.WithParams(ctx, map[string]interface{}{"kelvin": kelvin})

	if kelvin < 1 || kelvin > MaxWhiteBalance {
		c.logAudit(ctx, action, "INVALID_RANGE", time.Since(start))
		return Result{}, fmt.Errorf("%w: white balance %dK", adapter.ErrInvalidRange, kelvin)
	}

	if prev := c.session.SwapWhiteBalance(kelvin); prev == kelvin {
		c.logger.Info().Int("kelvin", kelvin).Msg("white balance unchanged")
		c.logAudit(ctx, action, resultUnchanged, time.Since(start))
		return Result{Unchanged: true}, nil
	}

	cmd := adapter.SetSetting("whitebalance", "color_temp", "value2", strconv.Itoa(kelvin))
	reply, err := c.send(ctx, cmd, c.config.CommandTimeoutSetting)
	if err != nil {
		c.logger.Error().Err(err).Int("kelvin", kelvin).Msg("failed to set white balance")
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return Result{Reply: reply}, err
	}

	c.logger.Info().Int("kelvin", kelvin).Msg("white balance applied")
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	c.publishSettings()
	return Result{Reply: reply}, nil
}

// send issues cmd under timeout and checks the result code of the reply.
func (c *Controller) send(ctx context.Context, cmd adapter.Command, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	c.logger.Debug().Str("query", cmd.Query()).Msg("camera command")

	body, err := c.channel.Send(ctx, cmd)
	if err == nil {
		err = adapter.CheckResult(body, c.vendor)
	}
	metrics.ObserveCameraCommand(cmd.Mode, adapter.Code(err), time.Since(start))
	return body, err
}

func (c *Controller) publishSettings() {
	if c.publisher != nil {
		c.publisher.PublishSettings(c.session.Snapshot())
	}
}

func (c *Controller) publishFault(action string, err error) {
	if c.publisher != nil {
		c.publisher.PublishFault(action, err)
	}
}

func (c *Controller) logAudit(ctx context.Context, action, result string, latency time.Duration) {
	if c.auditLogger != nil {
		c.auditLogger.LogAction(ctx, action, c.cameraID, result, latency)
	}
}
