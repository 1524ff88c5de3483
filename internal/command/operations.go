package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/audit"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/params"
)

// ErrNoAutoExposure is returned when no engine is attached.
var ErrNoAutoExposure = errors.New("auto-exposure engine not configured")

// Connect switches the camera to play mode and reads its content count.
// A second call reports Unchanged without talking to the camera.
func (c *Controller) Connect(ctx context.Context) (Result, error) {
	start := time.Now()
	const action = "connect"

	if c.session.Connected() {
		c.logger.Info().Msg("camera already connected")
		c.logAudit(ctx, action, resultUnchanged, time.Since(start))
		return Result{Unchanged: true}, nil
	}

	if _, err := c.send(ctx, adapter.Camcmd("playmode"), c.config.CommandTimeoutMode); err != nil {
		c.logger.Error().Err(err).Msg("failed to switch camera to play mode")
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return Result{}, err
	}
	c.session.SetReady(false)

	reply, err := c.send(ctx, adapter.NewCommand("get_content_info"), c.config.CommandTimeoutState)
	if err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return Result{Reply: reply}, err
	}
	if n, err := adapter.ParseContentCount(reply); err == nil {
		c.logger.Info().Int("contents", n).Msg("camera connected")
	} else {
		c.logger.Warn().Err(err).Msg("camera connected without content count")
	}

	c.session.SetConnected(true)
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	return Result{Reply: adapter.ResultCode(reply)}, nil
}

// LoadSettings reads shutter, ISO and aperture from the camera. Values
// that cannot be read keep their session defaults; the failures are
// logged and returned joined. A camera in T is moved to the longest
// timed shutter speed.
func (c *Controller) LoadSettings(ctx context.Context) error {
	var errs []error

	if raw, err := c.readRational(ctx, "shtrspeed"); err != nil {
		c.logger.Warn().Err(err).Msg("could not read shutter speed")
		errs = append(errs, err)
	} else if id := params.ShutterFromRaw(raw); id != params.ShutterBulb {
		c.session.SwapSetting(params.Shutter, id)
		c.logger.Info().Str("shutter", params.ShutterLabel(id)).Msg("shutter speed read from camera")
	} else {
		c.logger.Info().Msg("camera shutter is T, switching to the longest timed speed")
		if _, err := c.SetShutter(ctx, params.ShutterCount-1); err != nil {
			errs = append(errs, err)
		}
	}

	if value, err := c.readSetting(ctx, "iso"); err != nil {
		c.logger.Warn().Err(err).Msg("could not read ISO")
		errs = append(errs, err)
	} else if iso, convErr := strconv.Atoi(value); convErr != nil {
		c.logger.Warn().Str("iso", value).Msg("camera reported a non-numeric ISO")
		errs = append(errs, fmt.Errorf("%w: iso %q", adapter.ErrMalformedReply, value))
	} else if id, ok := params.ISOFromValue(iso); ok {
		c.session.SwapSetting(params.ISO, id)
		c.logger.Info().Int("iso", iso).Msg("ISO read from camera")
	} else {
		c.logger.Warn().Int("iso", iso).Msg("camera ISO is not in the table")
	}

	if raw, err := c.readRational(ctx, "focal"); err != nil {
		c.logger.Warn().Err(err).Msg("could not read aperture")
		errs = append(errs, err)
	} else {
		id := params.ApertureFromRaw(raw)
		c.session.SwapSetting(params.Aperture, id)
		c.logger.Info().Str("aperture", params.ApertureLabel(id)).Msg("aperture read from camera")
	}

	c.publishSettings()
	return errors.Join(errs...)
}

func (c *Controller) readSetting(ctx context.Context, kind string) (string, error) {
	reply, err := c.send(ctx, adapter.GetSetting(kind), c.config.CommandTimeoutState)
	if err != nil {
		return "", err
	}
	return adapter.ParseSetting(reply, kind)
}

func (c *Controller) readRational(ctx context.Context, kind string) (int, error) {
	value, err := c.readSetting(ctx, kind)
	if err != nil {
		return 0, err
	}
	return adapter.ParseRational(value)
}

// SetMode switches the camera between "rec" and "play".
func (c *Controller) SetMode(ctx context.Context, mode string) error {
	start := time.Now()
	action := "setMode"
	ctx = audit.WithParams(ctx, map[string]interface{}{"mode": mode})

	var value string
	switch mode {
	case "rec":
		value = "recmode"
	case "play":
		value = "playmode"
	default:
		c.logAudit(ctx, action, "INVALID_RANGE", time.Since(start))
		return fmt.Errorf("%w: unknown mode %q", adapter.ErrInvalidRange, mode)
	}

	if _, err := c.send(ctx, adapter.Camcmd(value), c.config.CommandTimeoutMode); err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return err
	}
	c.session.SetReady(mode == "rec")
	c.logger.Info().Str("mode", mode).Msg("camera mode set")
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	return nil
}

// EnsureReady puts the camera into rec mode unless it already is.
func (c *Controller) EnsureReady(ctx context.Context) error {
	if c.session.Ready() {
		return nil
	}
	return c.SetMode(ctx, "rec")
}

// Capture takes one picture.
//
// With the timed shutter on, the shutter opens now and a cancel-capture
// is scheduled after the configured seconds; CancelCapture ends it early.
// Otherwise, with auto-exposure enabled, one engine run precedes the
// capture; an engine failure is logged and the capture proceeds.
func (c *Controller) Capture(ctx context.Context) error {
	start := time.Now()
	const action = "capture"

	timed := c.session.TimedShutter()
	ctx = audit.WithParams(ctx, map[string]interface{}{"timedShutter": timed})
	if timed == 0 {
		if ae := c.session.AutoExposure(); ae.Enabled && c.exposer != nil {
			if _, err := c.exposer.Run(ctx, c.session.Settings(), ae, 0); err != nil {
				c.logger.Warn().Err(err).Msg("auto-exposure failed, capturing with current settings")
			}
		}
	}

	if _, err := c.send(ctx, adapter.Camcmd("capture"), c.config.CommandTimeoutCapture); err != nil {
		c.logger.Error().Err(err).Msg("capture failed")
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return err
	}
	c.logAudit(ctx, action, resultSuccess, time.Since(start))

	if timed > 0 {
		c.logger.Info().Int("seconds", timed).Msg("timed exposure started")
		c.scheduleTimedCancel(time.Duration(timed) * time.Second)
		return nil
	}

	exposureTime := params.ShutterSeconds(c.session.Setting(params.Shutter))
	if exposureTime < 0 {
		exposureTime = 0
	}
	c.afterFunc(time.Duration(exposureTime*float64(time.Second)), func() {
		p := c.session.PictureTaken()
		c.logger.Debug().Stringer("picture", p).Msg("picture taken")
	})
	return nil
}

func (c *Controller) scheduleTimedCancel(d time.Duration) {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	if c.captureTimer != nil {
		c.captureTimer.Stop()
	}
	c.captureGen++
	gen := c.captureGen
	c.captureTimer = c.afterFunc(d, func() { c.endTimedCapture(gen) })
}

// endTimedCapture runs when a timed exposure is due to end. The shutter
// is closed through the submitter when there is one.
func (c *Controller) endTimedCapture(gen uint64) {
	if c.submit == nil {
		_ = c.finishTimedCapture(context.Background(), gen)
		return
	}
	err := c.submit("timed-capture-end", func(ctx context.Context) error {
		return c.finishTimedCapture(ctx, gen)
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("timed exposure end not queued, closing the shutter directly")
		_ = c.finishTimedCapture(context.Background(), gen)
	}
}

// finishTimedCapture closes the shutter at the end of a timed exposure
// unless CancelCapture or a newer capture got there first.
func (c *Controller) finishTimedCapture(ctx context.Context, gen uint64) error {
	c.captureMu.Lock()
	if gen != c.captureGen {
		c.captureMu.Unlock()
		return nil
	}
	c.captureTimer = nil
	c.captureMu.Unlock()

	_, err := c.send(ctx, adapter.Camcmd("capture_cancel"), c.config.CommandTimeoutCapture)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to end timed exposure")
		c.publishFault("capture", err)
	}
	p := c.session.PictureTaken()
	c.logger.Info().Stringer("picture", p).Msg("timed exposure finished")
	return err
}

// CancelCapture ends a running exposure. A pending timed-shutter cancel
// is dropped and the picture is counted.
func (c *Controller) CancelCapture(ctx context.Context) error {
	start := time.Now()
	const action = "cancelCapture"

	c.captureMu.Lock()
	pending := c.captureTimer != nil
	if pending {
		c.captureTimer.Stop()
		c.captureTimer = nil
	}
	c.captureGen++
	c.captureMu.Unlock()

	if _, err := c.send(ctx, adapter.Camcmd("capture_cancel"), c.config.CommandTimeoutCapture); err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return err
	}
	if pending {
		p := c.session.PictureTaken()
		c.logger.Info().Stringer("picture", p).Msg("timed exposure cancelled")
	}
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	return nil
}

// TimedExposurePending reports whether a timed-shutter capture is open.
func (c *Controller) TimedExposurePending() bool {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	return c.captureTimer != nil
}

// MaxTimedShutter is the longest timed shutter the one-byte wire field
// can carry.
const MaxTimedShutter = 255

// SetTimedShutter turns the timed shutter on for seconds, or off for 0.
// Turning it on moves the camera to T; turning it off restores the
// shutter speed in use before.
func (c *Controller) SetTimedShutter(ctx context.Context, seconds int) error {
	start := time.Now()
	const action = "setTimedShutter"
	ctx = audit.WithParams(ctx, map[string]interface{}{"seconds": seconds})

	if seconds < 0 || seconds > MaxTimedShutter {
		c.logAudit(ctx, action, "INVALID_RANGE", time.Since(start))
		return fmt.Errorf("%w: timed shutter %ds", adapter.ErrInvalidRange, seconds)
	}

	if seconds == 0 {
		if c.session.TimedShutter() == 0 {
			c.logAudit(ctx, action, resultUnchanged, time.Since(start))
			return nil
		}
		restore := c.session.DisableTimedShutter()
		c.logger.Info().Str("shutter", params.ShutterLabel(restore)).Msg("timed shutter off")
		_, err := c.SetShutter(ctx, restore)
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		return err
	}

	c.session.EnableTimedShutter(seconds)
	c.logger.Info().Int("seconds", seconds).Msg("timed shutter on")
	res, err := c.SetShutter(ctx, params.ShutterBulb)
	if err == nil && res.Unchanged {
		// Already in T, only the seconds changed.
		c.publishSettings()
	}
	c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
	return err
}

// SelectPhotoMode records the photo mode and sets the matching drive mode.
func (c *Controller) SelectPhotoMode(ctx context.Context, mode camera.PhotoMode) error {
	start := time.Now()
	const action = "selectPhotoMode"
	ctx = audit.WithParams(ctx, map[string]interface{}{"mode": mode.String()})

	if !mode.Valid() {
		c.logAudit(ctx, action, "INVALID_RANGE", time.Since(start))
		return fmt.Errorf("%w: photo mode %d", adapter.ErrInvalidRange, int(mode))
	}

	c.session.SetPhotoMode(mode)
	drive := "normal"
	if mode == camera.PhotoBurst {
		drive = "burst"
	}

	if _, err := c.send(ctx, adapter.SetSetting("drivemode", drive), c.config.CommandTimeoutSetting); err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return err
	}
	c.logger.Info().Stringer("mode", mode).Str("drive", drive).Msg("photo mode selected")
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	c.publishSettings()
	return nil
}

// SetAutoExposure stores the auto-exposure configuration. A disabled cfg
// turns server-side auto-exposure off.
func (c *Controller) SetAutoExposure(ctx context.Context, cfg exposure.Config) error {
	start := time.Now()
	const action = "setAutoExposure"
	aeParams := map[string]interface{}{"enabled": cfg.Enabled}
	if cfg.Enabled {
		aeParams["order"] = cfg.Order.String()
		aeParams["limits"] = cfg.Limits
	}
	ctx = audit.WithParams(ctx, aeParams)

	if !cfg.Enabled {
		c.session.DisableAutoExposure()
		c.logger.Info().Msg("auto-exposure disabled")
	} else {
		if err := cfg.Limits.Validate(); err != nil {
			c.logAudit(ctx, action, "INVALID_RANGE", time.Since(start))
			return fmt.Errorf("%w: %v", adapter.ErrInvalidRange, err)
		}
		c.session.SetAutoExposure(cfg)
		c.logger.Info().
			Interface("limits", cfg.Limits).
			Stringer("order", cfg.Order).
			Msg("auto-exposure enabled")
	}

	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	if c.publisher != nil {
		c.publisher.PublishAutoExposure(c.session.AutoExposure())
	}
	return nil
}

// RunAutoExposure runs the engine once with the session configuration.
func (c *Controller) RunAutoExposure(ctx context.Context) (exposure.Outcome, error) {
	if c.exposer == nil {
		return exposure.Outcome{}, ErrNoAutoExposure
	}
	cfg := c.session.AutoExposure()
	if !cfg.Enabled {
		cfg.Limits = exposure.FullLimits()
	}
	return c.exposer.Run(ctx, c.session.Settings(), cfg, c.session.TimedShutter())
}

// Measure returns one metering sample in third-stops.
func (c *Controller) Measure(ctx context.Context) (int, error) {
	if c.exposer == nil {
		return 0, ErrNoAutoExposure
	}
	return c.exposer.MeasureOnly(ctx)
}

// CameraState queries and stores the camera status.
func (c *Controller) CameraState(ctx context.Context) (*adapter.CameraStatus, error) {
	start := time.Now()
	const action = "getState"

	reply, err := c.send(ctx, adapter.NewCommand("getstate"), c.config.CommandTimeoutState)
	if err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		c.publishFault(action, err)
		return nil, err
	}
	st, err := adapter.ParseCameraStatus(reply)
	if err != nil {
		c.logAudit(ctx, action, adapter.Code(err), time.Since(start))
		return nil, err
	}

	c.session.SetStatus(st)
	c.logAudit(ctx, action, resultSuccess, time.Since(start))
	if c.publisher != nil {
		c.publisher.PublishCameraStatus("online", st)
	}
	return st, nil
}

// SetLastPicture overrides the picture counter.
func (c *Controller) SetLastPicture(folder, number int) error {
	if folder < 100 || folder > 999 || number < 1 || number > 9999 {
		return fmt.Errorf("%w: picture %d-%d", adapter.ErrInvalidRange, folder, number)
	}
	c.session.SetLastPicture(camera.Picture{Folder: folder, Number: number})
	return nil
}
