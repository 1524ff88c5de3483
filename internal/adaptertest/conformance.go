// Package adaptertest provides a conformance suite for camera command channels.
//
// Any adapter.Channel, whether it talks to hardware over HTTP or answers from
// memory, must pass the same checks so the controller can treat them alike.
package adaptertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/params"
)

// Options tunes the suite for a channel under test.
type Options struct {
	// Vendor selects the result token table, "lumix" by default.
	Vendor string
	// Timeout bounds every individual command.
	Timeout time.Duration
}

// RunConformance runs the conformance suite against channels built by newChannel.
func RunConformance(t *testing.T, newChannel func() adapter.Channel, opts Options) {
	t.Helper()
	if opts.Vendor == "" {
		opts.Vendor = "lumix"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	t.Run("ModeSwitch", func(t *testing.T) { runModeSwitch(t, newChannel(), opts) })
	t.Run("SettingRoundTrip", func(t *testing.T) { runSettingRoundTrip(t, newChannel(), opts) })
	t.Run("ShutterEncoding", func(t *testing.T) { runShutterEncoding(t, newChannel(), opts) })
	t.Run("State", func(t *testing.T) { runState(t, newChannel(), opts) })
	t.Run("UnknownMode", func(t *testing.T) { runUnknownMode(t, newChannel(), opts) })
	t.Run("Idempotency", func(t *testing.T) { runIdempotency(t, newChannel(), opts) })
	t.Run("CancelledContext", func(t *testing.T) { runCancelledContext(t, newChannel()) })
}

func send(t *testing.T, ch adapter.Channel, opts Options, cmd adapter.Command) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	body, err := ch.Send(ctx, cmd)
	if err != nil {
		t.Fatalf("%s: %v", cmd.Query(), err)
	}
	return body
}

func expectOK(t *testing.T, ch adapter.Channel, opts Options, cmd adapter.Command) string {
	t.Helper()
	body := send(t, ch, opts, cmd)
	if err := adapter.CheckResult(body, opts.Vendor); err != nil {
		t.Fatalf("%s: expected ok result, got %v", cmd.Query(), err)
	}
	return body
}

func runModeSwitch(t *testing.T, ch adapter.Channel, opts Options) {
	expectOK(t, ch, opts, adapter.Camcmd("recmode"))
	expectOK(t, ch, opts, adapter.Camcmd("playmode"))
}

func runSettingRoundTrip(t *testing.T, ch adapter.Channel, opts Options) {
	expectOK(t, ch, opts, adapter.SetSetting("iso", "400"))
	body := expectOK(t, ch, opts, adapter.GetSetting("iso"))

	value, err := adapter.ParseSetting(body, "iso")
	if err != nil {
		t.Fatalf("parse iso: %v", err)
	}
	iso, err := adapter.ParseRational(value)
	if err != nil {
		t.Fatalf("parse iso value: %v", err)
	}
	if id, ok := params.ISOFromValue(iso); !ok || id != 4 {
		t.Errorf("expected ISO id 4 after setting 400, got %d (ok=%v)", id, ok)
	}
}

func runShutterEncoding(t *testing.T, ch adapter.Channel, opts Options) {
	wire, err := params.ShutterValue(35)
	if err != nil {
		t.Fatal(err)
	}
	expectOK(t, ch, opts, adapter.SetSetting("shtrspeed", wire))
	body := expectOK(t, ch, opts, adapter.GetSetting("shtrspeed"))

	value, err := adapter.ParseSetting(body, "shtrspeed")
	if err != nil {
		t.Fatalf("parse shtrspeed: %v", err)
	}
	raw, err := adapter.ParseRational(value)
	if err != nil {
		t.Fatalf("parse shtrspeed value: %v", err)
	}
	if got := params.ShutterFromRaw(raw); got != 35 {
		t.Errorf("expected shutter id 35, got %d (%s)", got, value)
	}
}

func runState(t *testing.T, ch adapter.Channel, opts Options) {
	body := expectOK(t, ch, opts, adapter.NewCommand("getstate"))
	status, err := adapter.ParseCameraStatus(body)
	if err != nil {
		t.Fatalf("parse state: %v", err)
	}
	if status.CamMode == "" {
		t.Errorf("expected cammode in state reply")
	}
}

func runUnknownMode(t *testing.T, ch adapter.Channel, opts Options) {
	body := send(t, ch, opts, adapter.NewCommand("no_such_mode"))
	if err := adapter.CheckResult(body, opts.Vendor); err == nil {
		t.Errorf("expected a non-ok result for an unknown mode")
	}
}

func runIdempotency(t *testing.T, ch adapter.Channel, opts Options) {
	cmd := adapter.SetSetting("focal", "853/256")
	first := expectOK(t, ch, opts, cmd)
	second := expectOK(t, ch, opts, cmd)
	if adapter.ResultCode(first) != adapter.ResultCode(second) {
		t.Errorf("repeated command changed result: %q vs %q", first, second)
	}
}

func runCancelledContext(t *testing.T, ch adapter.Channel) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Send(ctx, adapter.Camcmd("recmode"))
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if !errors.Is(err, adapter.ErrNetwork) && !errors.Is(err, adapter.ErrTimeout) {
		t.Errorf("expected a channel error, got %v", err)
	}
}
