package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/adapter/fake"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/config"
	"github.com/camera-remote/ccb/internal/device"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/remote"
	"github.com/camera-remote/ccb/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testStack struct {
	cam     *fake.Camera
	meter   *meter.Scripted
	ctrl    *command.Controller
	bridge  *remote.Bridge
	hub     *telemetry.Hub
	devices *device.Manager
	server  *Server
}

// newTestStack wires the real controller, bridge and hub over a fake
// camera. connect puts the session online.
func newTestStack(t *testing.T, connect bool, mutate ...func(*Deps)) *testStack {
	t.Helper()
	timing := config.LoadTimingBaseline()

	st := &testStack{
		cam:     fake.NewCamera(),
		meter:   meter.NewScripted(),
		hub:     telemetry.NewHub("camera-01", timing, zerolog.Nop()),
		devices: device.NewManager(),
	}
	st.ctrl = command.NewController("camera-01", st.cam, camera.NewSession(), timing,
		command.WithPublisher(st.hub),
		command.WithLogger(zerolog.Nop()),
	)
	st.ctrl.SetAutoExposer(exposure.NewEngine(st.meter, st.ctrl, timing.MeterTimeout, zerolog.Nop()))
	st.bridge = remote.NewBridge(st.ctrl, st.hub, remote.WithLogger(zerolog.Nop()))
	t.Cleanup(func() {
		st.bridge.Close()
		st.hub.Stop()
	})

	require.NoError(t, st.devices.Register("camera-01", "192.168.54.1", "lumix"))
	if connect {
		_, err := st.ctrl.Connect(context.Background())
		require.NoError(t, err)
	}

	deps := Deps{
		Camera:    st.ctrl,
		Dispatch:  st.bridge,
		Telemetry: st.hub,
		Devices:   st.devices,
		Logger:    zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	st.server = NewServer(deps, 5*time.Second, 5*time.Second)
	return st
}

func (st *testStack) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	st.server.Handler().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// data decodes the data member of a success envelope into v.
func data(t *testing.T, resp Response, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealth(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		st := newTestStack(t, true)
		w, resp := st.do(t, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, w.Code)

		var health struct {
			Status     string          `json:"status"`
			Version    string          `json:"version"`
			Subsystems map[string]bool `json:"subsystems"`
		}
		data(t, resp, &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, Version, health.Version)
		assert.True(t, health.Subsystems["camera"])
		assert.NotEmpty(t, resp.CorrelationID)
	})

	t.Run("camera not connected", func(t *testing.T) {
		st := newTestStack(t, false)
		w, resp := st.do(t, http.MethodGet, "/api/v1/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "SERVICE_DEGRADED", resp.Code)
	})
}

func TestHealthRecoversWhenCameraReturns(t *testing.T) {
	st := newTestStack(t, false)
	ctx := context.Background()

	st.cam.SetFault("camcmd", fake.FaultNetwork)
	require.Error(t, st.bridge.EnsureSession(ctx))
	w, _ := st.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	st.cam.SetFault("camcmd", fake.FaultNone)
	readState := func(ctx context.Context) (*adapter.CameraStatus, error) {
		var cs *adapter.CameraStatus
		err := st.bridge.Do(ctx, "probe", func(ctx context.Context) error {
			var err error
			cs, err = st.ctrl.CameraState(ctx)
			return err
		})
		return cs, err
	}
	prober := device.NewProber("camera-01", st.devices, readState, st.hub, config.LoadTimingBaseline(), zerolog.Nop())
	prober.OnReachable(func(ctx context.Context) {
		assert.NoError(t, st.bridge.EnsureSession(ctx))
	})
	prober.ProbeOnce(ctx)

	w, _ = st.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, st.ctrl.Snapshot().Connected)
	assert.Equal(t, 3, st.cam.CountMode("getsetting"))
}

func TestCorrelationHeader(t *testing.T) {
	st := newTestStack(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	st.server.Handler().ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc-123", resp.CorrelationID)
	assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))
}

func TestCameras(t *testing.T) {
	st := newTestStack(t, true)
	w, resp := st.do(t, http.MethodGet, "/api/v1/cameras", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list device.CameraList
	data(t, resp, &list)
	assert.Equal(t, "camera-01", list.ActiveCameraID)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "lumix", list.Items[0].Vendor)
}

func TestCamerasWithoutInventory(t *testing.T) {
	st := newTestStack(t, true, func(d *Deps) { d.Devices = nil })
	w, resp := st.do(t, http.MethodGet, "/api/v1/cameras", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestCameraSnapshot(t *testing.T) {
	st := newTestStack(t, true)
	w, resp := st.do(t, http.MethodGet, "/api/v1/camera", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Session camera.Snapshot `json:"session"`
		Camera  device.Camera   `json:"camera"`
	}
	data(t, resp, &body)
	assert.True(t, body.Session.Connected)
	assert.Equal(t, camera.DefaultISO, body.Session.Settings.ISO)
	assert.Equal(t, "camera-01", body.Camera.ID)
}

func TestCameraStatus(t *testing.T) {
	st := newTestStack(t, true)
	w, resp := st.do(t, http.MethodGet, "/api/v1/camera/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		CamMode string `json:"cammode"`
		Battery string `json:"batt"`
	}
	data(t, resp, &status)
	assert.Equal(t, "play", status.CamMode)
	assert.Equal(t, "3/3", status.Battery)
}

func TestSettings(t *testing.T) {
	st := newTestStack(t, true)

	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"iso":5,"whiteBalance":5600}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res settingsResult
	data(t, resp, &res)
	assert.Equal(t, []string{"iso", "whiteBalance"}, res.Applied)
	assert.Empty(t, res.Unchanged)
	assert.Equal(t, 5, res.Session.Settings.ISO)
	assert.Equal(t, 5600, res.Session.WhiteBalance)
	assert.Equal(t, "800", st.cam.Setting("iso"))
	assert.Equal(t, "5600", st.cam.Setting("whitebalance"))

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"iso":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &res)
	assert.Empty(t, res.Applied)
	assert.Equal(t, []string{"iso"}, res.Unchanged)
}

func TestSettingsPhotoModeAndAutoExposure(t *testing.T) {
	st := newTestStack(t, true)

	body := `{"photoMode":"burst","autoExposure":{"enabled":true,` +
		`"limits":{"iso":{"min":0,"max":4},"aperture":{"min":0,"max":9},"shutter":{"min":0,"max":52}},"selector":4}}`
	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/settings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res settingsResult
	data(t, resp, &res)
	assert.Equal(t, []string{"photoMode", "autoExposure"}, res.Applied)
	assert.True(t, res.Session.AutoExposure.Enabled)
	assert.Equal(t, byte(4), res.Session.AutoExposure.Selector)
	assert.Equal(t, "burst", st.cam.Setting("drivemode"))

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"autoExposure":{"enabled":false}}`)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &res)
	assert.False(t, res.Session.AutoExposure.Enabled)
}

func TestSettingsLastPicture(t *testing.T) {
	st := newTestStack(t, true)

	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"lastPicture":{"folder":104,"number":17}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res settingsResult
	data(t, resp, &res)
	assert.Equal(t, camera.Picture{Folder: 104, Number: 17}, res.Session.LastPicture)

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"lastPicture":{"folder":12,"number":1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RANGE", resp.Code)
}

func TestSettingsRejected(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty body", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"malformed json", `{"iso":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown photo mode", `{"photoMode":"panorama"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"iso out of range", `{"iso":99}`, http.StatusBadRequest, "INVALID_RANGE"},
		{"negative shutter", `{"shutter":-1}`, http.StatusBadRequest, "INVALID_RANGE"},
		{"white balance zero", `{"whiteBalance":0}`, http.StatusBadRequest, "INVALID_RANGE"},
		{
			"inverted limits",
			`{"autoExposure":{"enabled":true,"limits":{"iso":{"min":5,"max":1},"aperture":{"min":0,"max":9},"shutter":{"min":0,"max":52}}}}`,
			http.StatusBadRequest, "INVALID_RANGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStack(t, true)
			w, resp := st.do(t, http.MethodPost, "/api/v1/camera/settings", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "error", resp.Result)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestSettingsCameraBusy(t *testing.T) {
	st := newTestStack(t, true)
	st.cam.SetFault("setsetting", fake.FaultBusy)

	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/settings", `{"iso":6}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BUSY", resp.Code)
}

func TestCapture(t *testing.T) {
	st := newTestStack(t, true)

	// The camera rejects a capture outside rec mode.
	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/capture", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "UNAVAILABLE", resp.Code)
	assert.Equal(t, 0, st.cam.Captures())

	require.NoError(t, st.ctrl.EnsureReady(context.Background()))
	w, _ = st.do(t, http.MethodPost, "/api/v1/camera/capture", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, st.cam.Captures())

	w, _ = st.do(t, http.MethodPost, "/api/v1/camera/capture/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, st.cam.Cancels())
}

func TestTimelapse(t *testing.T) {
	st := newTestStack(t, true)

	w, resp := st.do(t, http.MethodPost, "/api/v1/camera/timelapse", `{"interval":30,"count":4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state struct {
		Total     int `json:"total"`
		Interval  int `json:"interval"`
		Remaining int `json:"remaining"`
	}
	data(t, resp, &state)
	assert.Equal(t, 4, state.Total)
	assert.Equal(t, 30, state.Interval)
	assert.Equal(t, 4, state.Remaining)

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/timelapse", `{"interval":10,"count":2}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BUSY", resp.Code)

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/timelapse", `{"count":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &state)
	assert.Equal(t, 0, state.Remaining)

	w, resp = st.do(t, http.MethodPost, "/api/v1/camera/timelapse", `{"interval":0,"count":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RANGE", resp.Code)
}

func TestMeasure(t *testing.T) {
	st := newTestStack(t, true)
	st.meter.Push(meter.Step{Sample: -6})

	w, resp := st.do(t, http.MethodPost, "/api/v1/exposure/measure", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var m struct {
		Thirds int     `json:"thirds"`
		EV     float64 `json:"ev"`
	}
	data(t, resp, &m)
	assert.Equal(t, -6, m.Thirds)
	assert.InDelta(t, -2.0, m.EV, 1e-9)
}

func TestMeasureTimeout(t *testing.T) {
	st := newTestStack(t, true)
	st.meter.Fallback = meter.Step{Err: meter.ErrTimeout}

	w, resp := st.do(t, http.MethodPost, "/api/v1/exposure/measure", "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "TIMEOUT", resp.Code)
}

func TestRunExposureCorrectsSettings(t *testing.T) {
	st := newTestStack(t, true)
	st.meter.Fallback = meter.Step{Sample: 0}
	st.meter.Push(meter.Step{Sample: 3})

	w, resp := st.do(t, http.MethodPost, "/api/v1/exposure/run", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out exposure.Outcome
	data(t, resp, &out)
	assert.Equal(t, 3, out.Sample)
	assert.NotEqual(t, out.Start, out.Target)
}

func TestPageReplacesHost(t *testing.T) {
	st := newTestStack(t, true, func(d *Deps) {
		d.Page = []byte("ws://ipa.ddr.ish.ere:8080/ws ipa.ddr.ish.ere")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "camera.local:8080"
	w := httptest.NewRecorder()
	st.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ws://camera.local:8080/ws ipa.ddr.ish.ere", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestEmbeddedPage(t *testing.T) {
	st := newTestStack(t, true)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "10.0.0.7"
	w := httptest.NewRecorder()
	st.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "10.0.0.7")
	assert.True(t, bytes.Contains(remotePage, []byte(hostPlaceholder)))
}

func TestMetricsEndpoint(t *testing.T) {
	st := newTestStack(t, true)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	st.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestWebSocketGreeting(t *testing.T) {
	st := newTestStack(t, true)
	srv := httptest.NewServer(st.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{0}))

	typ, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)
	assert.Equal(t, []byte{0x80, 3, 1, 9, 0x0f, 0xa0, 0, 0}, msg)

	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0, 0, 0, 0, 0, 0, 0}, msg)

	// SET_ISO is applied on the camera and echoed as a state packet.
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{4, 6}))
	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	require.Len(t, msg, 8)
	assert.Equal(t, byte(0x80), msg[0])
	assert.Equal(t, byte(6), msg[1])
	assert.Equal(t, "1600", st.cam.Setting("iso"))
}
