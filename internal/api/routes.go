package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/auth"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/params"
)

// PublicPaths skip authentication.
var PublicPaths = []string{"/api/v1/health", "/metrics", "/"}

// RegisterRoutes wires every endpoint onto r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	read := s.requireScope(auth.ScopeRead)
	control := s.requireScope(auth.ScopeControl)
	stream := s.requireScope(auth.ScopeTelemetry)

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/cameras", read, s.handleCameras)
	v1.GET("/camera", read, s.handleCamera)
	v1.GET("/camera/status", read, s.handleCameraStatus)
	v1.POST("/camera/settings", control, s.handleSettings)
	v1.POST("/camera/capture", control, s.handleCapture)
	v1.POST("/camera/capture/cancel", control, s.handleCancelCapture)
	v1.POST("/camera/timelapse", control, s.handleTimelapse)
	v1.POST("/exposure/measure", control, s.handleMeasure)
	v1.POST("/exposure/run", control, s.handleRunExposure)
	v1.GET("/telemetry", stream, s.handleTelemetry)

	r.GET("/ws", control, s.handleWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", s.handlePage)
}

func (s *Server) requireScope(scope string) gin.HandlerFunc {
	if s.deps.Auth == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return s.deps.Auth.RequireScope(scope)
}

// GET /api/v1/health
func (s *Server) handleHealth(c *gin.Context) {
	subsystems := map[string]bool{
		"camera":    s.deps.Camera != nil && s.deps.Camera.Snapshot().Connected,
		"dispatch":  s.deps.Dispatch != nil,
		"telemetry": s.deps.Telemetry != nil,
	}
	status := "ok"
	for _, up := range subsystems {
		if !up {
			status = "degraded"
		}
	}

	health := gin.H{
		"status":     status,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
	}
	if s.deps.Telemetry != nil {
		health["streamClients"] = s.deps.Telemetry.ClientCount()
	}

	if status != "ok" {
		writeErrorResponse(c, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
		return
	}
	writeSuccess(c, health)
}

// GET /api/v1/cameras
func (s *Server) handleCameras(c *gin.Context) {
	if s.deps.Devices == nil {
		writeErrorResponse(c, http.StatusNotFound, "NOT_FOUND", "Camera inventory not available", nil)
		return
	}
	writeSuccess(c, s.deps.Devices.List())
}

// GET /api/v1/camera
func (s *Server) handleCamera(c *gin.Context) {
	data := gin.H{
		"session":   s.deps.Camera.Snapshot(),
		"timelapse": s.deps.Dispatch.Timelapse(),
	}
	if s.deps.Devices != nil {
		if cam, err := s.deps.Devices.Active(); err == nil {
			data["camera"] = cam
		}
	}
	writeSuccess(c, data)
}

// GET /api/v1/camera/status
func (s *Server) handleCameraStatus(c *gin.Context) {
	var st *adapter.CameraStatus
	err := s.deps.Dispatch.Do(c.Request.Context(), "getstate", func(ctx context.Context) error {
		var err error
		st, err = s.deps.Camera.CameraState(ctx)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, st)
}

type autoExposureRequest struct {
	Enabled  bool            `json:"enabled"`
	Limits   exposure.Limits `json:"limits"`
	Selector byte            `json:"selector"`
}

type settingsRequest struct {
	Shutter      *int                 `json:"shutter"`
	Aperture     *int                 `json:"aperture"`
	ISO          *int                 `json:"iso"`
	WhiteBalance *int                 `json:"whiteBalance"`
	TimedShutter *int                 `json:"timedShutter"`
	PhotoMode    *string              `json:"photoMode"`
	AutoExposure *autoExposureRequest `json:"autoExposure"`
	LastPicture  *camera.Picture      `json:"lastPicture"`
}

func (r settingsRequest) empty() bool {
	return r.Shutter == nil && r.Aperture == nil && r.ISO == nil && r.WhiteBalance == nil &&
		r.TimedShutter == nil && r.PhotoMode == nil && r.AutoExposure == nil && r.LastPicture == nil
}

type settingsResult struct {
	Applied   []string        `json:"applied"`
	Unchanged []string        `json:"unchanged"`
	Session   camera.Snapshot `json:"session"`
}

// POST /api/v1/camera/settings
func (s *Server) handleSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", command.ErrInvalidParameter, err))
		return
	}
	if req.empty() {
		writeError(c, fmt.Errorf("%w: no settings given", command.ErrInvalidParameter))
		return
	}

	var mode camera.PhotoMode
	if req.PhotoMode != nil {
		m, err := parsePhotoMode(*req.PhotoMode)
		if err != nil {
			writeError(c, err)
			return
		}
		mode = m
	}

	res := settingsResult{Applied: []string{}, Unchanged: []string{}}
	record := func(name string, r command.Result) {
		if r.Unchanged {
			res.Unchanged = append(res.Unchanged, name)
		} else {
			res.Applied = append(res.Applied, name)
		}
	}

	err := s.deps.Dispatch.Do(c.Request.Context(), "settings", func(ctx context.Context) error {
		ctrl := s.deps.Camera
		setters := []struct {
			name string
			val  *int
			set  func(context.Context, int) (command.Result, error)
		}{
			{"shutter", req.Shutter, ctrl.SetShutter},
			{"aperture", req.Aperture, ctrl.SetAperture},
			{"iso", req.ISO, ctrl.SetISO},
			{"whiteBalance", req.WhiteBalance, ctrl.SetWhiteBalance},
		}
		for _, st := range setters {
			if st.val == nil {
				continue
			}
			r, err := st.set(ctx, *st.val)
			if err != nil {
				return err
			}
			record(st.name, r)
		}

		if req.TimedShutter != nil {
			if err := ctrl.SetTimedShutter(ctx, *req.TimedShutter); err != nil {
				return err
			}
			res.Applied = append(res.Applied, "timedShutter")
		}
		if req.PhotoMode != nil {
			if err := ctrl.SelectPhotoMode(ctx, mode); err != nil {
				return err
			}
			res.Applied = append(res.Applied, "photoMode")
		}
		if ae := req.AutoExposure; ae != nil {
			cfg := exposure.DefaultConfig()
			if ae.Enabled {
				var err error
				if cfg, err = exposure.NewConfig(ae.Limits, ae.Selector); err != nil {
					return err
				}
			}
			if err := ctrl.SetAutoExposure(ctx, cfg); err != nil {
				return err
			}
			res.Applied = append(res.Applied, "autoExposure")
		}
		if p := req.LastPicture; p != nil {
			if err := ctrl.SetLastPicture(p.Folder, p.Number); err != nil {
				return err
			}
			res.Applied = append(res.Applied, "lastPicture")
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	res.Session = s.deps.Camera.Snapshot()
	writeSuccess(c, res)
}

func parsePhotoMode(name string) (camera.PhotoMode, error) {
	for _, m := range []camera.PhotoMode{camera.PhotoSingle, camera.PhotoTimelapse, camera.PhotoBurst} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown photo mode %q", command.ErrInvalidParameter, name)
}

// POST /api/v1/camera/capture
func (s *Server) handleCapture(c *gin.Context) {
	if err := s.deps.Dispatch.Do(c.Request.Context(), "capture", s.deps.Camera.Capture); err != nil {
		writeError(c, err)
		return
	}
	snap := s.deps.Camera.Snapshot()
	writeSuccess(c, gin.H{"lastPicture": snap.LastPicture, "settings": snap.Settings})
}

// POST /api/v1/camera/capture/cancel
func (s *Server) handleCancelCapture(c *gin.Context) {
	if err := s.deps.Dispatch.Do(c.Request.Context(), "cancel-capture", s.deps.Camera.CancelCapture); err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, gin.H{"lastPicture": s.deps.Camera.Snapshot().LastPicture})
}

type timelapseRequest struct {
	Interval int `json:"interval"`
	Count    int `json:"count"`
}

// POST /api/v1/camera/timelapse; a count of 0 stops the current run.
func (s *Server) handleTimelapse(c *gin.Context) {
	var req timelapseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", command.ErrInvalidParameter, err))
		return
	}

	err := s.deps.Dispatch.Do(c.Request.Context(), "timelapse", func(context.Context) error {
		if req.Count == 0 {
			s.deps.Dispatch.StopTimelapse()
			return nil
		}
		return s.deps.Dispatch.StartTimelapse(req.Interval, req.Count)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, s.deps.Dispatch.Timelapse())
}

// POST /api/v1/exposure/measure
func (s *Server) handleMeasure(c *gin.Context) {
	var thirds int
	err := s.deps.Dispatch.Do(c.Request.Context(), "measure", func(ctx context.Context) error {
		var err error
		thirds, err = s.deps.Camera.Measure(ctx)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, gin.H{"thirds": thirds, "ev": params.EVStops(thirds)})
}

// POST /api/v1/exposure/run
func (s *Server) handleRunExposure(c *gin.Context) {
	var out exposure.Outcome
	err := s.deps.Dispatch.Do(c.Request.Context(), "auto-exposure", func(ctx context.Context) error {
		var err error
		out, err = s.deps.Camera.RunAutoExposure(ctx)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, out)
}

// GET /api/v1/telemetry
func (s *Server) handleTelemetry(c *gin.Context) {
	if s.deps.Telemetry == nil {
		writeErrorResponse(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry service not available", nil)
		return
	}
	if err := s.deps.Telemetry.Subscribe(c.Request.Context(), c.Writer, c.Request); err != nil {
		s.deps.Logger.Debug().Err(err).Msg("telemetry stream ended")
	}
}

// GET /ws
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	if err := s.deps.Dispatch.Serve(c.Request.Context(), conn); err != nil {
		s.deps.Logger.Debug().Err(err).Msg("remote session failed")
	}
}
