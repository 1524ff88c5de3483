package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/device"
	"github.com/camera-remote/ccb/internal/remote"
	"github.com/camera-remote/ccb/internal/telemetry"
	"github.com/camera-remote/ccb/internal/timelapse"
)

// CameraPort is the controller surface the API drives.
type CameraPort = command.ControllerPort

// DispatchPort serializes camera work and serves remote sessions.
type DispatchPort interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) error) error
	Serve(ctx context.Context, conn *websocket.Conn) error
	StartTimelapse(interval, count int) error
	StopTimelapse()
	Timelapse() timelapse.State
}

// TelemetryPort is the SSE side of the hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	ClientCount() int
}

// InventoryPort reads the camera inventory.
type InventoryPort interface {
	Active() (device.Camera, error)
	List() device.CameraList
}

var (
	_ DispatchPort  = (*remote.Bridge)(nil)
	_ TelemetryPort = (*telemetry.Hub)(nil)
	_ InventoryPort = (*device.Manager)(nil)
)
