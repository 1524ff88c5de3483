package command

import (
	"context"
	"errors"
	"time"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/telemetry"
)

// ErrInvalidParameter indicates a request that is structurally invalid.
var ErrInvalidParameter = errors.New("BAD_REQUEST")

// AuditLogger writes audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action, cameraID, result string, latency time.Duration)
}

// Publisher is the state sink the controller reports to.
type Publisher interface {
	PublishSettings(snap camera.Snapshot)
	PublishAutoExposure(cfg exposure.Config)
	PublishCameraStatus(status string, st *adapter.CameraStatus)
	PublishFault(action string, err error)
}

// AutoExposer runs one auto-exposure cycle.
type AutoExposer interface {
	Run(ctx context.Context, cur exposure.Settings, cfg exposure.Config, timedShutter int) (exposure.Outcome, error)
	MeasureOnly(ctx context.Context) (int, error)
}

// SubmitFunc queues fn behind the camera work already pending.
type SubmitFunc func(name string, fn func(ctx context.Context) error) error

// Timer is a pending delayed call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// ControllerPort is what the dispatcher and the HTTP API need.
type ControllerPort interface {
	SetShutter(ctx context.Context, id int) (Result, error)
	SetAperture(ctx context.Context, id int) (Result, error)
	SetISO(ctx context.Context, id int) (Result, error)
	SetWhiteBalance(ctx context.Context, kelvin int) (Result, error)
	Connect(ctx context.Context) (Result, error)
	LoadSettings(ctx context.Context) error
	EnsureReady(ctx context.Context) error
	Capture(ctx context.Context) error
	CancelCapture(ctx context.Context) error
	SetTimedShutter(ctx context.Context, seconds int) error
	SelectPhotoMode(ctx context.Context, mode camera.PhotoMode) error
	SetAutoExposure(ctx context.Context, cfg exposure.Config) error
	RunAutoExposure(ctx context.Context) (exposure.Outcome, error)
	Measure(ctx context.Context) (int, error)
	CameraState(ctx context.Context) (*adapter.CameraStatus, error)
	SetLastPicture(folder, number int) error
	Snapshot() camera.Snapshot
}

var (
	_ Publisher        = (*telemetry.Hub)(nil)
	_ AutoExposer      = (*exposure.Engine)(nil)
	_ exposure.Applier = (*Controller)(nil)
	_ ControllerPort   = (*Controller)(nil)
)
