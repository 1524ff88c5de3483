package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/params"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession()
	snap := s.Snapshot()

	assert.Equal(t, exposure.Settings{Shutter: 9, Aperture: 1, ISO: 3}, snap.Settings)
	assert.Equal(t, 4000, snap.WhiteBalance)
	assert.Zero(t, snap.TimedShutter)
	assert.Equal(t, PhotoSingle, snap.PhotoMode)
	assert.False(t, snap.AutoExposure.Enabled)
	assert.Equal(t, exposure.DefaultOrder, snap.AutoExposure.Order)
	assert.Equal(t, Picture{119, 562}, snap.LastPicture)
	assert.False(t, snap.Connected)
	assert.Nil(t, snap.Status)
}

func TestSwapSetting(t *testing.T) {
	s := NewSession()
	assert.Equal(t, 9, s.SwapSetting(params.Shutter, 12))
	assert.Equal(t, 1, s.SwapSetting(params.Aperture, 4))
	assert.Equal(t, 3, s.SwapSetting(params.ISO, 6))
	assert.Equal(t, exposure.Settings{Shutter: 12, Aperture: 4, ISO: 6}, s.Settings())
	assert.Equal(t, 4, s.Setting(params.Aperture))
}

func TestPictureRollover(t *testing.T) {
	assert.Equal(t, Picture{119, 563}, Picture{119, 562}.Next())
	assert.Equal(t, Picture{120, 1}, Picture{119, 999}.Next())
	assert.Equal(t, "119-0562", Picture{119, 562}.String())

	s := NewSession()
	s.SetLastPicture(Picture{100, 999})
	assert.Equal(t, Picture{101, 1}, s.PictureTaken())
	assert.Equal(t, Picture{101, 1}, s.LastPicture())
}

func TestTimedShutterRestoresSavedShutter(t *testing.T) {
	s := NewSession()
	s.SwapSetting(params.Shutter, 20)

	s.EnableTimedShutter(5)
	s.SwapSetting(params.Shutter, params.ShutterBulb)
	s.EnableTimedShutter(8)
	assert.Equal(t, 8, s.TimedShutter())

	assert.Equal(t, 20, s.DisableTimedShutter())
	assert.Zero(t, s.TimedShutter())
}

func TestSnapshotCopiesStatus(t *testing.T) {
	s := NewSession()
	s.SetStatus(&adapter.CameraStatus{CamMode: "rec"})

	snap := s.Snapshot()
	snap.Status.CamMode = "play"
	assert.Equal(t, "rec", s.Status().CamMode)
}

func TestPhotoModeNames(t *testing.T) {
	assert.Equal(t, "burst", PhotoBurst.String())
	assert.True(t, PhotoTimelapse.Valid())
	assert.False(t, PhotoMode(3).Valid())
}
