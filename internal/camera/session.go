package camera

import (
	"fmt"
	"sync"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/params"
)

// Session defaults.
const (
	DefaultISO          = 3
	DefaultAperture     = 1
	DefaultShutter      = 9
	DefaultWhiteBalance = 4000
)

// PhotoMode selects how captures are taken.
type PhotoMode int

const (
	PhotoSingle PhotoMode = iota
	PhotoTimelapse
	PhotoBurst
)

func (m PhotoMode) String() string {
	switch m {
	case PhotoSingle:
		return "photo"
	case PhotoTimelapse:
		return "timelapse"
	case PhotoBurst:
		return "burst"
	}
	return fmt.Sprintf("PhotoMode(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m PhotoMode) Valid() bool {
	return m >= PhotoSingle && m <= PhotoBurst
}

// Picture identifies an image as folder and number, e.g. 119-0562.
type Picture struct {
	Folder int `json:"folder"`
	Number int `json:"number"`
}

func (p Picture) String() string {
	return fmt.Sprintf("%d-%04d", p.Folder, p.Number)
}

// Next returns the picture after p. Numbers roll over after 999.
func (p Picture) Next() Picture {
	if p.Number >= 999 {
		return Picture{Folder: p.Folder + 1, Number: 1}
	}
	return Picture{Folder: p.Folder, Number: p.Number + 1}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Settings     exposure.Settings     `json:"settings"`
	WhiteBalance int                   `json:"whiteBalance"`
	TimedShutter int                   `json:"timedShutter"`
	PhotoMode    PhotoMode             `json:"photoMode"`
	AutoExposure exposure.Config       `json:"autoExposure"`
	LastPicture  Picture               `json:"lastPicture"`
	Connected    bool                  `json:"connected"`
	Ready        bool                  `json:"ready"`
	Status       *adapter.CameraStatus `json:"status,omitempty"`
}

// Session is the camera-session state. All methods are safe for
// concurrent use; ordering of mutations is the caller's concern.
type Session struct {
	mu sync.RWMutex

	settings     exposure.Settings
	whiteBalance int
	timedShutter int
	savedShutter int
	photoMode    PhotoMode
	autoExposure exposure.Config
	lastPicture  Picture
	connected    bool
	ready        bool
	status       *adapter.CameraStatus
}

// NewSession returns a session with the power-on defaults.
func NewSession() *Session {
	return &Session{
		settings: exposure.Settings{
			Shutter:  DefaultShutter,
			Aperture: DefaultAperture,
			ISO:      DefaultISO,
		},
		whiteBalance: DefaultWhiteBalance,
		savedShutter: DefaultShutter,
		autoExposure: exposure.DefaultConfig(),
		lastPicture:  Picture{Folder: 119, Number: 562},
	}
}

// Snapshot returns a copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Settings:     s.settings,
		WhiteBalance: s.whiteBalance,
		TimedShutter: s.timedShutter,
		PhotoMode:    s.photoMode,
		AutoExposure: s.autoExposure,
		LastPicture:  s.lastPicture,
		Connected:    s.connected,
		Ready:        s.ready,
	}
	if s.status != nil {
		st := *s.status
		snap.Status = &st
	}
	return snap
}

// Settings returns the exposure triad.
func (s *Session) Settings() exposure.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Setting returns the id of one parameter.
func (s *Session) Setting(kind params.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Get(kind)
}

// SwapSetting stores id for kind and returns the previous id.
func (s *Session) SwapSetting(kind params.Kind, id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings.Get(kind)
	switch kind {
	case params.Shutter:
		s.settings.Shutter = id
	case params.Aperture:
		s.settings.Aperture = id
	case params.ISO:
		s.settings.ISO = id
	}
	return prev
}

// WhiteBalance returns the color temperature in kelvin.
func (s *Session) WhiteBalance() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whiteBalance
}

// SwapWhiteBalance stores kelvin and returns the previous value.
func (s *Session) SwapWhiteBalance(kelvin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.whiteBalance
	s.whiteBalance = kelvin
	return prev
}

// TimedShutter returns the timed shutter duration in seconds, 0 when off.
func (s *Session) TimedShutter() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timedShutter
}

// EnableTimedShutter records seconds and remembers the current shutter
// for when the timed shutter is turned off. Re-enabling keeps the
// shutter saved the first time.
func (s *Session) EnableTimedShutter(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timedShutter == 0 {
		s.savedShutter = s.settings.Shutter
	}
	s.timedShutter = seconds
}

// DisableTimedShutter clears the timed shutter and returns the shutter
// id to restore.
func (s *Session) DisableTimedShutter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timedShutter = 0
	return s.savedShutter
}

// PhotoMode returns the selected photo mode.
func (s *Session) PhotoMode() PhotoMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.photoMode
}

// SetPhotoMode stores the photo mode.
func (s *Session) SetPhotoMode(m PhotoMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photoMode = m
}

// AutoExposure returns the auto-exposure configuration.
func (s *Session) AutoExposure() exposure.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoExposure
}

// SetAutoExposure replaces the auto-exposure configuration.
func (s *Session) SetAutoExposure(cfg exposure.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoExposure = cfg
}

// DisableAutoExposure turns auto-exposure off, keeping the default order.
func (s *Session) DisableAutoExposure() {
	s.SetAutoExposure(exposure.DefaultConfig())
}

// LastPicture returns the id of the most recent picture.
func (s *Session) LastPicture() Picture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPicture
}

// SetLastPicture overrides the picture counter.
func (s *Session) SetLastPicture(p Picture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPicture = p
}

// PictureTaken advances the picture counter and returns the new id.
func (s *Session) PictureTaken() Picture {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPicture = s.lastPicture.Next()
	return s.lastPicture
}

// Connected reports whether Connect succeeded.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetConnected updates the connected flag.
func (s *Session) SetConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

// Ready reports whether the camera is in rec mode.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SetReady updates the ready flag.
func (s *Session) SetReady(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = v
}

// Status returns a copy of the last camera status, or nil.
func (s *Session) Status() *adapter.CameraStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return nil
	}
	st := *s.status
	return &st
}

// SetStatus stores the last camera status.
func (s *Session) SetStatus(st *adapter.CameraStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}
