package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/camera-remote/ccb/internal/adapter"
)

// Camera status values.
const (
	StatusOnline     = "online"
	StatusRecovering = "recovering"
	StatusOffline    = "offline"
	StatusUnknown    = "unknown"
)

// ErrNotFound is returned for an unregistered camera id.
var ErrNotFound = errors.New("camera not found")

// Camera is one registered camera and what was last learned about it.
type Camera struct {
	ID       string                `json:"id"`
	Address  string                `json:"address"`
	Vendor   string                `json:"vendor"`
	Model    string                `json:"model,omitempty"`
	Status   string                `json:"status"`
	State    *adapter.CameraStatus `json:"state,omitempty"`
	LastSeen time.Time             `json:"lastSeen,omitempty"`
}

// CameraList is the inventory as served by the API.
type CameraList struct {
	ActiveCameraID string   `json:"activeCameraId"`
	Items          []Camera `json:"items"`
}

// Manager holds the camera inventory.
type Manager struct {
	mu       sync.RWMutex
	cameras  map[string]*Camera
	activeID string
	now      func() time.Time
}

// NewManager creates an empty inventory.
func NewManager() *Manager {
	return &Manager{cameras: make(map[string]*Camera), now: time.Now}
}

// Register adds a camera. The first camera registered becomes active.
func (m *Manager) Register(id, address, vendor string) error {
	if id == "" {
		return fmt.Errorf("camera id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cameras[id]; exists {
		return fmt.Errorf("camera %s already registered", id)
	}
	m.cameras[id] = &Camera{ID: id, Address: address, Vendor: vendor, Status: StatusUnknown}
	if m.activeID == "" {
		m.activeID = id
	}
	return nil
}

// Active returns a copy of the active camera.
func (m *Manager) Active() (Camera, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return Camera{}, fmt.Errorf("%w: no active camera", ErrNotFound)
	}
	return *m.cameras[m.activeID], nil
}

// Get returns a copy of camera id.
func (m *Manager) Get(id string) (Camera, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cameras[id]
	if !ok {
		return Camera{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *c, nil
}

// List returns every camera ordered by id.
func (m *Manager) List() CameraList {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Camera, 0, len(m.cameras))
	for _, c := range m.cameras {
		items = append(items, *c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return CameraList{ActiveCameraID: m.activeID, Items: items}
}

// UpdateState records a getstate reply and marks the camera online.
func (m *Manager) UpdateState(id string, st *adapter.CameraStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cameras[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.State = st
	c.Status = StatusOnline
	c.LastSeen = m.now()
	return nil
}

// SetModel records the model reported by the camera.
func (m *Manager) SetModel(id, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cameras[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.Model = model
	return nil
}

// UpdateStatus sets the status and returns the previous one.
func (m *Manager) UpdateStatus(id, status string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cameras[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := c.Status
	c.Status = status
	return prev, nil
}

// Remove deletes a camera and clears the active selection if needed.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cameras[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.cameras, id)
	if m.activeID == id {
		m.activeID = ""
	}
	return nil
}
