package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camera-remote/ccb/internal/adapter"
)

func TestManagerRegister(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Register("cam-b", "192.168.54.1", "lumix"))
	require.NoError(t, m.Register("cam-a", "192.168.54.2", "lumix"))
	assert.Error(t, m.Register("cam-a", "x", "lumix"))
	assert.Error(t, m.Register("", "x", "lumix"))

	active, err := m.Active()
	require.NoError(t, err)
	assert.Equal(t, "cam-b", active.ID)
	assert.Equal(t, StatusUnknown, active.Status)

	list := m.List()
	assert.Equal(t, "cam-b", list.ActiveCameraID)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "cam-a", list.Items[0].ID)
}

func TestManagerUpdates(t *testing.T) {
	m := NewManager()
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return seen }
	require.NoError(t, m.Register("cam", "10.0.0.1", "lumix"))

	st := &adapter.CameraStatus{Battery: "3/3", CamMode: "rec"}
	require.NoError(t, m.UpdateState("cam", st))
	require.NoError(t, m.SetModel("cam", "DMC-GH4"))

	c, err := m.Get("cam")
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, c.Status)
	assert.Equal(t, seen, c.LastSeen)
	assert.Equal(t, "DMC-GH4", c.Model)
	assert.Same(t, st, c.State)

	prev, err := m.UpdateStatus("cam", StatusRecovering)
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, prev)

	_, err = m.UpdateStatus("nope", StatusOffline)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.UpdateState("nope", st), ErrNotFound)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("cam", "10.0.0.1", "lumix"))
	require.NoError(t, m.Remove("cam"))

	_, err := m.Active()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Remove("cam"), ErrNotFound)
}
