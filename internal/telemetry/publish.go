package telemetry

import (
	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/params"
	"github.com/camera-remote/ccb/internal/timelapse"
)

// PublishSettings announces the current settings of the session.
func (h *Hub) PublishSettings(snap camera.Snapshot) {
	h.Publish(Event{
		Type: EventSettings,
		Data: map[string]interface{}{
			"iso":          snap.Settings.ISO,
			"aperture":     snap.Settings.Aperture,
			"shutter":      snap.Settings.Shutter,
			"shutterLabel": params.ShutterLabel(snap.Settings.Shutter),
			"whiteBalance": snap.WhiteBalance,
			"timedShutter": snap.TimedShutter,
			"photoMode":    snap.PhotoMode.String(),
		},
		Payload: snap,
	})
}

// PublishTimelapse announces the timelapse countdown.
func (h *Hub) PublishTimelapse(st timelapse.State) {
	h.Publish(Event{
		Type: EventTimelapse,
		Data: map[string]interface{}{
			"total":     st.Total,
			"interval":  st.Interval,
			"remaining": st.Remaining,
		},
		Payload: st,
	})
}

// PublishAutoExposure announces the auto-exposure configuration.
func (h *Hub) PublishAutoExposure(cfg exposure.Config) {
	h.Publish(Event{
		Type: EventAutoExposure,
		Data: map[string]interface{}{
			"enabled":  cfg.Enabled,
			"limits":   cfg.Limits,
			"order":    cfg.Order.String(),
			"selector": cfg.Selector,
		},
		Payload: cfg,
	})
}

// PublishCameraStatus announces a getstate reply and the device status.
func (h *Hub) PublishCameraStatus(status string, st *adapter.CameraStatus) {
	data := map[string]interface{}{"status": status}
	if st != nil {
		data["state"] = st
	}
	h.Publish(Event{Type: EventCameraStatus, Data: data, Payload: st})
}

// PublishFault announces a failed operation.
func (h *Hub) PublishFault(action string, err error) {
	h.Publish(Event{
		Type: EventFault,
		Data: map[string]interface{}{
			"action":  action,
			"code":    adapter.Code(err),
			"message": err.Error(),
		},
		Payload: err,
	})
}
