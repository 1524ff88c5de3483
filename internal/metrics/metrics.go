// Package metrics holds the prometheus collectors of the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Camera command metrics
	cameraCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccb_camera_commands_total",
			Help: "Total number of camera commands by mode and outcome code",
		},
		[]string{"mode", "code"},
	)

	cameraCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ccb_camera_command_duration_seconds",
			Help:    "Camera command round-trip latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	// Auto-exposure metrics
	autoExposureRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccb_auto_exposure_runs_total",
			Help: "Total number of auto-exposure runs by outcome",
		},
		[]string{"outcome"},
	)

	meteringSamples = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ccb_metering_sample_thirds",
			Help:    "Metering samples in third-stops",
			Buckets: prometheus.LinearBuckets(-9, 1, 19),
		},
	)

	// Timelapse metrics
	timelapseCapturesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ccb_timelapse_captures_total",
			Help: "Total number of captures triggered by the timelapse scheduler",
		},
	)

	timelapseRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ccb_timelapse_remaining",
			Help: "Pictures remaining in the running timelapse",
		},
	)

	// Client protocol metrics
	protocolMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccb_protocol_messages_total",
			Help: "Total number of decoded client messages by opcode",
		},
		[]string{"opcode"},
	)

	protocolRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ccb_protocol_rejected_total",
			Help: "Total number of malformed or unknown client messages",
		},
	)

	remoteSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ccb_remote_sessions",
			Help: "Number of connected remote sessions",
		},
	)
)

// ObserveCameraCommand records one camera command.
func ObserveCameraCommand(mode, code string, latency time.Duration) {
	cameraCommandsTotal.WithLabelValues(mode, code).Inc()
	cameraCommandDuration.WithLabelValues(mode).Observe(latency.Seconds())
}

// RecordAutoExposure records one auto-exposure run outcome
// ("ok", "limited", "unchanged", "error", "busy", "rejected").
func RecordAutoExposure(outcome string) {
	autoExposureRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMeteringSample records a metering reading.
func ObserveMeteringSample(thirds int) {
	meteringSamples.Observe(float64(thirds))
}

// RecordTimelapseCapture counts a scheduled capture.
func RecordTimelapseCapture() {
	timelapseCapturesTotal.Inc()
}

// SetTimelapseRemaining updates the remaining-pictures gauge.
func SetTimelapseRemaining(n int) {
	timelapseRemaining.Set(float64(n))
}

// RecordProtocolMessage counts a decoded client message.
func RecordProtocolMessage(opcode string) {
	protocolMessagesTotal.WithLabelValues(opcode).Inc()
}

// RecordProtocolRejected counts a rejected client message.
func RecordProtocolRejected() {
	protocolRejectedTotal.Inc()
}

// SessionConnected and SessionDisconnected track remote sessions.
func SessionConnected()    { remoteSessions.Inc() }
func SessionDisconnected() { remoteSessions.Dec() }
