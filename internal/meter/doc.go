// Package meter reads live light-metering samples from the camera.
//
// The camera streams preview packets over UDP after a startstream
// command; byte 140 of each packet carries the exposure delta in
// third-stops. A Meter is started, read once and stopped for every
// measurement.
package meter
