// Package auth verifies bearer tokens and enforces roles and scopes on the
// HTTP API.
//
// A viewer may read camera state and subscribe to telemetry. A controller
// may also change settings, capture and meter.
package auth
