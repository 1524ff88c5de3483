// Package telemetry is the state sink of the bridge.
//
// The hub numbers every event, keeps the most recent ones for replay
// (SSE Last-Event-ID), writes them to SSE clients with periodic
// heartbeats and hands them to in-process subscribers such as the
// websocket sessions.
package telemetry
