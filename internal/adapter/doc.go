// Package adapter defines the camera command channel for the Camera Control Bridge.
//
// A Channel carries one Command to the camera and returns the raw reply text.
// Transport failures are reported as ErrNetwork or ErrTimeout inside a
// *ChannelError; camera result codes found in replies are normalized to
// INVALID_RANGE, BUSY, UNAVAILABLE and INTERNAL through the vendor tables.
package adapter
