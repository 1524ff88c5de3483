// Package camera holds the state of the single camera session: the
// exposure triad, white balance, timed shutter, photo mode, auto-exposure
// setup, picture counter and connection flags.
package camera
