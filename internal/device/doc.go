// Package device keeps the camera inventory and probes camera health.
//
// The Prober polls getstate at the normal cadence while the camera answers
// and backs off exponentially while it is recovering or offline.
package device
