// Package command drives the camera on behalf of clients.
//
// The Controller validates each request, sends the encoded cam.cgi
// command with a per-class timeout, normalizes camera errors, and then
// records an audit entry and metrics and publishes the new state. Setters
// update the session before the camera confirms the change; a failed
// setter leaves the session holding the requested value.
package command
