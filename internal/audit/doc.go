// Package audit implements the audit trail for the Camera Control Bridge.
//
// Every camera action is appended as one JSON line carrying the user,
// camera id, action, parameters, outcome and timestamp. The file is
// rotated by size.
package audit
