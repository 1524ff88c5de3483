// Package params holds the parameter tables of the Camera Control Bridge.
//
// Each exposure parameter is addressed by a small integer id that the client
// and the exposure engine work with. The tables map ids to display values and
// to the raw encodings the camera uses in its setsetting/getsetting replies.
package params
