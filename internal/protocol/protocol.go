// Package protocol encodes and decodes the binary messages exchanged with
// the browser remote over the duplex channel.
//
// Inbound messages start with an opcode byte followed by a fixed
// payload. Outbound packets start with a tag byte with the high bit set.
package protocol

import (
	"errors"
	"fmt"

	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/timelapse"
)

// Opcode identifies an inbound message.
type Opcode byte

const (
	OpReady           Opcode = 0
	OpCapture         Opcode = 1
	OpLastPicture     Opcode = 3
	OpSetISO          Opcode = 4
	OpSetAperture     Opcode = 5
	OpSetShutter      Opcode = 6
	OpSetWhiteBalance Opcode = 7
	OpCancelCapture   Opcode = 8
	OpTimelapse       Opcode = 9
	OpAutoExposure    Opcode = 10
	OpTimedShutter    Opcode = 11
	OpPhotoMode       Opcode = 12
)

var opcodeNames = map[Opcode]string{
	OpReady:           "READY",
	OpCapture:         "CAPTURE",
	OpLastPicture:     "LAST_PICTURE",
	OpSetISO:          "SET_ISO",
	OpSetAperture:     "SET_APERTURE",
	OpSetShutter:      "SET_SHUTTER",
	OpSetWhiteBalance: "SET_WB",
	OpCancelCapture:   "CANCEL_CAPTURE",
	OpTimelapse:       "TIMELAPSE",
	OpAutoExposure:    "AUTO_EXPOSURE",
	OpTimedShutter:    "TIMED_SHUTTER",
	OpPhotoMode:       "PHOTO_MODE",
}

// payloadLen is the number of bytes each opcode needs after itself.
var payloadLen = map[Opcode]int{
	OpReady:           0,
	OpCapture:         0,
	OpLastPicture:     0,
	OpSetISO:          1,
	OpSetAperture:     1,
	OpSetShutter:      1,
	OpSetWhiteBalance: 2,
	OpCancelCapture:   0,
	OpTimelapse:       3,
	OpAutoExposure:    7,
	OpTimedShutter:    1,
	OpPhotoMode:       1,
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", byte(o))
}

// Decode errors.
var (
	ErrEmpty         = errors.New("empty message")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrShortMessage  = errors.New("message too short")
)

// Command is a decoded inbound message.
type Command interface {
	Opcode() Opcode
}

type (
	// Ready is sent by the remote once its page has loaded.
	Ready struct{}
	// Capture takes a picture.
	Capture struct{}
	// LastPicture asks for the most recent image.
	LastPicture struct{}
	// SetISO selects an ISO table id.
	SetISO struct{ ID int }
	// SetAperture selects an aperture table id.
	SetAperture struct{ ID int }
	// SetShutter selects a shutter table id.
	SetShutter struct{ ID int }
	// SetWhiteBalance sets the color temperature in kelvin.
	SetWhiteBalance struct{ Kelvin int }
	// CancelCapture ends a running exposure.
	CancelCapture struct{}
	// TimedShutter turns the timed shutter on for Seconds, off for 0.
	TimedShutter struct{ Seconds int }
	// PhotoMode selects single, timelapse or burst shooting.
	PhotoMode struct{ Mode camera.PhotoMode }
)

// Timelapse starts a run, or stops the current one when all bytes are 0.
type Timelapse struct {
	Interval int
	Count    int
	Reserved int
}

// Stop reports whether the message stops the running timelapse.
func (t Timelapse) Stop() bool {
	return t.Interval+t.Count+t.Reserved == 0
}

// AutoExposure configures server-side auto-exposure. A message of zeros
// disables it.
type AutoExposure struct {
	Limits   exposure.Limits
	Selector byte
	Disable  bool
}

func (Ready) Opcode() Opcode           { return OpReady }
func (Capture) Opcode() Opcode         { return OpCapture }
func (LastPicture) Opcode() Opcode     { return OpLastPicture }
func (SetISO) Opcode() Opcode          { return OpSetISO }
func (SetAperture) Opcode() Opcode     { return OpSetAperture }
func (SetShutter) Opcode() Opcode      { return OpSetShutter }
func (SetWhiteBalance) Opcode() Opcode { return OpSetWhiteBalance }
func (CancelCapture) Opcode() Opcode   { return OpCancelCapture }
func (Timelapse) Opcode() Opcode       { return OpTimelapse }
func (AutoExposure) Opcode() Opcode    { return OpAutoExposure }
func (TimedShutter) Opcode() Opcode    { return OpTimedShutter }
func (PhotoMode) Opcode() Opcode       { return OpPhotoMode }

// Decode parses one inbound message. Bytes beyond the payload are ignored.
func Decode(msg []byte) (Command, error) {
	if len(msg) == 0 {
		return nil, ErrEmpty
	}
	op := Opcode(msg[0])
	need, ok := payloadLen[op]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, msg[0])
	}
	if len(msg)-1 < need {
		return nil, fmt.Errorf("%w: %s needs %d payload bytes, got %d", ErrShortMessage, op, need, len(msg)-1)
	}
	p := msg[1:]

	switch op {
	case OpReady:
		return Ready{}, nil
	case OpCapture:
		return Capture{}, nil
	case OpLastPicture:
		return LastPicture{}, nil
	case OpSetISO:
		return SetISO{ID: int(p[0])}, nil
	case OpSetAperture:
		return SetAperture{ID: int(p[0])}, nil
	case OpSetShutter:
		return SetShutter{ID: int(p[0])}, nil
	case OpSetWhiteBalance:
		return SetWhiteBalance{Kelvin: int(p[0])<<8 | int(p[1])}, nil
	case OpCancelCapture:
		return CancelCapture{}, nil
	case OpTimelapse:
		return Timelapse{Interval: int(p[0]), Count: int(p[1]), Reserved: int(p[2])}, nil
	case OpAutoExposure:
		return decodeAutoExposure(p), nil
	case OpTimedShutter:
		return TimedShutter{Seconds: int(p[0])}, nil
	default: // OpPhotoMode
		return PhotoMode{Mode: camera.PhotoMode(p[0])}, nil
	}
}

func decodeAutoExposure(p []byte) AutoExposure {
	sum := 0
	for _, b := range p[:7] {
		sum += int(b)
	}
	if sum == 0 {
		return AutoExposure{Disable: true}
	}
	return AutoExposure{
		Limits: exposure.Limits{
			ISO:      exposure.Range{Min: int(p[0]), Max: int(p[1])},
			Aperture: exposure.Range{Min: int(p[2]), Max: int(p[3])},
			Shutter:  exposure.Range{Min: int(p[4]), Max: int(p[5])},
		},
		Selector: p[6],
	}
}

// Outbound packet tags. The timelapse status shares the state tag and is
// told apart by its length.
const (
	TagState        byte = 0x80
	TagTimelapse    byte = 0x80
	TagAutoExposure byte = 0x82
)

// Packet lengths.
const (
	StateLen        = 8
	TimelapseLen    = 6
	AutoExposureLen = 8
)

// EncodeState returns the settings broadcast packet.
func EncodeState(snap camera.Snapshot) []byte {
	wb := snap.WhiteBalance
	return []byte{
		TagState,
		byte(snap.Settings.ISO),
		byte(snap.Settings.Aperture),
		byte(snap.Settings.Shutter),
		byte(wb >> 8),
		byte(wb),
		byte(snap.TimedShutter),
		byte(snap.PhotoMode),
	}
}

// EncodeTimelapse returns the timelapse status packet.
func EncodeTimelapse(st timelapse.State) []byte {
	return []byte{
		TagTimelapse,
		byte(st.Interval),
		byte(st.Total >> 8),
		byte(st.Total),
		byte(st.Remaining >> 8),
		byte(st.Remaining),
	}
}

// EncodeAutoExposure returns the auto-exposure status packet, all zeros
// after the tag when disabled.
func EncodeAutoExposure(cfg exposure.Config) []byte {
	out := make([]byte, AutoExposureLen)
	out[0] = TagAutoExposure
	if !cfg.Enabled {
		return out
	}
	l := cfg.Limits
	out[1], out[2] = byte(l.ISO.Min), byte(l.ISO.Max)
	out[3], out[4] = byte(l.Aperture.Min), byte(l.Aperture.Max)
	out[5], out[6] = byte(l.Shutter.Min), byte(l.Shutter.Max)
	out[7] = cfg.Selector & 7
	return out
}
