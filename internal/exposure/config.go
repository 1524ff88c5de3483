package exposure

import (
	"errors"
	"fmt"

	"github.com/camera-remote/ccb/internal/params"
)

// ErrInvalidConfig reports limits outside the parameter tables.
var ErrInvalidConfig = errors.New("invalid auto-exposure configuration")

// Settings is the exposure triad as table ids.
type Settings struct {
	Shutter  int `json:"shutter"`
	Aperture int `json:"aperture"`
	ISO      int `json:"iso"`
}

// Get returns the id of kind.
func (s Settings) Get(kind params.Kind) int {
	switch kind {
	case params.Shutter:
		return s.Shutter
	case params.Aperture:
		return s.Aperture
	default:
		return s.ISO
	}
}

func (s *Settings) set(kind params.Kind, id int) {
	switch kind {
	case params.Shutter:
		s.Shutter = id
	case params.Aperture:
		s.Aperture = id
	default:
		s.ISO = id
	}
}

// Range is an inclusive id range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether id lies in the range.
func (r Range) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// Limits bounds every parameter the engine may move.
type Limits struct {
	ISO      Range `json:"iso"`
	Aperture Range `json:"aperture"`
	Shutter  Range `json:"shutter"`
}

// For returns the range of kind.
func (l Limits) For(kind params.Kind) Range {
	switch kind {
	case params.Shutter:
		return l.Shutter
	case params.Aperture:
		return l.Aperture
	default:
		return l.ISO
	}
}

// FullLimits spans every table.
func FullLimits() Limits {
	return Limits{
		ISO:      Range{0, params.ISOCount - 1},
		Aperture: Range{0, params.ApertureCount - 1},
		Shutter:  Range{1, params.ShutterCount - 1},
	}
}

// Validate checks the limits against the parameter tables.
func (l Limits) Validate() error {
	checks := []struct {
		kind  params.Kind
		r     Range
		valid func(int) bool
	}{
		{params.ISO, l.ISO, params.ValidISO},
		{params.Aperture, l.Aperture, params.ValidAperture},
		{params.Shutter, l.Shutter, params.ValidShutter},
	}
	for _, c := range checks {
		if !c.valid(c.r.Min) || !c.valid(c.r.Max) || c.r.Min > c.r.Max {
			return fmt.Errorf("%w: %s range [%d,%d]", ErrInvalidConfig, c.kind, c.r.Min, c.r.Max)
		}
	}
	return nil
}

// Order is the priority in which parameters are changed to add light.
// Removing light walks it backwards.
type Order [3]params.Kind

// DefaultOrder prefers shutter, then aperture, then ISO.
var DefaultOrder = Order{params.Shutter, params.Aperture, params.ISO}

// DecodeOrder turns a 3-bit selector plus parity bit into an Order.
func DecodeOrder(selector byte) Order {
	id := selector & 7
	first := (id >> 1) % 3
	second := (first + (id&1)*2 + 2) % 3
	third := ^(first ^ second) & 3
	return Order{DefaultOrder[first], DefaultOrder[second], DefaultOrder[third]}
}

func (o Order) String() string {
	return fmt.Sprintf("%s>%s>%s", o[0], o[1], o[2])
}

// Config is the client-supplied auto-exposure setup.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Limits   Limits `json:"limits"`
	Order    Order  `json:"-"`
	Selector byte   `json:"selector"`
}

// DefaultConfig is disabled with the default order.
func DefaultConfig() Config {
	return Config{Order: DefaultOrder}
}

// NewConfig builds an enabled configuration from limits and selector.
func NewConfig(limits Limits, selector byte) (Config, error) {
	if err := limits.Validate(); err != nil {
		return Config{}, err
	}
	return Config{
		Enabled:  true,
		Limits:   limits,
		Order:    DecodeOrder(selector),
		Selector: selector & 7,
	}, nil
}
