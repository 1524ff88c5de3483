package exposure

import (
	"github.com/camera-remote/ccb/internal/params"
)

// Step is one move of the planner.
type Step struct {
	Kind   params.Kind `json:"kind"`
	From   int         `json:"from"`
	To     int         `json:"to"`
	Budget int         `json:"budget"` // third-stops left before the move
	Cost   int         `json:"cost"`   // third-stops the move spends
}

// Outcome is the result of planning one correction.
type Outcome struct {
	Sample  int      `json:"sample"`
	Start   Settings `json:"start"`
	Target  Settings `json:"target"`
	Steps   []Step   `json:"steps,omitempty"`
	Limited bool     `json:"limited"`
}

// Changed reports whether the target differs from the start.
func (o Outcome) Changed() bool {
	return o.Start != o.Target
}

// ISOCost returns how many third-stops one ISO step from iso is worth.
// Low sensitivities are spaced closer than high ones, and the bands
// differ between raising and lowering.
func ISOCost(iso int, increase bool) int {
	low, mid := 3, 4
	if !increase {
		low, mid = 4, 5
	}
	switch {
	case iso < low:
		return 1
	case iso < mid:
		return 2
	default:
		return 3
	}
}

// Plan computes target settings for a metering sample. Negative samples
// add light, positive samples remove it. Plan is pure.
func Plan(sample int, cur Settings, cfg Config) Outcome {
	out := Outcome{Sample: sample, Start: cur, Target: cur}
	if sample == 0 {
		return out
	}

	increase := sample < 0
	order := cfg.Order
	if order == (Order{}) {
		order = DefaultOrder
	}
	if !increase {
		order = Order{order[2], order[1], order[0]}
	}

	z := sample
	if z < 0 {
		z = -z
	}
	for ; z > 0; z-- {
		isoCost := ISOCost(out.Target.ISO, increase)
		moved := false
		for _, kind := range order {
			from := out.Target.Get(kind)
			to, ok := nextID(kind, from, increase, cfg.Limits.For(kind))
			if !ok {
				continue
			}
			cost := 1
			if kind == params.ISO {
				if z < isoCost {
					continue
				}
				cost = isoCost
			}
			out.Steps = append(out.Steps, Step{Kind: kind, From: from, To: to, Budget: z, Cost: cost})
			out.Target.set(kind, to)
			z -= cost - 1
			moved = true
			break
		}
		if !moved {
			out.Limited = true
			break
		}
	}
	return out
}

// nextID returns the id one step toward more (increase) or less light,
// if that stays inside r. Aperture ids grow as the aperture closes.
func nextID(kind params.Kind, id int, increase bool, r Range) (int, bool) {
	if kind == params.Shutter && id == params.ShutterBulb {
		return id, false
	}
	up := increase
	if kind == params.Aperture {
		up = !increase
	}
	if up {
		if id < r.Min || id >= r.Max {
			return id, false
		}
		return id + 1, true
	}
	if id <= r.Min || id > r.Max {
		return id, false
	}
	if kind == params.Shutter && id-1 == params.ShutterBulb {
		return id, false
	}
	return id - 1, true
}
