package params

// Kind identifies one of the three exposure parameters.
type Kind int

const (
	Shutter Kind = iota
	Aperture
	ISO
)

// Kinds lists the parameters in their default adjustment priority.
var Kinds = [3]Kind{Shutter, Aperture, ISO}

func (k Kind) String() string {
	switch k {
	case Shutter:
		return "shtr"
	case Aperture:
		return "aperture"
	case ISO:
		return "iso"
	default:
		return "unknown"
	}
}
