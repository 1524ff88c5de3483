package params

import "fmt"

// MeteringOffset is the position of the exposure byte in a live stream packet.
const MeteringOffset = 140

const (
	evByteMin = 0x06
	evByteMax = 0x18
)

// evSteps maps (byte - 0x06) to a signed third-stop count.
var evSteps = [evByteMax - evByteMin + 1]int{-9, -8, -7, -6, -5, -4, -3, -2, -1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

// DecodeEV converts a metering byte into a signed number of third-stops.
func DecodeEV(b byte) (int, error) {
	if b < evByteMin || b > evByteMax {
		return 0, fmt.Errorf("metering byte 0x%02x outside [0x%02x,0x%02x]", b, evByteMin, evByteMax)
	}
	return evSteps[b-evByteMin], nil
}

// EVStops converts third-stops to stops, truncated to one decimal.
func EVStops(thirds int) float64 {
	return float64(int(float64(thirds)*10/3)) / 10
}
