package params

import (
	"fmt"
	"math"
)

// ShutterBulb is the id of the T (bulb) position.
const ShutterBulb = 0

// ShutterCount is the number of shutter positions including T.
const ShutterCount = 53

// shutterBulbRaw is the out-of-range sentinel the camera uses for T.
const shutterBulbRaw = 16384

var shutterLabels = [ShutterCount]string{
	"T", "1/2000", "1/1600", "1/1300", "1/1000", "1/800", "1/640", "1/500", "1/400", "1/320",
	"1/250", "1/200", "1/160", "1/125", "1/100", "1/80", "1/60", "1/50", "1/40", "1/30",
	"1/25", "1/20", "1/15", "1/13", "1/10", "1/8", "1/6", "1/5", "1/4", "1/3.2",
	"1/2.5", "1/2", "1/1.6", "1/1.3", "1", "1.3", "1.6", "2", "2.5", "3.2",
	"4", "5", "6", "8", "10", "13", "15", "20", "25", "30",
	"40", "50", "60",
}

var shutterSeconds = [ShutterCount]float64{
	-1, 1.0 / 2000, 1.0 / 1600, 1.0 / 1300, 1.0 / 1000, 1.0 / 800, 1.0 / 640, 1.0 / 500, 1.0 / 400, 1.0 / 320,
	1.0 / 250, 1.0 / 200, 1.0 / 160, 1.0 / 125, 1.0 / 100, 1.0 / 80, 1.0 / 60, 1.0 / 50, 1.0 / 40, 1.0 / 30,
	1.0 / 25, 1.0 / 20, 1.0 / 15, 1.0 / 13, 1.0 / 10, 1.0 / 8, 1.0 / 6, 1.0 / 5, 1.0 / 4, 1 / 3.2,
	1 / 2.5, 1.0 / 2, 1 / 1.6, 1 / 1.3, 1, 1.3, 1.6, 2, 2.5, 3.2,
	4, 5, 6, 8, 10, 13, 15, 20, 25, 30,
	40, 50, 60,
}

// shutterRaw holds the camera's 16-bit encoding. Values above 32767 are the
// two's complement form of negative numbers (exposures longer than 1s).
var shutterRaw = [ShutterCount]uint16{
	shutterBulbRaw, 2816, 2731, 2646, 2560, 2475, 2390, 2304, 2219, 2134,
	2048, 1963, 1878, 1792, 1707, 1622, 1536, 1451, 1366, 1280,
	1195, 1110, 1024, 939, 854, 768, 683, 598, 512, 427,
	342, 256, 171, 86, 0, 65451, 65366, 65280, 65195, 65110,
	65024, 64939, 64854, 64768, 64683, 64598, 64512, 64427, 64342, 64256,
	64171, 64086, 64000,
}

// ValidShutter reports whether id addresses a shutter position.
func ValidShutter(id int) bool {
	return id >= 0 && id < ShutterCount
}

// ShutterLabel returns the display string of a shutter id.
func ShutterLabel(id int) string {
	if !ValidShutter(id) {
		return fmt.Sprintf("shutter(%d)", id)
	}
	return shutterLabels[id]
}

// ShutterSeconds returns the exposure time of a shutter id, -1 for T.
func ShutterSeconds(id int) float64 {
	if !ValidShutter(id) {
		return 0
	}
	return shutterSeconds[id]
}

// ShutterRaw returns the camera encoding of a shutter id.
func ShutterRaw(id int) (uint16, error) {
	if !ValidShutter(id) {
		return 0, fmt.Errorf("shutter id %d out of range [0,%d]", id, ShutterCount-1)
	}
	return shutterRaw[id], nil
}

// ShutterValue returns the setsetting value for a shutter id, e.g. "2816/256"
// or "-85/256".
func ShutterValue(id int) (string, error) {
	raw, err := ShutterRaw(id)
	if err != nil {
		return "", err
	}
	if id == ShutterBulb {
		return fmt.Sprintf("%d/256", raw), nil
	}
	return fmt.Sprintf("%d/256", int16(raw)), nil
}

// ShutterFromRaw returns the shutter id whose encoding is nearest to raw.
// Negative readings are folded into the unsigned 16-bit form first.
// Ties resolve toward the lower id.
func ShutterFromRaw(raw int) int {
	if raw < 0 {
		raw += 1 << 16
	}
	best := 0
	bestDist := math.MaxInt
	for id, v := range shutterRaw {
		d := abs(int(v) - raw)
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
