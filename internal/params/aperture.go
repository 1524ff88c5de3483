package params

import (
	"fmt"
	"math"
)

// ApertureCount is the number of aperture positions.
const ApertureCount = 10

const (
	apertureBase = 768
	apertureStep = 85.30232558139535
)

var fNumbers = [ApertureCount]float64{2.8, 3.2, 3.5, 4, 4.5, 5, 5.6, 6.3, 7.1, 8}

// ValidAperture reports whether id addresses an aperture position.
func ValidAperture(id int) bool {
	return id >= 0 && id < ApertureCount
}

// FNumber returns the f-number of an aperture id.
func FNumber(id int) float64 {
	if !ValidAperture(id) {
		return 0
	}
	return fNumbers[id]
}

// ApertureLabel returns "f/<n>" for an aperture id.
func ApertureLabel(id int) string {
	if !ValidAperture(id) {
		return fmt.Sprintf("aperture(%d)", id)
	}
	return fmt.Sprintf("f/%g", fNumbers[id])
}

// ApertureRaw returns the camera encoding of an aperture id.
func ApertureRaw(id int) (int, error) {
	if !ValidAperture(id) {
		return 0, fmt.Errorf("aperture id %d out of range [0,%d]", id, ApertureCount-1)
	}
	return apertureRaw(id), nil
}

func apertureRaw(id int) int {
	return int(math.Round(apertureBase + apertureStep*float64(id)))
}

// ApertureValue returns the setsetting value for an aperture id.
func ApertureValue(id int) (string, error) {
	raw, err := ApertureRaw(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/256", raw), nil
}

// ApertureFromRaw returns the aperture id whose encoding is nearest to raw,
// ties toward the lower id.
func ApertureFromRaw(raw int) int {
	best := 0
	bestDist := math.MaxInt
	for id := 0; id < ApertureCount; id++ {
		d := abs(apertureRaw(id) - raw)
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}
