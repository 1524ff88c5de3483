package params

import (
	"fmt"
	"strconv"
)

// ISOCount is the number of ISO positions.
const ISOCount = 11

var isoValues = [ISOCount]int{80, 100, 125, 200, 400, 800, 1600, 3200, 6400, 12800, 25600}

// ValidISO reports whether id addresses an ISO position.
func ValidISO(id int) bool {
	return id >= 0 && id < ISOCount
}

// ISOValue returns the sensitivity of an ISO id.
func ISOValue(id int) (int, error) {
	if !ValidISO(id) {
		return 0, fmt.Errorf("iso id %d out of range [0,%d]", id, ISOCount-1)
	}
	return isoValues[id], nil
}

// ISOLabel returns the sensitivity as a string.
func ISOLabel(id int) string {
	if !ValidISO(id) {
		return fmt.Sprintf("iso(%d)", id)
	}
	return strconv.Itoa(isoValues[id])
}

// ISOFromValue returns the id of an exact sensitivity value.
func ISOFromValue(iso int) (int, bool) {
	for id, v := range isoValues {
		if v == iso {
			return id, true
		}
	}
	return 0, false
}
