// Package exposure implements automatic exposure correction.
//
// A metering sample gives the exposure error in third-stops. The planner
// walks shutter, aperture and ISO one id at a time, in the configured
// priority order and within the configured limits, until the error is
// spent or no parameter can move. The Engine measures, plans and applies
// the result through the setting controller, one run at a time.
package exposure
