// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package seismic turns calibrated accelerometer samples into a Mercalli
// style intensity reading and a bounded history of notable events.
//
// Per tick the engine applies the calibration offsets, updates the adaptive
// baseline, gates the per-axis deviation with the calibrated noise
// threshold, tracks peaks, classifies the gated magnitude and decides
// through the debounce policy whether the reading is logged.
//
// Nothing in this package touches a device; samples and time come in
// through the accel.Source and Clock capabilities.
package seismic

// MaxMercalli is the top of the 12 level scale.
const MaxMercalli = 12

// mercalliThresholds holds the upper bound (exclusive, m/s²) of levels 1..11.
// Anything at or above the last entry is level XII.
var mercalliThresholds = [MaxMercalli - 1]float64{
	0.15, // I - Not felt (accounts for sensor noise)
	0.25, // II - Weak
	0.4,  // III - Weak
	0.7,  // IV - Light
	1.2,  // V - Moderate
	2.0,  // VI - Strong
	4.0,  // VII - Very strong
	8.0,  // VIII - Severe
	12.0, // IX - Violent
	16.0, // X - Extreme
	20.0, // XI - Extreme
}

var mercalliLabels = [MaxMercalli + 1]string{
	"",
	"Not felt",
	"Weak",
	"Weak",
	"Light",
	"Moderate",
	"Strong",
	"Very strong",
	"Severe",
	"Violent",
	"Extreme",
	"Extreme",
	"Extreme",
}

var romanNumerals = [MaxMercalli + 1]string{
	"-", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII",
}

// Classify maps a gated deviation magnitude (m/s²) to an intensity in [1,12].
// Every band test is strict less-than, so a magnitude equal to a threshold
// belongs to the higher band. Negative input classifies as 1.
func Classify(magnitude float64) int {
	for i, limit := range mercalliThresholds {
		if magnitude < limit {
			return i + 1
		}
	}
	return MaxMercalli
}

// Roman returns the Roman numeral for an intensity, "-" for 0 (no reading).
func Roman(level int) string {
	if level < 0 || level > MaxMercalli {
		return "?"
	}
	return romanNumerals[level]
}

// Label returns a short human description of an intensity level.
func Label(level int) string {
	if level < 1 || level > MaxMercalli {
		return ""
	}
	return mercalliLabels[level]
}
