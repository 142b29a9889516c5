// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"math"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// Peaks are running maxima since the last reset.
type Peaks struct {
	X         float64 `json:"x_peak"`
	Y         float64 `json:"y_peak"`
	Z         float64 `json:"z_peak"`
	Magnitude float64 `json:"dev_mag_peak"`
	Mercalli  int     `json:"mercalli_peak"`
	// RawMagnitude is the peak calibrated acceleration norm, for reference only.
	RawMagnitude float64 `json:"raw_mag_peak"`
}

// Observe folds gated deviations and their magnitude into the peaks. The
// Mercalli peak is only reclassified when the magnitude peak grows.
func (p *Peaks) Observe(gated accel.Sample, magnitude float64) {
	p.X = math.Max(p.X, gated.X)
	p.Y = math.Max(p.Y, gated.Y)
	p.Z = math.Max(p.Z, gated.Z)
	if magnitude > p.Magnitude {
		p.Magnitude = magnitude
		p.Mercalli = Classify(p.Magnitude)
	} else if p.Mercalli == 0 {
		// first post-warmup sample of a quiet device
		p.Mercalli = Classify(p.Magnitude)
	}
}

// ObserveRaw tracks the raw magnitude peak.
func (p *Peaks) ObserveRaw(rawMag float64) {
	p.RawMagnitude = math.Max(p.RawMagnitude, rawMag)
}

// Reset zeroes every peak.
func (p *Peaks) Reset() { *p = Peaks{} }
