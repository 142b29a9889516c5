// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import "github.com/relabs-tech/mercalli_seismo/internal/accel"

// Gate zeroes a deviation strictly below the threshold. A deviation equal to
// the threshold passes through.
func Gate(deviation, threshold float64) float64 {
	if deviation < threshold {
		return 0
	}
	return deviation
}

// GateAxes applies Gate to every axis.
func GateAxes(dev accel.Sample, threshold float64) accel.Sample {
	return accel.Sample{
		X: Gate(dev.X, threshold),
		Y: Gate(dev.Y, threshold),
		Z: Gate(dev.Z, threshold),
	}
}
