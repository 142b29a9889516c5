// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

import "math"

// StandardGravity converts g to m/s².
const StandardGravity = 9.80665

// Sample represents a single 3-axis accelerometer reading in m/s².
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Source is anything that can provide accelerometer readings on demand.
// A failed read is reported as an error and carries no sample.
type Source interface {
	Read() (Sample, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func() (Sample, error)

// Read calls f.
func (f SourceFunc) Read() (Sample, error) { return f() }

// Add returns the per-axis sum s + o.
func (s Sample) Add(o Sample) Sample {
	return Sample{X: s.X + o.X, Y: s.Y + o.Y, Z: s.Z + o.Z}
}

// Sub returns the per-axis difference s - o.
func (s Sample) Sub(o Sample) Sample {
	return Sample{X: s.X - o.X, Y: s.Y - o.Y, Z: s.Z - o.Z}
}

// Abs returns the per-axis absolute value.
func (s Sample) Abs() Sample {
	return Sample{X: math.Abs(s.X), Y: math.Abs(s.Y), Z: math.Abs(s.Z)}
}

// Scale multiplies every axis by k.
func (s Sample) Scale(k float64) Sample {
	return Sample{X: s.X * k, Y: s.Y * k, Z: s.Z * k}
}

// Norm is the Euclidean magnitude of the vector.
func (s Sample) Norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Axes returns the components in X, Y, Z order.
func (s Sample) Axes() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}
