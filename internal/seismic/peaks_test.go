// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

func TestPeaksMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var p Peaks
	prev := p
	for i := 0; i < 500; i++ {
		g := accel.Sample{X: rng.Float64() * 3, Y: rng.Float64() * 3, Z: rng.Float64() * 3}
		p.Observe(g, g.Norm())
		p.ObserveRaw(rng.Float64() * 20)

		require.GreaterOrEqual(t, p.X, prev.X)
		require.GreaterOrEqual(t, p.Y, prev.Y)
		require.GreaterOrEqual(t, p.Z, prev.Z)
		require.GreaterOrEqual(t, p.Magnitude, prev.Magnitude)
		require.GreaterOrEqual(t, p.Mercalli, prev.Mercalli)
		require.GreaterOrEqual(t, p.RawMagnitude, prev.RawMagnitude)
		prev = p
	}

	p.Reset()
	assert.Equal(t, Peaks{}, p)
}

func TestPeaksMercalliFollowsPeakOnly(t *testing.T) {
	var p Peaks
	p.Observe(accel.Sample{X: 1.5}, 1.5)
	require.Equal(t, 6, p.Mercalli)

	// a smaller instantaneous reading never lowers the peak intensity
	p.Observe(accel.Sample{X: 0.2}, 0.2)
	assert.Equal(t, 6, p.Mercalli)
	assert.Equal(t, 1.5, p.Magnitude)

	p.Observe(accel.Sample{Y: 5}, 5)
	assert.Equal(t, 8, p.Mercalli)
	assert.Equal(t, 1.5, p.X)
	assert.Equal(t, 5.0, p.Y)
}

func TestPeaksQuietDeviceReadsLevelOne(t *testing.T) {
	var p Peaks
	assert.Zero(t, p.Mercalli)
	p.Observe(accel.Sample{}, 0)
	assert.Equal(t, 1, p.Mercalli)
}
