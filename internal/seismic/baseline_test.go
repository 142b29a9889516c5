// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

func TestBaselineWarmupTracksSampleExactly(t *testing.T) {
	var b Baseline
	for i := 0; i < WarmupSamples; i++ {
		s := accel.Sample{X: float64(i) * 0.3, Y: -float64(i), Z: 9.8 + float64(i)/7}
		dev, ready := b.Update(s)
		require.False(t, ready, "sample %d", i)
		assert.Equal(t, accel.Sample{}, dev)
		assert.Equal(t, s, b.Value(), "sample %d", i)
		assert.Equal(t, i+1, b.WarmupCount())
	}
	require.True(t, b.Ready())

	prev := b.Value()
	s := accel.Sample{X: 10, Y: 10, Z: 10}
	dev, ready := b.Update(s)
	require.True(t, ready)
	assert.Equal(t, WarmupSamples, b.WarmupCount(), "warmup count is pinned")

	got := b.Value()
	assert.NotEqual(t, s, got)
	for i, v := range got.Axes() {
		want := BaselineAlpha*prev.Axes()[i] + (1-BaselineAlpha)*s.Axes()[i]
		assert.InDelta(t, want, v, 1e-12)
	}
	// deviation is measured against the already updated baseline
	assert.InDelta(t, s.X-got.X, dev.X, 1e-12)
}

func TestBaselineDeviationIsAbsolute(t *testing.T) {
	var b Baseline
	for i := 0; i < WarmupSamples; i++ {
		b.Update(accel.Sample{})
	}
	dev, ready := b.Update(accel.Sample{X: -2, Y: 2})
	require.True(t, ready)
	assert.InDelta(t, 1.9, dev.X, 1e-12)
	assert.InDelta(t, 1.9, dev.Y, 1e-12)
	assert.Zero(t, dev.Z)
}

func TestBaselineReset(t *testing.T) {
	var b Baseline
	for i := 0; i < WarmupSamples+5; i++ {
		b.Update(accel.Sample{X: 1})
	}
	b.Reset()
	assert.False(t, b.Ready())
	assert.Zero(t, b.WarmupCount())

	s := accel.Sample{X: 4, Y: 5, Z: 6}
	_, ready := b.Update(s)
	assert.False(t, ready)
	assert.Equal(t, s, b.Value())
}
