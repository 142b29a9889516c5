// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import "github.com/relabs-tech/mercalli_seismo/internal/accel"

const (
	// WarmupSamples is the number of samples the baseline copies verbatim
	// before smoothing starts and deviations are produced.
	WarmupSamples = 20
	// BaselineAlpha is the smoothing factor; higher adapts slower.
	BaselineAlpha = 0.95
)

// Baseline is a per-axis exponential moving reference that tracks slow
// drift (orientation, temperature, DC bias) but not transient shaking.
type Baseline struct {
	value  accel.Sample
	warmup int
}

// Update folds a calibrated sample into the baseline. During warmup the
// baseline is set to the sample and ready is false. Afterwards the baseline
// is smoothed first and the returned deviation is |sample - baseline|.
func (b *Baseline) Update(s accel.Sample) (dev accel.Sample, ready bool) {
	if b.warmup < WarmupSamples {
		b.value = s
		b.warmup++
		return accel.Sample{}, false
	}
	b.value = b.value.Scale(BaselineAlpha).Add(s.Scale(1 - BaselineAlpha))
	return s.Sub(b.value).Abs(), true
}

// Ready reports whether warmup has completed.
func (b *Baseline) Ready() bool { return b.warmup >= WarmupSamples }

// WarmupCount is pinned at WarmupSamples once warmup completes.
func (b *Baseline) WarmupCount() int { return b.warmup }

// Value is the current reference.
func (b *Baseline) Value() accel.Sample { return b.value }

// Reset restarts warmup so the baseline is re-established from scratch.
func (b *Baseline) Reset() { b.warmup = 0 }
