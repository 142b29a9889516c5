// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// ErrSimulatedFault is returned by SimSource on its scheduled failed reads.
var ErrSimulatedFault = errors.New("sim: simulated read failure")

// quakeLength is the number of reads a synthetic burst lasts.
const quakeLength = 40

// SimConfig shapes the synthetic signal.
type SimConfig struct {
	Seed       uint64
	Noise      float64 // gaussian std per axis, m/s²
	QuakeEvery int     // reads between bursts, 0 disables
	QuakePeak  float64 // burst amplitude, m/s²
	FailEvery  int     // every n-th read fails, 0 disables
}

// SimSource generates a device at rest (gravity on Z) with gaussian noise
// and optional decaying shaking bursts. It is deterministic for a seed.
type SimSource struct {
	cfg SimConfig
	rng *rand.Rand
	n   int
}

// NewSimSource builds a simulated accelerometer.
func NewSimSource(cfg SimConfig) *SimSource {
	if cfg.QuakePeak == 0 {
		cfg.QuakePeak = 3
	}
	return &SimSource{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed))}
}

// Read returns the next synthetic sample.
func (s *SimSource) Read() (accel.Sample, error) {
	s.n++
	if s.cfg.FailEvery > 0 && s.n%s.cfg.FailEvery == 0 {
		return accel.Sample{}, ErrSimulatedFault
	}
	out := accel.Sample{
		X: s.rng.NormFloat64() * s.cfg.Noise,
		Y: s.rng.NormFloat64() * s.cfg.Noise,
		Z: accel.StandardGravity + s.rng.NormFloat64()*s.cfg.Noise,
	}
	if s.cfg.QuakeEvery > 0 {
		if k := s.n % s.cfg.QuakeEvery; s.n >= s.cfg.QuakeEvery && k < quakeLength {
			out = out.Add(shake(k, s.cfg.QuakePeak))
		}
	}
	return out, nil
}

// shake is a decaying oscillation, k reads into a burst.
func shake(k int, peak float64) accel.Sample {
	decay := peak * math.Exp(-float64(k)/12)
	phase := float64(k) * 0.9
	return accel.Sample{
		X: decay * math.Sin(phase),
		Y: 0.7 * decay * math.Cos(phase*1.3),
		Z: 0.4 * decay * math.Sin(phase*0.7),
	}
}
