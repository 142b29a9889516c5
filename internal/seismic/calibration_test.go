// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

var errRead = errors.New("i2c nack")

// scripted returns samples from fn(i) for the i-th read.
func scripted(fn func(i int) (accel.Sample, error)) accel.Source {
	i := 0
	return accel.SourceFunc(func() (accel.Sample, error) {
		s, err := fn(i)
		i++
		return s, err
	})
}

func constant(s accel.Sample) accel.Source {
	return scripted(func(int) (accel.Sample, error) { return s, nil })
}

func noSleep(time.Duration) {}

func TestAccumulatorEstimate(t *testing.T) {
	var acc Accumulator
	for _, x := range []float64{1, 2, 3, 4} {
		acc.Add(accel.Sample{X: x, Y: -x, Z: 10})
	}
	est, err := acc.Estimate()
	require.NoError(t, err)
	assert.Equal(t, 4, est.Samples)
	assert.InDelta(t, 2.5, est.Mean.X, 1e-12)
	assert.InDelta(t, -2.5, est.Mean.Y, 1e-12)
	assert.InDelta(t, 10, est.Mean.Z, 1e-12)
	// population std of 1..4
	assert.InDelta(t, 1.118034, est.StdDev.X, 1e-6)
	assert.InDelta(t, 1.118034, est.StdDev.Y, 1e-6)
	assert.InDelta(t, 0, est.StdDev.Z, 1e-6)
	assert.InDelta(t, 3*1.118034, est.NoiseThreshold, 1e-5)

	p := est.Profile()
	assert.True(t, p.Calibrated)
	assert.InDelta(t, -2.5, p.Offset.X, 1e-12)
}

func TestAccumulatorNoSamples(t *testing.T) {
	var acc Accumulator
	acc.Miss()
	est, err := acc.Estimate()
	require.ErrorIs(t, err, ErrNoValidSamples)
	assert.Equal(t, 1, est.Failed)
}

func TestVerify(t *testing.T) {
	p := CalibrationProfile{Offset: accel.Sample{Z: -9.8}}
	avg, good := Verify(p, []accel.Sample{{X: 0.05, Z: 9.8}, {X: -0.03, Z: 9.85}})
	assert.True(t, good)
	assert.InDelta(t, 0.01, avg.X, 1e-12)
	assert.InDelta(t, 0.025, avg.Z, 1e-9)

	_, good = Verify(p, []accel.Sample{{Z: 10}})
	assert.False(t, good, "0.2 off on z")

	_, good = Verify(p, nil)
	assert.False(t, good, "empty batch")
}

func TestCalibrateConstantSource(t *testing.T) {
	cal := Calibrator{
		Source:   constant(accel.Sample{X: 0.2, Y: -0.1, Z: 9.9}),
		Settings: DefaultCalibrationSettings(),
		Sleep:    noSleep,
	}
	res := cal.Run(DefaultProfile())

	require.True(t, res.Success)
	assert.Equal(t, StatusCalibrated, res.Status)
	assert.NoError(t, res.Err)
	assert.True(t, res.Profile.Calibrated)
	assert.InDelta(t, -0.2, res.Profile.Offset.X, 1e-9)
	assert.InDelta(t, 0.1, res.Profile.Offset.Y, 1e-9)
	assert.InDelta(t, -9.9, res.Profile.Offset.Z, 1e-9)
	assert.Equal(t, MinNoiseThreshold, res.Profile.NoiseThreshold)
	assert.Equal(t, 100, res.Estimate.Samples)
	assert.Equal(t, 10, res.VerifySamples)
}

func TestCalibrateWarningKeepsOffsets(t *testing.T) {
	// the device is nudged right after the main batch
	src := scripted(func(i int) (accel.Sample, error) {
		if i < 100 {
			return accel.Sample{Z: 9.8}, nil
		}
		return accel.Sample{X: 0.5, Z: 9.8}, nil
	})
	cal := Calibrator{Source: src, Settings: DefaultCalibrationSettings(), Sleep: noSleep}
	res := cal.Run(DefaultProfile())

	assert.True(t, res.Success)
	assert.Equal(t, StatusWarning, res.Status)
	assert.InDelta(t, -9.8, res.Profile.Offset.Z, 1e-9)
	assert.InDelta(t, 0.5, res.VerifyAverage.X, 1e-9)
}

func TestCalibrateSkipsFailedReads(t *testing.T) {
	src := scripted(func(i int) (accel.Sample, error) {
		if i%2 == 0 {
			return accel.Sample{}, errRead
		}
		return accel.Sample{X: 1}, nil
	})
	cal := Calibrator{Source: src, Settings: DefaultCalibrationSettings(), Sleep: noSleep}
	res := cal.Run(DefaultProfile())

	require.True(t, res.Success)
	assert.Equal(t, 50, res.Estimate.Samples)
	assert.Equal(t, 50, res.Estimate.Failed)
	assert.Equal(t, 5, res.VerifySamples)
	assert.Equal(t, StatusCalibrated, res.Status)
}

func TestCalibrateVerifyAveragesValidReadsOnly(t *testing.T) {
	// 4 of 10 verification reads succeed, each 0.2 off on X; dividing by
	// the full batch would report 0.08 and pass
	src := scripted(func(i int) (accel.Sample, error) {
		switch {
		case i < 100:
			return accel.Sample{Z: 9.8}, nil
		case i < 106:
			return accel.Sample{}, errRead
		default:
			return accel.Sample{X: 0.2, Z: 9.8}, nil
		}
	})
	cal := Calibrator{Source: src, Settings: DefaultCalibrationSettings(), Sleep: noSleep}
	res := cal.Run(DefaultProfile())

	require.True(t, res.Success)
	assert.Equal(t, 4, res.VerifySamples)
	assert.InDelta(t, 0.2, res.VerifyAverage.X, 1e-9)
	assert.Equal(t, StatusWarning, res.Status)
}

func TestCalibrateVerifyWithNoValidReads(t *testing.T) {
	src := scripted(func(i int) (accel.Sample, error) {
		if i < 100 {
			return accel.Sample{Z: 9.8}, nil
		}
		return accel.Sample{}, errRead
	})
	cal := Calibrator{Source: src, Settings: DefaultCalibrationSettings(), Sleep: noSleep}
	res := cal.Run(DefaultProfile())

	require.True(t, res.Success)
	assert.Zero(t, res.VerifySamples)
	assert.Equal(t, StatusWarning, res.Status)
	assert.True(t, res.Profile.Calibrated)
}

func TestCalibrateFailsWithoutSamples(t *testing.T) {
	prev := CalibrationProfile{Offset: accel.Sample{X: 1}, NoiseThreshold: 0.3, Calibrated: true}
	src := scripted(func(int) (accel.Sample, error) { return accel.Sample{}, errRead })
	cal := Calibrator{Source: src, Settings: DefaultCalibrationSettings(), Sleep: noSleep}

	res := cal.Run(prev)
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoValidSamples)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, prev, res.Profile)
}

func TestCalibrateProgress(t *testing.T) {
	var phases []Phase
	var slept time.Duration
	cal := Calibrator{
		Source:   constant(accel.Sample{Z: 9.8}),
		Settings: CalibrationSettings{Samples: 20, VerifySamples: 2, SampleDelay: 50 * time.Millisecond},
		Sleep:    func(d time.Duration) { slept += d },
		Progress: func(p Progress) {
			phases = append(phases, p.Phase)
			if p.Phase == PhaseCollecting && p.Done == 10 {
				assert.Equal(t, 50, p.Percent())
				assert.Equal(t, 500*time.Millisecond, p.Remaining)
			}
			if p.Phase == PhaseCalibrated {
				assert.NotNil(t, p.Result)
			}
		},
	}
	cal.Run(DefaultProfile())

	assert.Equal(t, []Phase{
		PhaseCollecting, PhaseCollecting, PhaseComputing, PhaseVerifying, PhaseCalibrated,
	}, phases)
	assert.Equal(t, 22*50*time.Millisecond, slept)
}
