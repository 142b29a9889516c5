// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

const (
	// DefaultNoiseThreshold is used until a calibration succeeds.
	DefaultNoiseThreshold = 0.1
	// MinNoiseThreshold is the floor applied to very quiet sensors (m/s²).
	MinNoiseThreshold = 0.05
	// NoiseSigma is the multiple of the worst axis standard deviation used as
	// the noise gate (3-sigma rejects ~99.7% of rest noise).
	NoiseSigma = 3.0
	// VerifyTolerance bounds |average| per axis of the verification batch.
	VerifyTolerance = 0.1

	DefaultCalibrationSamples = 100
	DefaultVerifySamples      = 10
	DefaultSampleDelay        = 50 * time.Millisecond
)

// ErrNoValidSamples is returned when every read of the main batch failed.
var ErrNoValidSamples = errors.New("calibration: no valid samples")

// CalibrationProfile holds the software offsets and noise gate produced by
// a calibration run. It is replaced wholesale, never patched.
type CalibrationProfile struct {
	Offset         accel.Sample `json:"offset"`
	NoiseThreshold float64      `json:"noise_threshold"`
	Calibrated     bool         `json:"calibrated"`
}

// DefaultProfile is the uncalibrated starting profile.
func DefaultProfile() CalibrationProfile {
	return CalibrationProfile{NoiseThreshold: DefaultNoiseThreshold}
}

// Apply adds the software offsets to a raw reading.
func (p CalibrationProfile) Apply(raw accel.Sample) accel.Sample {
	return raw.Add(p.Offset)
}

// Estimate is the outcome of the statistics over the main batch.
type Estimate struct {
	Samples        int          `json:"samples"`
	Failed         int          `json:"failed"`
	Mean           accel.Sample `json:"mean"`
	StdDev         accel.Sample `json:"stddev"`
	NoiseThreshold float64      `json:"noise_threshold"`
}

// Profile derives the calibration profile: offsets cancel the mean so a
// resting device reads ~0 on every axis.
func (e Estimate) Profile() CalibrationProfile {
	return CalibrationProfile{
		Offset:         e.Mean.Scale(-1),
		NoiseThreshold: e.NoiseThreshold,
		Calibrated:     true,
	}
}

// Accumulator collects per-axis sum and sum of squares for a batch.
type Accumulator struct {
	n      int
	failed int
	sum    [3]float64
	sumSq  [3]float64
}

// Add folds one raw sample into the batch.
func (a *Accumulator) Add(s accel.Sample) {
	for i, v := range s.Axes() {
		a.sum[i] += v
		a.sumSq[i] += v * v
	}
	a.n++
}

// Miss records a failed read.
func (a *Accumulator) Miss() { a.failed++ }

// Count is the number of valid samples added.
func (a *Accumulator) Count() int { return a.n }

// Estimate computes mean, population standard deviation and the noise
// threshold max(MinNoiseThreshold, NoiseSigma * max std).
func (a *Accumulator) Estimate() (Estimate, error) {
	if a.n == 0 {
		return Estimate{Failed: a.failed}, ErrNoValidSamples
	}
	n := float64(a.n)
	var mean, std [3]float64
	for i := range mean {
		mean[i] = a.sum[i] / n
		variance := a.sumSq[i]/n - mean[i]*mean[i]
		// round-off can push a zero variance slightly negative
		std[i] = math.Sqrt(math.Max(variance, 0))
	}
	maxStd := math.Max(math.Max(std[0], std[1]), std[2])
	return Estimate{
		Samples:        a.n,
		Failed:         a.failed,
		Mean:           accel.Sample{X: mean[0], Y: mean[1], Z: mean[2]},
		StdDev:         accel.Sample{X: std[0], Y: std[1], Z: std[2]},
		NoiseThreshold: math.Max(MinNoiseThreshold, NoiseSigma*maxStd),
	}, nil
}

// Verify applies the profile to a secondary batch of raw samples and reports
// the per-axis average and whether every axis is within VerifyTolerance of 0.
// An empty batch never verifies.
func Verify(p CalibrationProfile, raw []accel.Sample) (accel.Sample, bool) {
	if len(raw) == 0 {
		return accel.Sample{}, false
	}
	xs := make([]float64, len(raw))
	ys := make([]float64, len(raw))
	zs := make([]float64, len(raw))
	for i, s := range raw {
		c := p.Apply(s)
		xs[i], ys[i], zs[i] = c.X, c.Y, c.Z
	}
	avg := accel.Sample{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
		Z: stat.Mean(zs, nil),
	}
	good := math.Abs(avg.X) < VerifyTolerance &&
		math.Abs(avg.Y) < VerifyTolerance &&
		math.Abs(avg.Z) < VerifyTolerance
	return avg, good
}

// Phase is a step of the calibration state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseComputing  Phase = "computing"
	PhaseVerifying  Phase = "verifying"
	PhaseCalibrated Phase = "calibrated"
	PhaseFailed     Phase = "failed"
)

// Status is the operator facing outcome of a calibration.
type Status string

const (
	// StatusCalibrated: applied and verified.
	StatusCalibrated Status = "calibrated"
	// StatusWarning: applied, but the verification batch did not settle near 0.
	StatusWarning Status = "warning"
	// StatusFailed: nothing applied.
	StatusFailed Status = "failed"
)

// CalibrationResult reports a calibration run.
type CalibrationResult struct {
	Success       bool               `json:"success"`
	Status        Status             `json:"status"`
	Profile       CalibrationProfile `json:"profile"`
	Estimate      Estimate           `json:"estimate"`
	VerifyAverage accel.Sample       `json:"verify_average"`
	VerifySamples int                `json:"verify_samples"`
	Duration      time.Duration      `json:"duration_ns"`
	Err           error              `json:"-"`
	Error         string             `json:"error,omitempty"`
}

// Progress is reported while a calibration runs.
type Progress struct {
	Phase     Phase
	Done      int
	Total     int
	Remaining time.Duration
	// Result is set on the final PhaseCalibrated / PhaseFailed report.
	Result *CalibrationResult
}

// Percent is the share of the main batch collected so far.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

// ProgressFunc receives calibration progress. It runs on the calibrating
// goroutine and must not block for long.
type ProgressFunc func(Progress)

// CalibrationSettings size the batches of a calibration run.
type CalibrationSettings struct {
	Samples       int
	VerifySamples int
	SampleDelay   time.Duration
}

// DefaultCalibrationSettings matches the firmware: 100 samples 50 ms apart,
// 10 verification samples.
func DefaultCalibrationSettings() CalibrationSettings {
	return CalibrationSettings{
		Samples:       DefaultCalibrationSamples,
		VerifySamples: DefaultVerifySamples,
		SampleDelay:   DefaultSampleDelay,
	}
}

// Calibrator runs the blocking calibration procedure against a source.
type Calibrator struct {
	Source   accel.Source
	Settings CalibrationSettings
	Sleep    func(time.Duration)
	Progress ProgressFunc
}

// Run executes Collecting -> Computing -> Verifying -> Calibrated|Failed.
// prev is returned untouched in the result when the run fails.
func (c *Calibrator) Run(prev CalibrationProfile) CalibrationResult {
	started := time.Now()
	s := c.Settings
	if s.Samples <= 0 {
		s.Samples = DefaultCalibrationSamples
	}
	if s.VerifySamples <= 0 {
		s.VerifySamples = DefaultVerifySamples
	}

	var acc Accumulator
	for i := 0; i < s.Samples; i++ {
		if i%10 == 0 {
			c.report(Progress{
				Phase:     PhaseCollecting,
				Done:      i,
				Total:     s.Samples,
				Remaining: time.Duration(s.Samples-i) * s.SampleDelay,
			})
		}
		if raw, err := c.Source.Read(); err != nil {
			acc.Miss()
		} else {
			acc.Add(raw)
		}
		c.sleep(s.SampleDelay)
	}
	c.report(Progress{Phase: PhaseComputing, Done: s.Samples, Total: s.Samples})

	est, err := acc.Estimate()
	if err != nil {
		res := CalibrationResult{
			Status:   StatusFailed,
			Profile:  prev,
			Estimate: est,
			Duration: time.Since(started),
			Err:      fmt.Errorf("%w (%d reads failed)", err, est.Failed),
		}
		res.Error = res.Err.Error()
		c.report(Progress{Phase: PhaseFailed, Done: s.Samples, Total: s.Samples, Result: &res})
		return res
	}
	profile := est.Profile()

	c.report(Progress{Phase: PhaseVerifying, Done: s.Samples, Total: s.Samples})
	check := make([]accel.Sample, 0, s.VerifySamples)
	for i := 0; i < s.VerifySamples; i++ {
		if raw, err := c.Source.Read(); err == nil {
			check = append(check, raw)
		}
		c.sleep(s.SampleDelay)
	}
	avg, good := Verify(profile, check)

	res := CalibrationResult{
		Success:       true,
		Status:        StatusCalibrated,
		Profile:       profile,
		Estimate:      est,
		VerifyAverage: avg,
		VerifySamples: len(check),
		Duration:      time.Since(started),
	}
	if !good {
		res.Status = StatusWarning
	}
	c.report(Progress{Phase: PhaseCalibrated, Done: s.Samples, Total: s.Samples, Result: &res})
	return res
}

func (c *Calibrator) report(p Progress) {
	if c.Progress != nil {
		c.Progress(p)
	}
}

func (c *Calibrator) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}
