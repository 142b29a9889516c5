// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

type fakeClock struct {
	mu     sync.Mutex
	mono   time.Duration
	wall   time.Time
	synced bool
}

func (c *fakeClock) Monotonic() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mono
}

func (c *fakeClock) WallTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return time.Time{}, false
	}
	return c.wall.Add(c.mono), true
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.mono += d
	c.mu.Unlock()
}

func syncedClock() *fakeClock {
	return &fakeClock{wall: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), synced: true}
}

func warmUp(e *Engine) {
	for i := 0; i < WarmupSamples; i++ {
		e.Tick(accel.Sample{})
	}
}

func TestEngineWarmup(t *testing.T) {
	e := NewEngine(constant(accel.Sample{}), syncedClock())
	for i := 1; i <= WarmupSamples; i++ {
		s := e.Tick(accel.Sample{X: 5})
		assert.Equal(t, i == WarmupSamples, s.BaselineReady, "tick %d", i)
		assert.Equal(t, i, s.WarmupCount)
		assert.Zero(t, s.MercalliNow)
		assert.Zero(t, s.XNow)
		assert.Zero(t, s.MercalliPeak)
	}
	s := e.Tick(accel.Sample{X: 5})
	assert.True(t, s.BaselineReady)
	assert.Equal(t, WarmupSamples, s.WarmupCount)
	assert.Equal(t, 1, s.MercalliNow)
	assert.Equal(t, 1, s.MercalliPeak)
	assert.Zero(t, s.EventCount)
	assert.InDelta(t, 5, s.RawMag, 1e-12)
}

func TestEngineShakeLogsEvent(t *testing.T) {
	clk := syncedClock()
	var hooked []Event
	e := NewEngine(constant(accel.Sample{}), clk, WithEventHook(func(ev Event) { hooked = append(hooked, ev) }))
	warmUp(e)

	s := e.Tick(accel.Sample{X: 10})
	// baseline moves to 0.5, deviation 9.5
	assert.InDelta(t, 9.5, s.XNow, 1e-9)
	assert.InDelta(t, 9.5, s.DevMagNow, 1e-9)
	assert.Equal(t, 9, s.MercalliNow)
	assert.Equal(t, 9, s.MercalliPeak)
	assert.True(t, s.TimeSync)
	require.Equal(t, 1, s.EventCount)
	require.NotNil(t, s.LastEvent)
	assert.Equal(t, 9, s.LastEvent.Mercalli)
	assert.Equal(t, "2025-06-01 12:00:00 UTC", s.LastEvent.Timestamp)

	require.Len(t, hooked, 1)
	assert.Equal(t, 9, hooked[0].Mercalli)
	assert.NotEmpty(t, hooked[0].ID)

	// same level inside the interval is suppressed
	clk.advance(time.Second)
	e.Tick(accel.Sample{X: 10})
	assert.Equal(t, 1, e.Snapshot().EventCount)

	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, hooked[0].ID, events[0].ID)

	e.ClearLog()
	assert.Zero(t, e.Snapshot().EventCount)
	assert.Nil(t, e.Snapshot().LastEvent)
	assert.Empty(t, e.Events())
	assert.Equal(t, uint64(1), e.Snapshot().EventsTotal)
}

func TestEngineNoTimeSyncNoEvents(t *testing.T) {
	e := NewEngine(constant(accel.Sample{}), &fakeClock{})
	warmUp(e)
	s := e.Tick(accel.Sample{X: 30, Y: 30})
	assert.False(t, s.TimeSync)
	assert.Equal(t, 12, s.MercalliNow)
	assert.Zero(t, s.EventCount)
	assert.Empty(t, e.Events())
}

func TestEnginePeaksAndReset(t *testing.T) {
	e := NewEngine(constant(accel.Sample{}), &fakeClock{})
	warmUp(e)

	prev := e.Snapshot()
	for i, x := range []float64{0.5, -2, 0.1, 3, 0, 1, -1} {
		s := e.Tick(accel.Sample{X: x, Y: x / 2})
		require.GreaterOrEqual(t, s.XPeak, prev.XPeak, "tick %d", i)
		require.GreaterOrEqual(t, s.YPeak, prev.YPeak, "tick %d", i)
		require.GreaterOrEqual(t, s.DevMagPeak, prev.DevMagPeak, "tick %d", i)
		require.GreaterOrEqual(t, s.MercalliPeak, prev.MercalliPeak, "tick %d", i)
		require.GreaterOrEqual(t, s.RawMagPeak, prev.RawMagPeak, "tick %d", i)
		prev = s
	}
	require.Positive(t, prev.DevMagPeak)

	e.Reset()
	s := e.Snapshot()
	assert.Zero(t, s.XPeak)
	assert.Zero(t, s.YPeak)
	assert.Zero(t, s.ZPeak)
	assert.Zero(t, s.DevMagPeak)
	assert.Zero(t, s.MercalliPeak)
	assert.Zero(t, s.RawMagPeak)
	assert.Zero(t, s.WarmupCount)
	assert.False(t, s.BaselineReady)
}

func TestEngineResetForgetsDebounce(t *testing.T) {
	clk := syncedClock()
	e := NewEngine(constant(accel.Sample{}), clk)
	warmUp(e)
	e.Tick(accel.Sample{X: 10})
	require.Equal(t, 1, e.Snapshot().EventCount)

	e.Reset()
	warmUp(e)
	clk.advance(time.Second)
	e.Tick(accel.Sample{X: 10})
	assert.Equal(t, 2, e.Snapshot().EventCount, "same level logs again after a reset")
}

func TestEngineSensorFailureSkipsTick(t *testing.T) {
	fail := true
	src := accel.SourceFunc(func() (accel.Sample, error) {
		if fail {
			return accel.Sample{}, errRead
		}
		return accel.Sample{Z: 1}, nil
	})
	e := NewEngine(src, &fakeClock{})

	s, err := e.Step()
	require.ErrorIs(t, err, errRead)
	assert.Equal(t, uint64(1), s.SensorErrors)
	assert.Zero(t, s.Ticks)
	assert.Zero(t, s.WarmupCount)

	fail = false
	s, err = e.Step()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Ticks)
	assert.Equal(t, 1, s.WarmupCount)
}

func TestEngineRecalibrate(t *testing.T) {
	var phases []Phase
	e := NewEngine(constant(accel.Sample{X: 0.2, Y: -0.1, Z: 9.9}), &fakeClock{},
		WithSleep(noSleep),
		WithProgress(func(p Progress) { phases = append(phases, p.Phase) }),
	)
	warmUp(e)
	e.Tick(accel.Sample{X: 4})
	require.Positive(t, e.Snapshot().DevMagPeak)

	res := e.Recalibrate()
	require.True(t, res.Success)
	assert.Equal(t, StatusCalibrated, res.Status)

	p := e.Profile()
	assert.True(t, p.Calibrated)
	assert.InDelta(t, -0.2, p.Offset.X, 1e-9)
	assert.InDelta(t, 0.1, p.Offset.Y, 1e-9)
	assert.InDelta(t, -9.9, p.Offset.Z, 1e-9)
	assert.Equal(t, MinNoiseThreshold, p.NoiseThreshold)

	s := e.Snapshot()
	assert.False(t, s.Calibrating)
	assert.Zero(t, s.DevMagPeak, "peaks reset after calibration")
	assert.Zero(t, s.WarmupCount)
	assert.Contains(t, phases, PhaseVerifying)
	assert.Equal(t, PhaseCalibrated, phases[len(phases)-1])

	// a resting reading now calibrates to ~0
	s = e.Tick(accel.Sample{X: 0.2, Y: -0.1, Z: 9.9})
	assert.InDelta(t, 0, s.RawMag, 1e-9)
}

func TestEngineRecalibrateFailureKeepsProfile(t *testing.T) {
	src := accel.SourceFunc(func() (accel.Sample, error) { return accel.Sample{}, errRead })
	e := NewEngine(src, &fakeClock{}, WithSleep(noSleep))
	res := e.Recalibrate()
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrNoValidSamples)
	assert.Equal(t, DefaultProfile(), e.Profile())
}

func TestEngineSnapshotDuringCalibration(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e := NewEngine(constant(accel.Sample{Z: 9.8}), &fakeClock{},
		WithCalibrationSettings(CalibrationSettings{Samples: 10, VerifySamples: 1, SampleDelay: time.Millisecond}),
		WithSleep(func(time.Duration) {
			once.Do(func() {
				close(entered)
				<-release
			})
		}),
	)

	done := make(chan CalibrationResult)
	go func() { done <- e.Recalibrate() }()

	<-entered
	// readers are not blocked by the running calibration
	assert.True(t, e.Snapshot().Calibrating)
	assert.Empty(t, e.Events())
	close(release)

	res := <-done
	assert.True(t, res.Success)
	assert.False(t, e.Snapshot().Calibrating)
}

func TestEngineApplyProfile(t *testing.T) {
	e := NewEngine(constant(accel.Sample{}), &fakeClock{})
	warmUp(e)
	e.ApplyProfile(CalibrationProfile{Offset: accel.Sample{Z: -9.8}, NoiseThreshold: 0.01, Calibrated: true})

	p := e.Profile()
	assert.Equal(t, MinNoiseThreshold, p.NoiseThreshold, "threshold floor")
	assert.Equal(t, -9.8, p.Offset.Z)
	assert.Zero(t, e.Snapshot().WarmupCount)
}
