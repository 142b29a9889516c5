// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// Clock provides a monotonic offset always and a wall time only once it has
// been synchronised.
type Clock interface {
	Monotonic() time.Duration
	WallTime() (time.Time, bool)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCalibrationSettings sizes the calibration batches.
func WithCalibrationSettings(s CalibrationSettings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithProgress receives calibration progress.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithEventHook is called for every logged event, outside the engine lock.
func WithEventHook(fn func(Event)) Option {
	return func(e *Engine) { e.onEvent = fn }
}

// WithDebounceInterval overrides DefaultLogInterval.
func WithDebounceInterval(d time.Duration) Option {
	return func(e *Engine) { e.debounce.Interval = d }
}

// WithSleep replaces time.Sleep during calibration.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithEventCapacity overrides EventLogCapacity.
func WithEventCapacity(n int) Option {
	return func(e *Engine) { e.ring = NewRing(n) }
}

// Engine owns the full signal chain: calibration profile, baseline, noise
// gate, peaks, debounce memory and the event ring. Mutations are serialised
// by a mutex; readers get published copies and never block.
type Engine struct {
	src      accel.Source
	clk      Clock
	log      *zap.Logger
	settings CalibrationSettings
	progress ProgressFunc
	onEvent  func(Event)
	sleep    func(time.Duration)

	mu       sync.Mutex
	profile  CalibrationProfile
	baseline Baseline
	peaks    Peaks
	debounce Debouncer
	ring     *Ring

	gatedNow accel.Sample
	magNow   float64
	levelNow int
	rawMag   float64

	ticks        uint64
	sensorErrors uint64
	eventsTotal  uint64

	calibrating atomic.Bool
	snap        atomic.Pointer[Snapshot]
	events      atomic.Pointer[[]Event]
}

// NewEngine builds an uncalibrated engine reading from src.
func NewEngine(src accel.Source, clk Clock, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		clk:      clk,
		log:      zap.NewNop(),
		settings: DefaultCalibrationSettings(),
		profile:  DefaultProfile(),
		debounce: Debouncer{Interval: DefaultLogInterval},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ring == nil {
		e.ring = NewRing(EventLogCapacity)
	}
	e.mu.Lock()
	e.publishLocked()
	e.publishEventsLocked()
	e.mu.Unlock()
	return e
}

// Step reads one sample and ticks. A failed read is counted and skips the
// tick entirely. The read happens under the engine lock so it never races a
// running calibration for the sensor.
func (e *Engine) Step() (Snapshot, error) {
	e.mu.Lock()
	raw, err := e.src.Read()
	if err != nil {
		e.sensorErrors++
		snap := e.publishLocked()
		e.mu.Unlock()
		return snap, fmt.Errorf("read sample: %w", err)
	}
	snap, logged := e.tickLocked(raw)
	e.mu.Unlock()
	e.emit(logged)
	return snap, nil
}

// Tick advances the engine by one raw sample.
func (e *Engine) Tick(raw accel.Sample) Snapshot {
	e.mu.Lock()
	snap, logged := e.tickLocked(raw)
	e.mu.Unlock()
	e.emit(logged)
	return snap
}

func (e *Engine) tickLocked(raw accel.Sample) (Snapshot, *Event) {
	var logged *Event

	e.ticks++
	sample := e.profile.Apply(raw)
	e.rawMag = sample.Norm()

	dev, ready := e.baseline.Update(sample)
	if ready {
		e.peaks.ObserveRaw(e.rawMag)
		gated := GateAxes(dev, e.profile.NoiseThreshold)
		mag := gated.Norm()
		e.peaks.Observe(gated, mag)
		e.gatedNow, e.magNow, e.levelNow = gated, mag, Classify(mag)

		mono := e.clk.Monotonic()
		if wall, ok := e.clk.WallTime(); ok && e.debounce.Decide(e.levelNow, mono) {
			ev := eventFrom(uuid.NewString(), wall, e.levelNow, gated, mag)
			e.ring.Append(ev)
			e.debounce.Record(e.levelNow, mono)
			e.eventsTotal++
			e.publishEventsLocked()
			logged = &ev
		}
	}
	return e.publishLocked(), logged
}

// emit logs an event and runs the hook outside the lock.
func (e *Engine) emit(ev *Event) {
	if ev == nil {
		return
	}
	e.log.Info("seismic event",
		zap.String("id", ev.ID),
		zap.Int("mercalli", ev.Mercalli),
		zap.String("roman", Roman(ev.Mercalli)),
		zap.Float64("magnitude", ev.Magnitude),
		zap.String("timestamp", ev.Timestamp()),
	)
	if e.onEvent != nil {
		e.onEvent(*ev)
	}
}

// Reset clears peaks, restarts the baseline warmup and forgets the debounce
// memory. The event log is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.publishLocked()
	e.mu.Unlock()
	e.log.Info("peaks reset")
}

func (e *Engine) resetLocked() {
	e.peaks.Reset()
	e.baseline.Reset()
	e.debounce.Reset()
	e.gatedNow, e.magNow, e.levelNow, e.rawMag = accel.Sample{}, 0, 0, 0
}

// ClearLog empties the event ring and the debounce memory.
func (e *Engine) ClearLog() {
	e.mu.Lock()
	e.ring.Clear()
	e.debounce.Reset()
	e.publishEventsLocked()
	e.publishLocked()
	e.mu.Unlock()
	e.log.Info("event log cleared")
}

// Recalibrate runs the blocking calibration procedure. Ticks wait for it;
// Snapshot and Events keep answering with the last published state. On
// success the new profile replaces the old one and peaks are reset.
func (e *Engine) Recalibrate() CalibrationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calibrating.Store(true)
	e.publishLocked()
	e.log.Info("calibration started",
		zap.Int("samples", e.settings.Samples),
		zap.Duration("sample_delay", e.settings.SampleDelay),
	)

	cal := Calibrator{
		Source:   e.src,
		Settings: e.settings,
		Sleep:    e.sleep,
		Progress: e.reportProgress,
	}
	res := cal.Run(e.profile)

	switch res.Status {
	case StatusFailed:
		e.log.Error("calibration failed", zap.Error(res.Err))
	case StatusWarning:
		e.log.Warn("calibration applied but not verified",
			zap.Float64("avg_x", res.VerifyAverage.X),
			zap.Float64("avg_y", res.VerifyAverage.Y),
			zap.Float64("avg_z", res.VerifyAverage.Z),
			zap.Int("verify_samples", res.VerifySamples),
		)
	default:
		e.log.Info("calibration complete",
			zap.Float64("noise_threshold", res.Profile.NoiseThreshold),
			zap.Float64("offset_x", res.Profile.Offset.X),
			zap.Float64("offset_y", res.Profile.Offset.Y),
			zap.Float64("offset_z", res.Profile.Offset.Z),
		)
	}
	if res.Success {
		e.profile = res.Profile
		e.resetLocked()
	}
	e.calibrating.Store(false)
	e.publishLocked()
	return res
}

func (e *Engine) reportProgress(p Progress) {
	if p.Phase == PhaseCollecting {
		e.log.Info("calibration progress",
			zap.Int("done", p.Done),
			zap.Int("total", p.Total),
			zap.Duration("remaining", p.Remaining),
		)
	}
	if e.progress != nil {
		e.progress(p)
	}
}

// Profile returns the active calibration profile.
func (e *Engine) Profile() CalibrationProfile {
	s := e.Snapshot()
	return CalibrationProfile{
		Offset:         s.Offset,
		NoiseThreshold: s.NoiseThreshold,
		Calibrated:     s.Calibrated,
	}
}

// ApplyProfile replaces the profile wholesale, as a calibration would, and
// resets peaks. The threshold is floored at MinNoiseThreshold.
func (e *Engine) ApplyProfile(p CalibrationProfile) {
	p.NoiseThreshold = math.Max(p.NoiseThreshold, MinNoiseThreshold)
	e.mu.Lock()
	e.profile = p
	e.resetLocked()
	e.publishLocked()
	e.mu.Unlock()
	e.log.Info("calibration profile applied",
		zap.Bool("calibrated", p.Calibrated),
		zap.Float64("noise_threshold", p.NoiseThreshold),
	)
}

// Snapshot returns the last published state.
func (e *Engine) Snapshot() Snapshot { return *e.snap.Load() }

// Events returns the logged events, newest first.
func (e *Engine) Events() []Event {
	return append([]Event(nil), *e.events.Load()...)
}

func (e *Engine) publishLocked() Snapshot {
	s := Snapshot{
		MercalliPeak:   e.peaks.Mercalli,
		MercalliNow:    e.levelNow,
		XPeak:          e.peaks.X,
		YPeak:          e.peaks.Y,
		ZPeak:          e.peaks.Z,
		DevMagPeak:     e.peaks.Magnitude,
		XNow:           e.gatedNow.X,
		YNow:           e.gatedNow.Y,
		ZNow:           e.gatedNow.Z,
		DevMagNow:      e.magNow,
		EventCount:     e.ring.Len(),
		BaselineReady:  e.baseline.Ready(),
		WarmupCount:    e.baseline.WarmupCount(),
		RawMag:         e.rawMag,
		RawMagPeak:     e.peaks.RawMagnitude,
		Calibrated:     e.profile.Calibrated,
		NoiseThreshold: e.profile.NoiseThreshold,
		Offset:         e.profile.Offset,
		SensorErrors:   e.sensorErrors,
		Ticks:          e.ticks,
		EventsTotal:    e.eventsTotal,
		Calibrating:    e.calibrating.Load(),
	}
	if wall, ok := e.clk.WallTime(); ok {
		s.TimeSync = true
		s.Time = wall
	}
	if last, ok := e.ring.Latest(); ok {
		s.LastEvent = &LastEvent{Timestamp: last.Timestamp(), Mercalli: last.Mercalli}
	}
	e.snap.Store(&s)
	return s
}

func (e *Engine) publishEventsLocked() {
	events := e.ring.Recent(0)
	e.events.Store(&events)
}
