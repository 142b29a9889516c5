// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"time"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// LastEvent is the summary of the newest logged event.
type LastEvent struct {
	Timestamp string `json:"timestamp"`
	Mercalli  int    `json:"mercalli"`
}

// Snapshot is an immutable copy of the engine state handed to readers.
type Snapshot struct {
	MercalliPeak int        `json:"mercalli_peak"`
	MercalliNow  int        `json:"mercalli_now"`
	XPeak        float64    `json:"x_peak"`
	YPeak        float64    `json:"y_peak"`
	ZPeak        float64    `json:"z_peak"`
	DevMagPeak   float64    `json:"dev_mag_peak"`
	XNow         float64    `json:"x_now"`
	YNow         float64    `json:"y_now"`
	ZNow         float64    `json:"z_now"`
	DevMagNow    float64    `json:"dev_mag_now"`
	EventCount   int        `json:"event_count"`
	TimeSync     bool       `json:"time_sync_available"`
	LastEvent    *LastEvent `json:"last_event,omitempty"`

	BaselineReady  bool         `json:"baseline_ready"`
	WarmupCount    int          `json:"warmup_count"`
	RawMag         float64      `json:"raw_mag"`
	RawMagPeak     float64      `json:"raw_mag_peak"`
	Calibrated     bool         `json:"calibrated"`
	NoiseThreshold float64      `json:"noise_threshold"`
	Offset         accel.Sample `json:"offset"`
	SensorErrors   uint64       `json:"sensor_errors"`
	Ticks          uint64       `json:"ticks"`
	EventsTotal    uint64       `json:"events_total"`
	Calibrating    bool         `json:"calibrating"`
	Time           time.Time    `json:"time,omitzero"`
}

// PeakRoman is the roman numeral of the peak intensity.
func (s Snapshot) PeakRoman() string { return Roman(s.MercalliPeak) }

// PeakLabel describes the peak intensity.
func (s Snapshot) PeakLabel() string { return Label(s.MercalliPeak) }
