// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import "time"

// DefaultLogInterval is the minimum spacing between routine log entries.
const DefaultLogInterval = 10 * time.Second

// Tier groups intensity levels by how eagerly they are logged.
type Tier int

const (
	// TierC (< III) is never logged.
	TierC Tier = iota
	// TierB (III..IV) needs a higher reading after the interval or a jump of 2+.
	TierB
	// TierA (V+) logs after the interval or on any increase.
	TierA
)

func (t Tier) String() string {
	switch t {
	case TierA:
		return "A"
	case TierB:
		return "B"
	default:
		return "C"
	}
}

// TierFor maps an intensity level to its logging tier.
func TierFor(level int) Tier {
	switch {
	case level >= 5:
		return TierA
	case level >= 3:
		return TierB
	default:
		return TierC
	}
}

// ShouldLog is the debounce decision. The tiers are asymmetric on purpose:
// tier A is an OR of interval and increase, tier B requires both unless the
// reading jumped by two or more levels.
func ShouldLog(tier Tier, intervalPassed, isHigher, isBigJump bool) bool {
	switch tier {
	case TierA:
		return intervalPassed || isHigher
	case TierB:
		return (intervalPassed && isHigher) || isBigJump
	default:
		return false
	}
}

// Debouncer carries the memory the decision needs. Times are monotonic
// offsets, so wall clock adjustments cannot flood or starve the log.
type Debouncer struct {
	Interval    time.Duration
	LastLogged  int
	LastEventAt time.Duration
}

// Decide reports whether a reading of level at now should be logged.
func (d *Debouncer) Decide(level int, now time.Duration) bool {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	return ShouldLog(
		TierFor(level),
		now-d.LastEventAt >= interval,
		level > d.LastLogged,
		level-d.LastLogged >= 2,
	)
}

// Record remembers a logged reading.
func (d *Debouncer) Record(level int, now time.Duration) {
	d.LastLogged = level
	d.LastEventAt = now
}

// Reset returns to {0, 0}; the interval is kept.
func (d *Debouncer) Reset() {
	d.LastLogged = 0
	d.LastEventAt = 0
}
