// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package clock provides the time sources the seismic engine consumes: a
// monotonic offset that is always available and a wall time that only
// becomes available once it is known to be sane.
package clock

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MinValidTime is the sanity floor; anything earlier is an unset RTC.
var MinValidTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNoFix is returned when a time source has nothing trustworthy to offer.
var ErrNoFix = errors.New("clock: no valid time fix")

// Valid reports whether t is past the sanity floor.
func Valid(t time.Time) bool { return t.After(MinValidTime) }

// SystemClock uses the host clock. Wall time is reported once the host clock
// passes MinValidTime (e.g. after NTP) and stays available from then on.
type SystemClock struct {
	start  time.Time
	now    func() time.Time
	synced atomic.Bool
}

// NewSystemClock starts the monotonic offset at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now(), now: time.Now}
}

// Monotonic is the time elapsed since construction.
func (c *SystemClock) Monotonic() time.Duration { return time.Since(c.start) }

// WallTime returns the host time once it has been seen valid.
func (c *SystemClock) WallTime() (time.Time, bool) {
	t := c.now()
	if c.synced.Load() {
		return t, true
	}
	if Valid(t) {
		c.synced.Store(true)
		return t, true
	}
	return time.Time{}, false
}

// ManualClock is driven by hand. Tests and replay tools use it.
type ManualClock struct {
	mu     sync.Mutex
	mono   time.Duration
	wall   time.Time
	synced bool
}

// Advance moves both the monotonic offset and, if set, the wall time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.mono += d
	if !c.wall.IsZero() {
		c.wall = c.wall.Add(d)
	}
	c.mu.Unlock()
}

// SetWallTime sets the wall time. A valid time latches sync.
func (c *ManualClock) SetWallTime(t time.Time) {
	c.mu.Lock()
	c.wall = t
	if Valid(t) {
		c.synced = true
	}
	c.mu.Unlock()
}

// Monotonic returns the accumulated offset.
func (c *ManualClock) Monotonic() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mono
}

// WallTime returns the wall time once synced.
func (c *ManualClock) WallTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return time.Time{}, false
	}
	return c.wall, true
}
