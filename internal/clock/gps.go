// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package clock

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ParseRMC extracts the UTC time of a valid RMC sentence.
func ParseRMC(line string) (time.Time, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return time.Time{}, fmt.Errorf("not an NMEA sentence: %q", line)
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse NMEA: %w", err)
	}
	m, ok := sentence.(nmea.RMC)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s sentence carries no date", ErrNoFix, sentence.DataType())
	}
	if m.Validity != nmea.ValidRMC || !m.Time.Valid || !m.Date.Valid {
		return time.Time{}, fmt.Errorf("%w: RMC validity %q", ErrNoFix, m.Validity)
	}
	return time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond),
		time.UTC), nil
}

// GPSClock derives wall time from GPS fixes. The first sane fix latches
// sync; later fixes refine the offset between the monotonic clock and UTC.
type GPSClock struct {
	start time.Time

	mu       sync.RWMutex
	synced   bool
	offset   time.Duration // UTC - monotonic
	fixes    uint64
	rejected uint64
}

// NewGPSClock returns an unsynchronised clock.
func NewGPSClock() *GPSClock {
	return &GPSClock{start: time.Now()}
}

// Monotonic is the time elapsed since construction.
func (c *GPSClock) Monotonic() time.Duration { return time.Since(c.start) }

// Sync records that UTC is t right now.
func (c *GPSClock) Sync(t time.Time) error {
	if !Valid(t) {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is before %s", ErrNoFix, t.UTC().Format(time.RFC3339), MinValidTime.Format(time.RFC3339))
	}
	mono := c.Monotonic()
	c.mu.Lock()
	c.offset = t.Sub(c.start.Add(mono))
	c.synced = true
	c.fixes++
	c.mu.Unlock()
	return nil
}

// WallTime returns the GPS derived time once a fix has been seen.
func (c *GPSClock) WallTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.synced {
		return time.Time{}, false
	}
	return c.start.Add(c.Monotonic()).Add(c.offset).UTC(), true
}

// Fixes counts accepted fixes.
func (c *GPSClock) Fixes() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fixes
}

// Rejected counts valid RMC fixes whose date is too early to trust.
func (c *GPSClock) Rejected() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejected
}

// Feed reads NMEA lines from r until EOF, syncing on every valid RMC.
// Unparseable or void sentences are skipped; fixes Sync refuses are
// counted by Rejected.
func (c *GPSClock) Feed(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if t, perr := ParseRMC(line); perr == nil {
				_ = c.Sync(t)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read GPS: %w", err)
		}
	}
}
