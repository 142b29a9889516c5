// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"encoding/json"
	"iter"
	"time"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// EventLogCapacity bounds the in-memory history.
const EventLogCapacity = 50

// TimestampLayout renders event times as "YYYY-MM-DD HH:MM:SS UTC".
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp formats t in UTC with the event log layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout) + " UTC"
}

// Event is a notable instantaneous reading. Immutable once logged.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"-"`
	Mercalli  int       `json:"mercalli"`
	X         float64   `json:"x_dev"`
	Y         float64   `json:"y_dev"`
	Z         float64   `json:"z_dev"`
	Magnitude float64   `json:"magnitude"`
}

// Timestamp is the formatted event time.
func (e Event) Timestamp() string { return FormatTimestamp(e.Time) }

// MarshalJSON adds the formatted timestamp, the unix time and the roman
// numeral of the level.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		Timestamp string `json:"timestamp"`
		Unix      int64  `json:"unix"`
		Roman     string `json:"roman"`
	}{plain(e), e.Timestamp(), e.Time.Unix(), Roman(e.Mercalli)})
}

// Ring is a fixed capacity event log that overwrites its oldest entry once
// full. The zero value is not usable; use NewRing.
type Ring struct {
	events []Event
	next   int // slot the next append writes
	count  int
}

// NewRing allocates a ring of the given capacity (EventLogCapacity if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = EventLogCapacity
	}
	return &Ring{events: make([]Event, capacity)}
}

// Append stores e, evicting the oldest event when full.
func (r *Ring) Append(e Event) {
	r.events[r.next] = e
	r.next = (r.next + 1) % len(r.events)
	if r.count < len(r.events) {
		r.count++
	}
}

// Len is the number of stored events.
func (r *Ring) Len() int { return r.count }

// Cap is the ring capacity.
func (r *Ring) Cap() int { return len(r.events) }

// Clear drops every event.
func (r *Ring) Clear() {
	clear(r.events)
	r.next = 0
	r.count = 0
}

// at returns the i-th most recent event (0 = newest).
func (r *Ring) at(i int) Event {
	n := len(r.events)
	return r.events[((r.next-1-i)%n+n)%n]
}

// Newest yields events from most to least recent.
func (r *Ring) Newest() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := 0; i < r.count; i++ {
			if !yield(r.at(i)) {
				return
			}
		}
	}
}

// Oldest yields events from least to most recent.
func (r *Ring) Oldest() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := r.count - 1; i >= 0; i-- {
			if !yield(r.at(i)) {
				return
			}
		}
	}
}

// Latest returns the newest event, if any.
func (r *Ring) Latest() (Event, bool) {
	if r.count == 0 {
		return Event{}, false
	}
	return r.at(0), true
}

// Recent copies up to n events, newest first. n <= 0 copies all.
func (r *Ring) Recent(n int) []Event {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Event, 0, n)
	for e := range r.Newest() {
		if len(out) == n {
			break
		}
		out = append(out, e)
	}
	return out
}

// eventFrom builds an event from an instantaneous reading.
func eventFrom(id string, at time.Time, level int, gated accel.Sample, magnitude float64) Event {
	return Event{
		ID:        id,
		Time:      at,
		Mercalli:  level,
		X:         gated.X,
		Y:         gated.Y,
		Z:         gated.Z,
		Magnitude: magnitude,
	}
}
