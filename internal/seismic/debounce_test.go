// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package seismic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	want := map[int]Tier{0: TierC, 1: TierC, 2: TierC, 3: TierB, 4: TierB, 5: TierA, 8: TierA, 12: TierA}
	for level, tier := range want {
		assert.Equal(t, tier, TierFor(level), "level %d", level)
	}
}

func TestShouldLogTruthTable(t *testing.T) {
	for _, interval := range []bool{false, true} {
		for _, higher := range []bool{false, true} {
			for _, jump := range []bool{false, true} {
				assert.False(t, ShouldLog(TierC, interval, higher, jump))
				assert.Equal(t, interval || higher, ShouldLog(TierA, interval, higher, jump),
					"A interval=%v higher=%v jump=%v", interval, higher, jump)
				assert.Equal(t, (interval && higher) || jump, ShouldLog(TierB, interval, higher, jump),
					"B interval=%v higher=%v jump=%v", interval, higher, jump)
			}
		}
	}
}

func TestDebouncerScenario(t *testing.T) {
	d := Debouncer{Interval: 10 * time.Second}

	assert.True(t, d.Decide(6, 0), "first strong reading logs")
	d.Record(6, 0)

	assert.False(t, d.Decide(6, 5*time.Second), "same level inside the interval")
	assert.True(t, d.Decide(8, 5*time.Second), "higher level logs at once")
	d.Record(8, 5*time.Second)

	assert.True(t, d.Decide(5, 15*time.Second), "tier A logs again once the interval passed")
}

func TestDebouncerBigJumpFromQuiet(t *testing.T) {
	d := Debouncer{Interval: 10 * time.Second}
	now := 1 * time.Second

	assert.False(t, d.Decide(2, now), "tier C never logs")
	assert.True(t, d.Decide(4, now), "jump of two levels logs inside the interval")
}

func TestDebouncerTierB(t *testing.T) {
	d := Debouncer{Interval: 10 * time.Second}
	d.Record(3, 0)

	assert.False(t, d.Decide(4, 5*time.Second), "one level up inside the interval")
	assert.True(t, d.Decide(4, 10*time.Second), "one level up after the interval")
	d.Record(4, 10*time.Second)
	assert.False(t, d.Decide(3, time.Minute), "lower tier B reading never logs")
	assert.False(t, d.Decide(4, time.Minute), "same tier B reading never logs")
}

func TestDebouncerReset(t *testing.T) {
	d := Debouncer{Interval: time.Second}
	d.Record(9, time.Hour)
	d.Reset()
	assert.Zero(t, d.LastLogged)
	assert.Zero(t, d.LastEventAt)
	assert.Equal(t, time.Second, d.Interval)
}
