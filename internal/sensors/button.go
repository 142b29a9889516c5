// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultButtonDebounce rejects contact bounce.
const DefaultButtonDebounce = 50 * time.Millisecond

// Debouncer turns noisy level readings into clean press edges. A level
// must hold for longer than Delay before it is accepted.
type Debouncer struct {
	Delay time.Duration

	stable    bool // accepted level, true = pressed
	last      bool // previous raw reading
	changedAt time.Duration
}

// Update feeds one reading taken at now and reports a new press.
func (d *Debouncer) Update(pressed bool, now time.Duration) bool {
	if pressed != d.last {
		d.changedAt = now
	}
	d.last = pressed
	if now-d.changedAt > d.Delay && pressed != d.stable {
		d.stable = pressed
		return pressed
	}
	return false
}

// Pressed is the accepted level.
func (d *Debouncer) Pressed() bool { return d.stable }

// Button is an active low push button on a pulled up GPIO.
type Button struct {
	pin      gpio.PinIO
	debounce Debouncer
	poll     time.Duration
}

// NewButton opens the named pin as a pulled up input.
func NewButton(name string, debounce time.Duration) (*Button, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("button: periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("button: pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("button: configure %s: %w", name, err)
	}
	return &Button{
		pin:      pin,
		debounce: Debouncer{Delay: debounce},
		poll:     10 * time.Millisecond,
	}, nil
}

// Run polls the pin until ctx is done and calls onPress for each press.
func (b *Button) Run(ctx context.Context, onPress func()) error {
	start := time.Now()
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if b.debounce.Update(b.pin.Read() == gpio.Low, time.Since(start)) {
				onPress()
			}
		}
	}
}
