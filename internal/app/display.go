// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

const (
	screenWidth  = 128
	screenHeight = 64

	resetNoticeFor  = 400 * time.Millisecond
	resultNoticeFor = 2 * time.Second
)

// Screen is the drawable surface; *ssd1306.Dev satisfies it.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// SnapshotSource is polled for the state to render.
type SnapshotSource interface {
	Snapshot() seismic.Snapshot
}

type textLine struct {
	x, y int
	text string
}

func splashLines() []textLine {
	return []textLine{
		{8, 26, "MERCALLI SEISMO"},
		{22, 46, "starting..."},
	}
}

func warmupLines(s seismic.Snapshot) []textLine {
	cal := "uncalibrated"
	if s.Calibrated {
		cal = fmt.Sprintf("noise %.3f", s.NoiseThreshold)
	}
	return []textLine{
		{0, 12, "BASELINE"},
		{0, 28, "Keep still"},
		{0, 44, fmt.Sprintf("Setup %d/%d", s.WarmupCount, seismic.WarmupSamples)},
		{0, 60, cal},
	}
}

func peakLines(s seismic.Snapshot) []textLine {
	sync := " "
	if s.TimeSync {
		sync = "*"
	}
	return []textLine{
		{0, 12, "PEAK m/s2"},
		{92, 12, "MMI"},
		{0, 28, fmt.Sprintf("X %5.2f", s.XPeak)},
		{92, 28, seismic.Roman(s.MercalliPeak)},
		{0, 44, fmt.Sprintf("Y %5.2f", s.YPeak)},
		{92, 44, "Now" + sync},
		{0, 60, fmt.Sprintf("Z %5.2f", s.ZPeak)},
		{92, 60, seismic.Roman(s.MercalliNow)},
	}
}

func progressLines(p seismic.Progress) []textLine {
	lines := []textLine{{0, 12, "CALIBRATING..."}}
	switch p.Phase {
	case seismic.PhaseCollecting:
		secs := int(p.Remaining / time.Second)
		lines = append(lines,
			textLine{0, 30, fmt.Sprintf("Progress: %d%%", p.Percent())},
			textLine{0, 46, fmt.Sprintf("Time left: %ds", secs)},
		)
	case seismic.PhaseComputing:
		lines = append(lines, textLine{0, 30, "Computing..."})
	case seismic.PhaseVerifying:
		lines = append(lines, textLine{0, 30, "Verifying..."})
	}
	return append(lines, textLine{0, 62, "Keep device STILL"})
}

func resultLines(res seismic.CalibrationResult) []textLine {
	switch res.Status {
	case seismic.StatusCalibrated:
		return []textLine{
			{0, 14, "CALIBRATION"},
			{0, 32, "COMPLETE"},
			{0, 50, fmt.Sprintf("Noise: %.3f", res.Profile.NoiseThreshold)},
		}
	case seismic.StatusWarning:
		return []textLine{
			{0, 14, "WARNING!"},
			{0, 32, "Calibration issue"},
			{0, 50, fmt.Sprintf("Noise: %.3f", res.Profile.NoiseThreshold)},
		}
	default:
		return []textLine{
			{0, 14, "CALIBRATION"},
			{0, 32, "FAILED!"},
		}
	}
}

func resetLines() []textLine {
	return []textLine{{46, 38, "RESET"}}
}

// render draws text lines onto a blank 1 bit frame.
func render(lines []textLine) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, screenWidth, screenHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(l.x, l.y)
		drawer.DrawString(l.text)
	}
	return img
}

// Display renders the engine state, with short overlays for resets and
// calibration.
type Display struct {
	screen   Screen
	source   SnapshotSource
	notices  *Hub[Notice]
	interval time.Duration
	log      *zap.Logger

	progress    *seismic.Progress
	result      *seismic.CalibrationResult
	resultUntil time.Time
	resetUntil  time.Time
}

// NewDisplay wires a screen to an engine snapshot source.
func NewDisplay(screen Screen, source SnapshotSource, notices *Hub[Notice], interval time.Duration, log *zap.Logger) *Display {
	return &Display{
		screen:   screen,
		source:   source,
		notices:  notices,
		interval: interval,
		log:      log,
	}
}

// OpenSSD1306 opens the OLED on the named I2C bus ("" = first bus).
func OpenSSD1306(busName string) (*ssd1306.Dev, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("display: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("display: open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("display: init SSD1306: %w", err)
	}
	return dev, bus.Close, nil
}

// note records a notice received at now.
func (d *Display) note(n Notice, now time.Time) {
	switch n.Kind {
	case NoticeReset:
		d.resetUntil = now.Add(resetNoticeFor)
	case NoticeCalibration:
		p := n.Progress
		d.progress = &p
		if p.Result != nil {
			res := *p.Result
			d.result = &res
			d.resultUntil = now.Add(resultNoticeFor)
			d.progress = nil
		}
	}
}

// frame picks the lines to show for a snapshot at now.
func (d *Display) frame(s seismic.Snapshot, now time.Time) []textLine {
	switch {
	case d.result != nil && now.Before(d.resultUntil):
		return resultLines(*d.result)
	case s.Calibrating && d.progress != nil:
		return progressLines(*d.progress)
	case s.Calibrating:
		return progressLines(seismic.Progress{Phase: seismic.PhaseIdle})
	case now.Before(d.resetUntil):
		return resetLines()
	case !s.BaselineReady:
		return warmupLines(s)
	default:
		return peakLines(s)
	}
}

func (d *Display) show(lines []textLine) error {
	return d.screen.Draw(d.screen.Bounds(), render(lines), image.Point{})
}

// Run shows the splash, then refreshes until ctx is cancelled.
func (d *Display) Run(ctx context.Context) error {
	if err := d.show(splashLines()); err != nil {
		d.log.Warn("display: splash failed", zap.Error(err))
	}

	var notices <-chan Notice
	if d.notices != nil {
		id, ch := d.notices.Subscribe()
		defer d.notices.Unsubscribe(id)
		notices = ch
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			d.note(n, time.Now())
			if err := d.show(d.frame(d.source.Snapshot(), time.Now())); err != nil {
				d.log.Warn("display: update failed", zap.Error(err))
			}
		case <-ticker.C:
			if err := d.show(d.frame(d.source.Snapshot(), time.Now())); err != nil {
				d.log.Warn("display: update failed", zap.Error(err))
			}
		}
	}
}
