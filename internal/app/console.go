// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/command"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

const defaultEventListing = 10

const consoleHelp = `Commands:
  RESET      clear peaks and restart the baseline
  CALIBRATE  recalibrate (keep the device still)
  CLEAR      empty the event log
  STATUS     print current readings
  EVENTS [n] list the n most recent events
  HELP       this text
`

// OpenSerialConsole opens a serial line for the console, 8N1.
func OpenSerialConsole(path string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}

// Console is a line-oriented operator interface over any reader/writer
// pair, typically stdin/stdout or a serial port.
type Console struct {
	engine EngineView
	bus    *command.Bus
	in     io.Reader
	out    io.Writer
	log    *zap.Logger

	// MQTT, when set, is reported by STATUS.
	MQTT interface{ Connected() bool }
}

// NewConsole builds a console.
func NewConsole(engine EngineView, bus *command.Bus, in io.Reader, out io.Writer, log *zap.Logger) *Console {
	return &Console{engine: engine, bus: bus, in: in, out: out, log: log}
}

// Run reads commands until EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	fmt.Fprintln(c.out, "Seismometer console ready. Type HELP for commands.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			c.handle(ctx, line)
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name := strings.ToUpper(fields[0])
	c.log.Debug("console command", zap.String("command", name))

	switch name {
	case "STATUS":
		c.printStatus(c.engine.Snapshot())
		return
	case "EVENTS":
		n := defaultEventListing
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				fmt.Fprintf(c.out, "invalid count %q\n", fields[1])
				return
			}
			n = v
		}
		c.printEvents(n)
		return
	case "HELP", "?":
		fmt.Fprint(c.out, consoleHelp)
		return
	}

	k, err := command.Parse(name)
	if err != nil {
		fmt.Fprintf(c.out, "Unknown command: %s (type HELP)\n", fields[0])
		return
	}
	if k == command.Recalibrate {
		fmt.Fprintln(c.out, "Calibrating, keep the device STILL...")
	}
	res, err := c.bus.Submit(ctx, k, "console")
	if err != nil {
		fmt.Fprintf(c.out, "%s failed: %v\n", k, err)
		return
	}
	switch k {
	case command.Reset:
		fmt.Fprintln(c.out, "Peaks reset")
	case command.ClearLog:
		fmt.Fprintln(c.out, "Event log cleared")
	case command.Recalibrate:
		c.printCalibration(res.Calibration)
	}
}

func (c *Console) printStatus(s seismic.Snapshot) {
	fmt.Fprintf(c.out, "Mercalli peak: %s %s  now: %s\n", s.PeakRoman(), s.PeakLabel(), seismic.Roman(s.MercalliNow))
	fmt.Fprintf(c.out, "Peak dev  X=%.3f Y=%.3f Z=%.3f |d|=%.3f m/s2\n", s.XPeak, s.YPeak, s.ZPeak, s.DevMagPeak)
	fmt.Fprintf(c.out, "Now dev   X=%.3f Y=%.3f Z=%.3f |d|=%.3f m/s2\n", s.XNow, s.YNow, s.ZNow, s.DevMagNow)
	if s.BaselineReady {
		fmt.Fprintln(c.out, "Baseline: ready")
	} else {
		fmt.Fprintf(c.out, "Baseline: warming up %d/%d\n", s.WarmupCount, seismic.WarmupSamples)
	}
	state := "default"
	if s.Calibrated {
		state = "calibrated"
	}
	fmt.Fprintf(c.out, "Calibration: %s, threshold %.3f, offset (%.3f, %.3f, %.3f)\n",
		state, s.NoiseThreshold, s.Offset.X, s.Offset.Y, s.Offset.Z)
	if s.TimeSync {
		fmt.Fprintf(c.out, "Time: %s\n", seismic.FormatTimestamp(s.Time))
	} else {
		fmt.Fprintln(c.out, "Time: not synchronised, events are not logged")
	}
	if c.MQTT != nil {
		state := "disconnected"
		if c.MQTT.Connected() {
			state = "connected"
		}
		fmt.Fprintf(c.out, "MQTT: %s\n", state)
	}
	fmt.Fprintf(c.out, "Events: %d in log, %d total, sensor errors %d\n", s.EventCount, s.EventsTotal, s.SensorErrors)
}

func (c *Console) printEvents(n int) {
	events := c.engine.Events()
	if len(events) == 0 {
		fmt.Fprintln(c.out, "No events logged")
		return
	}
	if n < len(events) {
		events = events[:n]
	}
	for i, ev := range events {
		fmt.Fprintf(c.out, "%2d. %s  %-4s |d|=%.3f  (%.3f, %.3f, %.3f)\n",
			i+1, ev.Timestamp(), seismic.Roman(ev.Mercalli), ev.Magnitude, ev.X, ev.Y, ev.Z)
	}
}

func (c *Console) printCalibration(r *seismic.CalibrationResult) {
	if r == nil {
		return
	}
	switch r.Status {
	case seismic.StatusCalibrated:
		fmt.Fprintln(c.out, "Calibration COMPLETE")
	case seismic.StatusWarning:
		fmt.Fprintln(c.out, "Calibration WARNING: verification outside tolerance")
	default:
		fmt.Fprintf(c.out, "Calibration FAILED: %s\n", r.Error)
		return
	}
	p := r.Profile
	fmt.Fprintf(c.out, "Offset (%.3f, %.3f, %.3f), threshold %.3f, verify avg (%.3f, %.3f, %.3f)\n",
		p.Offset.X, p.Offset.Y, p.Offset.Z, p.NoiseThreshold,
		r.VerifyAverage.X, r.VerifyAverage.Y, r.VerifyAverage.Z)
}
