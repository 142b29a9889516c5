// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/clock"
)

// GPSTimeSync keeps a GPSClock fed from an NMEA serial receiver. The port is
// reopened after errors.
type GPSTimeSync struct {
	Clock      *clock.GPSClock
	PortName   string
	BaudRate   uint
	RetryDelay time.Duration
	Log        *zap.Logger

	open func() (io.ReadWriteCloser, error)
}

// NewGPSTimeSync builds a feeder for the receiver on portName.
func NewGPSTimeSync(clk *clock.GPSClock, portName string, baud uint, log *zap.Logger) *GPSTimeSync {
	g := &GPSTimeSync{
		Clock:      clk,
		PortName:   portName,
		BaudRate:   baud,
		RetryDelay: 5 * time.Second,
		Log:        log,
	}
	g.open = g.openSerial
	return g
}

func (g *GPSTimeSync) openSerial() (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        g.PortName,
		BaudRate:        g.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
}

// Run feeds the clock until ctx is cancelled.
func (g *GPSTimeSync) Run(ctx context.Context) error {
	for {
		if err := g.feedOnce(ctx); err != nil {
			g.Log.Warn("gps: receiver error", zap.String("port", g.PortName), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.RetryDelay):
		}
	}
}

func (g *GPSTimeSync) feedOnce(ctx context.Context) error {
	port, err := g.open()
	if err != nil {
		return err
	}
	g.Log.Info("gps: serial port opened", zap.String("port", g.PortName), zap.Uint("baud", g.BaudRate))

	done := make(chan error, 1)
	go func() { done <- g.Clock.Feed(port) }()

	select {
	case <-ctx.Done():
		port.Close()
		<-done
		return nil
	case err := <-done:
		port.Close()
		g.Log.Info("gps: receiver stream ended", zap.Uint64("fixes", g.Clock.Fixes()), zap.Uint64("rejected", g.Clock.Rejected()))
		return err
	}
}
