// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors holds the hardware facing pieces of the seismometer: the
// accelerometer sources and the reset button.
package sensors

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
)

// accelRangeG is the full scale for each MPU-9250 ACCEL_FS_SEL value.
var accelRangeG = [4]int{2, 4, 8, 16}

// LSBPerG is the accelerometer sensitivity for a range setting (0..3).
func LSBPerG(accelRange byte) float64 {
	if int(accelRange) >= len(accelRangeG) {
		accelRange = 0
	}
	return 32768.0 / float64(accelRangeG[accelRange])
}

// CountsToMS2 converts a raw accelerometer count to m/s².
func CountsToMS2(counts int16, accelRange byte) float64 {
	return float64(counts) / LSBPerG(accelRange) * accel.StandardGravity
}

// MPU9250Config selects the SPI bus and range of the accelerometer.
type MPU9250Config struct {
	SPIDevice  string
	CSPin      string
	AccelRange byte
}

// MPU9250Source reads the accelerometer of an MPU-9250 over SPI.
type MPU9250Source struct {
	dev        *mpu9250.MPU9250
	accelRange byte
}

// NewMPU9250Source initialises the periph host, the SPI transport and the
// device, then applies the accelerometer range.
func NewMPU9250Source(cfg MPU9250Config, log *zap.Logger) (*MPU9250Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}
	if int(cfg.AccelRange) >= len(accelRangeG) {
		return nil, fmt.Errorf("IMU: accel range %d out of 0..3", cfg.AccelRange)
	}
	if err := dev.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Info("accelerometer ready",
		zap.String("spi", cfg.SPIDevice),
		zap.String("cs", cfg.CSPin),
		zap.Int("range_g", accelRangeG[cfg.AccelRange]),
	)
	return &MPU9250Source{dev: dev, accelRange: cfg.AccelRange}, nil
}

// Read returns one acceleration sample in m/s².
func (s *MPU9250Source) Read() (accel.Sample, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}
	return accel.Sample{
		X: CountsToMS2(ax, s.accelRange),
		Y: CountsToMS2(ay, s.accelRange),
		Z: CountsToMS2(az, s.accelRange),
	}, nil
}
