// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/accel"
	"github.com/relabs-tech/mercalli_seismo/internal/config"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
	"github.com/relabs-tech/mercalli_seismo/internal/sensors"
)

// OpenSource builds the accelerometer named by SENSOR.
func OpenSource(cfg *config.Config, log *zap.Logger) (accel.Source, error) {
	switch cfg.Sensor {
	case "mpu9250":
		src, err := sensors.NewMPU9250Source(sensors.MPU9250Config{
			SPIDevice:  cfg.IMUSPIDevice,
			CSPin:      cfg.IMUCSPin,
			AccelRange: cfg.IMUAccelRange,
		}, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "sim":
		log.Info("using simulated accelerometer",
			zap.Uint64("seed", cfg.SimSeed),
			zap.Float64("noise", cfg.SimNoise),
			zap.Int("quake_every", cfg.SimQuakeEvery),
		)
		return sensors.NewSimSource(sensors.SimConfig{
			Seed:       cfg.SimSeed,
			Noise:      cfg.SimNoise,
			QuakeEvery: cfg.SimQuakeEvery,
			FailEvery:  cfg.SimFailEvery,
		}), nil
	default:
		return nil, fmt.Errorf("unknown sensor %q", cfg.Sensor)
	}
}

// CalibrationSettings maps the config onto engine calibration settings.
func CalibrationSettings(cfg *config.Config) seismic.CalibrationSettings {
	return seismic.CalibrationSettings{
		Samples:       cfg.CalibrationSamples,
		VerifySamples: cfg.VerifySamples,
		SampleDelay:   cfg.CalibrationDelay,
	}
}
