// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Standalone calibration for the seismometer accelerometer.
// Collects a still batch, derives per-axis offsets and the noise gate,
// verifies them and writes the result as JSON. The seismometer loads the
// file through CALIBRATION_FILE instead of calibrating on every boot.
//
// Run:
//
//	go run ./cmd/calibration -config seismo_config.txt -out calibration.json
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/app"
	"github.com/relabs-tech/mercalli_seismo/internal/config"
	"github.com/relabs-tech/mercalli_seismo/internal/logging"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

func main() {
	configPath := flag.String("config", "./seismo_config.txt", "path to configuration file (empty for defaults)")
	out := flag.String("out", "", "output file (default CALIBRATION_FILE or ./seismo_calibration.json)")
	yes := flag.Bool("yes", false, "start without waiting for ENTER")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fatal(fmt.Errorf("failed to load config from %s: %w", *configPath, err))
	}
	cfg := config.Get()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "seismo-calibration")
	if err != nil {
		fatal(err)
	}
	defer func() { _ = log.Sync() }()

	path := *out
	if path == "" {
		path = cfg.CalibrationFile
	}
	if path == "" {
		path = "./seismo_calibration.json"
	}

	src, err := app.OpenSource(cfg, log)
	if err != nil {
		fatal(err)
	}

	settings := app.CalibrationSettings(cfg)
	fmt.Println("=== Seismometer calibration ===")
	fmt.Printf("%d samples every %s, then %d verification samples.\n",
		settings.Samples, settings.SampleDelay, settings.VerifySamples)
	fmt.Println("Place the device on its final mounting surface and do not touch it.")
	if !*yes {
		waitEnter(bufio.NewReader(os.Stdin), "Press ENTER to start...")
	}

	cal := seismic.Calibrator{
		Source:   src,
		Settings: settings,
		Progress: printProgress,
	}
	res := cal.Run(seismic.DefaultProfile())
	printResult(res)

	if !res.Success {
		log.Error("calibration failed", zap.Error(res.Err))
		os.Exit(1)
	}
	if err := app.SaveProfile(path, res, time.Now()); err != nil {
		fatal(err)
	}
	fmt.Printf("\nWrote: %s\n", path)
	if res.Status == seismic.StatusWarning {
		os.Exit(2)
	}
}

func printProgress(p seismic.Progress) {
	switch p.Phase {
	case seismic.PhaseCollecting:
		fmt.Printf("\r  collecting %3d%%  (%d/%d, %ds left)   ", p.Percent(), p.Done, p.Total, int(p.Remaining.Seconds()))
	case seismic.PhaseComputing:
		fmt.Println("\n  computing offsets...")
	case seismic.PhaseVerifying:
		fmt.Println("  verifying...")
	}
}

func printResult(res seismic.CalibrationResult) {
	e := res.Estimate
	fmt.Println()
	fmt.Printf("Samples: %d valid, %d failed reads\n", e.Samples, e.Failed)
	fmt.Printf("Mean   (m/s²): X=%.4f Y=%.4f Z=%.4f\n", e.Mean.X, e.Mean.Y, e.Mean.Z)
	fmt.Printf("StdDev (m/s²): X=%.4f Y=%.4f Z=%.4f\n", e.StdDev.X, e.StdDev.Y, e.StdDev.Z)
	switch res.Status {
	case seismic.StatusCalibrated:
		fmt.Println("Result: COMPLETE")
	case seismic.StatusWarning:
		fmt.Printf("Result: WARNING, verification average X=%.3f Y=%.3f Z=%.3f over %d samples\n",
			res.VerifyAverage.X, res.VerifyAverage.Y, res.VerifyAverage.Z, res.VerifySamples)
	default:
		fmt.Printf("Result: FAILED (%s)\n", res.Error)
		return
	}
	p := res.Profile
	fmt.Printf("Offset: X=%.4f Y=%.4f Z=%.4f  noise threshold=%.4f\n", p.Offset.X, p.Offset.Y, p.Offset.Z, p.NoiseThreshold)
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
