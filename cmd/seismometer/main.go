// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/app"
	"github.com/relabs-tech/mercalli_seismo/internal/clock"
	"github.com/relabs-tech/mercalli_seismo/internal/command"
	"github.com/relabs-tech/mercalli_seismo/internal/config"
	"github.com/relabs-tech/mercalli_seismo/internal/logging"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
	"github.com/relabs-tech/mercalli_seismo/internal/sensors"
)

func main() {
	configPath := flag.String("config", "./seismo_config.txt", "path to configuration file (empty for defaults)")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "seismometer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

type worker struct {
	wg  sync.WaitGroup
	log *zap.Logger
}

func (w *worker) spawn(name string, fn func() error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("routine failed", zap.String("routine", name), zap.Error(err))
			return
		}
		w.log.Debug("routine terminated", zap.String("routine", name))
	}()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := app.OpenSource(cfg, log)
	if err != nil {
		return err
	}

	w := &worker{log: log}
	var clk seismic.Clock = clock.NewSystemClock()
	if cfg.TimeSource == "gps" {
		gpsClock := clock.NewGPSClock()
		clk = gpsClock
		gps := app.NewGPSTimeSync(gpsClock, cfg.GPSSerialPort, uint(cfg.GPSBaudRate), log.Named("gps"))
		w.spawn("gps", func() error { return gps.Run(ctx) })
	}

	snapshots := app.NewHub[seismic.Snapshot](4)
	events := app.NewHub[seismic.Event](64)
	notices := app.NewHub[app.Notice](32)
	bus := command.NewBus(16)

	engine := seismic.NewEngine(src, clk,
		seismic.WithLogger(log.Named("engine")),
		seismic.WithCalibrationSettings(app.CalibrationSettings(cfg)),
		seismic.WithDebounceInterval(cfg.LogDebounceInterval),
		seismic.WithProgress(app.ProgressNotices(notices)),
		seismic.WithEventHook(events.Publish),
	)

	calibrateOnStart := cfg.CalibrateOnStart
	if cfg.CalibrationFile != "" && !calibrateOnStart {
		p, err := app.LoadProfile(cfg.CalibrationFile)
		switch {
		case err == nil:
			engine.ApplyProfile(p)
		case errors.Is(err, os.ErrNotExist):
			log.Warn("no stored calibration, calibrating now", zap.String("file", cfg.CalibrationFile))
			calibrateOnStart = true
		default:
			return err
		}
	}

	runner := &app.Runner{
		Engine:           engine,
		Bus:              bus,
		Interval:         cfg.SampleInterval,
		Snapshots:        snapshots,
		Notices:          notices,
		CalibrateOnStart: calibrateOnStart,
		Log:              log.Named("runner"),
	}
	if cfg.CalibrationFile != "" {
		runner.OnCalibrated = func(res seismic.CalibrationResult) {
			if err := app.SaveProfile(cfg.CalibrationFile, res, time.Now()); err != nil {
				log.Warn("calibration not saved", zap.String("file", cfg.CalibrationFile), zap.Error(err))
				return
			}
			log.Info("calibration saved", zap.String("file", cfg.CalibrationFile))
		}
	}

	if cfg.DisplayEnabled {
		dev, closeBus, err := app.OpenSSD1306(cfg.DisplayI2CBus)
		if err != nil {
			log.Warn("display unavailable", zap.Error(err))
		} else {
			defer closeBus()
			display := app.NewDisplay(dev, engine, notices, cfg.DisplayUpdateInterval, log.Named("display"))
			w.spawn("display", func() error { return display.Run(ctx) })
		}
	}

	// the display shows calibration progress, so sampling starts after it
	w.spawn("runner", func() error { return runner.Run(ctx) })

	if cfg.WebServerPort > 0 {
		web := app.NewWebServer(engine, bus, snapshots, events, log.Named("web"))
		addr := fmt.Sprintf(":%d", cfg.WebServerPort)
		w.spawn("web", func() error { return web.Run(ctx, addr) })
	}

	var bridge *app.MQTTBridge
	if cfg.MQTTEnabled() {
		bridge = app.NewMQTTBridge(app.MQTTConfig{
			Broker:        cfg.MQTTBroker,
			ClientID:      cfg.MQTTClientID,
			TopicSnapshot: cfg.TopicSnapshot,
			TopicEvents:   cfg.TopicEvents,
			TopicCommand:  cfg.TopicCommand,
			TopicStatus:   cfg.TopicStatus,
		}, bus, snapshots, events, log.Named("mqtt"))
		w.spawn("mqtt", func() error { return bridge.Run(ctx) })
	}

	if cfg.TelegramEnabled() {
		notifier, err := app.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramMinMercalli, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			w.spawn("telegram", func() error { return notifier.Run(ctx, events) })
		}
	}

	if cfg.ButtonPin != "" {
		button, err := sensors.NewButton(cfg.ButtonPin, cfg.ButtonDebounce)
		if err != nil {
			log.Warn("reset button unavailable", zap.Error(err))
		} else {
			w.spawn("button", func() error {
				return button.Run(ctx, func() {
					if !bus.Post(command.Reset, "button") {
						log.Warn("button press dropped, command queue full")
					}
				})
			})
		}
	}

	switch cfg.Console {
	case "off", "":
	case "stdin":
		console := app.NewConsole(engine, bus, os.Stdin, os.Stdout, log.Named("console"))
		if bridge != nil {
			console.MQTT = bridge
		}
		w.spawn("console", func() error { return console.Run(ctx) })
	default:
		port, err := app.OpenSerialConsole(cfg.Console, cfg.ConsoleBaud)
		if err != nil {
			log.Warn("serial console unavailable", zap.String("port", cfg.Console), zap.Error(err))
			break
		}
		defer port.Close()
		console := app.NewConsole(engine, bus, port, port, log.Named("console"))
		if bridge != nil {
			console.MQTT = bridge
		}
		w.spawn("console", func() error { return console.Run(ctx) })
	}

	log.Info("seismometer started",
		zap.String("sensor", cfg.Sensor),
		zap.String("time_source", cfg.TimeSource),
		zap.Duration("sample_interval", cfg.SampleInterval),
	)
	<-ctx.Done()
	log.Info("shutting down")
	snapshots.Close()
	events.Close()
	notices.Close()
	w.wg.Wait()
	return nil
}
