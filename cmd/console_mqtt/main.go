// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/app"
	"github.com/relabs-tech/mercalli_seismo/internal/config"
	"github.com/relabs-tech/mercalli_seismo/internal/logging"
)

func main() {
	configPath := flag.String("config", "./seismo_config.txt", "path to configuration file (empty for defaults)")
	snapshots := flag.Bool("snapshots", false, "also print every snapshot")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "seismo-console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.MQTTEnabled() {
		log.Fatal("MQTT_BROKER is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqttCfg := app.MQTTConfig{
		Broker:        cfg.MQTTBroker,
		TopicSnapshot: cfg.TopicSnapshot,
		TopicEvents:   cfg.TopicEvents,
		TopicCommand:  cfg.TopicCommand,
		TopicStatus:   cfg.TopicStatus,
	}
	if err := app.RunConsoleMQTT(ctx, mqttCfg, *snapshots, os.Stdout, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}
