// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

type consoleTopic struct {
	topic  string
	format func([]byte) (string, error)
}

// RunConsoleMQTT prints everything a seismometer publishes until ctx is
// cancelled. Snapshots are printed only when showSnapshots is set since they
// arrive on every tick.
func RunConsoleMQTT(ctx context.Context, cfg MQTTConfig, showSnapshots bool, out io.Writer, log *zap.Logger) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("seismo-console-" + uuid.NewString()[:8])

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info("console: connected to MQTT broker", zap.String("broker", cfg.Broker))
	defer client.Disconnect(250)

	var mu sync.Mutex
	printer := func(format func([]byte) (string, error)) mqtt.MessageHandler {
		return func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Warn("console: bad payload", zap.String("topic", msg.Topic()), zap.Error(err))
				return
			}
			mu.Lock()
			fmt.Fprintln(out, line)
			mu.Unlock()
		}
	}

	subs := []consoleTopic{
		{cfg.TopicStatus, formatStatusLine},
		{cfg.TopicEvents, formatEventLine},
		{cfg.ResultTopic(), formatResultLine},
	}
	if showSnapshots {
		subs = append(subs, consoleTopic{cfg.TopicSnapshot, formatSnapshotLine})
	}

	for _, s := range subs {
		token := client.Subscribe(s.topic, 1, printer(s.format))
		if token.Wait() && token.Error() != nil {
			return token.Error()
		}
		log.Info("console: subscribed", zap.String("topic", s.topic))
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func formatStatusLine(payload []byte) (string, error) {
	return fmt.Sprintf("[STATUS] %s", payload), nil
}

func formatSnapshotLine(payload []byte) (string, error) {
	var s seismic.Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[SNAP]  peak=%-4s now=%-4s |d|peak=%6.3f |d|now=%6.3f  events=%d sync=%t",
		seismic.Roman(s.MercalliPeak), seismic.Roman(s.MercalliNow), s.DevMagPeak, s.DevMagNow, s.EventCount, s.TimeSync,
	), nil
}

func formatEventLine(payload []byte) (string, error) {
	var ev struct {
		Timestamp string  `json:"timestamp"`
		Mercalli  int     `json:"mercalli"`
		Magnitude float64 `json:"magnitude"`
		X         float64 `json:"x_dev"`
		Y         float64 `json:"y_dev"`
		Z         float64 `json:"z_dev"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[EVENT] %s  MMI %-4s |d|=%6.3f  x=%6.3f y=%6.3f z=%6.3f",
		ev.Timestamp, seismic.Roman(ev.Mercalli), ev.Magnitude, ev.X, ev.Y, ev.Z,
	), nil
}

func formatResultLine(payload []byte) (string, error) {
	var res struct {
		Command     string `json:"command"`
		Error       string `json:"error"`
		Calibration *struct {
			Status string `json:"status"`
		} `json:"calibration"`
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return "", err
	}
	switch {
	case res.Error != "":
		return "[CMD]   error: " + res.Error, nil
	case res.Calibration != nil:
		return fmt.Sprintf("[CMD]   %s: %s", res.Command, res.Calibration.Status), nil
	default:
		return fmt.Sprintf("[CMD]   %s: ok", res.Command), nil
	}
}
