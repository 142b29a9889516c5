// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/command"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// MQTTConfig names the broker and the topics the bridge uses.
type MQTTConfig struct {
	Broker        string
	ClientID      string
	TopicSnapshot string
	TopicEvents   string
	TopicCommand  string
	TopicStatus   string
	// CommandTimeout bounds a command submitted from MQTT.
	CommandTimeout time.Duration
}

// ResultTopic is where command results are published.
func (c MQTTConfig) ResultTopic() string { return c.TopicCommand + "/result" }

// MQTTBridge publishes snapshots and events to a broker and turns messages
// on the command topic into engine commands.
type MQTTBridge struct {
	cfg       MQTTConfig
	bus       *command.Bus
	snapshots *Hub[seismic.Snapshot]
	events    *Hub[seismic.Event]
	log       *zap.Logger

	client    mqtt.Client
	connected atomic.Bool
}

// NewMQTTBridge builds a bridge; Run connects it.
func NewMQTTBridge(cfg MQTTConfig, bus *command.Bus, snapshots *Hub[seismic.Snapshot], events *Hub[seismic.Event], log *zap.Logger) *MQTTBridge {
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &MQTTBridge{cfg: cfg, bus: bus, snapshots: snapshots, events: events, log: log}
}

// Connected reports whether the broker connection is up.
func (b *MQTTBridge) Connected() bool { return b.connected.Load() }

// Run connects and forwards until ctx is cancelled.
func (b *MQTTBridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectTimeout(5*time.Second).
		SetWill(b.cfg.TopicStatus, statusOffline, 1, true).
		SetOnConnectHandler(func(c mqtt.Client) { b.onConnect(ctx, c) }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.connected.Store(false)
			b.log.Warn("mqtt: connection lost", zap.Error(err))
		})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	b.log.Info("mqtt: connected", zap.String("broker", b.cfg.Broker))

	snapID, snaps := b.snapshots.Subscribe()
	defer b.snapshots.Unsubscribe(snapID)
	eventID, events := b.events.Subscribe()
	defer b.events.Unsubscribe(eventID)

	defer func() {
		b.publishRaw(b.cfg.TopicStatus, 1, true, []byte(statusOffline))
		b.client.Disconnect(250)
		b.connected.Store(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			b.publish(b.cfg.TopicSnapshot, 0, s)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(b.cfg.TopicEvents, 1, ev)
		}
	}
}

func (b *MQTTBridge) onConnect(ctx context.Context, c mqtt.Client) {
	b.connected.Store(true)
	b.publishRaw(b.cfg.TopicStatus, 1, true, []byte(statusOnline))

	token := c.Subscribe(b.cfg.TopicCommand, 1, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleCommand(ctx, msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		b.log.Error("mqtt: subscribe failed", zap.String("topic", b.cfg.TopicCommand), zap.Error(token.Error()))
		return
	}
	b.log.Info("mqtt: subscribed", zap.String("topic", b.cfg.TopicCommand))
}

// ParseCommandPayload accepts either a bare command name or
// {"action":"<name>"}.
func ParseCommandPayload(payload []byte) (command.Kind, error) {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var msg WSMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return 0, err
		}
		text = msg.Action
	}
	return command.Parse(text)
}

// handleCommand runs on the paho callback goroutine, so the submit runs
// in its own goroutine.
func (b *MQTTBridge) handleCommand(ctx context.Context, payload []byte) {
	k, err := ParseCommandPayload(payload)
	if err != nil {
		b.log.Warn("mqtt: bad command", zap.ByteString("payload", payload), zap.Error(err))
		b.publish(b.cfg.ResultTopic(), 1, map[string]string{"error": err.Error()})
		return
	}
	go func() {
		cctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
		defer cancel()
		res, err := b.bus.Submit(cctx, k, "mqtt")
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				b.log.Warn("mqtt: command not executed", zap.Stringer("command", k), zap.Error(err))
			}
			return
		}
		b.publish(b.cfg.ResultTopic(), 1, res)
	}()
}

func (b *MQTTBridge) publish(topic string, qos byte, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Warn("mqtt: marshal error", zap.String("topic", topic), zap.Error(err))
		return
	}
	b.publishRaw(topic, qos, false, payload)
}

func (b *MQTTBridge) publishRaw(topic string, qos byte, retained bool, payload []byte) {
	if !b.client.IsConnected() {
		return
	}
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		b.log.Debug("mqtt: publish error", zap.String("topic", topic), zap.Error(token.Error()))
	}
}
