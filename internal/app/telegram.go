// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

// messageSender is the part of tgbotapi.BotAPI the notifier uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends an alert for every logged event at or above
// MinMercalli.
type TelegramNotifier struct {
	bot         messageSender
	chatID      int64
	MinMercalli int
	MaxRetries  int
	RetryDelay  time.Duration
	log         *zap.Logger

	lastSent string
}

// NewTelegramNotifier connects to the Bot API.
func NewTelegramNotifier(token string, chatID int64, minMercalli int, log *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Info("telegram: authorized", zap.String("bot", bot.Self.UserName))
	return newTelegramNotifier(bot, chatID, minMercalli, log), nil
}

func newTelegramNotifier(bot messageSender, chatID int64, minMercalli int, log *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:         bot,
		chatID:      chatID,
		MinMercalli: minMercalli,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		log:         log,
	}
}

// Run alerts on events from the hub until ctx is cancelled. The hub replays
// its latest event on subscribe, so an event logged before Run is still
// alerted; one already alerted by an earlier Run is not sent again.
func (n *TelegramNotifier) Run(ctx context.Context, events *Hub[seismic.Event]) error {
	id, ch := events.Subscribe()
	defer events.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.ID == n.lastSent {
				continue
			}
			if err := n.Notify(ctx, ev); err != nil {
				n.log.Warn("telegram: alert not delivered", zap.String("id", ev.ID), zap.Error(err))
				continue
			}
			n.lastSent = ev.ID
		}
	}
}

// Notify sends one alert, retrying with a linear backoff. Events below
// MinMercalli are ignored.
func (n *TelegramNotifier) Notify(ctx context.Context, ev seismic.Event) error {
	if ev.Mercalli < n.MinMercalli {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, formatEventMessage(ev))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < n.MaxRetries; i++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			n.log.Info("telegram: alert sent", zap.String("id", ev.ID), zap.Int("mercalli", ev.Mercalli))
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.RetryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed to send message after %d retries: %w", n.MaxRetries, lastErr)
}

func formatEventMessage(ev seismic.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Seismic event: Mercalli %s*\n", escapeMarkdownV2(seismic.Roman(ev.Mercalli)))
	if label := seismic.Label(ev.Mercalli); label != "" {
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdownV2(label))
	}
	fmt.Fprintf(&b, "\n%s\n", escapeMarkdownV2(ev.Timestamp()))
	fmt.Fprintf(&b, "Magnitude: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.3f m/s²", ev.Magnitude)))
	fmt.Fprintf(&b, "Axes: %s\n", escapeMarkdownV2(fmt.Sprintf("X=%.3f Y=%.3f Z=%.3f", ev.X, ev.Y, ev.Z)))
	return b.String()
}

// escapeMarkdownV2 escapes the characters MarkdownV2 reserves.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
