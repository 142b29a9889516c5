// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

type fakeBot struct {
	mu    sync.Mutex
	fails int
	sent  []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return tgbotapi.Message{}, errors.New("telegram down")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func testEvent(id string, level int) seismic.Event {
	return seismic.Event{
		ID:        id,
		Time:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Mercalli:  level,
		X:         1.25,
		Magnitude: 1.25,
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d\-e\(f\)\!`, escapeMarkdownV2("a_b*c.d-e(f)!"))
	assert.Equal(t, "plain text", escapeMarkdownV2("plain text"))
	assert.Equal(t, `\\`, escapeMarkdownV2(`\`))
}

func TestFormatEventMessage(t *testing.T) {
	msg := formatEventMessage(testEvent("e1", 6))
	assert.Contains(t, msg, "*Seismic event: Mercalli VI*")
	assert.Contains(t, msg, "_Strong_")
	assert.Contains(t, msg, `2025\-06\-01 12:00:00 UTC`)
	assert.Contains(t, msg, `Magnitude: *1\.250 m/s²*`)
}

func TestTelegramNotifyFiltersAndRetries(t *testing.T) {
	bot := &fakeBot{fails: 2}
	n := newTelegramNotifier(bot, 42, 5, zap.NewNop())
	n.RetryDelay = time.Millisecond

	require.NoError(t, n.Notify(context.Background(), testEvent("quiet", 4)))
	assert.Empty(t, bot.messages())

	require.NoError(t, n.Notify(context.Background(), testEvent("e1", 5)))
	msgs := bot.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msgs[0].ParseMode)

	bot.fails = 10
	err := n.Notify(context.Background(), testEvent("e2", 7))
	assert.ErrorContains(t, err, "after 3 retries")
}

func runNotifier(t *testing.T, n *TelegramNotifier, hub *Hub[seismic.Event], body func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx, hub)
	}()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)
	body()
	cancel()
	<-done
}

func TestTelegramRunAlertsEventLoggedBeforeStart(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, 1, 5, zap.NewNop())
	hub := NewHub[seismic.Event](8)
	hub.Publish(testEvent("early", 8))

	runNotifier(t, n, hub, func() {
		require.Eventually(t, func() bool { return len(bot.messages()) == 1 }, time.Second, time.Millisecond)
		hub.Publish(testEvent("later", 9))
		require.Eventually(t, func() bool { return len(bot.messages()) == 2 }, time.Second, time.Millisecond)
	})
	msgs := bot.messages()
	assert.Contains(t, msgs[0].Text, "Mercalli VIII")
	assert.Contains(t, msgs[1].Text, "Mercalli IX")
}

func TestTelegramRunDoesNotResendOnResubscribe(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, 1, 5, zap.NewNop())
	hub := NewHub[seismic.Event](8)
	hub.Publish(testEvent("e1", 7))

	runNotifier(t, n, hub, func() {
		require.Eventually(t, func() bool { return len(bot.messages()) == 1 }, time.Second, time.Millisecond)
	})
	runNotifier(t, n, hub, func() {
		time.Sleep(20 * time.Millisecond)
	})
	assert.Len(t, bot.messages(), 1)
}
