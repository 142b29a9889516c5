// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/clock"
)

type nopPort struct{ io.Reader }

func (nopPort) Write(p []byte) (int, error) { return len(p), nil }
func (nopPort) Close() error { return nil }

func nmeaLine(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, sum)
}

func TestGPSTimeSyncFeedsClock(t *testing.T) {
	stream := "garbage\r\n" +
		nmeaLine("GPRMC,081836,V,3751.65,S,14507.36,E,000.0,360.0,130998,011.3,E") +
		nmeaLine("GPRMC,120000,A,4807.038,N,01131.000,E,022.4,084.4,010625,003.1,W")

	clk := clock.NewGPSClock()
	var opens atomic.Int32
	g := NewGPSTimeSync(clk, "/dev/null", 9600, zap.NewNop())
	g.RetryDelay = time.Millisecond
	g.open = func() (io.ReadWriteCloser, error) {
		if opens.Add(1) > 1 {
			return nil, errors.New("unplugged")
		}
		return nopPort{strings.NewReader(stream)}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return opens.Load() > 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, uint64(1), clk.Fixes())
	wall, ok := clk.WallTime()
	require.True(t, ok)
	assert.WithinDuration(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), wall, time.Second)
}
