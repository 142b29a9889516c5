// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversLatest(t *testing.T) {
	h := NewHub[int](1)
	h.Publish(1)

	id, ch := h.Subscribe()
	assert.Equal(t, 1, <-ch, "latest value on subscribe")

	h.Publish(2)
	h.Publish(3) // subscriber is slow: 2 is dropped
	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 1, h.Len())

	h.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "closed after unsubscribe")
	assert.Zero(t, h.Len())

	v, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestHubBufferedKeepsOrder(t *testing.T) {
	h := NewHub[int](3)
	_, ch := h.Subscribe()
	for i := 1; i <= 5; i++ {
		h.Publish(i)
	}
	assert.Equal(t, []int{3, 4, 5}, []int{<-ch, <-ch, <-ch})
}

func TestHubClose(t *testing.T) {
	h := NewHub[string](1)
	_, a := h.Subscribe()
	h.Close()
	_, ok := <-a
	assert.False(t, ok)

	h.Publish("ignored")
	_, b := h.Subscribe()
	_, ok = <-b
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
}
