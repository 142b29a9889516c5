// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package command carries operator commands from every transport (button,
// console, HTTP, websocket, MQTT) into the goroutine that owns the engine.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

// ErrUnknownCommand is returned by Parse for unrecognised input.
var ErrUnknownCommand = errors.New("unknown command")

// Kind is an opaque command without payload.
type Kind int

const (
	Reset Kind = iota + 1
	Recalibrate
	ClearLog
)

var kindNames = map[Kind]string{
	Reset:       "reset",
	Recalibrate: "calibrate",
	ClearLog:    "clear",
}

var aliases = map[string]Kind{
	"reset":       Reset,
	"r":           Reset,
	"calibrate":   Recalibrate,
	"recalibrate": Recalibrate,
	"cal":         Recalibrate,
	"c":           Recalibrate,
	"clear":       ClearLog,
	"clear_log":   ClearLog,
	"clearlog":    ClearLog,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the canonical name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Parse accepts case insensitive names and aliases, surrounding space ignored.
func Parse(s string) (Kind, error) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, strings.TrimSpace(s))
	}
	return k, nil
}

// Result is the outcome of an executed command.
type Result struct {
	Kind        Kind                       `json:"command"`
	Calibration *seismic.CalibrationResult `json:"calibration,omitempty"`
}

// Executor is the engine surface commands act on.
type Executor interface {
	Reset()
	Recalibrate() seismic.CalibrationResult
	ClearLog()
}

// Execute runs one command against ex.
func Execute(ex Executor, k Kind) (Result, error) {
	res := Result{Kind: k}
	switch k {
	case Reset:
		ex.Reset()
	case Recalibrate:
		cal := ex.Recalibrate()
		res.Calibration = &cal
	case ClearLog:
		ex.ClearLog()
	default:
		return res, fmt.Errorf("%w: %v", ErrUnknownCommand, k)
	}
	return res, nil
}

// Request is a command in flight. Source names the transport for logs.
type Request struct {
	Kind   Kind
	Source string
	reply  chan Result
}

// Respond delivers the result to a waiting submitter, if any.
func (r Request) Respond(res Result) {
	if r.reply != nil {
		r.reply <- res
	}
}

// Bus serialises commands into a single consumer.
type Bus struct {
	ch chan Request
}

// NewBus creates a bus with a small queue.
func NewBus(queue int) *Bus {
	return &Bus{ch: make(chan Request, queue)}
}

// Requests is the consumer side.
func (b *Bus) Requests() <-chan Request { return b.ch }

// Post queues a command without waiting for it. It reports false when the
// queue is full and the command was dropped.
func (b *Bus) Post(k Kind, source string) bool {
	select {
	case b.ch <- Request{Kind: k, Source: source}:
		return true
	default:
		return false
	}
}

// Submit queues a command and waits for its result.
func (b *Bus) Submit(ctx context.Context, k Kind, source string) (Result, error) {
	req := Request{Kind: k, Source: source, reply: make(chan Result, 1)}
	select {
	case b.ch <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
