// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/mercalli_seismo/internal/command"
	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

// NoticeKind tags a Notice.
type NoticeKind int

const (
	// NoticeReset follows an executed reset.
	NoticeReset NoticeKind = iota + 1
	// NoticeCalibration carries calibration progress.
	NoticeCalibration
)

// Notice is a transient UI event that is not part of the snapshot.
type Notice struct {
	Kind     NoticeKind
	Progress seismic.Progress
}

// ProgressNotices adapts a notice hub to the engine progress callback.
func ProgressNotices(h *Hub[Notice]) seismic.ProgressFunc {
	return func(p seismic.Progress) {
		h.Publish(Notice{Kind: NoticeCalibration, Progress: p})
	}
}

// Runner is the single goroutine that owns the engine: it samples on a
// ticker and executes commands between ticks.
type Runner struct {
	Engine           *seismic.Engine
	Bus              *command.Bus
	Interval         time.Duration
	Snapshots        *Hub[seismic.Snapshot]
	Notices          *Hub[Notice]
	CalibrateOnStart bool
	// OnCalibrated runs after every successful calibration.
	OnCalibrated func(seismic.CalibrationResult)
	Log          *zap.Logger
}

// Run samples until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := r.logger()
	if r.CalibrateOnStart {
		r.execute(command.Request{Kind: command.Recalibrate, Source: "startup"})
		r.execute(command.Request{Kind: command.Reset, Source: "startup"})
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	log.Info("sampling started", zap.Duration("interval", r.Interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("sampling stopped")
			return nil
		case req := <-r.Bus.Requests():
			r.execute(req)
		case <-ticker.C:
			snap, err := r.Engine.Step()
			if err != nil {
				log.Warn("sensor read failed, tick skipped",
					zap.Error(err),
					zap.Uint64("sensor_errors", snap.SensorErrors),
				)
			}
			r.publish(snap)
		}
	}
}

func (r *Runner) execute(req command.Request) {
	log := r.logger()
	log.Info("command received", zap.Stringer("command", req.Kind), zap.String("source", req.Source))

	res, err := command.Execute(r.Engine, req.Kind)
	if err != nil {
		log.Warn("command rejected", zap.Error(err))
	}
	if err == nil && req.Kind == command.Reset && r.Notices != nil {
		r.Notices.Publish(Notice{Kind: NoticeReset})
	}
	if res.Calibration != nil && res.Calibration.Success && r.OnCalibrated != nil {
		r.OnCalibrated(*res.Calibration)
	}
	r.publish(r.Engine.Snapshot())
	req.Respond(res)
}

func (r *Runner) publish(s seismic.Snapshot) {
	if r.Snapshots != nil {
		r.Snapshots.Publish(s)
	}
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
