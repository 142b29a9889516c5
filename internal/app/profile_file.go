// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/mercalli_seismo/internal/seismic"
)

const profileSchemaVersion = 1

// ErrNotCalibrated is returned when a stored result carries no usable profile.
var ErrNotCalibrated = errors.New("stored calibration is not usable")

// ProfileFile is the on-disk calibration record.
type ProfileFile struct {
	SchemaVersion int                       `json:"schema_version"`
	CalibratedAt  string                    `json:"calibrated_at"`
	Result        seismic.CalibrationResult `json:"result"`
}

// SaveProfile writes a calibration result as indented JSON, replacing the
// file atomically.
func SaveProfile(path string, res seismic.CalibrationResult, at time.Time) error {
	b, err := json.MarshalIndent(ProfileFile{
		SchemaVersion: profileSchemaVersion,
		CalibratedAt:  at.Format(time.RFC3339),
		Result:        res,
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".calibration-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadProfile reads a file written by SaveProfile.
func LoadProfile(path string) (seismic.CalibrationProfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return seismic.CalibrationProfile{}, err
	}
	var f ProfileFile
	if err := json.Unmarshal(b, &f); err != nil {
		return seismic.CalibrationProfile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.SchemaVersion != profileSchemaVersion {
		return seismic.CalibrationProfile{}, fmt.Errorf("%s: unsupported schema version %d", path, f.SchemaVersion)
	}
	if !f.Result.Success || !f.Result.Profile.Calibrated {
		return seismic.CalibrationProfile{}, fmt.Errorf("%s: %w", path, ErrNotCalibrated)
	}
	return f.Result.Profile, nil
}
