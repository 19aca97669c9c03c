/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package statefile implements versioned, atomically-replaced
// persistence for the pipeline's recoverable component state (Kalman
// tracker, calibration offsets, TimeSnap). Every state file carries a
// schema version and a save timestamp; on load, a version mismatch, a
// failed domain invariant check, or a file older than the configured
// max age all reinitialize the component from scratch rather than
// trust a possibly-corrupt file — reinitialization is always safe
// because every piece of this state is recoverable from the Phase 1
// raw archive and Phase 2 series.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-version"
)

// Envelope wraps a component's serialized payload with the metadata
// needed to decide, at load time, whether the payload is still
// trustworthy.
type Envelope struct {
	SchemaVersion string          `json:"schema_version"`
	SavedAt       time.Time       `json:"saved_at"`
	Payload       json.RawMessage `json:"payload"`
}

// SaveAtomic serializes payload into an Envelope tagged with
// schemaVersion and the current time, then publishes it to path via
// write-to-temp-then-rename so a crash mid-write never leaves a
// truncated file in place.
func SaveAtomic(path, schemaVersion string, payload interface{}, now time.Time) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("statefile: encoding payload: %w", err)
	}
	env := Envelope{SchemaVersion: schemaVersion, SavedAt: now, Payload: payloadBytes}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("statefile: encoding envelope: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".statefile-*")
	if err != nil {
		return fmt.Errorf("statefile: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("statefile: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("statefile: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statefile: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("statefile: publishing %s: %w", path, err)
	}
	return nil
}

// Load reads path's envelope and checks its schema version against
// constraintStr (a go-version constraint string, e.g. ">= 1.0, < 2.0")
// and its age against maxAge. On success it unmarshals Payload into
// out. Any failure returns an error describing exactly which check
// failed, the signal callers use to decide to reinitialize instead of
// propagating a zero-value/corrupt state.
func Load(path, constraintStr string, maxAge time.Duration, now time.Time, out interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("statefile: reading %s: %w", path, err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("statefile: decoding envelope for %s: %w", path, err)
	}

	v, err := version.NewVersion(env.SchemaVersion)
	if err != nil {
		return fmt.Errorf("statefile: %s: invalid schema version %q: %w", path, env.SchemaVersion, err)
	}
	constraint, err := version.NewConstraint(constraintStr)
	if err != nil {
		return fmt.Errorf("statefile: invalid constraint %q: %w", constraintStr, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("statefile: %s: schema version %s does not satisfy %s", path, env.SchemaVersion, constraintStr)
	}

	if maxAge > 0 {
		age := now.Sub(env.SavedAt)
		if age > maxAge {
			return fmt.Errorf("statefile: %s: state is %s old, exceeds max age %s", path, age, maxAge)
		}
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("statefile: %s: decoding payload: %w", path, err)
	}
	return nil
}
