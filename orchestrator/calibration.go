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

package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hfreceiver/wwvclock/clockoffset"
	"github.com/hfreceiver/wwvclock/statefile"
)

// calibrationSchemaVersion is bumped whenever the persisted shape of
// calibrationState changes incompatibly.
const calibrationSchemaVersion = "1.0.0"

// calibrationMaxAge is how stale a checkpoint can be before it is
// discarded at startup rather than trusted; every broadcast tracker
// reconverges from fresh measurements within a few hours regardless,
// so a day-old checkpoint is not worth the risk of restoring a state
// that no longer matches reality.
const calibrationMaxAge = 24 * time.Hour

// CalibrationRegistry owns the process-wide clockoffset.Fusion
// accumulator shared by every channel worker, and checkpoints it to a
// statefile-backed snapshot on a configurable cadence so a restart
// does not force every broadcast tracker back to Unlocked.
type CalibrationRegistry struct {
	fusion *clockoffset.Fusion
	path   string

	processNoiseOffset float64
	processNoiseDrift  float64
}

type calibrationKeyState struct {
	Station     string
	FrequencyHz float64
	State       clockoffset.State
}

// NewCalibrationRegistry creates a registry backed by fusion and
// checkpointed to stateDir/calibration.json.
func NewCalibrationRegistry(fusion *clockoffset.Fusion, stateDir string, processNoiseOffset, processNoiseDrift float64) *CalibrationRegistry {
	return &CalibrationRegistry{
		fusion:             fusion,
		path:               filepath.Join(stateDir, "calibration.json"),
		processNoiseOffset: processNoiseOffset,
		processNoiseDrift:  processNoiseDrift,
	}
}

// Fusion returns the shared accumulator every worker observes into.
func (r *CalibrationRegistry) Fusion() *clockoffset.Fusion { return r.fusion }

// Restore loads a prior checkpoint, if one exists and is still
// trustworthy, seeding each broadcast's tracker before any worker
// starts observing. A missing, stale, or corrupt checkpoint is not an
// error: every tracker simply starts Unlocked, which is always safe.
func (r *CalibrationRegistry) Restore(now time.Time) {
	var keyed []calibrationKeyState
	if err := statefile.Load(r.path, ">= 1.0.0, < 2.0.0", calibrationMaxAge, now, &keyed); err != nil {
		log.WithError(err).Info("orchestrator: no usable calibration checkpoint, starting trackers unlocked")
		return
	}
	for _, ks := range keyed {
		key := clockoffset.BroadcastKey{Station: ks.Station, FrequencyHz: ks.FrequencyHz}
		t, err := clockoffset.Restore(r.processNoiseOffset, r.processNoiseDrift, ks.State)
		if err != nil {
			log.WithError(err).WithField("broadcast", key.String()).Warning("orchestrator: discarding invalid checkpointed tracker")
			continue
		}
		r.fusion.SetTracker(key, t)
	}
}

// Checkpoint atomically publishes the current state of every tracked
// broadcast.
func (r *CalibrationRegistry) Checkpoint(now time.Time) error {
	keyed := make([]calibrationKeyState, 0, len(r.fusion.Keys()))
	for _, key := range r.fusion.Keys() {
		t := r.fusion.Tracker(key)
		if t == nil {
			continue
		}
		keyed = append(keyed, calibrationKeyState{Station: key.Station, FrequencyHz: key.FrequencyHz, State: t.Snapshot()})
	}
	if err := statefile.SaveAtomic(r.path, calibrationSchemaVersion, keyed, now); err != nil {
		return fmt.Errorf("orchestrator: checkpointing calibration: %w", err)
	}
	return nil
}
