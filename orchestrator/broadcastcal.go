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
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/hfreceiver/wwvclock/statefile"
)

// broadcastCalSchemaVersion is bumped whenever broadcastCalEntry's
// persisted shape changes incompatibly.
const broadcastCalSchemaVersion = "1.0.0"

// broadcastCalMaxAge mirrors calibrationMaxAge: a day-old per-broadcast
// offset is not worth trusting over simply reconverging from fresh
// ground-truth observations.
const broadcastCalMaxAge = 24 * time.Hour

// BroadcastCalibration is the per-(station, frequency) calibration
// offset entity (§3): a precision-weighted offset and uncertainty
// derived from ground-truth residuals for exactly one broadcast,
// applied to that broadcast's measurements before fusion.
type BroadcastCalibration struct {
	Station       string
	FrequencyMHz  float64
	OffsetMs      float64
	UncertaintyMs float64
	NSamples      int
	LastUpdated   time.Time
}

// broadcastCalKey identifies one BroadcastCalibration the same way
// clockoffset.BroadcastKey does, independent of that package so this
// store can be persisted without importing clockoffset's internals.
type broadcastCalKey struct {
	Station      string
	FrequencyMHz float64
}

func (k broadcastCalKey) String() string {
	return fmt.Sprintf("%s@%.6fMHz", k.Station, k.FrequencyMHz)
}

// CalibrationStore owns one running residual accumulator per broadcast
// and the BroadcastCalibration snapshot derived from it, persisted to
// broadcast_calibration.json independently of the Kalman tracker
// checkpoints in CalibrationRegistry.
type CalibrationStore struct {
	mu    sync.Mutex
	path  string
	stats map[broadcastCalKey]*welford.Stats
	meta  map[broadcastCalKey]BroadcastCalibration
}

// NewCalibrationStore creates an empty store checkpointed to
// stateDir/broadcast_calibration.json.
func NewCalibrationStore(stateDir string) *CalibrationStore {
	return &CalibrationStore{
		path:  filepath.Join(stateDir, "broadcast_calibration.json"),
		stats: map[broadcastCalKey]*welford.Stats{},
		meta:  map[broadcastCalKey]BroadcastCalibration{},
	}
}

// Observe folds one ground-truth residual (measured minus expected, in
// ms) into the named broadcast's running statistics and returns the
// refreshed BroadcastCalibration. The recommended offset is the
// negative of the mean residual, the same "subtract the observed bias"
// convention groundtruth.Validator uses for its global recommendation.
func (s *CalibrationStore) Observe(station string, frequencyMHz, residualMs float64, now time.Time) BroadcastCalibration {
	key := broadcastCalKey{Station: station, FrequencyMHz: frequencyMHz}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[key]
	if !ok {
		st = welford.New()
		s.stats[key] = st
	}
	st.Add(residualMs)

	entry := BroadcastCalibration{
		Station:       station,
		FrequencyMHz:  frequencyMHz,
		OffsetMs:      -st.Mean(),
		UncertaintyMs: math.Sqrt(st.Variance()),
		NSamples:      int(st.Count()),
		LastUpdated:   now,
	}
	s.meta[key] = entry
	return entry
}

// OffsetFor returns the current calibration offset for a broadcast, 0
// if no ground-truth observation has ever been folded in for it.
func (s *CalibrationStore) OffsetFor(station string, frequencyMHz float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[broadcastCalKey{Station: station, FrequencyMHz: frequencyMHz}].OffsetMs
}

// Snapshot returns every broadcast's current calibration entry, for
// the external interface's broadcast_calibration.json / API surface.
func (s *CalibrationStore) Snapshot() []BroadcastCalibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BroadcastCalibration, 0, len(s.meta))
	for _, e := range s.meta {
		out = append(out, e)
	}
	return out
}

// persistedBroadcastCal is the on-disk form of one broadcast's
// calibration entry; welford.Stats has no export/restore primitive
// (the same limitation groundtruth.Validator works around), so only
// the derived BroadcastCalibration fields are persisted and the
// running accumulator resumes fresh and reconverges from there.
type persistedBroadcastCal struct {
	Station       string
	FrequencyMHz  float64
	OffsetMs      float64
	UncertaintyMs float64
	NSamples      int
	LastUpdated   time.Time
}

// Restore loads a prior checkpoint, if one exists and is still fresh
// enough to trust, seeding every broadcast's calibration entry before
// any worker observes a measurement. A missing, stale, or corrupt
// checkpoint is not an error: every broadcast simply starts
// uncalibrated (offset 0), which is always safe.
func (s *CalibrationStore) Restore(now time.Time) {
	var entries []persistedBroadcastCal
	if err := statefile.Load(s.path, ">= 1.0.0, < 2.0.0", broadcastCalMaxAge, now, &entries); err != nil {
		log.WithError(err).Info("orchestrator: no usable broadcast calibration checkpoint, starting uncalibrated")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		key := broadcastCalKey{Station: e.Station, FrequencyMHz: e.FrequencyMHz}
		s.meta[key] = BroadcastCalibration{
			Station:       e.Station,
			FrequencyMHz:  e.FrequencyMHz,
			OffsetMs:      e.OffsetMs,
			UncertaintyMs: e.UncertaintyMs,
			NSamples:      e.NSamples,
			LastUpdated:   e.LastUpdated,
		}
	}
}

// Checkpoint atomically publishes every broadcast's current
// calibration entry.
func (s *CalibrationStore) Checkpoint(now time.Time) error {
	s.mu.Lock()
	entries := make([]persistedBroadcastCal, 0, len(s.meta))
	for _, e := range s.meta {
		entries = append(entries, persistedBroadcastCal{
			Station:       e.Station,
			FrequencyMHz:  e.FrequencyMHz,
			OffsetMs:      e.OffsetMs,
			UncertaintyMs: e.UncertaintyMs,
			NSamples:      e.NSamples,
			LastUpdated:   e.LastUpdated,
		})
	}
	s.mu.Unlock()

	if err := statefile.SaveAtomic(s.path, broadcastCalSchemaVersion, entries, now); err != nil {
		return fmt.Errorf("orchestrator: checkpointing broadcast calibration: %w", err)
	}
	return nil
}
