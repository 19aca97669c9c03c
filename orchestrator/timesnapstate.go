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

	"github.com/hfreceiver/wwvclock/statefile"
	"github.com/hfreceiver/wwvclock/timesnap"
	"github.com/hfreceiver/wwvclock/wire"
)

// timeSnapSchemaVersion is bumped whenever persistedTimeSnap's shape
// changes incompatibly.
const timeSnapSchemaVersion = "1.0.0"

// timeSnapMaxAge bounds how stale a checkpointed TimeSnap can be
// before it is discarded rather than seeded: an RTP anchor from more
// than a few hours ago has likely already rolled past several
// resyncs, so restoring it would just be wrong.
const timeSnapMaxAge = 6 * time.Hour

// persistedTimeSnap is the on-disk form of one channel's adopted
// TimeSnap, the §6 time_snap.json external interface.
type persistedTimeSnap struct {
	Channel       string
	RTPTsAnchor   uint32
	UTCAnchor     float64
	SampleRate    int
	Source        int
	Confidence    float64
	EstablishedAt time.Time
	Station       string
}

// TimeSnapRegistry checkpoints every worker's currently-adopted
// TimeSnap to time_snap.json and seeds it back at startup, the
// TimeSnap-lifecycle counterpart to CalibrationRegistry.
type TimeSnapRegistry struct {
	workers map[string]*Worker
	path    string
}

// NewTimeSnapRegistry creates a registry over workers, checkpointed to
// stateDir/time_snap.json.
func NewTimeSnapRegistry(workers map[string]*Worker, stateDir string) *TimeSnapRegistry {
	return &TimeSnapRegistry{
		workers: workers,
		path:    filepath.Join(stateDir, "time_snap.json"),
	}
}

// Restore loads a prior checkpoint, if one exists and is still fresh
// enough to trust, and seeds each named channel's Adopter directly,
// bypassing the upgrade check since this is the channel's very first
// TimeSnap this process lifetime. A missing, stale, or corrupt
// checkpoint is not an error: every worker simply starts with no
// TimeSnap adopted, exactly as if this were a fresh install.
func (r *TimeSnapRegistry) Restore(now time.Time) {
	var entries []persistedTimeSnap
	if err := statefile.Load(r.path, ">= 1.0.0, < 2.0.0", timeSnapMaxAge, now, &entries); err != nil {
		log.WithError(err).Info("orchestrator: no usable time-snap checkpoint, workers start unanchored")
		return
	}
	for _, e := range entries {
		w, ok := r.workers[e.Channel]
		if !ok {
			continue
		}
		w.AdoptSeed(timesnap.TimeSnap{
			RTPTsAnchor:   e.RTPTsAnchor,
			UTCAnchor:     e.UTCAnchor,
			SampleRate:    e.SampleRate,
			Source:        timesnap.Source(e.Source),
			Confidence:    e.Confidence,
			EstablishedAt: e.EstablishedAt,
			Station:       wire.Station(e.Station),
		})
	}
}

// Checkpoint atomically publishes every worker's currently-adopted
// TimeSnap; a worker with no TimeSnap yet is simply omitted.
func (r *TimeSnapRegistry) Checkpoint(now time.Time) error {
	entries := make([]persistedTimeSnap, 0, len(r.workers))
	for channel, w := range r.workers {
		snap := w.TimeSnap()
		if snap == nil {
			continue
		}
		entries = append(entries, persistedTimeSnap{
			Channel:       channel,
			RTPTsAnchor:   snap.RTPTsAnchor,
			UTCAnchor:     snap.UTCAnchor,
			SampleRate:    snap.SampleRate,
			Source:        int(snap.Source),
			Confidence:    snap.Confidence,
			EstablishedAt: snap.EstablishedAt,
			Station:       string(snap.Station),
		})
	}
	if err := statefile.SaveAtomic(r.path, timeSnapSchemaVersion, entries, now); err != nil {
		return fmt.Errorf("orchestrator: checkpointing time snaps: %w", err)
	}
	return nil
}
