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

package clockoffset

import (
	"fmt"
	"math"
)

// BroadcastKey identifies one (station, frequency) accumulator, the
// calibration key used end-to-end from measurement through fusion.
type BroadcastKey struct {
	Station     string
	FrequencyHz float64
}

func (k BroadcastKey) String() string {
	return fmt.Sprintf("%s@%.0fHz", k.Station, k.FrequencyHz)
}

// Fusion owns one Tracker per broadcast and combines their offset
// estimates into a single precision-weighted D_clock.
type Fusion struct {
	trackers map[BroadcastKey]*Tracker

	processNoiseOffset float64
	processNoiseDrift  float64
	initialSigmaMs     float64
}

// NewFusion creates an empty fusion accumulator; per-broadcast
// trackers are created lazily on first measurement with the given
// defaults.
func NewFusion(processNoiseOffset, processNoiseDrift, initialSigmaMs float64) *Fusion {
	return &Fusion{
		trackers:           map[BroadcastKey]*Tracker{},
		processNoiseOffset: processNoiseOffset,
		processNoiseDrift:  processNoiseDrift,
		initialSigmaMs:     initialSigmaMs,
	}
}

// Observe applies calibration-corrected measurement m to the named
// broadcast's tracker, creating it if this is the first observation
// for that broadcast.
func (f *Fusion) Observe(key BroadcastKey, m Measurement) error {
	t, ok := f.trackers[key]
	if !ok {
		t = NewTracker(f.processNoiseOffset, f.processNoiseDrift, f.initialSigmaMs)
		f.trackers[key] = t
	}
	return t.Update(m)
}

// Tracker returns the per-broadcast tracker for key, or nil if no
// measurement has been observed for it yet.
func (f *Fusion) Tracker(key BroadcastKey) *Tracker {
	return f.trackers[key]
}

// SetTracker installs t as the accumulator for key, used to restore a
// broadcast's tracker from persisted state at startup.
func (f *Fusion) SetTracker(key BroadcastKey, t *Tracker) {
	f.trackers[key] = t
}

// Keys returns every broadcast currently tracked, for snapshotting at
// a checkpoint boundary.
func (f *Fusion) Keys() []BroadcastKey {
	keys := make([]BroadcastKey, 0, len(f.trackers))
	for k := range f.trackers {
		keys = append(keys, k)
	}
	return keys
}

// DClock is the global fused clock-offset output: a
// precision-weighted mean (weights = 1/sigma^2) across every
// broadcast with at least one accepted measurement.
type DClock struct {
	OffsetMs   float64
	SigmaMs    float64
	NumSources int
}

// Fuse computes the current precision-weighted D_clock across all
// broadcasts with a usable estimate.
func (f *Fusion) Fuse() DClock {
	var weightSum, weightedOffsetSum float64
	n := 0
	for _, t := range f.trackers {
		if t.updates == 0 {
			continue
		}
		sigma := t.SigmaMs()
		if sigma <= 0 {
			continue
		}
		weight := 1 / (sigma * sigma)
		weightSum += weight
		weightedOffsetSum += weight * t.OffsetMs()
		n++
	}
	if weightSum == 0 {
		return DClock{}
	}
	return DClock{
		OffsetMs:   weightedOffsetSum / weightSum,
		SigmaMs:    1 / math.Sqrt(weightSum),
		NumSources: n,
	}
}
