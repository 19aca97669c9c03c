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

// maxPlausibleDriftMsPerMin bounds the drift state component: a
// free-running crystal oscillator drifting faster than this is a
// sign of state-file corruption, not a real broadcast.
const maxPlausibleDriftMsPerMin = 0.1

// State is the serializable snapshot of a Tracker, used by the
// persistence layer to save and restore a broadcast's accumulator
// across process restarts.
type State struct {
	OffsetMs      float64
	DriftMsPerMin float64
	P00           float64
	P01           float64
	P10           float64
	P11           float64
	Updates       int
}

// Validate rejects a state snapshot whose drift exceeds plausible
// oscillator behavior or whose covariance is not positive
// semi-definite, either of which indicates a corrupted or
// hand-edited state file rather than a legitimately tracked clock.
func (s State) Validate() error {
	if math.Abs(s.DriftMsPerMin) > maxPlausibleDriftMsPerMin {
		return fmt.Errorf("clockoffset: implausible drift %.3f ms/min exceeds bound %.1f", s.DriftMsPerMin, maxPlausibleDriftMsPerMin)
	}
	if math.IsNaN(s.OffsetMs) || math.IsInf(s.OffsetMs, 0) {
		return fmt.Errorf("clockoffset: non-finite offset %v", s.OffsetMs)
	}
	if s.P00 < 0 || s.P11 < 0 {
		return fmt.Errorf("clockoffset: negative variance on covariance diagonal (%.6f, %.6f)", s.P00, s.P11)
	}
	if math.Abs(s.P01-s.P10) > 1e-9 {
		return fmt.Errorf("clockoffset: covariance matrix not symmetric (%.6f vs %.6f)", s.P01, s.P10)
	}
	det := s.P00*s.P11 - s.P01*s.P10
	if det < -1e-9 {
		return fmt.Errorf("clockoffset: covariance matrix not positive semi-definite (det=%.9f)", det)
	}
	if s.Updates < 0 {
		return fmt.Errorf("clockoffset: negative update count %d", s.Updates)
	}
	return nil
}

// Snapshot captures the tracker's current state for persistence.
func (t *Tracker) Snapshot() State {
	return State{
		OffsetMs:      t.OffsetMs(),
		DriftMsPerMin: t.DriftMsPerMin(),
		P00:           t.p.At(0, 0),
		P01:           t.p.At(0, 1),
		P10:           t.p.At(1, 0),
		P11:           t.p.At(1, 1),
		Updates:       t.updates,
	}
}

// Restore rebuilds a Tracker from a validated state snapshot,
// preserving the original process-noise configuration.
func Restore(processNoiseOffset, processNoiseDrift float64, s State) (*Tracker, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	t := NewTracker(processNoiseOffset, processNoiseDrift, 1)
	t.x.SetVec(0, s.OffsetMs)
	t.x.SetVec(1, s.DriftMsPerMin)
	t.p.Set(0, 0, s.P00)
	t.p.Set(0, 1, s.P01)
	t.p.Set(1, 0, s.P10)
	t.p.Set(1, 1, s.P11)
	t.updates = s.Updates
	t.updateConvergence()
	return t, nil
}
