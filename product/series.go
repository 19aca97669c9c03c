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

// Package product implements the corrected product generator (C11):
// it reads a Phase 1 raw archive, maps each sample's system time to
// UTC using the Phase 2 D_clock series by linear interpolation,
// decimates through the same 3-stage decimator used during live
// ingest, and writes a Phase 3 aligned product archive.
package product

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// OffsetPoint is one D_clock(t_sys) sample from the Kalman tracker's
// output series.
type OffsetPoint struct {
	TSys     time.Time
	OffsetMs float64
}

// Series is a time-ordered D_clock measurement series usable for
// linear interpolation at arbitrary system times within its span. Safe
// for concurrent use: the streaming generator appends new Kalman
// output while the batch generator interpolates concurrently.
type Series struct {
	mu     sync.RWMutex
	points []OffsetPoint
}

// NewSeries builds a Series from points, sorting them by system time.
func NewSeries(points []OffsetPoint) *Series {
	sorted := append([]OffsetPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TSys.Before(sorted[j].TSys) })
	return &Series{points: sorted}
}

// Append adds one new measurement, keeping the series sorted. Callers
// are expected to append points roughly in time order (the Kalman
// tracker's natural emission order); a point older than the tail is
// inserted in place rather than rejected.
func (s *Series) Append(p OffsetPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
	sort.Slice(s.points, func(i, j int) bool { return s.points[i].TSys.Before(s.points[j].TSys) })
}

// Len reports how many measurements the series holds.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// LatestTSys reports the system time of the most recent measurement,
// or the zero time if the series is empty.
func (s *Series) LatestTSys() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[len(s.points)-1].TSys
}

// OffsetAt returns D_clock linearly interpolated to t. Outside the
// series span it clamps to the nearest endpoint's value rather than
// extrapolating.
func (s *Series) OffsetAt(t time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.points) == 0 {
		return 0, fmt.Errorf("product: offset series is empty")
	}
	if len(s.points) == 1 || !t.After(s.points[0].TSys) {
		return s.points[0].OffsetMs, nil
	}
	last := s.points[len(s.points)-1]
	if !t.Before(last.TSys) {
		return last.OffsetMs, nil
	}

	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].TSys.After(t) })
	before := s.points[i-1]
	after := s.points[i]

	span := after.TSys.Sub(before.TSys).Seconds()
	if span <= 0 {
		return before.OffsetMs, nil
	}
	frac := t.Sub(before.TSys).Seconds() / span
	return before.OffsetMs + frac*(after.OffsetMs-before.OffsetMs), nil
}
