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

package groundtruth

import (
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/eclesh/welford"
)

// tierWeight ranks trust in each tier: GPS PPS is gold standard,
// silent minute next, propagation-mode weakest.
var tierWeight = map[Tier]float64{
	TierGPSPPS:          1.0,
	TierSilentMinute:    0.5,
	TierPropagationMode: 0.25,
}

// Update is what the validator publishes for the Kalman and
// calibration modules to subscribe to; it never writes their state
// itself (see package doc).
type Update struct {
	RecommendedCalibrationOffsetMs float64
	BiasMs                         float64
	SigmaMs                        float64
	PerStationCounts               map[string]int
}

// Subscriber receives validator updates as they're published.
type Subscriber func(Update)

// Validator accumulates ground-truth observations across all three
// tiers and publishes a recommended calibration offset whenever new
// observations change the running statistics.
type Validator struct {
	mu sync.Mutex

	stats            *welford.Stats
	perStationCounts map[string]int
	perTierWeightSum float64
	weightedBiasSum  float64
	subscribers      []Subscriber
}

// NewValidator creates an empty accumulator.
func NewValidator() *Validator {
	return &Validator{
		stats:            welford.New(),
		perStationCounts: map[string]int{},
	}
}

// Subscribe registers fn to be called after every Observe.
func (v *Validator) Subscribe(fn Subscriber) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subscribers = append(v.subscribers, fn)
}

// Observe folds one tiered observation into the running statistics
// and notifies subscribers with the refreshed recommendation.
func (v *Validator) Observe(obs Observation) {
	v.mu.Lock()
	v.stats.Add(obs.ResidualMs)
	if obs.Station != "" {
		v.perStationCounts[obs.Station]++
	}
	w := tierWeight[obs.Tier]
	v.perTierWeightSum += w
	v.weightedBiasSum += w * obs.ResidualMs

	update := v.snapshotLocked()
	subs := append([]Subscriber(nil), v.subscribers...)
	v.mu.Unlock()

	for _, fn := range subs {
		fn(update)
	}
}

func (v *Validator) snapshotLocked() Update {
	bias := 0.0
	if v.perTierWeightSum > 0 {
		bias = v.weightedBiasSum / v.perTierWeightSum
	}
	counts := make(map[string]int, len(v.perStationCounts))
	for k, n := range v.perStationCounts {
		counts[k] = n
	}
	return Update{
		RecommendedCalibrationOffsetMs: -bias,
		BiasMs:                         v.stats.Mean(),
		SigmaMs:                        math.Sqrt(v.stats.Variance()),
		PerStationCounts:               counts,
	}
}

// Snapshot returns the current recommendation without requiring a new
// observation.
func (v *Validator) Snapshot() Update {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// persistedState is the JSON-serializable form of a Validator's
// statistics, used to survive process restarts.
type persistedState struct {
	Mean             float64
	Variance         float64
	Count            int64
	PerStationCounts map[string]int
	WeightedBiasSum  float64
	WeightSum        float64
}

// SaveJSON writes the validator's accumulated statistics to path.
func (v *Validator) SaveJSON(path string) error {
	v.mu.Lock()
	state := persistedState{
		Mean:             v.stats.Mean(),
		Variance:         v.stats.Variance(),
		Count:            v.stats.Count(),
		PerStationCounts: v.perStationCounts,
		WeightedBiasSum:  v.weightedBiasSum,
		WeightSum:        v.perTierWeightSum,
	}
	v.mu.Unlock()

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadJSON restores a validator's per-station counts and tier-weighted
// bias accumulation from a file written by SaveJSON. welford.Stats has
// no restore primitive, so the bias/sigma statistics resume from a
// fresh accumulator and reconverge as new observations arrive; the
// tier-weighted recommendation (which SaveJSON captures directly) is
// preserved exactly.
func LoadJSON(path string) (*Validator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state persistedState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, err
	}
	v := NewValidator()
	v.perStationCounts = state.PerStationCounts
	if v.perStationCounts == nil {
		v.perStationCounts = map[string]int{}
	}
	v.weightedBiasSum = state.WeightedBiasSum
	v.perTierWeightSum = state.WeightSum
	return v, nil
}
