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

// Package groundtruth implements the three-tier clock-offset validator:
// GPS PPS events when available, silent-minute station cross-checks,
// and propagation-mode residual validation. It accumulates bias/sigma
// statistics over all tiers together, plus a tier-weighted bias, and
// publishes a recommended calibration offset
// for the Kalman and calibration modules to consume; it never writes
// their state directly.
package groundtruth

import "time"

// Tier identifies which of the three validation sources produced an
// Observation, in order of trust.
type Tier int

const (
	TierGPSPPS Tier = iota
	TierSilentMinute
	TierPropagationMode
)

func (t Tier) String() string {
	switch t {
	case TierGPSPPS:
		return "gps_pps"
	case TierSilentMinute:
		return "silent_minute"
	case TierPropagationMode:
		return "propagation_mode"
	}
	return "unknown"
}

// Observation is one ground-truth data point: the discrepancy between
// a pipeline-measured quantity and the ground-truth source's value.
type Observation struct {
	Tier       Tier
	Station    string
	UTC        time.Time
	ResidualMs float64
}
