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
	"time"

	"github.com/hfreceiver/wwvclock/iono"
	"github.com/hfreceiver/wwvclock/propagation"
)

// propagationToleranceSec bounds how far the solver's best-mode
// predicted delay may differ from the measured delay before the
// measurement is treated as an untrustworthy (not ground-truth-usable)
// propagation observation.
const propagationToleranceSec = 0.0015

// CheckPropagationMode runs the propagation-mode solver for the given
// link and compares its best-fit predicted delay against the measured
// delay; within tolerance, the mismatch itself becomes a ground-truth
// residual (scaled to milliseconds) usable by the calibration
// pipeline. Outside tolerance the measurement doesn't corroborate any
// candidate mode well enough to trust, and ok is false.
func CheckPropagationMode(model iono.Model, utc time.Time, station string, tx, rx propagation.LatLon, freqHz, measuredDelaySec float64) (Observation, bool) {
	result := propagation.Solve(model, utc, tx, rx, freqHz, measuredDelaySec)
	if result.Best.ResidualSec > propagationToleranceSec {
		return Observation{}, false
	}
	return Observation{
		Tier:       TierPropagationMode,
		Station:    station,
		UTC:        utc,
		ResidualMs: result.Best.ResidualSec * 1000,
	}, true
}
