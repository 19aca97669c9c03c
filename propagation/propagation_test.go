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

package propagation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/iono"
)

func TestGreatCircleDistanceKnownCities(t *testing.T) {
	// Fort Collins, CO (WWV) to Kekaha, HI (WWVH) is roughly 5500 km.
	wwv := LatLon{LatDeg: 40.68, LonDeg: -105.04}
	wwvh := LatLon{LatDeg: 21.99, LonDeg: -159.78}
	d := GreatCircleDistanceKm(wwv, wwvh)
	assert.InDelta(t, 5500, d, 400)
}

func TestMidpointBetweenAntipodalNearbyPoints(t *testing.T) {
	a := LatLon{LatDeg: 0, LonDeg: 0}
	b := LatLon{LatDeg: 0, LonDeg: 10}
	mid := Midpoint(a, b)
	assert.InDelta(t, 0, mid.LatDeg, 1e-6)
	assert.InDelta(t, 5, mid.LonDeg, 1e-6)
}

// Invariant 6: ionospheric delay at 2.5 MHz is 16x the delay at
// 10 MHz, a direct consequence of the 1/f^2 law.
func TestIonoDelayFollowsInverseFrequencySquaredLaw(t *testing.T) {
	d10 := ionoDelaySec(30, 10_000_000)
	d2_5 := ionoDelaySec(30, 2_500_000)
	require.Greater(t, d10, 0.0)
	assert.InDelta(t, 16*d10, d2_5, d10*1e-9)
}

func TestSolveReturnsBestModeWithinCandidates(t *testing.T) {
	model := iono.NewDefaultStaticModel()
	tx := LatLon{LatDeg: 40.68, LonDeg: -105.04}
	rx := LatLon{LatDeg: 39.0, LonDeg: -104.0}
	utc := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

	result := Solve(model, utc, tx, rx, 10_000_000, 0.0008)
	require.NotEmpty(t, result.Candidates)
	found := false
	for _, c := range result.Candidates {
		if c.Mode == result.Best.Mode {
			found = true
		}
	}
	assert.True(t, found)
	assert.GreaterOrEqual(t, result.UncertaintySec, 0.0)
}
