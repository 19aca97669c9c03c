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
	"math"
	"time"

	"github.com/hfreceiver/wwvclock/iono"
)

// Mode identifies a candidate propagation path.
type Mode string

const (
	Mode1F          Mode = "1F"
	Mode2F          Mode = "2F"
	Mode3F          Mode = "3F"
	ModeChordal     Mode = "chordal"
	ModeSidescatter Mode = "sidescatter"
)

// ionoDelayConst (K in tau_iono = K * slant_TEC / f^2) relates TEC in
// TECU and frequency in Hz to a delay in seconds; 1 TECU = 1e16
// electrons/m^2, and the standard ionospheric group-delay constant is
// 40.3 m^3/s^2 per electron, giving K in SI units below.
const ionoDelayConst = 40.3e16 / speedOfLightKmPerSec / 1000 // seconds * Hz^2 / TECU, converted to match slantTEC in TECU and f in Hz

// Candidate is one scored propagation-mode hypothesis.
type Candidate struct {
	Mode          Mode
	NumHops       int
	GeometricSec  float64
	IonoSec       float64
	TotalDelaySec float64
	ResidualSec   float64 // |predicted - observed|
}

// Result is the solver's output: best-fit mode plus its uncertainty,
// taken as the spread between the best and second-best candidate.
type Result struct {
	Best           Candidate
	UncertaintySec float64
	Candidates     []Candidate
}

// candidateHopCounts maps each multi-hop mode to its number of
// ionospheric reflections.
var candidateHopCounts = map[Mode]int{
	Mode1F: 1,
	Mode2F: 2,
	Mode3F: 3,
}

// Solve enumerates 1F/2F/3F, chordal, and sidescatter candidates
// between tx and rx for a signal at freqHz observed with arrival
// delay observedDelaySec (relative to the pure free-space
// straight-line time), scores each by how closely its predicted delay
// matches the observation, and returns the best mode.
func Solve(model iono.Model, utc time.Time, tx, rx LatLon, freqHz, observedDelaySec float64) Result {
	groundKm := GreatCircleDistanceKm(tx, rx)
	mid := Midpoint(tx, rx)

	var candidates []Candidate

	for mode, hops := range candidateHopCounts {
		hopGroundKm := groundKm / float64(hops)
		heightKm := model.LayerHeightKm(utc, mid.LatDeg, mid.LonDeg)
		tecu := model.TECU(utc, mid.LatDeg, mid.LonDeg)

		geomSec := float64(hops) * GeometricDelaySec(hopGroundKm, heightKm)
		slantFactor := slantTECFactor(hopGroundKm, heightKm)
		ionoSec := float64(hops) * ionoDelaySec(tecu*slantFactor, freqHz)

		total := geomSec + ionoSec
		candidates = append(candidates, Candidate{
			Mode:          mode,
			NumHops:       hops,
			GeometricSec:  geomSec,
			IonoSec:       ionoSec,
			TotalDelaySec: total,
			ResidualSec:   math.Abs(total - observedDelaySec),
		})
	}

	// Chordal: straight line at the layer height, no ground bounce.
	{
		heightKm := model.LayerHeightKm(utc, mid.LatDeg, mid.LonDeg)
		tecu := model.TECU(utc, mid.LatDeg, mid.LonDeg)
		slantRangeKm := math.Hypot(groundKm, 2*heightKm)
		geomSec := slantRangeKm / speedOfLightKmPerSec
		ionoSec := ionoDelaySec(tecu, freqHz)
		total := geomSec + ionoSec
		candidates = append(candidates, Candidate{
			Mode: ModeChordal, NumHops: 1,
			GeometricSec: geomSec, IonoSec: ionoSec, TotalDelaySec: total,
			ResidualSec: math.Abs(total - observedDelaySec),
		})
	}

	// Sidescatter: an empirical excess-delay mode for paths with
	// significant off-great-circle scatter, modelled as the 1-hop
	// path plus a fixed scatter delay budget scaled by distance.
	{
		hops := 1
		hopGroundKm := groundKm
		heightKm := model.LayerHeightKm(utc, mid.LatDeg, mid.LonDeg)
		tecu := model.TECU(utc, mid.LatDeg, mid.LonDeg)
		geomSec := GeometricDelaySec(hopGroundKm, heightKm) + 0.0005*(groundKm/1000)
		ionoSec := ionoDelaySec(tecu, freqHz)
		total := geomSec + ionoSec
		candidates = append(candidates, Candidate{
			Mode: ModeSidescatter, NumHops: hops,
			GeometricSec: geomSec, IonoSec: ionoSec, TotalDelaySec: total,
			ResidualSec: math.Abs(total - observedDelaySec),
		})
	}

	best := 0
	for i, c := range candidates {
		if c.ResidualSec < candidates[best].ResidualSec {
			best = i
		}
	}
	second := math.Inf(1)
	for i, c := range candidates {
		if i == best {
			continue
		}
		if c.ResidualSec < second {
			second = c.ResidualSec
		}
	}
	uncertainty := second - candidates[best].ResidualSec
	if math.IsInf(uncertainty, 1) {
		uncertainty = 0
	}

	return Result{Best: candidates[best], UncertaintySec: uncertainty, Candidates: candidates}
}

// slantTECFactor approximates the secant-law enhancement of vertical
// TEC to slant TEC for an oblique hop geometry.
func slantTECFactor(groundKm, heightKm float64) float64 {
	if heightKm <= 0 {
		return 1
	}
	elevationRad := math.Atan2(heightKm, groundKm/2)
	sinEl := math.Sin(elevationRad)
	if sinEl < 0.1 {
		sinEl = 0.1
	}
	return 1 / sinEl
}

// ionoDelaySec applies the 1/f^2 ionospheric group-delay law:
// tau_iono = K * slant_TEC / f^2.
func ionoDelaySec(slantTECU, freqHz float64) float64 {
	if freqHz <= 0 {
		return 0
	}
	return ionoDelayConst * slantTECU / (freqHz * freqHz)
}
