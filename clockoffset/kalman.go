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

// Package clockoffset implements the per-broadcast Kalman clock-offset
// tracker and the precision-weighted fusion across broadcasts that
// produces the pipeline's D_clock estimate.
package clockoffset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ConvergenceState mirrors the servo's staged lock progression,
// generalized from a scalar PI servo's INIT/JUMP/LOCKED states to the
// Kalman tracker's own convergence ladder.
type ConvergenceState int

const (
	Unlocked ConvergenceState = iota
	Converging
	Locked
)

func (s ConvergenceState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Converging:
		return "converging"
	case Locked:
		return "locked"
	}
	return "unknown"
}

// lockWindowSize and lockSigmaThresholdMs are the "last 60 updates had
// sigma < 0.5ms" lock criteria.
const (
	lockWindowSize       = 60
	lockSigmaThresholdMs = 0.5
)

// outlierRejectionSigmas is the innovation-based spike threshold:
// reject when |innovation| > 5 * sqrt(innovation variance).
const outlierRejectionSigmas = 5.0

// Measurement is one broadcast's clock-offset observation for one
// minute.
type Measurement struct {
	OffsetMs        float64
	ConfidenceSigma float64 // 1-sigma measurement uncertainty, ms
	DeltaMinutes    float64 // time since the previous measurement
}

// Tracker is a 2-state Kalman filter over x = [offset_ms,
// drift_ms_per_min], constant-velocity model F(delta) = [[1,
// delta],[0,1]].
type Tracker struct {
	x *mat.VecDense // [offset_ms, drift_ms_per_min]
	p *mat.Dense    // 2x2 state covariance

	processNoiseOffset float64 // q11: offset process noise per minute
	processNoiseDrift  float64 // q22: drift process noise per minute

	recentSigmas []float64 // ring of recent post-fit sigma, for lock detection
	updates      int
	state        ConvergenceState

	lastInnovation float64
	lastInnovVar   float64
	lastRejected   bool
}

// NewTracker creates an unconverged tracker with the given process
// noise (how much offset/drift are expected to wander per minute
// absent observations) and initial state uncertainty.
func NewTracker(processNoiseOffset, processNoiseDrift, initialSigmaMs float64) *Tracker {
	p := mat.NewDense(2, 2, []float64{
		initialSigmaMs * initialSigmaMs, 0,
		0, initialSigmaMs * initialSigmaMs,
	})
	return &Tracker{
		x:                  mat.NewVecDense(2, []float64{0, 0}),
		p:                  p,
		processNoiseOffset: processNoiseOffset,
		processNoiseDrift:  processNoiseDrift,
		state:              Unlocked,
	}
}

// OffsetMs returns the current offset estimate.
func (t *Tracker) OffsetMs() float64 { return t.x.AtVec(0) }

// DriftMsPerMin returns the current drift-rate estimate.
func (t *Tracker) DriftMsPerMin() float64 { return t.x.AtVec(1) }

// SigmaMs returns the current offset estimate's standard deviation.
func (t *Tracker) SigmaMs() float64 { return math.Sqrt(t.p.At(0, 0)) }

// State returns the tracker's convergence state.
func (t *Tracker) State() ConvergenceState { return t.state }

// LastRejected reports whether the most recent Update call rejected
// its measurement as an outlier.
func (t *Tracker) LastRejected() bool { return t.lastRejected }

// predict advances the state by deltaMinutes under the
// constant-velocity model, growing covariance by the process noise.
func (t *Tracker) predict(deltaMinutes float64) {
	f := mat.NewDense(2, 2, []float64{1, deltaMinutes, 0, 1})

	var xPred mat.VecDense
	xPred.MulVec(f, t.x)
	t.x = &xPred

	var fp mat.Dense
	fp.Mul(f, t.p)
	var fpft mat.Dense
	fpft.Mul(&fp, f.T())

	q := mat.NewDense(2, 2, []float64{
		t.processNoiseOffset * deltaMinutes, 0,
		0, t.processNoiseDrift * deltaMinutes,
	})
	var pPred mat.Dense
	pPred.Add(&fpft, q)
	t.p = &pPred
}

// Update predicts to the measurement's time then folds in one
// broadcast's offset measurement, rejecting it as an outlier if its
// innovation exceeds 5 standard deviations of the innovation
// variance.
func (t *Tracker) Update(m Measurement) error {
	if m.ConfidenceSigma <= 0 {
		return fmt.Errorf("clockoffset: non-positive measurement sigma %f", m.ConfidenceSigma)
	}
	if m.DeltaMinutes > 0 {
		t.predict(m.DeltaMinutes)
	}

	h := mat.NewVecDense(2, []float64{1, 0})
	r := m.ConfidenceSigma * m.ConfidenceSigma

	hx := mat.Dot(h, t.x)
	innovation := m.OffsetMs - hx

	var ph mat.VecDense
	ph.MulVec(t.p, h)
	s := mat.Dot(h, &ph) + r

	t.lastInnovation = innovation
	t.lastInnovVar = s

	if math.Abs(innovation) > outlierRejectionSigmas*math.Sqrt(s) {
		t.lastRejected = true
		return nil
	}
	t.lastRejected = false

	k := mat.NewVecDense(2, nil)
	k.ScaleVec(1/s, &ph)

	var xNew mat.VecDense
	xNew.AddScaledVec(t.x, innovation, k)
	t.x = &xNew

	var kh mat.Dense
	kh.Outer(1, k, h)
	identity := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	var ikh mat.Dense
	ikh.Sub(identity, &kh)
	var pNew mat.Dense
	pNew.Mul(&ikh, t.p)
	t.p = &pNew

	t.updates++
	t.recordSigma(t.SigmaMs())
	t.updateConvergence()

	return nil
}

func (t *Tracker) recordSigma(sigma float64) {
	t.recentSigmas = append(t.recentSigmas, sigma)
	if len(t.recentSigmas) > lockWindowSize {
		t.recentSigmas = t.recentSigmas[len(t.recentSigmas)-lockWindowSize:]
	}
}

func (t *Tracker) updateConvergence() {
	if len(t.recentSigmas) < lockWindowSize {
		if t.updates > 0 {
			t.state = Converging
		}
		return
	}
	allLow := true
	for _, s := range t.recentSigmas {
		if s >= lockSigmaThresholdMs {
			allLow = false
			break
		}
	}
	if allLow {
		t.state = Locked
	} else {
		t.state = Converging
	}
}
