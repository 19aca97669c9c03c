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

package tone

import (
	"fmt"
	"math"

	"github.com/hfreceiver/wwvclock/errs"
	"github.com/hfreceiver/wwvclock/wire"
)

// StreamingSampleRateHz is the decimated rate the streaming detector
// always runs at, per the minute-boundary contract.
const StreamingSampleRateHz = 3000.0

// notchFreqsHz are intermodulation products of the two marker tones
// that contaminate the subcarrier band and must be suppressed before
// matched filtering.
var notchFreqsHz = []float64{400, 700}

// Detector runs the per-minute streaming marker-tone search for every
// station/frequency enabled on a channel.
type Detector struct {
	station         wire.Station
	poorSNRdB       float64
	ambiguousDeltaB float64

	lastPeakPhase   float64
	havePeakPhase   bool
	lastPeakTimeSec float64
}

// NewDetector creates a streaming detector for one station, with a
// poor-SNR threshold in dB and an ambiguity band (stations within
// ambiguousDeltaB of each other are reported TonesAmbiguous).
func NewDetector(station wire.Station, poorSNRdB, ambiguousDeltaB float64) *Detector {
	return &Detector{station: station, poorSNRdB: poorSNRdB, ambiguousDeltaB: ambiguousDeltaB}
}

// quadratureCorrelate computes the sine/cosine correlation of samples
// against freqHz and returns the magnitude envelope plus the phase at
// each sample, implementing the phase-invariant matched filter.
func quadratureCorrelate(samples []float64, sampleRateHz, freqHz float64, templateLen int) (mag, phase []float64) {
	n := len(samples) - templateLen + 1
	if n <= 0 {
		return nil, nil
	}
	w := 2 * math.Pi * freqHz / sampleRateHz
	mag = make([]float64, n)
	phase = make([]float64, n)
	for start := 0; start < n; start++ {
		var cs, cc float64
		for k := 0; k < templateLen; k++ {
			s := samples[start+k]
			cs += s * math.Sin(w*float64(k))
			cc += s * math.Cos(w*float64(k))
		}
		mag[start] = math.Hypot(cs, cc)
		phase[start] = math.Atan2(cs, cc)
	}
	return mag, phase
}

// notchFilter applies a simple second-order IIR notch at freqHz,
// suppressing the named intermodulation products before the matched
// filter runs.
func notchFilter(samples []float64, sampleRateHz, freqHz float64) []float64 {
	const r = 0.98 // pole radius; closer to 1 = narrower notch
	w := 2 * math.Pi * freqHz / sampleRateHz
	a1 := -2 * r * math.Cos(w)
	a2 := r * r
	b1 := -2 * math.Cos(w)

	out := make([]float64, len(samples))
	var x1, x2, y1, y2 float64
	for i, x := range samples {
		y := x + b1*x1 + x2 - a1*y1 - a2*y2
		out[i] = y
		x2, x1 = x1, x
		y2, y1 = y1, y
	}
	return out
}

// quadraticPeakInterp refines an integer peak index using a 3-point
// quadratic fit, returning the sub-sample offset from idx.
func quadraticPeakInterp(mag []float64, idx int) float64 {
	if idx <= 0 || idx >= len(mag)-1 {
		return 0
	}
	y0, y1, y2 := mag[idx-1], mag[idx], mag[idx+1]
	denom := y0 - 2*y1 + y2
	if denom == 0 {
		return 0
	}
	return 0.5 * (y0 - y2) / denom
}

// Run searches one minute-boundary window (already decimated to
// StreamingSampleRateHz) for this detector's station marker tone,
// returning onset (seconds from window start), SNR, and Doppler
// estimated from the phase slope between this peak and the previous
// call's peak, one minute apart.
func (d *Detector) Run(windowSamples []float64, windowStartSec float64, otherStationMag float64) (Detection, error) {
	freq := markerFreqHz(d.station)
	durationSec := markerDurationSec(d.station)
	templateLen := int(durationSec * StreamingSampleRateHz)
	if templateLen <= 0 || templateLen > len(windowSamples) {
		return Detection{}, fmt.Errorf("tone: streaming window too short (%d samples, need %d)", len(windowSamples), templateLen)
	}

	filtered := windowSamples
	for _, nf := range notchFreqsHz {
		filtered = notchFilter(filtered, StreamingSampleRateHz, nf)
	}

	mag, phase := quadratureCorrelate(filtered, StreamingSampleRateHz, freq, templateLen)
	if len(mag) == 0 {
		return Detection{}, fmt.Errorf("tone: empty correlation for station %s", d.station)
	}

	peakIdx := 0
	for i, v := range mag {
		if v > mag[peakIdx] {
			peakIdx = i
		}
	}
	_, snrDB := envelopeSNRdB(mag)

	if snrDB < d.poorSNRdB {
		return Detection{}, errs.New(errs.KindTonePoorSNR, string(d.station), fmt.Errorf("tone: streaming SNR %.1f dB below threshold", snrDB))
	}

	peakMagDB := 20 * math.Log10(mag[peakIdx]+1e-12)
	otherDB := 20 * math.Log10(otherStationMag+1e-12)
	ambiguous := otherStationMag > 0 && math.Abs(peakMagDB-otherDB) < d.ambiguousDeltaB

	frac := quadraticPeakInterp(mag, peakIdx)
	onsetSamples := float64(peakIdx) + frac
	onsetSec := onsetSamples / StreamingSampleRateHz
	absOnsetSec := windowStartSec + onsetSec

	peakPhase := phase[peakIdx]
	var dopplerHzPS float64
	if d.havePeakPhase {
		dt := absOnsetSec - d.lastPeakTimeSec
		if dt > 0 {
			dPhase := wrapPhase(peakPhase - d.lastPeakPhase)
			dopplerHzPS = dPhase / (2 * math.Pi * dt)
		}
	}
	d.lastPeakPhase = peakPhase
	d.lastPeakTimeSec = absOnsetSec
	d.havePeakPhase = true

	det := Detection{
		Station:     d.station,
		OnsetSec:    onsetSec,
		SNRdB:       snrDB,
		Confidence:  snrToConfidence(snrDB),
		DopplerHzPS: dopplerHzPS,
	}

	if ambiguous {
		return det, errs.New(errs.KindTonesAmbiguous, string(d.station), fmt.Errorf("tone: WWV/WWVH within %.1f dB", d.ambiguousDeltaB))
	}
	return det, nil
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}
