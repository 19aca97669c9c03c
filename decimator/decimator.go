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

// Package decimator implements the three-stage stateful decimator
// (CIC -> compensation FIR -> Kaiser FIR) that reduces channel audio
// from its ingest rate down to the rate consumed by the clock-offset
// and ionospheric-delay pipeline.
package decimator

import "github.com/hfreceiver/wwvclock/dsp"

// cicRate and finalRate are the two decimation stages' factors; their
// product times the final FIR stage's implicit rate-1 passthrough
// is the total ratio (e.g. 20000 -> 10 Hz is CIC R=50, final FIR
// R=40).
const (
	cicRate   = 50
	finalRate = 40
)

// compTaps is a short compensation filter correcting the CIC's
// passband droop; designed once, not persisted as configuration.
var compTaps = []float64{-0.0128, 0.0, 0.1128, 0.8, 0.1128, 0.0, -0.0128}

// kaiserTaps is the final Kaiser-windowed low-pass, sized so stopband
// attenuation comfortably rejects images folded down by the R=40
// final decimation.
const kaiserNumTaps = 401
const kaiserBeta = 7.0
const kaiserCutoff = 1.0 / float64(finalRate) // fraction of the post-CIC Nyquist rate

// Decimator runs the three stages in sequence, keeping every stage's
// internal state alive across Process calls so a call boundary is
// indistinguishable from the middle of one long run.
type Decimator struct {
	inRate, outRate int

	cic      *dsp.CICStage
	compFIR  *dsp.FIRState
	finalFIR *dsp.FIRState
	kaiserR  int
	counter  int // phase within the final FIR's decimation grid
}

// New creates a decimator from inRate to outRate. The overall ratio is
// the integer quotient inRate/outRate (any remainder is dropped, so the
// real output rate is inRate divided by that quotient). 20000 -> 10
// runs the CIC at R=50 then the Kaiser stage at R=40; other ratios
// that are a multiple of 40 keep the final R=40 and give the CIC the
// rest, and any other ratio runs the CIC at R=1 and the Kaiser stage
// at the full ratio.
func New(inRate, outRate int) *Decimator {
	taps := dsp.SincLowPassTaps(kaiserNumTaps, kaiserCutoff, dsp.KaiserWindow(kaiserNumTaps, kaiserBeta))
	ratio := inRate / outRate
	kaiserR := finalRate
	cicR := cicRate
	if ratio != cicRate*finalRate {
		// Preserve the two-stage structure but rebalance the split so
		// the product still matches the requested ratio exactly.
		cicR = ratio / finalRate
		if cicR == 0 || ratio%finalRate != 0 {
			cicR = 1
			kaiserR = ratio
		}
	}
	return &Decimator{
		inRate:   inRate,
		outRate:  outRate,
		cic:      dsp.NewCICStage(cicR),
		compFIR:  dsp.NewFIRState(compTaps),
		finalFIR: dsp.NewFIRState(taps),
		kaiserR:  kaiserR,
	}
}

// Process decimates samples through CIC, compensation FIR, and
// Kaiser FIR + downsample, returning the output at outRate. Calling
// Process repeatedly with contiguous sample ranges produces
// bit-identical output to one call with the concatenation, because
// every stage's filter/integrator state persists between calls.
func (d *Decimator) Process(samples []float64) []float64 {
	stage1 := d.cic.Process(samples)
	stage2 := d.compFIR.Process(stage1)
	stage3 := d.finalFIR.Process(stage2)

	out := make([]float64, 0, len(stage3)/d.kaiserR+1)
	for _, x := range stage3 {
		if d.counter == 0 {
			out = append(out, x)
		}
		d.counter++
		if d.counter == d.kaiserR {
			d.counter = 0
		}
	}
	return out
}

// Reset clears every stage's persisted state. Only called on a
// genuine discontinuity (a resequencer resync), never on an ordinary
// minute or hour boundary.
func (d *Decimator) Reset() {
	d.cic.Reset()
	d.compFIR.Reset()
	d.finalFIR.Reset()
	d.counter = 0
}
