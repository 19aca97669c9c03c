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

package dsp

import "math"

// KaiserWindow returns an n-point Kaiser window with shape parameter
// beta, used to design the decimator's final low-pass FIR stage.
func KaiserWindow(n int, beta float64) []float64 {
	w := make([]float64, n)
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := 0; i < n; i++ {
		r := 2*float64(i)/m - 1
		w[i] = besselI0(beta*math.Sqrt(1-r*r)) / denom
	}
	return w
}

// besselI0 is the zeroth-order modified Bessel function of the first
// kind, evaluated by series expansion (converges in well under 30
// terms for the beta range used here, 4-9).
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 30; k++ {
		term *= (halfX * halfX) / float64(k*k)
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}

// SincLowPassTaps designs a windowed-sinc FIR low-pass filter with
// numTaps coefficients and cutoff expressed as a fraction of the
// Nyquist rate (0,1), windowed by window (caller-supplied, e.g.
// KaiserWindow).
func SincLowPassTaps(numTaps int, cutoff float64, window []float64) []float64 {
	taps := make([]float64, numTaps)
	m := float64(numTaps - 1)
	var sum float64
	for i := 0; i < numTaps; i++ {
		x := float64(i) - m/2
		var h float64
		if x == 0 {
			h = cutoff
		} else {
			h = cutoff * math.Sin(math.Pi*cutoff*x) / (math.Pi * cutoff * x)
		}
		if window != nil && i < len(window) {
			h *= window[i]
		}
		taps[i] = h
		sum += h
	}
	// Normalize for unity DC gain.
	if sum != 0 {
		for i := range taps {
			taps[i] /= sum
		}
	}
	return taps
}

// FIRState is a persistent direct-form FIR filter history, carried
// across calls so block boundaries never introduce transients (the
// decimator must produce identical output whether fed one long buffer
// or many short ones).
type FIRState struct {
	taps    []float64
	history []float64
}

// NewFIRState creates filter state for the given tap set.
func NewFIRState(taps []float64) *FIRState {
	return &FIRState{taps: taps, history: make([]float64, len(taps))}
}

// Process filters in, appending to the persisted history, and returns
// one output sample per input sample (same length as in).
func (f *FIRState) Process(in []float64) []float64 {
	out := make([]float64, len(in))
	for n, x := range in {
		copy(f.history, f.history[1:])
		f.history[len(f.history)-1] = x

		var acc float64
		// history[last] is the newest sample and taps[0] its
		// coefficient; taps[k] weights the sample k steps older — a
		// plain direct-form convolution.
		for k, tap := range f.taps {
			acc += tap * f.history[len(f.history)-1-k]
		}
		out[n] = acc
	}
	return out
}

// Reset clears the filter's history, used when a channel resyncs and
// the prior samples are no longer contiguous with what follows.
func (f *FIRState) Reset() {
	for i := range f.history {
		f.history[i] = 0
	}
}
