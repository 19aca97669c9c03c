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

// Package dsp holds the signal-processing primitives shared by the
// tone detector, the BCD time-code correlator, and the decimator:
// quadrature matched filtering, a real/imaginary FFT wrapper, and
// small window/filter-design helpers.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MatchedFilterResponse runs a quadrature matched filter for a single
// tone frequency against a real-valued input, returning the envelope
// (magnitude of the complex correlation) sample by sample. This is
// the building block behind both startup and streaming tone
// detection and the BCD subcarrier correlator: the template is a
// complex exponential at freqHz, correlated against the input via a
// sliding dot product, which for a fixed template length is what
// Goertzel/single-bin DFT computes block by block.
func MatchedFilterResponse(samples []float64, sampleRateHz float64, freqHz float64, templateLen int) []float64 {
	if templateLen <= 0 || templateLen > len(samples) {
		return nil
	}
	cosTemplate := make([]float64, templateLen)
	sinTemplate := make([]float64, templateLen)
	w := 2 * math.Pi * freqHz / sampleRateHz
	for i := 0; i < templateLen; i++ {
		cosTemplate[i] = math.Cos(w * float64(i))
		sinTemplate[i] = math.Sin(w * float64(i))
	}

	n := len(samples) - templateLen + 1
	envelope := make([]float64, n)
	for start := 0; start < n; start++ {
		var i, q float64
		for k := 0; k < templateLen; k++ {
			s := samples[start+k]
			i += s * cosTemplate[k]
			q += s * sinTemplate[k]
		}
		envelope[start] = cmplx.Abs(complex(i, q)) / float64(templateLen)
	}
	return envelope
}

// GoertzelPower evaluates the single-frequency power of samples at
// freqHz using the Goertzel recurrence, cheaper than a full FFT when
// only one or two bins (the station discriminator's carrier and
// second harmonic) are needed.
func GoertzelPower(samples []float64, sampleRateHz, freqHz float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	k := int(0.5 + float64(n)*freqHz/sampleRateHz)
	w := 2 * math.Pi * float64(k) / float64(n)
	cw := 2 * math.Cos(w)

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + cw*s1 - s2
		s2 = s1
		s1 = s0
	}
	real := s1 - s2*math.Cos(w)
	imag := s2 * math.Sin(w)
	return (real*real + imag*imag) / float64(n*n)
}

// FFTMagnitude returns the one-sided magnitude spectrum of a
// real-valued signal via gonum's real FFT, used by the startup tone
// detector's coarse frequency search and by diagnostics.
func FFTMagnitude(samples []float64) []float64 {
	fft := fourier.NewFFT(len(samples))
	coeffs := fft.Coefficients(nil, samples)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	return mags
}

// HannWindow returns an n-point Hann window, applied before FFT-based
// frequency search to reduce spectral leakage.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// ApplyWindow multiplies samples by window, length-matched to the
// shorter of the two, returning a new slice; samples is not modified.
func ApplyWindow(samples, window []float64) []float64 {
	n := len(samples)
	if len(window) < n {
		n = len(window)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = samples[i] * window[i]
	}
	return out
}

// RMS returns the root-mean-square of samples, used throughout the
// tone detector and BCD correlator for SNR estimation.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
