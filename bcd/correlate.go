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

package bcd

import "math"

// SubcarrierHz is the shared 100 Hz AM BCD time-code subcarrier both
// stations transmit.
const SubcarrierHz = 100.0

// Peak is one correlation peak: arrival time (seconds into the
// correlation window) and amplitude.
type Peak struct {
	TimeSec   float64
	Amplitude float64
}

// Correlate cross-correlates a demodulated subcarrier signal against
// a per-minute reference template, returning the full correlation
// envelope indexed by lag in samples.
func Correlate(signal, template []float64, sampleRateHz float64) []float64 {
	n := len(signal) - len(template) + 1
	if n <= 0 {
		return nil
	}
	env := make([]float64, n)
	for lag := 0; lag < n; lag++ {
		var acc float64
		for k, t := range template {
			acc += signal[lag+k] * t
		}
		env[lag] = acc
	}
	return env
}

// minPeakSeparationSec is the contract's "≥ 1 ms apart" dual-peak
// separation threshold.
const minPeakSeparationSec = 0.001

// poorSNRThreshold is the minimum peak-to-median ratio below which a
// candidate peak is noise, not a real arrival.
const poorSNRThreshold = 3.0

// DetectPeaks finds up to two significant peaks in a correlation
// envelope, implementing the dual-peak detection contract: if two
// peaks at least minPeakSeparationSec apart both clear the noise
// floor, both stations are present in this minute.
func DetectPeaks(envelope []float64, sampleRateHz float64) []Peak {
	if len(envelope) == 0 {
		return nil
	}
	noiseFloor := median(envelope)
	if noiseFloor <= 0 {
		noiseFloor = 1e-12
	}

	minSeparation := int(minPeakSeparationSec * sampleRateHz)
	if minSeparation < 1 {
		minSeparation = 1
	}

	type idxVal struct {
		idx int
		val float64
	}
	var candidates []idxVal
	for i, v := range envelope {
		if v < noiseFloor*poorSNRThreshold {
			continue
		}
		isLocalMax := true
		for d := -minSeparation; d <= minSeparation; d++ {
			j := i + d
			if j < 0 || j >= len(envelope) || j == i {
				continue
			}
			if envelope[j] > v {
				isLocalMax = false
				break
			}
		}
		if isLocalMax {
			candidates = append(candidates, idxVal{i, v})
		}
	}

	// Sort candidates by amplitude descending, keep at most 2,
	// enforcing the minimum separation between them.
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].val > candidates[i].val {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	var peaks []Peak
	for _, c := range candidates {
		tooClose := false
		for _, p := range peaks {
			if math.Abs(float64(c.idx)/sampleRateHz-p.TimeSec) < minPeakSeparationSec {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		peaks = append(peaks, Peak{TimeSec: float64(c.idx) / sampleRateHz, Amplitude: c.val})
		if len(peaks) == 2 {
			break
		}
	}
	return peaks
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
