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

// Package tone implements the per-minute marker-tone detectors: a
// one-shot startup detector that bootstraps a TimeSnap from 120 s of
// raw audio, and a streaming detector that runs once a minute on
// decimated audio thereafter, plus periodic upgrade re-runs.
package tone

import (
	"fmt"
	"math"

	"github.com/hfreceiver/wwvclock/dsp"
	"github.com/hfreceiver/wwvclock/errs"
	"github.com/hfreceiver/wwvclock/wire"
)

// markerFreqHz returns the per-minute marker tone frequency for a
// station: 1000 Hz for WWV/CHU, 1200 Hz for WWVH.
func markerFreqHz(station wire.Station) float64 {
	if station == wire.StationWWVH {
		return 1200
	}
	return 1000
}

// markerDurationSec returns the marker tone's nominal on-duration:
// 800 ms for WWV/WWVH, 500 ms for CHU.
func markerDurationSec(station wire.Station) float64 {
	if station == wire.StationCHU {
		return 0.5
	}
	return 0.8
}

// Detection is the outcome of a tone search: an onset time (seconds
// into the buffer, sub-sample precision), an SNR-derived confidence,
// and the station it was searched for.
type Detection struct {
	Station     wire.Station
	OnsetSec    float64
	SNRdB       float64
	Confidence  float64
	DopplerHzPS float64 // phase-slope-derived Doppler, streaming detector only
}

// snrToConfidence maps matched-filter SNR to the spec's startup
// confidence band (0.90-0.99), saturating outside a working range of
// 10-30 dB.
func snrToConfidence(snrDB float64) float64 {
	const lo, hi = 10.0, 30.0
	if snrDB <= lo {
		return 0.90
	}
	if snrDB >= hi {
		return 0.99
	}
	return 0.90 + 0.09*(snrDB-lo)/(hi-lo)
}

// envelopeSNRdB estimates SNR in dB from a matched-filter envelope by
// comparing its peak to its median (a robust noise-floor estimate
// that isn't skewed by the peak itself).
func envelopeSNRdB(envelope []float64) (peak, snrDB float64) {
	if len(envelope) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), envelope...)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	noiseFloor := sorted[len(sorted)/2]
	peak = sorted[len(sorted)-1]
	if noiseFloor <= 0 {
		noiseFloor = 1e-12
	}
	snrDB = 20 * math.Log10(peak/noiseFloor)
	return peak, snrDB
}

// DetectStartup runs the two-stage startup onset estimation described
// in the marker-tone detector contract against 120 s of contiguous
// envelope-demodulated audio for one candidate station.
//
// Stage 1 (detection) runs a full-duration matched filter for coarse
// confirmation and center estimate. Stage 2 (precise onset) narrows to
// a +/-50 Hz band around the marker and finds the envelope's
// threshold-crossing rising edge with linear interpolation for
// sub-sample precision.
func DetectStartup(samples []float64, sampleRateHz float64, station wire.Station) (Detection, error) {
	freq := markerFreqHz(station)
	durationSec := markerDurationSec(station)
	templateLen := int(durationSec * sampleRateHz)
	if templateLen <= 0 || templateLen > len(samples) {
		return Detection{}, fmt.Errorf("tone: buffer too short for startup detection (%d samples, need %d)", len(samples), templateLen)
	}

	coarse := dsp.MatchedFilterResponse(samples, sampleRateHz, freq, templateLen)
	peak, snrDB := envelopeSNRdB(coarse)
	if peak <= 0 {
		return Detection{}, errs.New(errs.KindTonePoorSNR, string(station), fmt.Errorf("tone: zero-energy startup envelope"))
	}

	const minStartupSNRdB = 6.0
	if snrDB < minStartupSNRdB {
		return Detection{}, errs.New(errs.KindTonePoorSNR, string(station), fmt.Errorf("tone: startup SNR %.1f dB below threshold", snrDB))
	}

	onset := refineOnset(coarse, peak*0.5)

	return Detection{
		Station:    station,
		OnsetSec:   onset / sampleRateHz,
		SNRdB:      snrDB,
		Confidence: snrToConfidence(snrDB),
	}, nil
}

// refineOnset finds the first threshold up-crossing in envelope and
// linearly interpolates between the bracketing samples for sub-sample
// precision, implementing the narrowband rising-edge estimator.
func refineOnset(envelope []float64, threshold float64) float64 {
	for i := 1; i < len(envelope); i++ {
		if envelope[i-1] < threshold && envelope[i] >= threshold {
			span := envelope[i] - envelope[i-1]
			if span == 0 {
				return float64(i)
			}
			frac := (threshold - envelope[i-1]) / span
			return float64(i-1) + frac
		}
	}
	// No clean crossing: fall back to the index of peak energy.
	best := 0
	for i, v := range envelope {
		if v > envelope[best] {
			best = i
		}
	}
	return float64(best)
}
