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

import "github.com/hfreceiver/wwvclock/wire"

// numFeatures is the fixed dimensionality of the voting feature
// vector the contract enumerates.
const numFeatures = 5

// MinuteObservation is everything the feature extractor needs from
// one minute's demodulated audio to build a feature vector.
type MinuteObservation struct {
	MinuteOfHour int

	// Tone power ratio inputs, integrated over the 800ms marker.
	Power1000dB float64
	Power1200dB float64

	// BCD correlation peaks found by DetectPeaks for each station's
	// expected arrival time, zero amplitude if absent.
	WWVPeakAmplitude  float64
	WWVHPeakAmplitude float64

	// Energy observed at the 500/600 Hz exclusive-minute markers,
	// attributed to whichever station (if any) transmits them.
	Exclusive500600Energy float64

	// Energy observed at 440 Hz, the station-ID tone.
	StationIDEnergy float64

	// Doppler/harmonic signature difference between the two
	// stations' streaming tone detections this minute (Hz).
	DifferentialDopplerHz float64
}

// FeatureExtractor turns MinuteObservations into the five voting
// features, each normalised against its own running statistics to
// ~N(0,1) as the contract requires.
type FeatureExtractor struct {
	windows [numFeatures]*featureWindow
}

// NewFeatureExtractor creates an extractor with a history window of
// historySize minutes per feature stream.
func NewFeatureExtractor(historySize int) *FeatureExtractor {
	fe := &FeatureExtractor{}
	for i := range fe.windows {
		fe.windows[i] = newFeatureWindow(historySize)
	}
	return fe
}

// Extract computes the five-feature vector for one minute's
// observation. Features 3 and 4 are signed toward WWV positive /
// WWVH negative, consistent with the logistic regression's WWV-vs-
// WWVH framing.
func (fe *FeatureExtractor) Extract(obs MinuteObservation) [numFeatures]float64 {
	var raw [numFeatures]float64

	// 1. Tone power ratio P(1000) - P(1200), dB.
	raw[0] = obs.Power1000dB - obs.Power1200dB

	// 2. BCD correlation amplitude ratio (WWV over WWVH, guarding
	// against a zero denominator).
	denom := obs.WWVHPeakAmplitude
	if denom == 0 {
		denom = 1e-9
	}
	raw[1] = obs.WWVPeakAmplitude / denom

	// 3. 500/600 Hz exclusive-minute presence, signed toward whichever
	// station this minute belongs to.
	switch silentMinuteStation(obs.MinuteOfHour) {
	case wire.StationWWV:
		raw[2] = obs.Exclusive500600Energy
	case wire.StationWWVH:
		raw[2] = -obs.Exclusive500600Energy
	default:
		raw[2] = 0
	}

	// 4. 440 Hz station-ID presence, signed the same way.
	switch stationIDMinuteStation(obs.MinuteOfHour) {
	case wire.StationWWVH:
		raw[3] = -obs.StationIDEnergy
	case wire.StationWWV:
		raw[3] = obs.StationIDEnergy
	default:
		raw[3] = 0
	}

	// 5. Differential Doppler/harmonic cross-check.
	raw[4] = obs.DifferentialDopplerHz

	var normalized [numFeatures]float64
	for i, w := range fe.windows {
		normalized[i] = w.normalize(raw[i])
	}

	weight := minuteWeight(obs.MinuteOfHour)
	if weight != 1.0 {
		normalized[2] *= weight
		normalized[3] *= weight
	}

	return normalized
}
