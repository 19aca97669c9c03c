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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/errs"
	"github.com/hfreceiver/wwvclock/wire"
)

// synthStartupBuffer builds 120s of mostly-silent audio with a marker
// tone burst starting at onsetSec.
func synthStartupBuffer(sampleRateHz, onsetSec, durationSec, freqHz float64) []float64 {
	n := int(120 * sampleRateHz)
	out := make([]float64, n)
	onsetSample := int(onsetSec * sampleRateHz)
	toneSamples := int(durationSec * sampleRateHz)
	w := 2 * math.Pi * freqHz / sampleRateHz
	for i := onsetSample; i < onsetSample+toneSamples && i < n; i++ {
		out[i] = math.Sin(w * float64(i-onsetSample))
	}
	return out
}

func TestDetectStartupFindsOnsetNearTruth(t *testing.T) {
	const sr = 8000.0
	const trueOnset = 10.0
	buf := synthStartupBuffer(sr, trueOnset, 0.8, 1000)

	det, err := DetectStartup(buf, sr, wire.StationWWV)
	require.NoError(t, err)
	assert.InDelta(t, trueOnset, det.OnsetSec, 0.01)
	assert.GreaterOrEqual(t, det.Confidence, 0.90)
	assert.LessOrEqual(t, det.Confidence, 0.99)
}

func TestDetectStartupRejectsSilence(t *testing.T) {
	const sr = 8000.0
	buf := make([]float64, int(120*sr))
	_, err := DetectStartup(buf, sr, wire.StationWWV)
	require.Error(t, err)
	var cerr *errs.ComponentError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, errs.KindTonePoorSNR, cerr.Kind)
}

func TestDetectStartupTooShortBuffer(t *testing.T) {
	_, err := DetectStartup(make([]float64, 10), 8000, wire.StationWWV)
	require.Error(t, err)
}

func TestStreamingDetectorFindsOnset(t *testing.T) {
	const sr = StreamingSampleRateHz
	windowLenSec := 3.0
	n := int(windowLenSec * sr)
	onsetSec := 1.0
	toneSamples := int(0.8 * sr)
	samples := make([]float64, n)
	w := 2 * math.Pi * 1000 / sr
	onsetIdx := int(onsetSec * sr)
	for i := onsetIdx; i < onsetIdx+toneSamples && i < n; i++ {
		samples[i] = math.Sin(w * float64(i-onsetIdx))
	}

	d := NewDetector(wire.StationWWV, 3.0, 3.0)
	det, err := d.Run(samples, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, onsetSec, det.OnsetSec, 0.01)
}

func TestStreamingDetectorReportsAmbiguous(t *testing.T) {
	const sr = StreamingSampleRateHz
	n := int(3 * sr)
	toneSamples := int(0.8 * sr)
	samples := make([]float64, n)
	w := 2 * math.Pi * 1000 / sr
	for i := 0; i < toneSamples; i++ {
		samples[i] = math.Sin(w * float64(i))
	}

	d := NewDetector(wire.StationWWV, 3.0, 3.0)
	// otherStationMag equal to what WWV will find => within ambiguity band
	_, err := d.Run(samples, 0, 1000)
	require.Error(t, err)
	var cerr *errs.ComponentError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, errs.KindTonesAmbiguous, cerr.Kind)
}

func TestStreamingDetectorPoorSNR(t *testing.T) {
	const sr = StreamingSampleRateHz
	n := int(3 * sr)
	samples := make([]float64, n)
	d := NewDetector(wire.StationWWV, 3.0, 3.0)
	_, err := d.Run(samples, 0, 0)
	require.Error(t, err)
	var cerr *errs.ComponentError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, errs.KindTonePoorSNR, cerr.Kind)
}

func TestWrapPhaseStaysInRange(t *testing.T) {
	assert.InDelta(t, 0, wrapPhase(2*math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi+0.1, wrapPhase(math.Pi+0.1), 1e-9)
}
