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

package decimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freqHz, sampleRateHz float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRateHz)
	}
	return out
}

func TestDecimatorOverallRatio(t *testing.T) {
	d := New(20000, 10)
	in := sineWave(1, 20000, 20000*3)
	out := d.Process(in)
	// 3 seconds of input at 20kHz -> 30 samples at 10Hz, within
	// rounding from filter group delay.
	assert.InDelta(t, 30, len(out), 2)
}

func TestDecimatorNoMinuteBoundaryTransient(t *testing.T) {
	in := sineWave(1, 20000, 20000*4)

	whole := New(20000, 10).Process(in)

	split := New(20000, 10)
	half := len(in) / 2
	var chunked []float64
	chunked = append(chunked, split.Process(in[:half])...)
	chunked = append(chunked, split.Process(in[half:])...)

	require.Equal(t, len(whole), len(chunked))
	for i := range whole {
		assert.InDelta(t, whole[i], chunked[i], 1e-6)
	}
}

func TestDecimatorResetClearsState(t *testing.T) {
	d := New(20000, 10)
	in := sineWave(1, 20000, 20000)
	_ = d.Process(in)
	d.Reset()

	fresh := New(20000, 10)
	freshOut := fresh.Process(in)
	d2Out := d.Process(in)
	require.Equal(t, len(freshOut), len(d2Out))
	for i := range freshOut {
		assert.InDelta(t, freshOut[i], d2Out[i], 1e-9)
	}
}
