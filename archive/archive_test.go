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

package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/wire"
)

func testMeta() Meta {
	return Meta{
		ChannelName:    "wwv_10mhz",
		CenterFreqHz:   10_000_000,
		SampleRateHz:   4000,
		StartUTCSystem: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StartRTPTs:     0,
		SSRC:           1234,
	}
}

func genSamples(n int) []wire.Sample {
	out := make([]wire.Sample, n)
	for i := range out {
		out[i] = wire.Sample{I: float32(i) * 0.001, Q: float32(-i) * 0.002}
	}
	return out
}

// Invariant 7: writing then reading a raw archive yields bit-identical
// samples.
func TestWriteReadRoundTripBitIdentical(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "seg")

	w, err := NewWriter(stem, testMeta())
	require.NoError(t, err)

	want := genSamples(blockSamples*2 + 137) // spans multiple blocks plus a partial trailing block
	require.NoError(t, w.WriteSamples(want))
	require.NoError(t, w.Close())

	got, err := ReadSamples(stem)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	assert.Equal(t, want, got)
}

func TestWriteReadEmptySegment(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "seg")
	w, err := NewWriter(stem, testMeta())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := ReadSamples(stem)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMetaFinalizedAtClose(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "seg")
	w, err := NewWriter(stem, testMeta())
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(genSamples(500)))
	require.NoError(t, w.Close())

	m, err := ReadMeta(stem)
	require.NoError(t, err)
	assert.EqualValues(t, 500, m.SampleCount)
	assert.NotZero(t, m.Checksum)
	assert.Equal(t, "wwv_10mhz", m.ChannelName)
}

func TestGapRecordsRoundTrip(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "seg")
	w, err := NewWriter(stem, testMeta())
	require.NoError(t, err)
	require.NoError(t, w.WriteGap(GapRecord{StartIndex: 100, NZeros: 320, CauseCode: "gap_filled"}))
	require.NoError(t, w.WriteGap(GapRecord{StartIndex: 5000, NZeros: 8000, CauseCode: "source_unavailable"}))
	require.NoError(t, w.Close())

	gaps, err := ReadGaps(stem)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, int64(100), gaps[0].StartIndex)
	assert.Equal(t, "source_unavailable", gaps[1].CauseCode)
}

func TestReadSamplesDetectsChecksumCorruption(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "seg")
	w, err := NewWriter(stem, testMeta())
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(genSamples(10)))
	require.NoError(t, w.Close())

	m, err := ReadMeta(stem)
	require.NoError(t, err)
	m.Checksum ^= 0xdeadbeef
	require.NoError(t, writeMetaAtomic(stem, m))

	_, err = ReadSamples(stem)
	assert.Error(t, err)
}
