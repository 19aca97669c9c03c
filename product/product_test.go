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

package product

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/archive"
	"github.com/hfreceiver/wwvclock/wire"
)

func TestSeriesInterpolatesLinearly(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries([]OffsetPoint{
		{TSys: t0, OffsetMs: 0},
		{TSys: t0.Add(time.Minute), OffsetMs: 10},
	})
	mid, err := series.OffsetAt(t0.Add(30 * time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mid, 1e-9)
}

func TestSeriesClampsOutsideSpan(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries([]OffsetPoint{
		{TSys: t0, OffsetMs: 1},
		{TSys: t0.Add(time.Minute), OffsetMs: 2},
	})
	before, err := series.OffsetAt(t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1.0, before)

	after, err := series.OffsetAt(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2.0, after)
}

func TestSeriesAppendKeepsSortedOrder(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries(nil)
	series.Append(OffsetPoint{TSys: t0.Add(time.Minute), OffsetMs: 2})
	series.Append(OffsetPoint{TSys: t0, OffsetMs: 1})
	assert.Equal(t, 1.0, series.points[0].OffsetMs)
	assert.Equal(t, 2.0, series.points[1].OffsetMs)
}

func TestEmptySeriesOffsetAtErrors(t *testing.T) {
	series := NewSeries(nil)
	_, err := series.OffsetAt(time.Now().Add(0))
	assert.Error(t, err)
}

func TestGenerateProducesCorrectedArchive(t *testing.T) {
	dir := t.TempDir()
	srcStem := filepath.Join(dir, "raw")
	dstStem := filepath.Join(dir, "corrected")

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := archive.Meta{
		ChannelName:    "wwv-10mhz",
		CenterFreqHz:   10_000_000,
		SampleRateHz:   2000,
		StartUTCSystem: start,
	}
	w, err := archive.NewWriter(srcStem, meta)
	require.NoError(t, err)

	samples := make([]wire.Sample, 2000*5)
	for i := range samples {
		phase := 2 * math.Pi * 100 * float64(i) / 2000
		samples[i] = wire.Sample{I: float32(math.Cos(phase)), Q: float32(math.Sin(phase))}
	}
	require.NoError(t, w.WriteSamples(samples))
	require.NoError(t, w.Close())

	series := NewSeries([]OffsetPoint{
		{TSys: start, OffsetMs: 5.0},
		{TSys: start.Add(time.Hour), OffsetMs: 5.0},
	})

	require.NoError(t, Generate(srcStem, series, dstStem, 1))

	outMeta, err := archive.ReadMeta(dstStem)
	require.NoError(t, err)
	assert.Equal(t, "phase3_aligned", outMeta.Phase)
	assert.True(t, outMeta.ClockOffsetApplied)
	assert.Equal(t, "utc_nist_corrected", outMeta.TimeReference)
	assert.Equal(t, outputRateHz, outMeta.SampleRateHz)
	assert.InDelta(t, 5.0, outMeta.CalibrationOffsetMs, 1e-9)
	assert.Equal(t, start.Add(-5*time.Millisecond), outMeta.StartUTCSystem)

	outSamples, err := archive.ReadSamples(dstStem)
	require.NoError(t, err)
	assert.InDelta(t, float64(len(samples))/200, float64(len(outSamples)), 2)
}

func TestStreamingHoldsBackUntilLatencyElapses(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries([]OffsetPoint{{TSys: start, OffsetMs: 0}})
	sg := NewStreaming(series, 2000, time.Minute)

	samples := make([]wire.Sample, 2000)
	for i := range samples {
		samples[i] = wire.Sample{I: 1, Q: 0}
	}
	sg.Push(start, samples)

	_, _, ok := sg.Drain(start.Add(30 * time.Second))
	assert.False(t, ok)

	out, firstUTC, ok := sg.Drain(start.Add(2 * time.Minute))
	assert.True(t, ok)
	assert.NotEmpty(t, out)
	assert.Equal(t, start, firstUTC)
}
