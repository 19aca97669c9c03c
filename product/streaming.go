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
	"time"

	"github.com/hfreceiver/wwvclock/decimator"
	"github.com/hfreceiver/wwvclock/wire"
)

// DefaultLatency is how far behind the ingest head the streaming
// generator holds back, giving Phase 2 Kalman measurements time to
// settle before a sample is corrected and emitted.
const DefaultLatency = 2 * time.Minute

// bufferedSample pairs one raw sample with the system time it was
// captured at, so the streaming generator can hold it until its age
// exceeds the configured latency.
type bufferedSample struct {
	tSys time.Time
	s    wire.Sample
}

// Streaming produces the corrected 10 Hz product incrementally as raw
// samples arrive, holding each sample back until it is older than
// Latency so the D_clock series has had a chance to include a
// measurement near its timestamp.
type Streaming struct {
	series       *Series
	sampleRateHz int
	latency      time.Duration

	decI, decQ *decimator.Decimator
	buffer     []bufferedSample
}

// NewStreaming creates a streaming corrected-product generator for a
// channel ingesting at sampleRateHz, reading D_clock from series.
func NewStreaming(series *Series, sampleRateHz int, latency time.Duration) *Streaming {
	if latency <= 0 {
		latency = DefaultLatency
	}
	return &Streaming{
		series:       series,
		sampleRateHz: sampleRateHz,
		latency:      latency,
		decI:         decimator.New(sampleRateHz, outputRateHz),
		decQ:         decimator.New(sampleRateHz, outputRateHz),
	}
}

// Push appends newly arrived raw samples (captured starting at
// firstTSys, contiguous at the configured sample rate) to the
// generator's hold-back buffer.
func (s *Streaming) Push(firstTSys time.Time, samples []wire.Sample) {
	interval := time.Duration(float64(time.Second) / float64(s.sampleRateHz))
	for i, sample := range samples {
		s.buffer = append(s.buffer, bufferedSample{
			tSys: firstTSys.Add(time.Duration(i) * interval),
			s:    sample,
		})
	}
}

// Drain releases every buffered sample older than now minus the
// configured latency, decimating and UTC-correcting them, and
// returns the corrected output along with the UTC time of its first
// output sample. It returns ok=false when nothing was old enough to
// release yet.
func (s *Streaming) Drain(now time.Time) (out []wire.Sample, firstOutUTC time.Time, ok bool) {
	cutoff := now.Add(-s.latency)

	releaseUpTo := 0
	for releaseUpTo < len(s.buffer) && s.buffer[releaseUpTo].tSys.Before(cutoff) {
		releaseUpTo++
	}
	if releaseUpTo == 0 {
		return nil, time.Time{}, false
	}

	ready := s.buffer[:releaseUpTo]
	s.buffer = append([]bufferedSample(nil), s.buffer[releaseUpTo:]...)

	firstTSys := ready[0].tSys
	offsetMs, err := s.series.OffsetAt(firstTSys)
	if err != nil {
		offsetMs = 0
	}
	firstOutUTC = firstTSys.Add(-time.Duration(offsetMs * float64(time.Millisecond)))

	iIn := make([]float64, len(ready))
	qIn := make([]float64, len(ready))
	for i, b := range ready {
		iIn[i] = float64(b.s.I)
		qIn[i] = float64(b.s.Q)
	}
	iOut := s.decI.Process(iIn)
	qOut := s.decQ.Process(qIn)

	out = make([]wire.Sample, len(iOut))
	for i := range out {
		q := 0.0
		if i < len(qOut) {
			q = qOut[i]
		}
		out[i] = wire.Sample{I: float32(iOut[i]), Q: float32(q)}
	}
	return out, firstOutUTC, true
}
