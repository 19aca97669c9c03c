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

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bytesPerSample is 2 float32s (I and Q) per sample.
const bytesPerSample = 8

// DecodeIQ unpacks a payload of interleaved big-endian float32 I/Q
// pairs into Samples.
func DecodeIQ(payload []byte) ([]Sample, error) {
	if len(payload)%bytesPerSample != 0 {
		return nil, fmt.Errorf("wire: payload length %d not a multiple of %d", len(payload), bytesPerSample)
	}
	n := len(payload) / bytesPerSample
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		iBits := binary.BigEndian.Uint32(payload[off:])
		qBits := binary.BigEndian.Uint32(payload[off+4:])
		samples[i] = Sample{
			I: math.Float32frombits(iBits),
			Q: math.Float32frombits(qBits),
		}
	}
	return samples, nil
}

// EncodeIQ packs Samples into a payload of interleaved big-endian
// float32 I/Q pairs, the inverse of DecodeIQ.
func EncodeIQ(samples []Sample) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		off := i * bytesPerSample
		binary.BigEndian.PutUint32(out[off:], math.Float32bits(s.I))
		binary.BigEndian.PutUint32(out[off+4:], math.Float32bits(s.Q))
	}
	return out
}
