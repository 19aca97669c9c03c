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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedWrapU16(t *testing.T) {
	// seq 0 arriving right after seq 0xFFFE is +2, not a huge negative jump.
	assert.EqualValues(t, 2, SignedWrapU16(0, 0xFFFE))
	assert.EqualValues(t, -2, SignedWrapU16(0xFFFE, 0))
	assert.EqualValues(t, 1, SignedWrapU16(5, 4))
	assert.EqualValues(t, -1, SignedWrapU16(4, 5))
}

func TestSignedWrapU32(t *testing.T) {
	// rtp_ts = 0 arriving after rtp_ts = 0xFFFFFE00 should be +512, not ~2^32 earlier.
	assert.EqualValues(t, 512, SignedWrapU32(0, 0xFFFFFE00))
	assert.EqualValues(t, -512, SignedWrapU32(0xFFFFFE00, 0))
}

func TestAddSeqWraps(t *testing.T) {
	assert.EqualValues(t, 1, AddSeq(0xFFFF, 2))
	assert.EqualValues(t, 0xFFFE, AddSeq(0xFFFF, -1))
}

func TestAddTsWraps(t *testing.T) {
	assert.EqualValues(t, 511, AddTs(0xFFFFFE00, 1023))
}

func TestEncodeDecodeIQRoundTrip(t *testing.T) {
	samples := []Sample{
		{I: 1.5, Q: -2.25},
		{I: 0, Q: 0},
		{I: -100.125, Q: 3.0},
	}
	raw := EncodeIQ(samples)
	require.Len(t, raw, len(samples)*bytesPerSample)

	decoded, err := DecodeIQ(raw)
	require.NoError(t, err)
	assert.Equal(t, samples, decoded)
}

func TestDecodeIQRejectsRaggedPayload(t *testing.T) {
	_, err := DecodeIQ(make([]byte, 5))
	assert.Error(t, err)
}
