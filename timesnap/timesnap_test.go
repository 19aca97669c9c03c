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

package timesnap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCMapping(t *testing.T) {
	snap := TimeSnap{
		RTPTsAnchor: 1000,
		UTCAnchor:   1000000.0,
		SampleRate:  20000,
		Source:      SourceToneStartup,
		Confidence:  0.95,
	}
	// one second later in samples
	got := snap.UTC(1000 + 20000)
	want := time.Unix(1000001, 0).UTC()
	assert.WithinDuration(t, want, got, time.Millisecond)
}

func TestUTCMappingAcrossWrap(t *testing.T) {
	snap := TimeSnap{
		RTPTsAnchor: 0xFFFFFE00,
		UTCAnchor:   1000000.0,
		SampleRate:  20000,
	}
	// rtp_ts=0 is 512 samples after the anchor, not ~2^32 earlier (invariant 10).
	got := snap.UTC(0)
	want := time.Unix(1000000, 0).UTC().Add(512 * time.Second / 20000)
	assert.WithinDuration(t, want, got, time.Microsecond)
}

func TestRTPTsForRoundTrip(t *testing.T) {
	snap := TimeSnap{
		RTPTsAnchor: 5000,
		UTCAnchor:   2000000.0,
		SampleRate:  20000,
	}
	utc := snap.UTC(5000 + 40000)
	rtpTs := snap.RTPTsFor(utc)
	require.InDelta(t, 45000, int64(rtpTs), 1)
}

func TestAdopterNeverDowngradesTier(t *testing.T) {
	a := NewAdopter()
	assert.True(t, a.Offer(TimeSnap{Source: SourceWallClock, Confidence: 0.2}))
	assert.Equal(t, SourceWallClock, a.Current().Source)

	// lower tier, even with high confidence, must not replace a higher tier
	assert.True(t, a.Offer(TimeSnap{Source: SourceToneStartup, Confidence: 0.9}))
	assert.False(t, a.Offer(TimeSnap{Source: SourceNTP, Confidence: 0.99}))
	assert.Equal(t, SourceToneStartup, a.Current().Source)
}

func TestAdopterUpgradesWithinTierOnHigherConfidence(t *testing.T) {
	a := NewAdopter()
	a.Offer(TimeSnap{Source: SourceToneRunning, Confidence: 0.8})
	assert.True(t, a.Offer(TimeSnap{Source: SourceToneRunning, Confidence: 0.95}))
	assert.Equal(t, 0.95, a.Current().Confidence)
	assert.False(t, a.Offer(TimeSnap{Source: SourceToneRunning, Confidence: 0.5}))
}
