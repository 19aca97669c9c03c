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

	"github.com/hfreceiver/wwvclock/wire"
)

func TestNTPSnapConfidenceBand(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tight := NTPSnap(0, 20000, wire.StationWWV, 0, 0.001, now)
	assert.InDelta(t, ntpConfidenceCeil, tight.Confidence, 1e-9)
	assert.Equal(t, SourceNTP, tight.Source)

	loose := NTPSnap(0, 20000, wire.StationWWV, 0, 1.0, now)
	assert.InDelta(t, ntpConfidenceFloor, loose.Confidence, 1e-9)

	mid := NTPSnap(0, 20000, wire.StationWWV, 0, 0.255, now)
	assert.Greater(t, mid.Confidence, ntpConfidenceFloor)
	assert.Less(t, mid.Confidence, ntpConfidenceCeil)
}

func TestNTPSnapAppliesOffset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := NTPSnap(0, 20000, wire.StationWWV, 2.5, 0.01, now)
	assert.InDelta(t, float64(now.Unix())+2.5, snap.UTCAnchor, 1e-6)
}

func TestWallClockSnapLowestConfidence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := WallClockSnap(0, 20000, wire.StationWWV, now)
	assert.Equal(t, SourceWallClock, snap.Source)
	assert.Equal(t, wallClockConfidence, snap.Confidence)
	assert.InDelta(t, float64(now.Unix()), snap.UTCAnchor, 1e-6)
}

func TestAdopterAcceptsFallbackTiersInOrder(t *testing.T) {
	a := NewAdopter()
	now := time.Now()
	assert.True(t, a.Offer(WallClockSnap(0, 20000, wire.StationWWV, now)))
	assert.True(t, a.Offer(NTPSnap(0, 20000, wire.StationWWV, 0, 0.01, now)))
	assert.Equal(t, SourceNTP, a.Current().Source)
	assert.False(t, a.Offer(WallClockSnap(100, 20000, wire.StationWWV, now)))
	assert.Equal(t, SourceNTP, a.Current().Source)
}
