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
	"time"

	"github.com/hfreceiver/wwvclock/wire"
)

// ntpConfidenceFloor and ntpConfidenceCeil bound the SNTP tier's
// confidence band; a sub-10ms round trip earns the ceiling, anything
// past 500ms the floor.
const (
	ntpConfidenceFloor      = 0.5
	ntpConfidenceCeil       = 0.7
	ntpGoodRoundTripSec     = 0.01
	ntpMarginalRoundTripSec = 0.5
)

// wallClockConfidence is the fixed, lowest-tier confidence assigned to
// a TimeSnap anchored purely to the local system clock.
const wallClockConfidence = 0.1

// ntpConfidence maps a measured round-trip time to the SNTP tier's
// confidence band: tighter round trips imply a tighter bound on the
// offset measurement's own error.
func ntpConfidence(roundTripSec float64) float64 {
	if roundTripSec <= ntpGoodRoundTripSec {
		return ntpConfidenceCeil
	}
	if roundTripSec >= ntpMarginalRoundTripSec {
		return ntpConfidenceFloor
	}
	frac := (roundTripSec - ntpGoodRoundTripSec) / (ntpMarginalRoundTripSec - ntpGoodRoundTripSec)
	return ntpConfidenceCeil - frac*(ntpConfidenceCeil-ntpConfidenceFloor)
}

// NTPSnap builds a SourceNTP TimeSnap anchoring rtpTsNow (the ingest
// position at the moment of the query) to now corrected by the
// measured SNTP offset.
func NTPSnap(rtpTsNow uint32, sampleRate int, station wire.Station, offsetSec, roundTripSec float64, now time.Time) TimeSnap {
	corrected := now.Add(time.Duration(offsetSec * float64(time.Second)))
	return TimeSnap{
		RTPTsAnchor:   rtpTsNow,
		UTCAnchor:     float64(corrected.Unix()) + float64(corrected.Nanosecond())/float64(time.Second),
		SampleRate:    sampleRate,
		Source:        SourceNTP,
		Confidence:    ntpConfidence(roundTripSec),
		EstablishedAt: now,
		Station:       station,
	}
}

// WallClockSnap builds the lowest-tier TimeSnap, anchoring rtpTsNow to
// the local system clock with no external correction at all; the last
// resort when neither tone detection nor an SNTP server is reachable.
func WallClockSnap(rtpTsNow uint32, sampleRate int, station wire.Station, now time.Time) TimeSnap {
	return TimeSnap{
		RTPTsAnchor:   rtpTsNow,
		UTCAnchor:     float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second),
		SampleRate:    sampleRate,
		Source:        SourceWallClock,
		Confidence:    wallClockConfidence,
		EstablishedAt: now,
		Station:       station,
	}
}
