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

// Package timesnap implements the precision-timing anchor that maps
// any RTP sample index to UTC. A TimeSnap is produced by the tone
// detectors, the NTP fallback, or the wall clock, and upgraded over
// time but never downgraded: tiers only move up.
package timesnap

import (
	"time"

	"github.com/hfreceiver/wwvclock/wire"
)

// Source is the tiered origin of a TimeSnap. Ordering matters: later
// constants are higher tier, and only a higher (or equal, higher
// confidence) tier may replace the currently adopted TimeSnap.
type Source int

// Recognised sources, lowest tier first.
const (
	SourceWallClock Source = iota
	SourceNTP
	SourceToneRunning
	SourceToneStartup
)

// String renders the source the way it appears in persisted state
// and CSV output.
func (s Source) String() string {
	switch s {
	case SourceWallClock:
		return "wall_clock"
	case SourceNTP:
		return "ntp"
	case SourceToneRunning:
		return "tone_running"
	case SourceToneStartup:
		return "tone_startup"
	default:
		return "unknown"
	}
}

// TimeSnap anchors an RTP timestamp to a UTC time at a known sample
// rate. It is the only permitted time mapping once established.
type TimeSnap struct {
	RTPTsAnchor   uint32
	UTCAnchor     float64 // seconds since epoch, double precision
	SampleRate    int
	Source        Source
	Confidence    float64 // in [0,1]
	EstablishedAt time.Time
	Station       wire.Station
}

// UTC maps an RTP timestamp to a UTC time using the TimeSnap's linear
// model: utc(t) = utc_anchor + signed_wrap(t - rtp_ts_anchor) / sample_rate.
func (t TimeSnap) UTC(rtpTs uint32) time.Time {
	delta := wire.SignedWrapU32(rtpTs, t.RTPTsAnchor)
	secs := t.UTCAnchor + float64(delta)/float64(t.SampleRate)
	whole := int64(secs)
	frac := secs - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second))).UTC()
}

// RTPTsFor maps a UTC time back to the nearest RTP timestamp under
// the current TimeSnap's linear model; the inverse of UTC.
func (t TimeSnap) RTPTsFor(utc time.Time) uint32 {
	secs := float64(utc.Unix()) + float64(utc.Nanosecond())/float64(time.Second)
	deltaSamples := (secs - t.UTCAnchor) * float64(t.SampleRate)
	return wire.AddTs(t.RTPTsAnchor, int64(deltaSamples))
}

// betterThan reports whether candidate should replace current under
// the "upgrade but never downgrade" rule: higher source tier always
// wins; at equal tier, the candidate must show higher confidence.
func betterThan(candidate, current TimeSnap) bool {
	if candidate.Source != current.Source {
		return candidate.Source > current.Source
	}
	return candidate.Confidence > current.Confidence
}

// Adopter owns the currently-adopted TimeSnap for one channel and
// enforces monotonic tier/confidence adoption (invariant 2, §8).
type Adopter struct {
	current *TimeSnap
}

// NewAdopter creates an empty Adopter with no TimeSnap adopted yet.
func NewAdopter() *Adopter {
	return &Adopter{}
}

// Current returns the currently adopted TimeSnap, or nil if none has
// been adopted yet.
func (a *Adopter) Current() *TimeSnap {
	return a.current
}

// Offer proposes a new TimeSnap for adoption. It returns true if the
// TimeSnap was adopted (either because none existed yet, or the
// candidate is a strict improvement per betterThan). A TimeSnap that
// would lower the tier or confidence is rejected and the current one
// is kept untouched.
func (a *Adopter) Offer(candidate TimeSnap) bool {
	if a.current == nil || betterThan(candidate, *a.current) {
		snap := candidate
		a.current = &snap
		return true
	}
	return false
}

// Seed force-sets the current TimeSnap without going through the
// upgrade check, used only when restoring persisted state at startup.
func (a *Adopter) Seed(snap TimeSnap) {
	s := snap
	a.current = &s
}

// ntpConfidence is the fixed confidence assigned to an SNTP-derived
// TimeSnap: high enough to beat a wall-clock guess, never high enough
// to beat a real tone detection.
const ntpConfidence = 0.6

// wallClockConfidence is the fixed, lowest-tier confidence assigned to
// a TimeSnap with no external time reference at all.
const wallClockConfidence = 0.1

// NTPSnap builds a TimeSnap anchored at rtpTsNow/now, shifted by the
// SNTP exchange's measured offset, the fallback tier used when 120 s
// pass with no confident marker-tone detection but an SNTP server is
// reachable.
func NTPSnap(rtpTsNow uint32, sampleRate int, station wire.Station, offsetSec, roundTripSec float64, now time.Time) TimeSnap {
	corrected := now.Add(time.Duration(offsetSec * float64(time.Second)))
	confidence := ntpConfidence
	if roundTripSec > 1.0 {
		confidence = 0.5
	}
	return TimeSnap{
		RTPTsAnchor:   rtpTsNow,
		UTCAnchor:     float64(corrected.Unix()) + float64(corrected.Nanosecond())/float64(time.Second),
		SampleRate:    sampleRate,
		Source:        SourceNTP,
		Confidence:    confidence,
		EstablishedAt: now,
		Station:       station,
	}
}

// WallClockSnap builds the lowest-tier TimeSnap, anchored directly at
// the local system clock, used only when neither a marker-tone
// detection nor an SNTP exchange succeeds.
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
