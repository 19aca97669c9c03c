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

package groundtruth

import (
	"time"

	"github.com/hfreceiver/wwvclock/bcd"
	"github.com/hfreceiver/wwvclock/wire"
)

// CheckSilentMinute cross-checks a discriminator verdict against the
// minute-of-hour exclusive-emission table (see §4.6): if the current
// minute is not one of the known exclusive minutes, or the
// discriminator itself reported UNCERTAIN, no ground-truth judgement
// can be made and ok is false. Otherwise the residual is 0 ms when the
// discriminator agreed with the known station and a fixed penalty
// otherwise.
const disagreementPenaltyMs = 1000.0

func CheckSilentMinute(utc time.Time, minuteOfHour int, verdict bcd.Verdict) (Observation, bool) {
	expected := bcd.SilentMinuteStation(minuteOfHour)
	if expected == wire.StationUnknown || verdict.Uncertain {
		return Observation{}, false
	}

	observed := wire.StationWWV
	if verdict.PWWVH > verdict.PWWV {
		observed = wire.StationWWVH
	}

	residual := 0.0
	if observed != expected {
		residual = disagreementPenaltyMs
	}
	return Observation{
		Tier:       TierSilentMinute,
		Station:    string(expected),
		UTC:        utc,
		ResidualMs: residual,
	}, true
}
