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

package bcd

import "github.com/hfreceiver/wwvclock/wire"

// SilentMinuteStation reports which station, if any, has exclusive
// use of the 500/600 Hz minute markers for the given minute-of-hour.
// Exported so the ground-truth validator can cross-check discriminator
// verdicts against the same table used to weight feature extraction.
func SilentMinuteStation(minuteOfHour int) wire.Station {
	return silentMinuteStation(minuteOfHour)
}

func silentMinuteStation(minuteOfHour int) wire.Station {
	switch {
	case minuteOfHour == 1 || minuteOfHour == 16 || minuteOfHour == 17 || minuteOfHour == 19:
		return wire.StationWWV
	case minuteOfHour == 2 || (minuteOfHour >= 43 && minuteOfHour <= 51):
		return wire.StationWWVH
	default:
		return wire.StationUnknown
	}
}

// stationIDMinuteStation reports which station's 440 Hz station-ID
// tone, if any, is expected for the given minute-of-hour.
func stationIDMinuteStation(minuteOfHour int) wire.Station {
	switch minuteOfHour {
	case 1:
		return wire.StationWWVH
	case 2:
		return wire.StationWWV
	default:
		return wire.StationUnknown
	}
}

// minuteWeight returns the lookup-table weight multiplier applied to
// a ground-truth-carrying minute's dominant feature, so that minute's
// signal dominates the discrimination by construction.
func minuteWeight(minuteOfHour int) float64 {
	if silentMinuteStation(minuteOfHour) != wire.StationUnknown || stationIDMinuteStation(minuteOfHour) != wire.StationUnknown {
		return 4.0
	}
	return 1.0
}
