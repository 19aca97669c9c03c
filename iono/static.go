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

package iono

import "time"

// StaticModel is tier (c): fixed day/night constants, the
// lowest-fidelity fallback when nothing richer is configured or
// available.
type StaticModel struct {
	DayHeightKm, NightHeightKm float64
	DayTECU, NightTECU         float64
	SunriseHourUTCOffset       float64 // hours added to local solar time to get day/night cutoff
}

// NewDefaultStaticModel returns typical F-layer daytime/nighttime
// values for HF propagation at mid-latitudes.
func NewDefaultStaticModel() *StaticModel {
	return &StaticModel{
		DayHeightKm:   300,
		NightHeightKm: 250,
		DayTECU:       30,
		NightTECU:     5,
	}
}

func (s *StaticModel) isDaytime(utc time.Time, lonDeg float64) bool {
	localHour := solarLocalHour(utc, lonDeg) + s.SunriseHourUTCOffset
	return localHour >= 6 && localHour < 18
}

func (s *StaticModel) LayerHeightKm(utc time.Time, latDeg, lonDeg float64) float64 {
	if s.isDaytime(utc, lonDeg) {
		return s.DayHeightKm
	}
	return s.NightHeightKm
}

func (s *StaticModel) TECU(utc time.Time, latDeg, lonDeg float64) float64 {
	if s.isDaytime(utc, lonDeg) {
		return s.DayTECU
	}
	return s.NightTECU
}

// solarLocalHour approximates apparent solar local hour from UTC and
// longitude, ignoring the equation of time (irrelevant at this
// model's precision).
func solarLocalHour(utc time.Time, lonDeg float64) float64 {
	h := float64(utc.Hour()) + float64(utc.Minute())/60 + lonDeg/15
	for h < 0 {
		h += 24
	}
	for h >= 24 {
		h -= 24
	}
	return h
}
