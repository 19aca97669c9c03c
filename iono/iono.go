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

// Package iono exposes the ionospheric model interface used by the
// transmission-time solver: layer height and total electron content
// as a function of time and geographic position, with three
// selectable implementation tiers and a learned calibration decorator
// wrapping any of them.
package iono

import "time"

// Model exposes the two quantities the propagation solver needs from
// an ionospheric model.
type Model interface {
	// LayerHeightKm returns the reflecting layer's virtual height.
	LayerHeightKm(utc time.Time, latDeg, lonDeg float64) float64
	// TECU returns slant-path-independent vertical total electron
	// content in TEC units.
	TECU(utc time.Time, latDeg, lonDeg float64) float64
}

// Tier identifies which implementation backs a Model, used for
// diagnostics and calibration bookkeeping.
type Tier string

const (
	// TierClimatology is the empirical IRI-like climatology model,
	// preferred when available.
	TierClimatology Tier = "climatology"
	// TierParametric is the diurnal parametric model driven by
	// configurable expressions.
	TierParametric Tier = "parametric"
	// TierStatic is the static day/night constant fallback.
	TierStatic Tier = "static"
)
