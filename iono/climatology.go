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

// ClimatologyLookup supplies gridded empirical monthly-median
// height/TEC values (e.g. precomputed from an external IRI run),
// keyed by month-of-year and a coarse lat/lon grid cell.
type ClimatologyLookup interface {
	HeightKm(month time.Month, latCell, lonCell int) (float64, bool)
	TECU(month time.Month, latCell, lonCell int) (float64, bool)
}

// gridCellDeg is the climatology grid's cell size; 5 degrees balances
// lookup-table size against the spatial smoothness of ionospheric
// climatology.
const gridCellDeg = 5.0

// ClimatologyModel is tier (a), the preferred model when a lookup
// table is available: an empirical IRI-like climatology indexed by
// month and a coarse geographic grid. It falls back to a wrapped
// model for any cell the table doesn't cover.
type ClimatologyModel struct {
	lookup   ClimatologyLookup
	fallback Model
}

// NewClimatologyModel wraps a climatology lookup table, falling back
// to fallback wherever the table has no data.
func NewClimatologyModel(lookup ClimatologyLookup, fallback Model) *ClimatologyModel {
	return &ClimatologyModel{lookup: lookup, fallback: fallback}
}

func gridCell(deg float64) int {
	return int(deg / gridCellDeg)
}

func (c *ClimatologyModel) LayerHeightKm(utc time.Time, latDeg, lonDeg float64) float64 {
	if v, ok := c.lookup.HeightKm(utc.Month(), gridCell(latDeg), gridCell(lonDeg)); ok {
		return v
	}
	return c.fallback.LayerHeightKm(utc, latDeg, lonDeg)
}

func (c *ClimatologyModel) TECU(utc time.Time, latDeg, lonDeg float64) float64 {
	if v, ok := c.lookup.TECU(utc.Month(), gridCell(latDeg), gridCell(lonDeg)); ok {
		return v
	}
	return c.fallback.TECU(utc, latDeg, lonDeg)
}

// MapLookup is an in-memory ClimatologyLookup, the form climatology
// data is loaded into from a config or data file.
type MapLookup struct {
	Height map[climKey]float64
	TEC    map[climKey]float64
}

type climKey struct {
	Month   time.Month
	LatCell int
	LonCell int
}

// NewMapLookup creates an empty lookup table to be populated by a
// config loader.
func NewMapLookup() *MapLookup {
	return &MapLookup{Height: map[climKey]float64{}, TEC: map[climKey]float64{}}
}

// Set records one grid cell's climatology.
func (m *MapLookup) Set(month time.Month, latCell, lonCell int, heightKm, tecu float64) {
	k := climKey{month, latCell, lonCell}
	m.Height[k] = heightKm
	m.TEC[k] = tecu
}

func (m *MapLookup) HeightKm(month time.Month, latCell, lonCell int) (float64, bool) {
	v, ok := m.Height[climKey{month, latCell, lonCell}]
	return v, ok
}

func (m *MapLookup) TECU(month time.Month, latCell, lonCell int) (float64, bool) {
	v, ok := m.TEC[climKey{month, latCell, lonCell}]
	return v, ok
}
