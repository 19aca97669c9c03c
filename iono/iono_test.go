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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticModelDayNightSwing(t *testing.T) {
	m := NewDefaultStaticModel()
	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, m.DayTECU, m.TECU(noon, 0, 0))
	assert.Equal(t, m.NightTECU, m.TECU(midnight, 0, 0))
}

func TestParametricModelRejectsUnsupportedVariable(t *testing.T) {
	_, err := NewParametricModel("bogus_var", DefaultTECFormula)
	require.Error(t, err)
}

func TestParametricModelEvaluatesFormula(t *testing.T) {
	m, err := NewParametricModel(DefaultHeightFormula, DefaultTECFormula)
	require.NoError(t, err)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h := m.LayerHeightKm(noon, 0, 0)
	assert.Greater(t, h, 0.0)
}

func TestParametricModelDaytimeHigherTECThanNight(t *testing.T) {
	m, err := NewParametricModel(DefaultHeightFormula, DefaultTECFormula)
	require.NoError(t, err)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Greater(t, m.TECU(noon, 0, 0), m.TECU(midnight, 0, 0))
}

func TestClimatologyModelFallsBackWhenCellMissing(t *testing.T) {
	lookup := NewMapLookup()
	fallback := NewDefaultStaticModel()
	cm := NewClimatologyModel(lookup, fallback)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback.TECU(noon, 10, 10), cm.TECU(noon, 10, 10))
}

func TestClimatologyModelUsesLookupWhenPresent(t *testing.T) {
	lookup := NewMapLookup()
	lookup.Set(time.June, 2, 2, 275, 42)
	cm := NewClimatologyModel(lookup, NewDefaultStaticModel())

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 275.0, cm.LayerHeightKm(noon, 12, 12))
	assert.Equal(t, 42.0, cm.TECU(noon, 12, 12))
}

func TestCalibratedAppliesAdditiveOffset(t *testing.T) {
	base := NewDefaultStaticModel()
	c := NewCalibrated(base)
	c.ObserveResidual(10, -2)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, base.DayHeightKm+10, c.LayerHeightKm(noon, 0, 0), 1e-9)
	assert.InDelta(t, base.DayTECU-2, c.TECU(noon, 0, 0), 1e-9)
}

func TestCalibratedTECUNeverNegative(t *testing.T) {
	base := NewDefaultStaticModel()
	c := NewCalibrated(base)
	c.ObserveResidual(0, -1000)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Zero(t, c.TECU(noon, 0, 0))
}
