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
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// Calibrated wraps any Model tier with an additive learned
// calibration offset, updated online from Phase 2 residuals
// (observed minus predicted TEC) via a running mean. All three tiers
// are corrected the same way, so swapping tiers never discards
// accumulated calibration.
type Calibrated struct {
	inner Model

	mu             sync.Mutex
	heightResidual *welford.Stats
	tecResidual    *welford.Stats
}

// NewCalibrated wraps inner with a zero-initialized calibration
// offset.
func NewCalibrated(inner Model) *Calibrated {
	return &Calibrated{
		inner:          inner,
		heightResidual: welford.New(),
		tecResidual:    welford.New(),
	}
}

// ObserveResidual folds one Phase 2 observation's residuals into the
// running calibration offset.
func (c *Calibrated) ObserveResidual(heightResidualKm, tecResidualTECU float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heightResidual.Add(heightResidualKm)
	c.tecResidual.Add(tecResidualTECU)
}

// CalibrationOffsets returns the current additive corrections.
func (c *Calibrated) CalibrationOffsets() (heightKm, tecu float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heightResidual.Mean(), c.tecResidual.Mean()
}

func (c *Calibrated) LayerHeightKm(utc time.Time, latDeg, lonDeg float64) float64 {
	heightOffset, _ := c.CalibrationOffsets()
	return c.inner.LayerHeightKm(utc, latDeg, lonDeg) + heightOffset
}

func (c *Calibrated) TECU(utc time.Time, latDeg, lonDeg float64) float64 {
	_, tecOffset := c.CalibrationOffsets()
	tecu := c.inner.TECU(utc, latDeg, lonDeg) + tecOffset
	if tecu < 0 {
		return 0
	}
	return tecu
}
