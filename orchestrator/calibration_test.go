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

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/clockoffset"
)

func TestCalibrationRegistryCheckpointAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fusion := clockoffset.NewFusion(0.01, 0.0001, 10)
	key := clockoffset.BroadcastKey{Station: "WWV", FrequencyHz: 10_000_000}
	require.NoError(t, fusion.Observe(key, clockoffset.Measurement{OffsetMs: 3.2, ConfidenceSigma: 1}))

	reg := NewCalibrationRegistry(fusion, dir, 0.01, 0.0001)
	require.NoError(t, reg.Checkpoint(now))

	restoredFusion := clockoffset.NewFusion(0.01, 0.0001, 10)
	restoredReg := NewCalibrationRegistry(restoredFusion, dir, 0.01, 0.0001)
	restoredReg.Restore(now.Add(time.Minute))

	tracker := restoredFusion.Tracker(key)
	require.NotNil(t, tracker)
	assert.InDelta(t, 3.2, tracker.OffsetMs(), 0.5)
}

func TestCalibrationRegistryRestoreIgnoresStaleCheckpoint(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fusion := clockoffset.NewFusion(0.01, 0.0001, 10)
	key := clockoffset.BroadcastKey{Station: "WWV", FrequencyHz: 10_000_000}
	require.NoError(t, fusion.Observe(key, clockoffset.Measurement{OffsetMs: 5, ConfidenceSigma: 1}))
	reg := NewCalibrationRegistry(fusion, dir, 0.01, 0.0001)
	require.NoError(t, reg.Checkpoint(now))

	restoredFusion := clockoffset.NewFusion(0.01, 0.0001, 10)
	restoredReg := NewCalibrationRegistry(restoredFusion, dir, 0.01, 0.0001)
	restoredReg.Restore(now.Add(48 * time.Hour))

	assert.Nil(t, restoredFusion.Tracker(key))
}

func TestCalibrationRegistryRestoreWithoutCheckpointIsNoop(t *testing.T) {
	dir := t.TempDir()
	fusion := clockoffset.NewFusion(0.01, 0.0001, 10)
	reg := NewCalibrationRegistry(fusion, dir, 0.01, 0.0001)
	reg.Restore(time.Now())
	assert.Empty(t, fusion.Keys())
}
