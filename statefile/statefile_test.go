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

package statefile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfreceiver/wwvclock/clockoffset"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kalman.json")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	state := clockoffset.State{OffsetMs: 2.5, DriftMsPerMin: 0.01, P00: 0.04, P11: 0.01, Updates: 10}
	require.NoError(t, SaveAtomic(path, "1.0.0", state, now))

	var loaded clockoffset.State
	err := Load(path, ">= 1.0, < 2.0", 24*time.Hour, now.Add(time.Hour), &loaded)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
	assert.NoError(t, loaded.Validate())
}

func TestLoadRejectsIncompatibleSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kalman.json")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	state := clockoffset.State{OffsetMs: 1, P00: 1, P11: 1}
	require.NoError(t, SaveAtomic(path, "2.0.0", state, now))

	var loaded clockoffset.State
	err := Load(path, ">= 1.0, < 2.0", 24*time.Hour, now, &loaded)
	assert.Error(t, err)
}

func TestLoadRejectsStaleState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kalman.json")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	state := clockoffset.State{OffsetMs: 1, P00: 1, P11: 1}
	require.NoError(t, SaveAtomic(path, "1.0.0", state, now))

	var loaded clockoffset.State
	err := Load(path, ">= 1.0, < 2.0", 24*time.Hour, now.Add(25*time.Hour), &loaded)
	assert.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	var loaded clockoffset.State
	err := Load(filepath.Join(t.TempDir(), "missing.json"), ">= 1.0", 0, time.Now(), &loaded)
	assert.Error(t, err)
}

func TestLoadedStateFailingDomainValidationIsCallerResponsibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kalman.json")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	corrupt := clockoffset.State{OffsetMs: 1, DriftMsPerMin: 5000, P00: 1, P11: 1}
	require.NoError(t, SaveAtomic(path, "1.0.0", corrupt, now))

	var loaded clockoffset.State
	require.NoError(t, Load(path, ">= 1.0, < 2.0", 24*time.Hour, now, &loaded))
	assert.Error(t, loaded.Validate())
}

func TestSaveAtomicLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kalman.json")
	require.NoError(t, SaveAtomic(path, "1.0.0", clockoffset.State{P00: 1, P11: 1}, time.Now()))

	entries, err := filepath.Glob(filepath.Join(dir, ".statefile-*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
