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

package series

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockOffsetWriterAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clock_offset.csv")

	cw, err := NewClockOffsetWriter(path)
	require.NoError(t, err)
	require.NoError(t, cw.WriteRow(ClockOffsetRow{
		SystemTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UTCTime:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DClockMs:   1.5,
		Station:    "WWV",
	}))
	require.NoError(t, cw.Close())

	cw2, err := NewClockOffsetWriter(path)
	require.NoError(t, err)
	require.NoError(t, cw2.WriteRow(ClockOffsetRow{Station: "WWVH", DClockMs: -2.0}))
	require.NoError(t, cw2.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, clockOffsetHeader, records[0])
	assert.Equal(t, "WWV", records[1][3])
	assert.Equal(t, "WWVH", records[2][3])
}

func TestDiscriminationWriterPadsFixedFeatureColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discrimination.csv")

	dw, err := NewDiscriminationWriter(path)
	require.NoError(t, err)
	require.NoError(t, dw.WriteRow(DiscriminationRow{
		DominantStation: "WWV",
		FeatureVector:   []float64{1, 2, 3, 4, 5},
	}))
	require.NoError(t, dw.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0], 6+discriminationFeatureColumns)
	assert.Equal(t, "3", records[1][8])
}
