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
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteClockOffsetCSVHeaderAndRow(t *testing.T) {
	rows := []ClockOffsetRow{
		{
			SystemTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			UTCTime:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			DClockMs:   1.5,
			Station:    "WWV",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteClockOffsetCSV(&buf, rows))

	reader := csv.NewReader(strings.NewReader(buf.String()))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, clockOffsetHeader, records[0])
	assert.Equal(t, "WWV", records[1][3])
}

func TestWriteClockOffsetJSONRoundTrips(t *testing.T) {
	rows := []ClockOffsetRow{{DClockMs: 2.0, Station: "WWVH"}}
	var buf bytes.Buffer
	require.NoError(t, WriteClockOffsetJSON(&buf, rows))
	assert.Contains(t, buf.String(), "WWVH")
}

func TestWriteDiscriminationCSVPadsFeatureColumns(t *testing.T) {
	rows := []DiscriminationRow{
		{DominantStation: "WWV", FeatureVector: []float64{1, 2}},
		{DominantStation: "WWVH", FeatureVector: []float64{1, 2, 3}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDiscriminationCSV(&buf, rows))

	reader := csv.NewReader(strings.NewReader(buf.String()))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, records[0], 6+3)
	// First row only had 2 features; the third feature column is empty.
	assert.Equal(t, "", records[1][8])
}

func TestWriteDiscriminationJSONRoundTrips(t *testing.T) {
	rows := []DiscriminationRow{{PWWV: 0.9, PWWVH: 0.1, DominantStation: "WWV"}}
	var buf bytes.Buffer
	require.NoError(t, WriteDiscriminationJSON(&buf, rows))
	assert.Contains(t, buf.String(), "p_wwv")
}
