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

// Package series writes the per-channel clock-offset and
// discrimination time series to their external CSV and JSON forms
// (§6): one row per minute for the clock-offset series, one row per
// minute for the discrimination series, each with a machine-readable
// JSON sibling for full-precision consumers.
package series

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ClockOffsetRow is one minute of the clock-offset series.
type ClockOffsetRow struct {
	SystemTime         time.Time `json:"system_time"`
	UTCTime            time.Time `json:"utc_time"`
	DClockMs           float64   `json:"d_clock_ms"`
	Station            string    `json:"station"`
	FrequencyMHz       float64   `json:"frequency_mhz"`
	PropagationDelayMs float64   `json:"propagation_delay_ms"`
	PropagationMode    string    `json:"propagation_mode"`
	Confidence         float64   `json:"confidence"`
	UncertaintyMs      float64   `json:"uncertainty_ms"`
}

var clockOffsetHeader = []string{
	"system_time", "utc_time", "d_clock_ms", "station", "frequency_mhz",
	"propagation_delay_ms", "propagation_mode", "confidence", "uncertainty_ms",
}

// WriteClockOffsetCSV writes rows to w in the documented column order.
func WriteClockOffsetCSV(w io.Writer, rows []ClockOffsetRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(clockOffsetHeader); err != nil {
		return fmt.Errorf("series: writing clock-offset header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.SystemTime.UTC().Format(time.RFC3339Nano),
			r.UTCTime.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(r.DClockMs, 'f', -1, 64),
			r.Station,
			strconv.FormatFloat(r.FrequencyMHz, 'f', -1, 64),
			strconv.FormatFloat(r.PropagationDelayMs, 'f', -1, 64),
			r.PropagationMode,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.FormatFloat(r.UncertaintyMs, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("series: writing clock-offset row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteClockOffsetJSON writes the full-precision JSON sibling.
func WriteClockOffsetJSON(w io.Writer, rows []ClockOffsetRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// DiscriminationRow is one minute of the discrimination series.
type DiscriminationRow struct {
	MinuteUTC       time.Time `json:"minute_utc"`
	PWWV            float64   `json:"p_wwv"`
	PWWVH           float64   `json:"p_wwvh"`
	Confidence      float64   `json:"confidence"`
	Entropy         float64   `json:"entropy"`
	DominantStation string    `json:"dominant_station"`
	FeatureVector   []float64 `json:"feature_vector"`
}

// WriteDiscriminationCSV writes rows to w; the feature vector is
// flattened into feature_0..feature_N-1 columns sized to the widest
// row, matching the "feature_vector…" trailing-columns convention.
func WriteDiscriminationCSV(w io.Writer, rows []DiscriminationRow) error {
	maxFeatures := 0
	for _, r := range rows {
		if len(r.FeatureVector) > maxFeatures {
			maxFeatures = len(r.FeatureVector)
		}
	}

	header := []string{"minute_utc", "p_wwv", "p_wwvh", "confidence", "entropy", "dominant_station"}
	for i := 0; i < maxFeatures; i++ {
		header = append(header, fmt.Sprintf("feature_%d", i))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("series: writing discrimination header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.MinuteUTC.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(r.PWWV, 'f', -1, 64),
			strconv.FormatFloat(r.PWWVH, 'f', -1, 64),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.FormatFloat(r.Entropy, 'f', -1, 64),
			r.DominantStation,
		}
		for i := 0; i < maxFeatures; i++ {
			if i < len(r.FeatureVector) {
				record = append(record, strconv.FormatFloat(r.FeatureVector[i], 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("series: writing discrimination row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiscriminationJSON writes the full-precision JSON sibling.
func WriteDiscriminationJSON(w io.Writer, rows []DiscriminationRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
