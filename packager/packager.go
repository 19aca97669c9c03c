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

// Package packager implements the daily multi-subchannel packager
// (C12): at end of UTC day, it consumes every channel's corrected
// product archive and produces one container holding N subchannels
// (one per frequency), a metadata block describing each subchannel,
// and a day-wide completeness summary suitable for a single atomic
// upload.
package packager

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hfreceiver/wwvclock/archive"
)

// ChannelInput names one channel's corrected product segment to fold
// into the day's container.
type ChannelInput struct {
	Station string
	Stem    string // corrected product archive path stem
}

// Subchannel describes one packaged subchannel's provenance and
// day-wide completeness.
type Subchannel struct {
	Station              string  `json:"station"`
	CenterFreqHz         float64 `json:"center_freq_hz"`
	CalibrationOffsetMs  float64 `json:"calibration_offset_ms"`
	SampleCount          int64   `json:"sample_count"`
	ExpectedSampleCount  int64   `json:"expected_sample_count"`
	CompletenessFraction float64 `json:"completeness_fraction"`
}

// Container is the day's packaged output: one metadata index sitting
// alongside N per-subchannel archive segments sharing the day's
// output directory.
type Container struct {
	Day         string       `json:"day"`
	Subchannels []Subchannel `json:"subchannels"`
}

// expectedSamplesPerDay is the day-wide sample budget at the
// corrected product's fixed 10 Hz rate.
const expectedSamplesPerDay = 10 * 86400

// Pack reads each channel's corrected product archive for the given
// UTC day, copies its samples into outDir under one subchannel stem
// per channel, and writes a day-wide index.json summarizing
// completeness. It returns the built Container for callers that want
// to render a report without re-reading the index from disk.
func Pack(day time.Time, channels []ChannelInput, outDir string) (Container, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Container{}, fmt.Errorf("packager: creating output dir: %w", err)
	}

	container := Container{Day: day.Format("2006-01-02")}

	for _, ch := range channels {
		meta, err := archive.ReadMeta(ch.Stem)
		if err != nil {
			return Container{}, fmt.Errorf("packager: reading %s meta: %w", ch.Station, err)
		}
		samples, err := archive.ReadSamples(ch.Stem)
		if err != nil {
			return Container{}, fmt.Errorf("packager: reading %s samples: %w", ch.Station, err)
		}

		subStem := fmt.Sprintf("%s/%s", outDir, ch.Station)
		w, err := archive.NewWriter(subStem, meta)
		if err != nil {
			return Container{}, fmt.Errorf("packager: creating subchannel writer for %s: %w", ch.Station, err)
		}
		if err := w.WriteSamples(samples); err != nil {
			w.Close()
			return Container{}, fmt.Errorf("packager: writing subchannel %s: %w", ch.Station, err)
		}
		if err := w.Close(); err != nil {
			return Container{}, fmt.Errorf("packager: closing subchannel %s: %w", ch.Station, err)
		}

		completeness := float64(len(samples)) / float64(expectedSamplesPerDay)
		if completeness > 1 {
			completeness = 1
		}
		container.Subchannels = append(container.Subchannels, Subchannel{
			Station:              ch.Station,
			CenterFreqHz:         meta.CenterFreqHz,
			CalibrationOffsetMs:  meta.CalibrationOffsetMs,
			SampleCount:          int64(len(samples)),
			ExpectedSampleCount:  expectedSamplesPerDay,
			CompletenessFraction: completeness,
		})
	}

	indexPath := fmt.Sprintf("%s/index.json", outDir)
	b, err := json.MarshalIndent(container, "", "  ")
	if err != nil {
		return Container{}, fmt.Errorf("packager: encoding index: %w", err)
	}
	if err := os.WriteFile(indexPath, b, 0o644); err != nil {
		return Container{}, fmt.Errorf("packager: writing index: %w", err)
	}

	return container, nil
}

// LoadIndex reads a previously packaged day's index.json.
func LoadIndex(outDir string) (Container, error) {
	var c Container
	b, err := os.ReadFile(fmt.Sprintf("%s/index.json", outDir))
	if err != nil {
		return c, fmt.Errorf("packager: reading index: %w", err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("packager: decoding index: %w", err)
	}
	return c, nil
}
