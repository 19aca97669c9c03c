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

// Package archive implements the lossless, append-only, time-tagged
// raw IQ archive (C2) and reads it back for the corrected-product
// generator (C11). The on-disk form is a hierarchical container in
// the spirit of the HDF5 layout described in the external interfaces
// (one `/iq` dataset, one `/gaps` sidecar, one `/meta` attribute
// block) — implemented here as three sidecar files sharing a path
// stem, since no HDF5 binding exists anywhere in this module's
// grounding corpus.
package archive

import (
	"time"
)

// Meta is the `/meta` attribute block: everything needed to interpret
// an `/iq` dataset without external context.
type Meta struct {
	ChannelName    string    `json:"channel_name"`
	CenterFreqHz   float64   `json:"center_freq_hz"`
	SampleRateHz   int       `json:"sample_rate_hz"`
	StartUTCSystem time.Time `json:"start_utc_system"`
	StartRTPTs     uint32    `json:"start_rtp_ts"`
	SSRC           uint32    `json:"ssrc"`

	// Filled in at Close; zero while the segment is still being
	// written to.
	SampleCount    int64  `json:"sample_count"`
	Checksum       uint64 `json:"checksum_xxh64"`
	CompressionLvl int    `json:"compression_level"`

	// Phase 3 corrected products carry these in addition; zero value
	// for raw Phase 1 archives.
	TimeReference        string  `json:"time_reference,omitempty"`
	ClockOffsetSeriesVer int     `json:"clock_offset_series_version,omitempty"`
	CalibrationOffsetMs  float64 `json:"calibration_offset_ms,omitempty"`
	ClockOffsetApplied   bool    `json:"clock_offset_applied,omitempty"`
	Phase                string  `json:"phase,omitempty"`
}

// GapRecord is one `/gaps` entry.
type GapRecord struct {
	StartIndex int64  `json:"start_index"`
	NZeros     int64  `json:"n_zeros"`
	CauseCode  string `json:"cause_code"`
}

// pathStems for the three sidecar files sharing one segment's path.
func iqPath(stem string) string   { return stem + ".iq" }
func gapsPath(stem string) string { return stem + ".gaps.jsonl" }
func metaPath(stem string) string { return stem + ".meta.json" }
