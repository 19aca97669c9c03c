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
	"fmt"
	"os"
	"strconv"
	"time"
)

// discriminationFeatureColumns fixes the discrimination series' live
// feature_0..feature_N-1 column count to the voting feature vector's
// dimensionality (bcd.FeatureExtractor always emits this many), so a
// row can be appended as soon as it's produced instead of waiting to
// see every row's width the way the bulk WriteDiscriminationCSV does.
const discriminationFeatureColumns = 5

// ClockOffsetWriter appends ClockOffsetRow records to a CSV file one
// minute at a time, flushing and fsyncing after every row so a crash
// mid-series leaves a truncated-but-valid prefix rather than a
// corrupt tail, the same append-and-fsync-per-write discipline
// archive.Writer uses for its gap sidecar.
type ClockOffsetWriter struct {
	f *os.File
	w *csv.Writer
}

// NewClockOffsetWriter opens (or resumes appending to) path, writing
// the header only the first time the file is created.
func NewClockOffsetWriter(path string) (*ClockOffsetWriter, error) {
	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("series: opening %s: %w", path, err)
	}
	cw := &ClockOffsetWriter{f: f, w: csv.NewWriter(f)}
	if isNew {
		if err := cw.w.Write(clockOffsetHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("series: writing clock-offset header: %w", err)
		}
		cw.w.Flush()
		if err := cw.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return cw, nil
}

// WriteRow appends one minute's clock-offset row.
func (cw *ClockOffsetWriter) WriteRow(r ClockOffsetRow) error {
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
	if err := cw.w.Write(record); err != nil {
		return fmt.Errorf("series: appending clock-offset row: %w", err)
	}
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return err
	}
	return cw.f.Sync()
}

// Close closes the underlying file.
func (cw *ClockOffsetWriter) Close() error { return cw.f.Close() }

// DiscriminationWriter appends DiscriminationRow records to a CSV
// file one minute at a time under the same append-and-fsync
// discipline as ClockOffsetWriter.
type DiscriminationWriter struct {
	f *os.File
	w *csv.Writer
}

// NewDiscriminationWriter opens (or resumes appending to) path.
func NewDiscriminationWriter(path string) (*DiscriminationWriter, error) {
	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("series: opening %s: %w", path, err)
	}
	dw := &DiscriminationWriter{f: f, w: csv.NewWriter(f)}
	if isNew {
		header := []string{"minute_utc", "p_wwv", "p_wwvh", "confidence", "entropy", "dominant_station"}
		for i := 0; i < discriminationFeatureColumns; i++ {
			header = append(header, fmt.Sprintf("feature_%d", i))
		}
		if err := dw.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("series: writing discrimination header: %w", err)
		}
		dw.w.Flush()
		if err := dw.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return dw, nil
}

// WriteRow appends one minute's discrimination row.
func (dw *DiscriminationWriter) WriteRow(r DiscriminationRow) error {
	record := []string{
		r.MinuteUTC.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(r.PWWV, 'f', -1, 64),
		strconv.FormatFloat(r.PWWVH, 'f', -1, 64),
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		strconv.FormatFloat(r.Entropy, 'f', -1, 64),
		r.DominantStation,
	}
	for i := 0; i < discriminationFeatureColumns; i++ {
		if i < len(r.FeatureVector) {
			record = append(record, strconv.FormatFloat(r.FeatureVector[i], 'f', -1, 64))
		} else {
			record = append(record, "")
		}
	}
	if err := dw.w.Write(record); err != nil {
		return fmt.Errorf("series: appending discrimination row: %w", err)
	}
	dw.w.Flush()
	if err := dw.w.Error(); err != nil {
		return err
	}
	return dw.f.Sync()
}

// Close closes the underlying file.
func (dw *DiscriminationWriter) Close() error { return dw.f.Close() }
