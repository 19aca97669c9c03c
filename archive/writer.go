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

package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"

	"github.com/hfreceiver/wwvclock/wire"
)

// elemSize is the width in bytes of one interleaved I/Q sample as
// produced by wire.EncodeIQ.
const elemSize = 8

// blockSamples is the number of samples shuffled and compressed as
// one unit. Smaller blocks cost compression ratio; larger blocks cost
// write latency for streaming consumers. 4000 samples is 0.2s at a
// 20 kHz raw channel rate and 400s at the 10 Hz corrected product
// rate.
const blockSamples = 4000

// Writer appends samples to a raw IQ archive segment. A segment is
// three files sharing one path stem: an `.iq` data file of
// shuffle+deflate compressed blocks, a `.gaps.jsonl` sidecar of
// append-only gap records, and a `.meta.json` sidecar written once,
// atomically, at Close. The data and gap files are fsynced as they
// grow so a crash mid-segment leaves a truncated-but-valid prefix
// rather than a corrupt tail; Close is what makes the segment
// immutable and gives it a final checksum.
type Writer struct {
	stem string
	meta Meta

	iqFile   *os.File
	iqWriter *bufio.Writer
	gapFile  *os.File
	digest   *xxhash.Digest

	pending     []wire.Sample
	sampleCount int64
	closed      bool
}

// NewWriter creates a new segment at stem, truncating any partial
// segment left behind by a previous crash (a Writer is never reopened
// for append — C2's "never modified after close" invariant means a
// fresh segment always starts empty).
func NewWriter(stem string, meta Meta) (*Writer, error) {
	iqFile, err := os.Create(iqPath(stem))
	if err != nil {
		return nil, fmt.Errorf("archive: creating %s: %w", iqPath(stem), err)
	}
	gapFile, err := os.Create(gapsPath(stem))
	if err != nil {
		iqFile.Close()
		return nil, fmt.Errorf("archive: creating %s: %w", gapsPath(stem), err)
	}
	return &Writer{
		stem:     stem,
		meta:     meta,
		iqFile:   iqFile,
		iqWriter: bufio.NewWriter(iqFile),
		gapFile:  gapFile,
		digest:   xxhash.New(),
	}, nil
}

// WriteSamples appends samples to the segment, flushing full blocks
// as they accumulate.
func (w *Writer) WriteSamples(samples []wire.Sample) error {
	w.pending = append(w.pending, samples...)
	for len(w.pending) >= blockSamples {
		if err := w.flushBlock(w.pending[:blockSamples]); err != nil {
			return err
		}
		w.pending = w.pending[blockSamples:]
	}
	return nil
}

func (w *Writer) flushBlock(block []wire.Sample) error {
	raw := wire.EncodeIQ(block)
	shuffled := shuffle(raw, elemSize)

	compressed, err := deflate(shuffled)
	if err != nil {
		return fmt.Errorf("archive: compressing block: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := w.iqWriter.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("archive: writing block length: %w", err)
	}
	if _, err := w.iqWriter.Write(compressed); err != nil {
		return fmt.Errorf("archive: writing block: %w", err)
	}
	if _, err := w.digest.Write(raw); err != nil {
		return fmt.Errorf("archive: updating checksum: %w", err)
	}
	w.sampleCount += int64(len(block))

	if err := w.iqWriter.Flush(); err != nil {
		return err
	}
	return w.iqFile.Sync()
}

// WriteGap appends a gap record to the sidecar immediately; gap
// records are small and rare enough to fsync individually rather than
// batching, since they mark the exact points a reader must be able to
// trust even if the process dies a moment later.
func (w *Writer) WriteGap(g GapRecord) error {
	enc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("archive: encoding gap record: %w", err)
	}
	enc = append(enc, '\n')
	if _, err := w.gapFile.Write(enc); err != nil {
		return fmt.Errorf("archive: writing gap record: %w", err)
	}
	return w.gapFile.Sync()
}

// Close flushes any partial trailing block, finalizes sample count
// and checksum, and atomically publishes the meta sidecar. After
// Close returns successfully the segment is immutable.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.pending) > 0 {
		if err := w.flushBlock(w.pending); err != nil {
			return err
		}
		w.pending = nil
	}

	if err := w.iqFile.Close(); err != nil {
		return fmt.Errorf("archive: closing %s: %w", iqPath(w.stem), err)
	}
	if err := w.gapFile.Close(); err != nil {
		return fmt.Errorf("archive: closing %s: %w", gapsPath(w.stem), err)
	}

	w.meta.SampleCount = w.sampleCount
	w.meta.Checksum = w.digest.Sum64()
	w.meta.CompressionLvl = flate.DefaultCompression

	return writeMetaAtomic(w.stem, w.meta)
}

func writeMetaAtomic(stem string, meta Meta) error {
	enc, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: encoding meta: %w", err)
	}
	tmp := metaPath(stem) + ".tmp"
	if err := os.WriteFile(tmp, enc, 0o644); err != nil {
		return fmt.Errorf("archive: writing temp meta: %w", err)
	}
	if err := os.Rename(tmp, metaPath(stem)); err != nil {
		return fmt.Errorf("archive: publishing meta: %w", err)
	}
	return nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
