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
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"

	"github.com/hfreceiver/wwvclock/wire"
)

// ReadMeta loads a segment's finalized meta sidecar. It returns an
// error if the segment was never closed (no meta.json was ever
// published), which is the archive-layer signal that the prior
// process died mid-segment.
func ReadMeta(stem string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(metaPath(stem))
	if err != nil {
		return m, fmt.Errorf("archive: reading meta for %s: %w", stem, err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("archive: decoding meta for %s: %w", stem, err)
	}
	return m, nil
}

// ReadGaps loads every gap record appended to a segment's sidecar, in
// the order they were written.
func ReadGaps(stem string) ([]GapRecord, error) {
	f, err := os.Open(gapsPath(stem))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: opening gaps for %s: %w", stem, err)
	}
	defer f.Close()

	var gaps []GapRecord
	dec := json.NewDecoder(f)
	for dec.More() {
		var g GapRecord
		if err := dec.Decode(&g); err != nil {
			return nil, fmt.Errorf("archive: decoding gap record for %s: %w", stem, err)
		}
		gaps = append(gaps, g)
	}
	return gaps, nil
}

// ReadSamples decompresses and un-shuffles every block in a closed
// segment's `.iq` file and verifies the result against the checksum
// recorded in meta.json, returning a mismatch error rather than
// silently handing back corrupt samples.
func ReadSamples(stem string) ([]wire.Sample, error) {
	meta, err := ReadMeta(stem)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(iqPath(stem))
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", iqPath(stem), err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	digest := xxhash.New()
	var samples []wire.Sample

	for {
		var lenBuf [4]byte
		_, err := io.ReadFull(br, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: reading block length: %w", err)
		}
		blockLen := binary.BigEndian.Uint32(lenBuf[:])

		compressed := make([]byte, blockLen)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return nil, fmt.Errorf("archive: reading block: %w", err)
		}

		shuffled, err := inflate(compressed)
		if err != nil {
			return nil, fmt.Errorf("archive: decompressing block: %w", err)
		}
		raw := unshuffle(shuffled, elemSize)

		if _, err := digest.Write(raw); err != nil {
			return nil, fmt.Errorf("archive: updating checksum: %w", err)
		}

		decoded, err := wire.DecodeIQ(raw)
		if err != nil {
			return nil, fmt.Errorf("archive: decoding block: %w", err)
		}
		samples = append(samples, decoded...)
	}

	if int64(len(samples)) != meta.SampleCount {
		return nil, fmt.Errorf("archive: %s: sample count mismatch: meta says %d, read %d", stem, meta.SampleCount, len(samples))
	}
	if sum := digest.Sum64(); sum != meta.Checksum {
		return nil, fmt.Errorf("archive: %s: checksum mismatch: meta says %x, computed %x", stem, meta.Checksum, sum)
	}

	return samples, nil
}

func inflate(data []byte) ([]byte, error) {
	zr := flate.NewReader(bytes.NewReader(data))
	defer zr.Close()
	return io.ReadAll(zr)
}
