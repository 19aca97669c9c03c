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

package groundtruth

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// PPSSource reads one-pulse-per-second event lines from a serial GPS
// receiver that has a PPS-timestamped NMEA-like output: each line is
// "<unix_nanos>" marking the rising edge of the second boundary as
// seen by the receiver's internal oscillator.
type PPSSource struct {
	port   serial.Port
	reader *bufio.Reader
}

// PPSConfig names the serial device and line settings for a GPS PPS
// receiver.
type PPSConfig struct {
	Device   string
	BaudRate int
}

// OpenPPSSource opens the named serial device for PPS event reading.
func OpenPPSSource(cfg PPSConfig) (*PPSSource, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("groundtruth: opening PPS device %s: %w", cfg.Device, err)
	}
	return &PPSSource{port: port, reader: bufio.NewReader(port)}, nil
}

// Close releases the underlying serial device.
func (p *PPSSource) Close() error {
	return p.port.Close()
}

// NextPulse blocks until the next PPS event line arrives and returns
// the receiver's reported pulse time.
func (p *PPSSource) NextPulse() (time.Time, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return time.Time{}, fmt.Errorf("groundtruth: reading PPS line: %w", err)
	}
	nanos, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("groundtruth: parsing PPS timestamp %q: %w", line, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// Validate compares a pipeline-reported system-clock offset estimate
// (the D_clock output at the moment of the pulse) against the PPS
// pulse's true UTC second boundary and produces a gold-standard
// ground-truth observation.
func Validate(pulseUTC time.Time, systemClockAtPulse time.Time, reportedOffsetMs float64) Observation {
	trueOffsetMs := systemClockAtPulse.Sub(pulseUTC).Seconds() * 1000
	return Observation{
		Tier:       TierGPSPPS,
		UTC:        pulseUTC,
		ResidualMs: reportedOffsetMs - trueOffsetMs,
	}
}
