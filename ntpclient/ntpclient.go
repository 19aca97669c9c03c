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

// Package ntpclient implements a minimal SNTP v4 client request/reply
// exchange, the fallback time source a channel worker falls back to
// when 120 s pass with no confident marker-tone detection. The wire
// packet mirrors the NTPv4 layout byte for byte.
package ntpclient

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// packetSizeBytes is the fixed NTPv4 packet size.
const packetSizeBytes = 48

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// packet is an NTPv4 packet, laid out identically to the wire format
// so binary.Write/Read can (de)serialize it directly.
type packet struct {
	Settings       uint8
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      uint32
	RootDispersion uint32
	ReferenceID    uint32
	RefTimeSec     uint32
	RefTimeFrac    uint32
	OrigTimeSec    uint32
	OrigTimeFrac   uint32
	RxTimeSec      uint32
	RxTimeFrac     uint32
	TxTimeSec      uint32
	TxTimeFrac     uint32
}

const (
	liNoWarning = 0
	vnFourth    = 4
	modeClient  = 3
)

func toNTPTime(t time.Time) (sec, frac uint32) {
	secs := t.Unix() + ntpEpochOffset
	nsec := t.Nanosecond()
	sec = uint32(secs)
	frac = uint32((int64(nsec) << 32) / 1e9)
	return sec, frac
}

func fromNTPTime(sec, frac uint32) time.Time {
	secs := int64(sec) - ntpEpochOffset
	nsec := (int64(frac) * 1e9) >> 32
	return time.Unix(secs, nsec).UTC()
}

// Result is one completed SNTP exchange: the server's clock offset
// relative to the local clock and the measured round-trip time.
type Result struct {
	OffsetSec    float64
	RoundTripSec float64
	Stratum      uint8
}

// Query performs one SNTP request/response exchange against addr
// ("host:123"), computing the offset with the standard four-timestamp
// NTP formula: offset = ((T2-T1) + (T3-T4)) / 2.
func Query(ctx context.Context, addr string, timeout time.Duration) (Result, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return Result{}, fmt.Errorf("ntpclient: dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Result{}, fmt.Errorf("ntpclient: setting deadline: %w", err)
	}

	t1 := time.Now()
	req := packet{Settings: vnFourth<<3 | modeClient}
	req.OrigTimeSec, req.OrigTimeFrac = toNTPTime(t1)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req); err != nil {
		return Result{}, fmt.Errorf("ntpclient: encoding request: %w", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("ntpclient: sending request: %w", err)
	}

	resp := make([]byte, packetSizeBytes)
	n, err := conn.Read(resp)
	if err != nil {
		return Result{}, fmt.Errorf("ntpclient: reading response: %w", err)
	}
	t4 := time.Now()
	if n < packetSizeBytes {
		return Result{}, fmt.Errorf("ntpclient: short response (%d bytes)", n)
	}

	var rp packet
	if err := binary.Read(bytes.NewReader(resp), binary.BigEndian, &rp); err != nil {
		return Result{}, fmt.Errorf("ntpclient: decoding response: %w", err)
	}
	if rp.Stratum == 0 {
		return Result{}, fmt.Errorf("ntpclient: server reported kiss-of-death (stratum 0)")
	}

	t2 := fromNTPTime(rp.RxTimeSec, rp.RxTimeFrac)
	t3 := fromNTPTime(rp.TxTimeSec, rp.TxTimeFrac)

	offset := (t2.Sub(t1) + t3.Sub(t4)) / 2
	rtt := t4.Sub(t1) - t3.Sub(t2)

	return Result{
		OffsetSec:    offset.Seconds(),
		RoundTripSec: rtt.Seconds(),
		Stratum:      rp.Stratum,
	}, nil
}
