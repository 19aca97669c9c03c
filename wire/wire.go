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

// Package wire holds the wire-level data model shared by every phase
// of the pipeline: samples, packets, channel descriptors, and the
// signed wrap-aware arithmetic that RTP sequence numbers and
// timestamps require everywhere.
package wire

import (
	"github.com/pion/rtp"
)

// Sample is a single complex IQ sample.
type Sample struct {
	I float32
	Q float32
}

// Station identifies which standard-frequency broadcaster a channel
// is tuned to, or SHARED when co-channel discrimination is needed.
type Station string

// Recognised stations.
const (
	StationWWV     Station = "WWV"
	StationWWVH    Station = "WWVH"
	StationCHU     Station = "CHU"
	StationShared  Station = "SHARED"
	StationUnknown Station = ""
)

// ChannelDescriptor is immutable once a channel is opened.
type ChannelDescriptor struct {
	Name              string
	CenterFrequencyHz float64
	SampleRateHz      int
	StationHint       Station
	SSRC              uint32
}

// Packet is one RTP/AVP datagram carrying interleaved float32 IQ.
type Packet struct {
	Seq       uint16
	RTPTs     uint32
	SSRC      uint32
	Payload   []Sample
	Received  bool // false for a synthetic/never-seen packet
}

// ParsePacket decodes a raw RTP/AVP datagram into a Packet, unpacking
// the payload as interleaved big-endian float32 I/Q pairs. Only the
// sequence number, timestamp and SSRC are consumed from the header;
// no RTP extensions are expected from the SDR daemon's stream.
func ParsePacket(raw []byte) (*Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return nil, err
	}
	samples, err := DecodeIQ(pkt.Payload)
	if err != nil {
		return nil, err
	}
	return &Packet{
		Seq:      pkt.SequenceNumber,
		RTPTs:    pkt.Timestamp,
		SSRC:     pkt.SSRC,
		Payload:  samples,
		Received: true,
	}, nil
}

// SignedWrapU16 returns a-b as a signed difference in mod-2^16 space,
// the smallest-magnitude representative of the wraparound class. This
// is the only correct way to compare RTP sequence numbers.
func SignedWrapU16(a, b uint16) int32 {
	return int32(int16(a - b))
}

// SignedWrapU32 returns a-b as a signed difference in mod-2^32 space,
// for RTP timestamps.
func SignedWrapU32(a, b uint32) int64 {
	return int64(int32(a - b))
}

// AddSeq advances a sequence number by n, wrapping mod 2^16.
func AddSeq(seq uint16, n int) uint16 {
	return uint16(int32(seq) + int32(n))
}

// AddTs advances an RTP timestamp by n samples, wrapping mod 2^32.
func AddTs(ts uint32, n int64) uint32 {
	return uint32(int64(ts) + n)
}
