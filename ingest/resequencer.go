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

// Package ingest turns the arrival-order RTP stream from the SDR
// daemon's multicast fan-out into a strictly monotonic, gap-filled
// sample sequence (C1), and the multicast socket adapter that feeds
// it (C15).
package ingest

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hfreceiver/wwvclock/errs"
	"github.com/hfreceiver/wwvclock/wire"
)

// windowSize is the circular buffer's slot count; a seq delta of this
// magnitude or more forces a resync rather than an in-window wait.
const windowSize = 64

// defaultMaxGap is the default RTP-timestamp gap, in wall-clock time,
// beyond which the source is declared offline.
const defaultMaxGap = 10 * time.Second

// GapCause explains why a run of zero samples was inserted.
type GapCause string

// Recognised gap causes.
const (
	CauseGapFilled         GapCause = "gap_filled"
	CauseSourceUnavailable GapCause = "source_unavailable"
)

// Gap is one entry in a segment's gap manifest.
type Gap struct {
	StartRTPTs uint32
	NSamples   int64
	Cause      GapCause
}

// DrainResult is what one Ingest call produces: the newly-emitted
// dense sample run (starting wherever the previous call left off) and
// any gaps recorded while producing it.
type DrainResult struct {
	Samples []wire.Sample
	Gaps    []Gap
	// Resynced is true if this call forced a resync (seq window
	// overflow or a source-offline gap); the caller must re-anchor
	// its TimeSnap in that case.
	Resynced bool
}

// Resequencer reorders a single channel's arrival-order RTP packets
// into a dense, monotonic sample sequence. One Resequencer belongs
// exclusively to one channel worker.
type Resequencer struct {
	mu sync.Mutex

	channel    string
	sampleRate int
	maxGap     time.Duration

	slots [windowSize]*wire.Packet

	haveAnchor    bool
	expectedSeq   uint16
	expectedRTPTs uint32
}

// NewResequencer creates a Resequencer for one channel. maxGap of 0
// selects the default of 10 seconds.
func NewResequencer(channel string, sampleRate int, maxGap time.Duration) *Resequencer {
	if maxGap <= 0 {
		maxGap = defaultMaxGap
	}
	return &Resequencer{
		channel:    channel,
		sampleRate: sampleRate,
		maxGap:     maxGap,
	}
}

// maxGapSamples is the configured offline threshold expressed in samples.
func (r *Resequencer) maxGapSamples() int64 {
	return int64(r.maxGap.Seconds() * float64(r.sampleRate))
}

// Ingest accepts one packet in arrival order and returns whatever
// dense sample run could be drained as a result, which may be empty
// if the packet is merely buffered awaiting an earlier one.
func (r *Resequencer) Ingest(pkt *wire.Packet) (*DrainResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &DrainResult{}

	if !r.haveAnchor {
		r.resetAnchor(pkt.Seq, pkt.RTPTs)
		r.placeAndDrain(pkt, result)
		return result, nil
	}

	diff := wire.SignedWrapU16(pkt.Seq, r.expectedSeq)
	switch {
	case diff < 0:
		if -diff <= windowSize {
			log.WithFields(log.Fields{"channel": r.channel, "seq": pkt.Seq}).Debug("ingest: duplicate packet dropped")
			return result, errs.New(errs.KindPacketDuplicate, r.channel, nil)
		}
		log.WithFields(log.Fields{"channel": r.channel, "seq": pkt.Seq}).Warning("ingest: packet too old, dropped")
		return result, errs.New(errs.KindPacketTooOld, r.channel, nil)
	case diff >= windowSize:
		log.WithFields(log.Fields{"channel": r.channel, "seq": pkt.Seq, "expected": r.expectedSeq}).
			Warning("ingest: seq window overflow, resyncing")
		r.flush()
		r.resetAnchor(pkt.Seq, pkt.RTPTs)
		r.placeAndDrain(pkt, result)
		result.Resynced = true
		return result, errs.New(errs.KindResync, r.channel, nil)
	default:
		r.placeAndDrain(pkt, result)
		if result.Resynced {
			return result, errs.New(errs.KindResync, r.channel, nil)
		}
		return result, nil
	}
}

// resetAnchor re-anchors expected seq/rtp_ts to start exactly at the
// given packet, used on first packet and on every resync.
func (r *Resequencer) resetAnchor(seq uint16, rtpTs uint32) {
	r.haveAnchor = true
	r.expectedSeq = seq
	r.expectedRTPTs = rtpTs
}

// flush clears every buffered slot, discarding any packets that had
// arrived early and were waiting on an earlier gap to fill.
func (r *Resequencer) flush() {
	for i := range r.slots {
		r.slots[i] = nil
	}
}

// placeAndDrain stores pkt in its slot and drains every contiguous
// run now available starting at expectedSeq.
func (r *Resequencer) placeAndDrain(pkt *wire.Packet, result *DrainResult) {
	r.slots[pkt.Seq%windowSize] = pkt
	r.drain(result)
}

// drain emits samples for every contiguous slot present starting at
// expectedSeq, zero-filling any rtp_ts gap ahead of each one.
func (r *Resequencer) drain(result *DrainResult) {
	for {
		slotIdx := r.expectedSeq % windowSize
		pkt := r.slots[slotIdx]
		if pkt == nil {
			return
		}

		jump := wire.SignedWrapU32(pkt.RTPTs, r.expectedRTPTs)
		switch {
		case jump < 0:
			// Packet from the past relative to our drain cursor: the
			// seq said it was next, but its rtp_ts precedes what
			// we've already emitted. Discard it and move on.
			log.WithFields(log.Fields{"channel": r.channel, "seq": pkt.Seq}).
				Warning("ingest: negative rtp_ts jump inside window, discarding")
			r.slots[slotIdx] = nil
			r.expectedSeq = wire.AddSeq(r.expectedSeq, 1)
			continue
		case jump > r.maxGapSamples():
			log.WithFields(log.Fields{"channel": r.channel, "gap_samples": jump}).
				Warning("ingest: gap exceeds source-offline threshold, resyncing")
			result.Gaps = append(result.Gaps, Gap{
				StartRTPTs: r.expectedRTPTs,
				NSamples:   jump,
				Cause:      CauseSourceUnavailable,
			})
			r.flush()
			r.resetAnchor(pkt.Seq, pkt.RTPTs)
			result.Resynced = true
			// fall through to re-place this same packet under the new anchor
			r.slots[pkt.Seq%windowSize] = pkt
			continue
		case jump > 0:
			result.Samples = append(result.Samples, zeroSamples(jump)...)
			result.Gaps = append(result.Gaps, Gap{
				StartRTPTs: r.expectedRTPTs,
				NSamples:   jump,
				Cause:      CauseGapFilled,
			})
			r.expectedRTPTs = wire.AddTs(r.expectedRTPTs, jump)
		}

		result.Samples = append(result.Samples, pkt.Payload...)
		r.expectedRTPTs = wire.AddTs(r.expectedRTPTs, int64(len(pkt.Payload)))
		r.expectedSeq = wire.AddSeq(r.expectedSeq, 1)
		r.slots[slotIdx] = nil
	}
}

func zeroSamples(n int64) []wire.Sample {
	out := make([]wire.Sample, n)
	return out
}

// FlushTrailing is called at shutdown: it emits zero samples for any
// still-pending gap up to upToRTPTs without waiting for more packets,
// so the archive segment closes on an exact sample-count boundary.
func (r *Resequencer) FlushTrailing(upToRTPTs uint32) *DrainResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &DrainResult{}
	if !r.haveAnchor {
		return result
	}
	jump := wire.SignedWrapU32(upToRTPTs, r.expectedRTPTs)
	if jump <= 0 {
		return result
	}
	result.Samples = zeroSamples(jump)
	result.Gaps = append(result.Gaps, Gap{
		StartRTPTs: r.expectedRTPTs,
		NSamples:   jump,
		Cause:      CauseSourceUnavailable,
	})
	r.expectedRTPTs = upToRTPTs
	return result
}
