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

package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/hfreceiver/wwvclock/wire"
)

// recvBufferBytes is generous because DSP consumers are bursty; the
// kernel socket buffer is the first line of defense against jitter.
const recvBufferBytes = 8 << 20

// maxDatagramBytes is comfortably above any RTP/AVP frame this stream
// produces (payload sample counts are small and fixed, e.g. 320 at
// 16 kHz).
const maxDatagramBytes = 4096

// TimedPacket is a parsed packet plus the system time it was pulled
// off the socket at — the only "system time" tag available here,
// since this process has no hardware RX timestamping path onto a
// multicast fan-out it does not originate.
type TimedPacket struct {
	Packet     *wire.Packet
	SystemTime time.Time
}

// SourceConfig describes the multicast group this adapter joins.
type SourceConfig struct {
	MulticastGroup string
	Port           int
	Interface      string
}

// MulticastIngress joins one multicast group and demultiplexes
// incoming RTP datagrams by SSRC into per-channel bounded queues.
type MulticastIngress struct {
	cfg      SourceConfig
	queues   map[uint32]chan TimedPacket
	queueLen int
}

// NewMulticastIngress creates an ingress adapter. Each known SSRC
// gets a bounded channel of depth queueLen; unrecognised SSRCs are
// logged at debug level and dropped rather than terminating the whole
// ingestor.
func NewMulticastIngress(cfg SourceConfig, ssrcs []uint32, queueLen int) *MulticastIngress {
	m := &MulticastIngress{cfg: cfg, queues: make(map[uint32]chan TimedPacket, len(ssrcs)), queueLen: queueLen}
	for _, ssrc := range ssrcs {
		m.queues[ssrc] = make(chan TimedPacket, queueLen)
	}
	return m
}

// Queue returns the bounded channel for one channel's SSRC, or nil if
// that SSRC was not registered.
func (m *MulticastIngress) Queue(ssrc uint32) <-chan TimedPacket {
	return m.queues[ssrc]
}

// Run joins the multicast group and pumps datagrams into the
// per-SSRC queues until ctx is cancelled. It never returns a
// recoverable error for an unrecognised SSRC or a malformed
// datagram — only a listen/read failure on the socket itself is
// fatal, since that is the "unrecoverable ingress socket failure"
// case in the error design.
func (m *MulticastIngress) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.MulticastGroup, m.cfg.Port)
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return fmt.Errorf("ingest: resolving multicast address %s: %w", addr, err)
	}

	var iface *net.Interface
	if m.cfg.Interface != "" {
		iface, err = net.InterfaceByName(m.cfg.Interface)
		if err != nil {
			return fmt.Errorf("ingest: resolving interface %s: %w", m.cfg.Interface, err)
		}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: udpAddr.IP, Port: udpAddr.Port})
	if err != nil {
		return fmt.Errorf("ingest: listening on %s: %w", addr, err)
	}
	defer conn.Close()

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetReadBuffer(recvBufferBytes); err != nil {
		log.WithError(err).Warning("ingest: failed to grow socket read buffer")
	}
	if err := pconn.JoinGroup(iface, &net.UDPAddr{IP: udpAddr.IP}); err != nil {
		return fmt.Errorf("ingest: joining multicast group %s: %w", udpAddr.IP, err)
	}
	defer pconn.LeaveGroup(iface, &net.UDPAddr{IP: udpAddr.IP})

	buf := make([]byte, maxDatagramBytes)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		n, _, _, err := pconn.ReadFrom(buf)
		systemTime := time.Now()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ingest: reading from socket: %w", err)
			}
		}

		pkt, err := wire.ParsePacket(buf[:n])
		if err != nil {
			log.WithError(err).Warning("ingest: dropping malformed datagram")
			continue
		}

		q, ok := m.queues[pkt.SSRC]
		if !ok {
			log.WithField("ssrc", pkt.SSRC).Debug("ingest: dropping datagram for unregistered SSRC")
			continue
		}

		select {
		case q <- TimedPacket{Packet: pkt, SystemTime: systemTime}:
		default:
			log.WithField("ssrc", pkt.SSRC).Warning("ingest: per-channel queue full, dropping oldest")
			select {
			case <-q:
			default:
			}
			select {
			case q <- TimedPacket{Packet: pkt, SystemTime: systemTime}:
			default:
			}
		}
	}
}
