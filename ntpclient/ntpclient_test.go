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

package ntpclient

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// serveOnce answers exactly one SNTP request on a loopback socket,
// claiming stratum 1, echoing the request's transmit timestamp as the
// origin and stamping receive/transmit with its own current time; both
// ends share one clock, so the test can assert a near-zero offset.
func serveOnce(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	go func() {
		defer conn.Close()
		buf := make([]byte, packetSizeBytes)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil || n < packetSizeBytes {
			return
		}
		var req packet
		_ = binary.Read(bytes.NewReader(buf), binary.BigEndian, &req)

		now := time.Now()
		sec, frac := toNTPTime(now)
		resp := packet{
			Settings:     vnFourth<<3 | modeClient,
			Stratum:      1,
			OrigTimeSec:  req.OrigTimeSec,
			OrigTimeFrac: req.OrigTimeFrac,
			RxTimeSec:    sec,
			RxTimeFrac:   frac,
			TxTimeSec:    sec,
			TxTimeFrac:   frac,
		}
		var out bytes.Buffer
		_ = binary.Write(&out, binary.BigEndian, resp)
		_, _ = conn.WriteToUDP(out.Bytes(), addr)
	}()

	return conn.LocalAddr().String()
}

func TestQueryReturnsNearZeroOffsetAgainstLoopbackServer(t *testing.T) {
	addr := serveOnce(t)
	res, err := Query(context.Background(), addr, time.Second)
	require.NoError(t, err)
	require.Equal(t, uint8(1), res.Stratum)
	require.InDelta(t, 0, res.OffsetSec, 0.5)
	require.GreaterOrEqual(t, res.RoundTripSec, 0.0)
}

func TestQueryErrorsOnUnreachableServer(t *testing.T) {
	_, err := Query(context.Background(), "127.0.0.1:1", 100*time.Millisecond)
	require.Error(t, err)
}
