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

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeDiskMonitor struct {
	free uint64
	err  error
}

func (f fakeDiskMonitor) FreeBytes(string) (uint64, error) { return f.free, f.err }

func TestWatchLinkRecordsTransitionOnStateChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockLinkMonitor(ctrl)
	// First poll: down. Second poll: up, a transition. Third poll: up
	// again, no new transition.
	gomock.InOrder(
		mock.EXPECT().Poll("eth0").Return(false, nil),
		mock.EXPECT().Poll("eth0").Return(true, nil),
		mock.EXPECT().Poll("eth0").Return(true, nil),
	)

	metrics := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		WatchLink(ctx, mock, "eth0", 5*time.Millisecond, metrics)
		close(done)
	}()

	require.Eventually(t, func() bool {
		v := testutilCounterValue(metrics.LinkUpDownTotal, "eth0")
		return v >= 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestWatchDiskPublishesFreeBytesGauge(t *testing.T) {
	metrics := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		WatchDisk(ctx, fakeDiskMonitor{free: 123456}, "/var/lib/wwvclock", 5*time.Millisecond, metrics)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutilGaugeValue(metrics.DiskFreeBytes) == 123456
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestWatchDiskToleratesTransientPollError(t *testing.T) {
	metrics := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		WatchDisk(ctx, fakeDiskMonitor{err: assert.AnError}, "/nonexistent", 5*time.Millisecond, metrics)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, float64(0), testutilGaugeValue(metrics.DiskFreeBytes))
}
