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
	"time"

	"github.com/shirou/gopsutil/disk"
	log "github.com/sirupsen/logrus"
)

// DiskMonitor reports free space on the archive filesystem.
type DiskMonitor interface {
	FreeBytes(path string) (uint64, error)
}

type gopsutilDiskMonitor struct{}

// NewDiskMonitor creates the production DiskMonitor.
func NewDiskMonitor() DiskMonitor {
	return gopsutilDiskMonitor{}
}

func (gopsutilDiskMonitor) FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// WatchDisk polls path's free space every interval until ctx is
// cancelled, publishing it to the disk-free gauge.
func WatchDisk(ctx context.Context, monitor DiskMonitor, path string, interval time.Duration, metrics *Metrics) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			free, err := monitor.FreeBytes(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Warning("orchestrator: disk poll failed")
				continue
			}
			if metrics != nil {
				metrics.DiskFreeBytes.Set(float64(free))
			}
		}
	}
}
