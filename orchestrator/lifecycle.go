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

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
)

// NotifyReady tells systemd the orchestrator has finished startup.
// Run calls it once every subsystem goroutine has been started; it
// does not wait for any channel worker's first packet, TimeSnap or
// archived block. A no-op, not an error, when not running under
// systemd (NOTIFY_SOCKET unset).
func NotifyReady() {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.WithError(err).Warning("orchestrator: systemd notify failed")
		return
	}
	if !supported {
		log.Debug("orchestrator: systemd notification socket not present, skipping readiness notify")
	}
}

// NotifyStopping tells systemd a graceful shutdown has begun.
func NotifyStopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.WithError(err).Warning("orchestrator: systemd stopping notify failed")
	}
}

// RunWatchdog pings systemd's watchdog at half its configured
// interval until ctx is cancelled, the standard "notify at less than
// the timeout" contract every long-running systemd service under
// WatchdogSec follows.
func RunWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.WithError(err).Warning("orchestrator: systemd watchdog notify failed")
			}
		}
	}
}
