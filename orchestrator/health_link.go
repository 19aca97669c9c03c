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
	"fmt"
	"time"

	"github.com/jsimonetti/rtnetlink"
	log "github.com/sirupsen/logrus"
)

// LinkMonitor watches one network interface's operational state and
// counts up/down transitions, since the RTP ingress socket silently
// stops receiving rather than erroring when the underlying link
// drops.
type LinkMonitor interface {
	// Poll reports whether ifaceName is currently operationally up.
	Poll(ifaceName string) (up bool, err error)
}

// rtnetlinkLinkMonitor is the real LinkMonitor, backed by a netlink
// route socket.
type rtnetlinkLinkMonitor struct{}

// NewLinkMonitor creates the production LinkMonitor.
func NewLinkMonitor() LinkMonitor {
	return &rtnetlinkLinkMonitor{}
}

func (rtnetlinkLinkMonitor) Poll(ifaceName string) (bool, error) {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return false, fmt.Errorf("orchestrator: dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	links, err := conn.Link.List()
	if err != nil {
		return false, fmt.Errorf("orchestrator: listing links: %w", err)
	}
	for _, l := range links {
		if l.Attributes == nil || l.Attributes.Name != ifaceName {
			continue
		}
		return l.Attributes.OperationalState == rtnetlink.OperStateUp, nil
	}
	return false, fmt.Errorf("orchestrator: interface %q not found", ifaceName)
}

// WatchLink polls ifaceName every interval until ctx is cancelled,
// incrementing the link up/down transition metric and logging each
// transition.
func WatchLink(ctx context.Context, monitor LinkMonitor, ifaceName string, interval time.Duration, metrics *Metrics) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastUp := true // assume up until proven otherwise, avoids a spurious transition at startup
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			up, err := monitor.Poll(ifaceName)
			if err != nil {
				log.WithError(err).WithField("interface", ifaceName).Warning("orchestrator: link poll failed")
				continue
			}
			if up != lastUp {
				if metrics != nil {
					metrics.LinkUpDownTotal.WithLabelValues(ifaceName).Inc()
				}
				log.WithFields(log.Fields{"interface": ifaceName, "up": up}).Info("orchestrator: link state transition")
			}
			lastUp = up
		}
	}
}
