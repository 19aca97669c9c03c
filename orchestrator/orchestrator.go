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
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hfreceiver/wwvclock/bcd"
	"github.com/hfreceiver/wwvclock/clockoffset"
	"github.com/hfreceiver/wwvclock/config"
	"github.com/hfreceiver/wwvclock/groundtruth"
	"github.com/hfreceiver/wwvclock/ingest"
	"github.com/hfreceiver/wwvclock/wire"
)

// hardShutdownDeadline bounds how long Shutdown waits for every
// worker to close its segment before giving up; a worker stuck past
// this returns with whatever was already written, a truncated-but-
// valid archive prefix rather than a hung process.
const hardShutdownDeadline = 30 * time.Second

// queueDepth is the bounded per-channel ingest queue size; beyond
// this the multicast ingress drops the oldest buffered packet rather
// than blocking the socket reader. Each drop is logged as a warning;
// no queue_overflow discontinuity is recorded for it.
const queueDepth = 256

// Per-broadcast Kalman tracker tuning shared by every channel: how
// much offset and drift are expected to wander per minute absent
// observations, and the initial state uncertainty before the first
// measurement narrows it.
const (
	trackerProcessNoiseOffset = 0.01
	trackerProcessNoiseDrift  = 0.0001
	trackerInitialSigmaMs     = 10.0
)

// Orchestrator wires every component into per-channel workers,
// supervises them with errgroup-per-channel isolation, and owns the
// process-wide concerns: the metrics registry, the shared calibration
// registry, the ground-truth validator, and link/disk health
// monitoring.
type Orchestrator struct {
	cfg     *config.Config
	metrics *Metrics

	ingress *ingest.MulticastIngress
	workers map[string]*Worker
	ssrcOf  map[string]uint32

	calibration *CalibrationRegistry
	calStore    *CalibrationStore
	timeSnaps   *TimeSnapRegistry
	validator   *groundtruth.Validator

	linkMonitor LinkMonitor
	diskMonitor DiskMonitor
}

// New builds an Orchestrator from a validated Config. discriminator is
// the pre-trained WWV/WWVH classifier shared by every channel worker.
func New(cfg *config.Config, discriminator *bcd.Discriminator) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config: %w", err)
	}

	metrics := NewMetrics()
	fusion := clockoffset.NewFusion(trackerProcessNoiseOffset, trackerProcessNoiseDrift, trackerInitialSigmaMs)
	calibration := NewCalibrationRegistry(fusion, cfg.StateRoot, trackerProcessNoiseOffset, trackerProcessNoiseDrift)
	calStore := NewCalibrationStore(cfg.StateRoot)

	ssrcs := make([]uint32, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		ssrcs = append(ssrcs, ch.SSRC)
	}
	ingress := ingest.NewMulticastIngress(ingest.SourceConfig{
		MulticastGroup: cfg.RTPSource.MulticastGroup,
		Port:           cfg.RTPSource.Port,
		Interface:      cfg.RTPSource.Interface,
	}, ssrcs, queueDepth)

	o := &Orchestrator{
		cfg:         cfg,
		metrics:     metrics,
		ingress:     ingress,
		workers:     make(map[string]*Worker, len(cfg.Channels)),
		ssrcOf:      make(map[string]uint32, len(cfg.Channels)),
		calibration: calibration,
		calStore:    calStore,
		validator:   groundtruth.NewValidator(),
		linkMonitor: NewLinkMonitor(),
		diskMonitor: NewDiskMonitor(),
	}

	segmentDuration := time.Duration(cfg.Archive.FileDurationSec) * time.Second
	for _, ch := range cfg.Channels {
		name := ch.Name
		wc := WorkerConfig{
			Channel:         ch.Name,
			CenterFreqHz:    ch.CenterFreqHz,
			SampleRateHz:    ch.SampleRateHz,
			SSRC:            ch.SSRC,
			StationHint:     stationFromHint(ch.StationHint),
			ArchiveStem:     func(start time.Time) string { return archiveStem(cfg.Archive.Root, name, start) },
			SegmentDuration: segmentDuration,

			InnovationSigma:      cfg.Phase2.InnovationSigma,
			ResetOnDriftMsPerMin: cfg.Phase2.ResetOnDriftMsPerMin,

			StartupBufferSec:   cfg.Phase2.StartupBufferSec,
			NTPServer:          cfg.Phase2.NTPServer,
			ClockOffsetPath:    filepath.Join(cfg.SeriesRoot, name, "clock_offset.csv"),
			DiscriminationPath: filepath.Join(cfg.SeriesRoot, name, "discrimination.csv"),
		}
		if err := os.MkdirAll(filepath.Join(cfg.SeriesRoot, name), 0o755); err != nil {
			return nil, fmt.Errorf("orchestrator: creating series directory for %s: %w", name, err)
		}
		w, err := NewWorker(wc, metrics.Facade(ch.Name), fusion, calStore, o.validator)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: creating worker for %s: %w", name, err)
		}
		w.SetDiscriminator(discriminator)
		o.workers[ch.Name] = w
		o.ssrcOf[ch.Name] = ch.SSRC
	}

	o.timeSnaps = NewTimeSnapRegistry(o.workers, cfg.StateRoot)
	o.validator.Subscribe(o.onGroundTruthUpdate)
	return o, nil
}

// stationFromHint maps a config channel's station_hint string to the
// wire.Station type the rest of the pipeline uses; an unrecognised
// hint leaves the worker with StationUnknown, so its discrimination
// verdicts and silent-minute cross-checks are skipped rather than
// mislabeled.
func stationFromHint(hint string) wire.Station {
	switch wire.Station(hint) {
	case wire.StationWWV, wire.StationWWVH, wire.StationCHU, wire.StationShared:
		return wire.Station(hint)
	default:
		return wire.StationUnknown
	}
}

func archiveStem(root, channel string, start time.Time) string {
	return filepath.Join(root, channel, start.UTC().Format("20060102T150405Z"))
}

// onGroundTruthUpdate is the validator's publish callback; it never
// reaches back into a worker's tracker state, only logs and exposes
// the recommendation via metrics, per the ground-truth validator's
// publish/subscribe contract.
func (o *Orchestrator) onGroundTruthUpdate(u groundtruth.Update) {
	for channel := range o.workers {
		facade := o.metrics.Facade(channel)
		facade.GroundTruthBiasMs(u.BiasMs)
		facade.GroundTruthSigmaMs(u.SigmaMs)
	}
}

// Run starts every subsystem and blocks until ctx is cancelled or a
// fatal worker error occurs, at which point every other worker is
// also stopped.
func (o *Orchestrator) Run(ctx context.Context) error {
	now := time.Now()
	o.calibration.Restore(now)
	o.calStore.Restore(now)
	o.timeSnaps.Restore(now)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return o.ingress.Run(gctx) })

	for name, w := range o.workers {
		channel, worker := name, w
		queue := o.ingress.Queue(o.ssrcOf[channel])
		g.Go(func() error { return worker.Run(gctx, queue) })
	}

	g.Go(func() error { o.runCheckpointLoop(gctx); return nil })
	g.Go(func() error { RunWatchdog(gctx); return nil })
	if o.cfg.RTPSource.Interface != "" {
		g.Go(func() error {
			WatchLink(gctx, o.linkMonitor, o.cfg.RTPSource.Interface, 10*time.Second, o.metrics)
			return nil
		})
	}
	g.Go(func() error {
		WatchDisk(gctx, o.diskMonitor, o.cfg.Archive.Root, 30*time.Second, o.metrics)
		return nil
	})

	NotifyReady()
	err := g.Wait()
	NotifyStopping()
	return err
}

// runCheckpointLoop checkpoints the calibration registry on the
// configured periodic cadence until ctx is cancelled, and once more
// on the way out so a clean shutdown never loses the last interval's
// convergence.
func (o *Orchestrator) runCheckpointLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.Phase2.PeriodicToneCheckSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.checkpointAll()
			return
		case <-ticker.C:
			o.checkpointAll()
		}
	}
}

// checkpointAll atomically publishes every process-wide piece of
// persisted state: broadcast Kalman trackers, per-broadcast
// calibration offsets, and every worker's adopted TimeSnap.
func (o *Orchestrator) checkpointAll() {
	now := time.Now()
	if err := o.calibration.Checkpoint(now); err != nil {
		log.WithError(err).Warning("orchestrator: calibration checkpoint failed")
	}
	if err := o.calStore.Checkpoint(now); err != nil {
		log.WithError(err).Warning("orchestrator: broadcast calibration checkpoint failed")
	}
	if err := o.timeSnaps.Checkpoint(now); err != nil {
		log.WithError(err).Warning("orchestrator: time-snap checkpoint failed")
	}
}

// Shutdown cancels the orchestrator's context and waits up to
// hardShutdownDeadline for Run to return, the "truncate at last valid
// frame" contract: every worker's archive segment closes cleanly if
// it can, but a worker stuck past the deadline is abandoned rather
// than blocking process exit.
func (o *Orchestrator) Shutdown(cancel context.CancelFunc, done <-chan error) error {
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(hardShutdownDeadline):
		return fmt.Errorf("orchestrator: shutdown exceeded %s deadline", hardShutdownDeadline)
	}
}

// Validator exposes the ground-truth validator so external tiers
// (GPS PPS, silent minute, propagation mode) can publish observations
// into it.
func (o *Orchestrator) Validator() *groundtruth.Validator { return o.validator }

// Worker returns the named channel's worker, or nil if unknown.
func (o *Orchestrator) Worker(channel string) *Worker { return o.workers[channel] }
