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

// Package orchestrator wires every component into one per-channel
// worker, supervises the workers with errgroup-per-channel isolation,
// and owns the process-wide concerns: the metrics registry, the
// global calibration registry, systemd readiness/watchdog signalling,
// and link/disk health monitoring.
package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the one process-wide Prometheus registry, with a thin
// per-component facade handed to each worker instead of the raw
// registry, so unit tests can substitute a no-op facade (see
// NopMetrics).
type Metrics struct {
	Registry *prometheus.Registry

	PacketsLost       *prometheus.CounterVec
	PacketsDuplicate  *prometheus.CounterVec
	Resyncs           *prometheus.CounterVec
	ArchiveWriteLatMs *prometheus.HistogramVec
	ArchiveQueueDepth *prometheus.GaugeVec
	ToneSNRdB         *prometheus.HistogramVec
	DiscriminationEnt *prometheus.HistogramVec
	KalmanInnovation   *prometheus.HistogramVec
	KalmanCovTrace     *prometheus.GaugeVec
	GroundTruthBiasMs  *prometheus.GaugeVec
	GroundTruthSigmaMs *prometheus.GaugeVec
	DiskFreeBytes      prometheus.Gauge
	LinkUpDownTotal    *prometheus.CounterVec
}

// NewMetrics registers every pipeline metric on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PacketsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wwvclock_packets_lost_total", Help: "RTP packets judged lost per channel",
		}, []string{"channel"}),
		PacketsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wwvclock_packets_duplicate_total", Help: "RTP packets judged duplicate per channel",
		}, []string{"channel"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wwvclock_resyncs_total", Help: "Resequencer resyncs per channel",
		}, []string{"channel"}),
		ArchiveWriteLatMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wwvclock_archive_write_latency_ms", Help: "Archive block write latency",
		}, []string{"channel"}),
		ArchiveQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wwvclock_archive_queue_depth", Help: "Pending samples queued for archive write",
		}, []string{"channel"}),
		ToneSNRdB: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wwvclock_tone_snr_db", Help: "Tone detector SNR",
		}, []string{"channel"}),
		DiscriminationEnt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wwvclock_discrimination_entropy", Help: "WWV/WWVH discriminator verdict entropy",
		}, []string{"channel"}),
		KalmanInnovation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wwvclock_kalman_innovation_ms", Help: "Kalman tracker innovation",
		}, []string{"channel"}),
		KalmanCovTrace: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wwvclock_kalman_covariance_trace", Help: "Kalman tracker covariance trace",
		}, []string{"channel"}),
		GroundTruthBiasMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wwvclock_groundtruth_bias_ms", Help: "Ground-truth validator residual bias",
		}, []string{"channel"}),
		GroundTruthSigmaMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wwvclock_groundtruth_sigma_ms", Help: "Ground-truth validator residual sigma",
		}, []string{"channel"}),
		DiskFreeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wwvclock_disk_free_bytes", Help: "Free bytes on the archive filesystem",
		}),
		LinkUpDownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wwvclock_link_updown_transitions_total", Help: "RTP ingress link up/down transitions",
		}, []string{"interface"}),
	}

	for _, c := range []prometheus.Collector{
		m.PacketsLost, m.PacketsDuplicate, m.Resyncs, m.ArchiveWriteLatMs, m.ArchiveQueueDepth,
		m.ToneSNRdB, m.DiscriminationEnt, m.KalmanInnovation, m.KalmanCovTrace,
		m.GroundTruthBiasMs, m.GroundTruthSigmaMs, m.DiskFreeBytes, m.LinkUpDownTotal,
	} {
		m.Registry.MustRegister(c)
	}
	return m
}

// ChannelFacade is the thin per-channel view of Metrics handed to
// workers, matching the shape of the grounding codebase's
// per-subsystem stats structs.
type ChannelFacade struct {
	channel string
	m       *Metrics
}

// Facade returns channel's metrics facade.
func (m *Metrics) Facade(channel string) ChannelFacade {
	return ChannelFacade{channel: channel, m: m}
}

func (f ChannelFacade) PacketLost()      { f.m.PacketsLost.WithLabelValues(f.channel).Inc() }
func (f ChannelFacade) PacketDuplicate() { f.m.PacketsDuplicate.WithLabelValues(f.channel).Inc() }
func (f ChannelFacade) Resync()          { f.m.Resyncs.WithLabelValues(f.channel).Inc() }

func (f ChannelFacade) ArchiveWriteLatencyMs(ms float64) {
	f.m.ArchiveWriteLatMs.WithLabelValues(f.channel).Observe(ms)
}
func (f ChannelFacade) ArchiveQueueDepth(n float64) {
	f.m.ArchiveQueueDepth.WithLabelValues(f.channel).Set(n)
}
func (f ChannelFacade) ToneSNRdB(db float64) {
	f.m.ToneSNRdB.WithLabelValues(f.channel).Observe(db)
}
func (f ChannelFacade) DiscriminationEntropy(e float64) {
	f.m.DiscriminationEnt.WithLabelValues(f.channel).Observe(e)
}
func (f ChannelFacade) KalmanInnovation(innov float64) {
	f.m.KalmanInnovation.WithLabelValues(f.channel).Observe(innov)
}
func (f ChannelFacade) KalmanCovarianceTrace(trace float64) {
	f.m.KalmanCovTrace.WithLabelValues(f.channel).Set(trace)
}
func (f ChannelFacade) GroundTruthBiasMs(bias float64) {
	f.m.GroundTruthBiasMs.WithLabelValues(f.channel).Set(bias)
}
func (f ChannelFacade) GroundTruthSigmaMs(sigma float64) {
	f.m.GroundTruthSigmaMs.WithLabelValues(f.channel).Set(sigma)
}
