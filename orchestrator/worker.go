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
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hfreceiver/wwvclock/archive"
	"github.com/hfreceiver/wwvclock/bcd"
	"github.com/hfreceiver/wwvclock/clockoffset"
	"github.com/hfreceiver/wwvclock/decimator"
	"github.com/hfreceiver/wwvclock/dsp"
	"github.com/hfreceiver/wwvclock/errs"
	"github.com/hfreceiver/wwvclock/groundtruth"
	"github.com/hfreceiver/wwvclock/ingest"
	"github.com/hfreceiver/wwvclock/ntpclient"
	"github.com/hfreceiver/wwvclock/series"
	"github.com/hfreceiver/wwvclock/timesnap"
	"github.com/hfreceiver/wwvclock/tone"
	"github.com/hfreceiver/wwvclock/wire"
)

// analyticsSampleRateHz is the rate the streaming tone detector and
// the per-minute BCD/Goertzel analysis always run at; every channel's
// raw ingest rate is decimated down to it regardless of its own
// sample_rate_hz.
const analyticsSampleRateHz = 3000

// defaultStartupBufferSec mirrors config.Phase2's default: 120 s of
// raw audio is the contract's startup detection window before falling
// back to NTP/wall clock.
const defaultStartupBufferSec = 120

// defaultNTPQueryTimeout bounds how long the one-shot SNTP fallback
// query may block a worker's packet-handling goroutine.
const defaultNTPQueryTimeout = 2 * time.Second

// NTPQueryFunc performs one SNTP exchange; WorkerConfig defaults to
// ntpclient.Query but accepts an override so tests never touch the
// network.
type NTPQueryFunc func(ctx context.Context, addr string, timeout time.Duration) (ntpclient.Result, error)

// WorkerConfig is everything a channel worker needs to own its slice
// of the pipeline, the per-channel half of Config (config.Channel,
// config.Archive and config.Phase2 flattened to what the worker
// actually consumes).
type WorkerConfig struct {
	Channel         string
	CenterFreqHz    float64
	SampleRateHz    int
	SSRC            uint32
	StationHint     wire.Station
	ArchiveStem     func(segmentStart time.Time) string
	SegmentDuration time.Duration
	MaxGap          time.Duration

	InnovationSigma      float64
	ResetOnDriftMsPerMin float64
	ProcessNoiseOffset   float64
	ProcessNoiseDrift    float64
	InitialSigmaMs       float64

	// StartupBufferSec is how many seconds of raw audio the startup
	// tone detector gets before this worker falls back to NTP, then
	// wall clock. Zero selects defaultStartupBufferSec.
	StartupBufferSec int
	// NTPServer is the "host:port" SNTP fallback server.
	NTPServer string
	// NTPQuery overrides the SNTP client, for tests. Nil selects
	// ntpclient.Query.
	NTPQuery NTPQueryFunc

	// ClockOffsetPath and DiscriminationPath, if non-empty, are where
	// this channel's live §6 series are appended one minute at a
	// time. Empty skips series emission for that series entirely.
	ClockOffsetPath    string
	DiscriminationPath string
}

// Worker owns one channel's full Phase 1/2 pipeline: a resequencer
// (C1), an archive writer (C2), tone/discrimination state (C4/C6), a
// Kalman accumulator (C9), and a TimeSnap, per channel, wired to the
// shared RTP source filtered by this channel's SSRC.
type Worker struct {
	cfg     WorkerConfig
	metrics ChannelFacade

	resequencer   *ingest.Resequencer
	discEx        *bcd.FeatureExtractor
	discriminator *bcd.Discriminator
	toneDetector  *tone.Detector
	adopter       *timesnap.Adopter
	fusion        *Fusion
	calStore      *CalibrationStore
	validator     *groundtruth.Validator

	writer        *archive.Writer
	segmentStart  time.Time
	segmentSeqLen int64

	analyticsDecimator *decimator.Decimator
	analyticsBuf       []float64
	minuteBoundary     time.Time
	minuteStartRTPTs   uint32

	startupBuf         []float64
	startupRTPTsAnchor uint32
	startupStartTime   time.Time
	startupDone        bool

	clockOffsetWriter    *series.ClockOffsetWriter
	discriminationWriter *series.DiscriminationWriter
}

// Fusion is the subset of clockoffset.Fusion's interface a worker
// needs: one broadcast accumulator per (station, frequency), owned by
// the orchestrator's calibration registry and shared read/write with
// every worker for that broadcast.
type Fusion = clockoffset.Fusion

// NewWorker creates a channel worker. fusion is shared with the
// calibration registry so every worker observing the same broadcast
// updates the same tracker; calStore is the per-broadcast calibration
// offset store, and validator is the process-wide ground-truth
// accumulator that silent-minute cross-checks publish into.
func NewWorker(cfg WorkerConfig, metrics ChannelFacade, fusion *Fusion, calStore *CalibrationStore, validator *groundtruth.Validator) (*Worker, error) {
	if cfg.StartupBufferSec <= 0 {
		cfg.StartupBufferSec = defaultStartupBufferSec
	}
	if cfg.NTPQuery == nil {
		cfg.NTPQuery = ntpclient.Query
	}

	w := &Worker{
		cfg:                cfg,
		metrics:            metrics,
		resequencer:        ingest.NewResequencer(cfg.Channel, cfg.SampleRateHz, cfg.MaxGap),
		discEx:             bcd.NewFeatureExtractor(60),
		toneDetector:       tone.NewDetector(cfg.StationHint, toneSNRFloorDB, toneAmbiguityBandDB),
		adopter:            timesnap.NewAdopter(),
		fusion:             fusion,
		calStore:           calStore,
		validator:          validator,
		segmentStart:       time.Time{},
		analyticsDecimator: decimator.New(cfg.SampleRateHz, analyticsSampleRateHz),
	}

	if cfg.ClockOffsetPath != "" {
		cw, err := series.NewClockOffsetWriter(cfg.ClockOffsetPath)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %s: opening clock-offset series: %w", cfg.Channel, err)
		}
		w.clockOffsetWriter = cw
	}
	if cfg.DiscriminationPath != "" {
		dw, err := series.NewDiscriminationWriter(cfg.DiscriminationPath)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %s: opening discrimination series: %w", cfg.Channel, err)
		}
		w.discriminationWriter = dw
	}

	return w, nil
}

// toneSNRFloorDB and toneAmbiguityBandDB are the streaming detector's
// per-minute poor-SNR and ambiguity thresholds; reasonable working
// defaults for a narrowband marker tone, not separately configured
// since every channel in this pipeline shares the same RF chain
// characteristics.
const (
	toneSNRFloorDB      = 6.0
	toneAmbiguityBandDB = 2.0
)

// RunStreamingTone searches one decimated minute-boundary window for
// this worker's station marker tone and, on a confident detection,
// offers an upgraded TimeSnap to the adopter.
func (w *Worker) RunStreamingTone(windowSamples []float64, windowStartSec, otherStationMag float64, rtpTsAtWindowStart uint32) (tone.Detection, error) {
	det, err := w.toneDetector.Run(windowSamples, windowStartSec, otherStationMag)
	if err != nil {
		return det, err
	}
	w.metrics.ToneSNRdB(det.SNRdB)

	deltaSamples := int64(det.OnsetSec * float64(w.cfg.SampleRateHz))
	snap := timesnap.TimeSnap{
		RTPTsAnchor:   wire.AddTs(rtpTsAtWindowStart, deltaSamples),
		UTCAnchor:     float64(windowStartSec),
		SampleRate:    w.cfg.SampleRateHz,
		Source:        timesnap.SourceToneRunning,
		Confidence:    det.Confidence,
		Station:       w.cfg.StationHint,
		EstablishedAt: time.Now(),
	}
	w.adopter.Offer(snap)
	return det, nil
}

// SetDiscriminator installs the trained WWV/WWVH classifier; wired
// separately from NewWorker since the discriminator's weights are
// loaded once at orchestrator startup and shared by every worker.
func (w *Worker) SetDiscriminator(d *bcd.Discriminator) { w.discriminator = d }

// TimeSnap returns the worker's currently adopted TimeSnap, or nil if
// none has been established yet.
func (w *Worker) TimeSnap() *timesnap.TimeSnap { return w.adopter.Current() }

// AdoptSeed force-sets this worker's TimeSnap from a restored
// checkpoint, bypassing the upgrade check, used only by
// TimeSnapRegistry.Restore at orchestrator startup.
func (w *Worker) AdoptSeed(snap timesnap.TimeSnap) { w.adopter.Seed(snap) }

// rollSegment closes the current archive segment, if any, and opens a
// fresh one starting at startTime/startRTPTs.
func (w *Worker) rollSegment(startTime time.Time, startRTPTs uint32) error {
	if w.writer != nil {
		if err := w.writer.Close(); err != nil {
			return fmt.Errorf("orchestrator: closing segment for %s: %w", w.cfg.Channel, err)
		}
	}
	meta := archive.Meta{
		ChannelName:    w.cfg.Channel,
		CenterFreqHz:   w.cfg.CenterFreqHz,
		SampleRateHz:   w.cfg.SampleRateHz,
		StartUTCSystem: startTime,
		StartRTPTs:     startRTPTs,
		SSRC:           w.cfg.SSRC,
	}
	writer, err := archive.NewWriter(w.cfg.ArchiveStem(startTime), meta)
	if err != nil {
		return fmt.Errorf("orchestrator: opening segment for %s: %w", w.cfg.Channel, err)
	}
	w.writer = writer
	w.segmentStart = startTime
	w.segmentSeqLen = 0
	return nil
}

// HandlePacket feeds one arrived RTP packet through the resequencer
// and archive writer, rolling to a fresh segment on the configured
// cadence or whenever the resequencer forces a resync (a resync
// invalidates the current TimeSnap's RTP anchor, so the segment
// boundary and the anchor boundary should coincide), and drives the
// per-minute analytical loop (startup/streaming tone detection, BCD
// observation, Kalman fusion, series emission) from the same samples.
func (w *Worker) HandlePacket(tp ingest.TimedPacket) error {
	if w.writer == nil {
		if err := w.rollSegment(tp.SystemTime, tp.Packet.RTPTs); err != nil {
			return err
		}
	}

	result, err := w.resequencer.Ingest(tp.Packet)
	var cerr *errs.ComponentError
	if err != nil && !errors.As(err, &cerr) {
		return err
	}
	if cerr != nil {
		switch cerr.Kind {
		case errs.KindPacketDuplicate:
			w.metrics.PacketDuplicate()
		case errs.KindPacketTooOld:
			w.metrics.PacketLost()
		case errs.KindResync:
			w.metrics.Resync()
		}
	}

	if result == nil {
		return nil
	}
	if len(result.Gaps) > 0 {
		for _, g := range result.Gaps {
			if err := w.writer.WriteGap(archive.GapRecord{StartIndex: w.segmentSeqLen, NZeros: g.NSamples, CauseCode: string(g.Cause)}); err != nil {
				return err
			}
		}
	}
	if len(result.Samples) > 0 {
		start := time.Now()
		if err := w.writer.WriteSamples(result.Samples); err != nil {
			return errs.NewFatal(errs.KindArchiveWriteFailed, w.cfg.Channel, err)
		}
		w.metrics.ArchiveWriteLatencyMs(float64(time.Since(start).Milliseconds()))
		w.segmentSeqLen += int64(len(result.Samples))

		w.feedAnalytics(result.Samples, tp)
	}

	if result.Resynced && w.cfg.SegmentDuration > 0 {
		if err := w.rollSegment(tp.SystemTime, tp.Packet.RTPTs); err != nil {
			return err
		}
	} else if w.cfg.SegmentDuration > 0 && tp.SystemTime.Sub(w.segmentStart) >= w.cfg.SegmentDuration {
		if err := w.rollSegment(tp.SystemTime, tp.Packet.RTPTs); err != nil {
			return err
		}
	}
	return nil
}

// feedAnalytics drives the worker's startup detector (while no
// TimeSnap has been adopted yet) and the minute-boundary scheduler
// that runs the streaming tone/BCD/Kalman loop, C13's dispatch.
func (w *Worker) feedAnalytics(samples []wire.Sample, tp ingest.TimedPacket) {
	mags := sampleMagnitudes(samples)

	if w.TimeSnap() == nil {
		w.advanceStartup(mags, tp)
	}

	dec := w.analyticsDecimator.Process(mags)
	if len(dec) == 0 {
		return
	}

	if w.minuteBoundary.IsZero() {
		w.minuteBoundary = tp.SystemTime.Truncate(time.Minute)
		w.minuteStartRTPTs = tp.Packet.RTPTs
	}
	w.analyticsBuf = append(w.analyticsBuf, dec...)

	currentMinute := tp.SystemTime.Truncate(time.Minute)
	if currentMinute.After(w.minuteBoundary) {
		w.runMinuteAnalysis(w.minuteBoundary, w.minuteStartRTPTs)
		w.analyticsBuf = nil
		w.minuteBoundary = currentMinute
		w.minuteStartRTPTs = tp.Packet.RTPTs
	}
}

// advanceStartup buffers raw, full-rate envelope-demodulated audio
// until either a confident startup tone detection succeeds or the
// configured buffer fills without one, at which point it falls back
// to an SNTP query and, failing that, the local wall clock (§4.19,
// §4.3 TimeSnapMissing).
func (w *Worker) advanceStartup(mags []float64, tp ingest.TimedPacket) {
	if w.startupDone {
		return
	}
	if len(w.startupBuf) == 0 {
		w.startupRTPTsAnchor = tp.Packet.RTPTs
		w.startupStartTime = tp.SystemTime
	}
	w.startupBuf = append(w.startupBuf, mags...)

	needed := w.cfg.StartupBufferSec * w.cfg.SampleRateHz
	if len(w.startupBuf) < needed {
		return
	}

	det, err := tone.DetectStartup(w.startupBuf, float64(w.cfg.SampleRateHz), w.cfg.StationHint)
	if err == nil {
		deltaSamples := int64(det.OnsetSec * float64(w.cfg.SampleRateHz))
		onset := w.startupStartTime.Add(time.Duration(det.OnsetSec * float64(time.Second)))
		snap := timesnap.TimeSnap{
			RTPTsAnchor:   wire.AddTs(w.startupRTPTsAnchor, deltaSamples),
			UTCAnchor:     float64(onset.Unix()) + float64(onset.Nanosecond())/float64(time.Second),
			SampleRate:    w.cfg.SampleRateHz,
			Source:        timesnap.SourceToneStartup,
			Confidence:    det.Confidence,
			Station:       w.cfg.StationHint,
			EstablishedAt: time.Now(),
		}
		w.adopter.Offer(snap)
		w.startupDone = true
		w.startupBuf = nil
		return
	}

	cerr := errs.New(errs.KindTimeSnapMissing, w.cfg.Channel,
		fmt.Errorf("no confident startup tone in %ds buffer: %w", w.cfg.StartupBufferSec, err))
	log.WithError(cerr).Warning("orchestrator: startup tone detection exhausted, falling back to NTP/wall clock")

	w.fallbackTimeSnap(tp)
	w.startupDone = true
	w.startupBuf = nil
}

// fallbackTimeSnap adopts an NTP-derived TimeSnap if the configured
// SNTP server answers within defaultNTPQueryTimeout, otherwise the
// lowest-tier wall-clock TimeSnap.
func (w *Worker) fallbackTimeSnap(tp ingest.TimedPacket) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultNTPQueryTimeout)
	defer cancel()

	now := time.Now()
	res, err := w.cfg.NTPQuery(ctx, w.cfg.NTPServer, defaultNTPQueryTimeout)
	if err != nil {
		log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: ntp fallback unreachable, adopting wall clock")
		w.adopter.Offer(timesnap.WallClockSnap(tp.Packet.RTPTs, w.cfg.SampleRateHz, w.cfg.StationHint, now))
		return
	}
	w.adopter.Offer(timesnap.NTPSnap(tp.Packet.RTPTs, w.cfg.SampleRateHz, w.cfg.StationHint, res.OffsetSec, res.RoundTripSec, now))
}

// runMinuteAnalysis is C13's per-minute dispatch: streaming tone
// search, BCD/Goertzel feature extraction, discrimination, calibrated
// Kalman fusion, ground-truth silent-minute cross-check, and live
// series emission, over one minute's decimated analytics buffer.
func (w *Worker) runMinuteAnalysis(minuteStart time.Time, rtpTsAtStart uint32) {
	buf := w.analyticsBuf
	if len(buf) == 0 {
		return
	}

	det, err := w.RunStreamingTone(buf, float64(minuteStart.Unix()), 0, rtpTsAtStart)
	if err != nil {
		log.WithError(err).WithField("channel", w.cfg.Channel).Debug("orchestrator: streaming tone unavailable this minute, skipping clock-offset update")
		return
	}

	obs := w.buildMinuteObservation(buf, minuteStart, det)

	freqMHz := w.cfg.CenterFreqHz / 1e6
	offset := clockoffset.Measurement{
		OffsetMs:        det.OnsetSec*1000 + w.calStore.OffsetFor(string(w.cfg.StationHint), freqMHz),
		ConfidenceSigma: sigmaFromConfidence(det.Confidence),
		DeltaMinutes:    1,
	}

	verdict, features, err := w.ObserveMinute(obs, offset)
	if err != nil {
		log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: observe-minute failed")
		return
	}

	w.emitSeries(minuteStart, offset, det, verdict, features)

	if ob, ok := groundtruth.CheckSilentMinute(minuteStart, minuteStart.Minute(), verdict); ok {
		w.validator.Observe(ob)
		w.calStore.Observe(ob.Station, freqMHz, ob.ResidualMs, time.Now())
	}
}

// buildMinuteObservation computes the five voting-feature inputs from
// one minute's decimated analytics buffer: Goertzel power at the two
// marker frequencies and the exclusive-minute/station-ID subcarriers,
// and BCD subcarrier correlation peaks against a synthesized 100 Hz
// reference template.
//
// DifferentialDopplerHz is approximated by this worker's own
// streaming detection's phase-slope Doppler rather than a true
// cross-station difference, since no second worker's detection is
// available here; a known simplification, not a cross-channel
// coordination feature.
func (w *Worker) buildMinuteObservation(buf []float64, minuteStart time.Time, det tone.Detection) bcd.MinuteObservation {
	env := bcd.Correlate(buf, bcdReferenceTemplate(analyticsSampleRateHz), analyticsSampleRateHz)
	peaks := bcd.DetectPeaks(env, analyticsSampleRateHz)
	wwvAmp, wwvhAmp := assignBCDPeaks(w.cfg.StationHint, peaks)

	return bcd.MinuteObservation{
		MinuteOfHour:          minuteStart.Minute(),
		Power1000dB:           dbFromPower(dsp.GoertzelPower(buf, analyticsSampleRateHz, 1000)),
		Power1200dB:           dbFromPower(dsp.GoertzelPower(buf, analyticsSampleRateHz, 1200)),
		WWVPeakAmplitude:      wwvAmp,
		WWVHPeakAmplitude:     wwvhAmp,
		Exclusive500600Energy: dsp.GoertzelPower(buf, analyticsSampleRateHz, 500) + dsp.GoertzelPower(buf, analyticsSampleRateHz, 600),
		StationIDEnergy:       dsp.GoertzelPower(buf, analyticsSampleRateHz, 440),
		DifferentialDopplerHz: det.DopplerHzPS,
	}
}

// bcdTemplateDurationSec sizes the synthesized BCD reference template
// against the 100 Hz subcarrier; long enough for several cycles
// windowed down to a clean correlation peak.
const bcdTemplateDurationSec = 0.2

// bcdReferenceTemplate synthesizes a Hann-windowed sinusoid at the BCD
// subcarrier frequency; no station ever transmits a literal reference
// waveform over the air, so one is built locally for cross-
// correlation against the demodulated subcarrier.
func bcdReferenceTemplate(sampleRateHz float64) []float64 {
	n := int(bcdTemplateDurationSec * sampleRateHz)
	if n < 2 {
		n = 2
	}
	window := dsp.HannWindow(n)
	w := 2 * math.Pi * bcd.SubcarrierHz / sampleRateHz
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(w*float64(i)) * window[i]
	}
	return out
}

// assignBCDPeaks maps up to two detected BCD correlation peaks to the
// WWV/WWVH amplitude slots, attributing the larger (first, since
// DetectPeaks returns amplitude-descending) peak to this worker's own
// station hint.
func assignBCDPeaks(station wire.Station, peaks []bcd.Peak) (wwvAmp, wwvhAmp float64) {
	if len(peaks) == 0 {
		return 0, 0
	}
	own := peaks[0].Amplitude
	var other float64
	if len(peaks) > 1 {
		other = peaks[1].Amplitude
	}
	if station == wire.StationWWVH {
		return other, own
	}
	return own, other
}

// dbFromPower converts a Goertzel power estimate to dB, flooring at a
// small epsilon so a silent minute never produces -Inf.
func dbFromPower(p float64) float64 {
	if p <= 0 {
		p = 1e-12
	}
	return 10 * math.Log10(p)
}

// sigmaFromConfidence maps a tone detection's [0,1] confidence to a
// measurement sigma in ms for the Kalman tracker: a confident
// detection narrows the uncertainty toward minSigmaMs, a weak one
// widens it toward maxSigmaMs.
func sigmaFromConfidence(confidence float64) float64 {
	const minSigmaMs, maxSigmaMs = 0.5, 50.0
	if confidence <= 0 {
		return maxSigmaMs
	}
	if confidence >= 1 {
		return minSigmaMs
	}
	return maxSigmaMs - confidence*(maxSigmaMs-minSigmaMs)
}

// sampleMagnitudes converts interleaved complex IQ samples to their
// envelope-demodulated magnitude, the real-valued input every tone
// and BCD detector in this package expects.
func sampleMagnitudes(samples []wire.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = math.Hypot(float64(s.I), float64(s.Q))
	}
	return out
}

// emitSeries appends this minute's clock-offset and discrimination
// rows to the live §6 series, if this worker was configured with
// series paths.
func (w *Worker) emitSeries(minuteStart time.Time, offset clockoffset.Measurement, det tone.Detection, verdict bcd.Verdict, features [5]float64) {
	dominant := string(wire.StationWWV)
	if verdict.PWWVH > verdict.PWWV {
		dominant = string(wire.StationWWVH)
	}

	if w.clockOffsetWriter != nil {
		row := series.ClockOffsetRow{
			SystemTime:    time.Now(),
			UTCTime:       minuteStart,
			DClockMs:      offset.OffsetMs,
			Station:       string(w.cfg.StationHint),
			FrequencyMHz:  w.cfg.CenterFreqHz / 1e6,
			Confidence:    det.Confidence,
			UncertaintyMs: offset.ConfidenceSigma,
		}
		if err := w.clockOffsetWriter.WriteRow(row); err != nil {
			log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: writing clock-offset series row failed")
		}
	}
	if w.discriminationWriter != nil {
		row := series.DiscriminationRow{
			MinuteUTC:       minuteStart,
			PWWV:            verdict.PWWV,
			PWWVH:           verdict.PWWVH,
			Confidence:      1 - verdict.Entropy,
			Entropy:         verdict.Entropy,
			DominantStation: dominant,
			FeatureVector:   features[:],
		}
		if err := w.discriminationWriter.WriteRow(row); err != nil {
			log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: writing discrimination series row failed")
		}
	}
}

// ObserveMinute runs the streaming per-minute discrimination and
// clock-offset update given an already-extracted BCD observation and
// a measured clock offset for this broadcast. It updates the
// discriminator's feature history, the worker's broadcast tracker in
// the shared fusion accumulator, and publishes metrics, returning the
// verdict and the feature vector that produced it so the caller can
// both cross-check the verdict against ground truth and emit it to
// the discrimination series without re-extracting (and so double-
// consuming the feature normalization windows).
func (w *Worker) ObserveMinute(obs bcd.MinuteObservation, offset clockoffset.Measurement) (bcd.Verdict, [5]float64, error) {
	features := w.discEx.Extract(obs)
	if w.discriminator == nil {
		return bcd.Verdict{}, features, fmt.Errorf("orchestrator: %s: no discriminator installed", w.cfg.Channel)
	}
	verdict := w.discriminator.Classify(features)
	w.metrics.DiscriminationEntropy(verdict.Entropy)
	if verdict.Uncertain {
		log.WithField("channel", w.cfg.Channel).Debug("orchestrator: discrimination uncertain this minute")
	}

	station := string(w.cfg.StationHint)
	key := clockoffset.BroadcastKey{Station: station, FrequencyHz: w.cfg.CenterFreqHz}
	prior := w.fusion.Tracker(key)
	var predictedMs float64
	if prior != nil {
		predictedMs = prior.OffsetMs() + prior.DriftMsPerMin()*offset.DeltaMinutes
	}
	if err := w.fusion.Observe(key, offset); err != nil {
		return verdict, features, fmt.Errorf("orchestrator: %s: observing clock offset: %w", w.cfg.Channel, err)
	}
	if t := w.fusion.Tracker(key); t != nil {
		if prior != nil {
			w.metrics.KalmanInnovation(offset.OffsetMs - predictedMs)
		}
		w.metrics.KalmanCovarianceTrace(t.SigmaMs() * t.SigmaMs())
		if t.DriftMsPerMin() > w.cfg.ResetOnDriftMsPerMin {
			log.WithFields(log.Fields{"channel": w.cfg.Channel, "drift_ms_per_min": t.DriftMsPerMin()}).
				Warning("orchestrator: broadcast drift exceeds reset threshold")
		}
	}
	return verdict, features, nil
}

// AdoptTimeSnap offers a newly computed TimeSnap (from the startup or
// streaming tone detector) to this worker's Adopter under the
// upgrade-never-downgrade rule.
func (w *Worker) AdoptTimeSnap(snap timesnap.TimeSnap) bool {
	return w.adopter.Offer(snap)
}

// Run drains the channel's ingest queue until ctx is cancelled or the
// queue closes, feeding every packet through HandlePacket. A fatal
// component error (archive write failure) stops the worker and
// returns the error so the owning errgroup can decide whether to shut
// down the rest of the channels.
func (w *Worker) Run(ctx context.Context, queue <-chan ingest.TimedPacket) error {
	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case tp, ok := <-queue:
			if !ok {
				return w.shutdown()
			}
			if err := w.HandlePacket(tp); err != nil {
				var cerr *errs.ComponentError
				if errors.As(err, &cerr) && !cerr.Recoverable {
					return err
				}
				log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: recoverable packet handling error")
			}
		}
	}
}

// shutdown closes the current segment so it becomes an immutable,
// valid-prefix archive even when shutdown is forced by the hard
// deadline: archive.Writer.Close never produces a partial trailing
// block, only a shorter-than-intended one. The live series writers,
// if any, are closed too.
func (w *Worker) shutdown() error {
	if w.clockOffsetWriter != nil {
		if err := w.clockOffsetWriter.Close(); err != nil {
			log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: closing clock-offset series failed")
		}
	}
	if w.discriminationWriter != nil {
		if err := w.discriminationWriter.Close(); err != nil {
			log.WithError(err).WithField("channel", w.cfg.Channel).Warning("orchestrator: closing discrimination series failed")
		}
	}
	if w.writer == nil {
		return nil
	}
	return w.writer.Close()
}

// Snapshot captures this worker's broadcast tracker state for
// persistence, keyed the same way the fusion accumulator is.
func (w *Worker) Snapshot() (clockoffset.BroadcastKey, clockoffset.State, bool) {
	key := clockoffset.BroadcastKey{Station: string(w.cfg.StationHint), FrequencyHz: w.cfg.CenterFreqHz}
	t := w.fusion.Tracker(key)
	if t == nil {
		return key, clockoffset.State{}, false
	}
	return key, t.Snapshot(), true
}

// Station returns the station this worker's channel is configured
// for, used by the discriminator cross-check with bcd's silent-minute
// table.
func (w *Worker) Station() wire.Station { return w.cfg.StationHint }
