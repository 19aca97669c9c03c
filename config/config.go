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

// Package config loads and validates the pipeline's YAML
// configuration, the same ReadConfig/EvalAndValidate shape as the
// grounding codebase's daemon configuration: strict-unknown-field
// unmarshalling followed by one validation pass that rejects an
// invalid config before any worker starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// Channel is one entry in channels[]: which station/frequency the
// orchestrator activates a worker for.
type Channel struct {
	Name         string  `yaml:"name"`
	CenterFreqHz float64 `yaml:"center_freq_hz"`
	SampleRateHz int     `yaml:"sample_rate_hz"`
	SSRC         uint32  `yaml:"ssrc"`
	StationHint  string  `yaml:"station_hint"`
}

// RTPSource is the ingress multicast configuration.
type RTPSource struct {
	MulticastGroup string `yaml:"multicast_group"`
	Port           int    `yaml:"port"`
	Interface      string `yaml:"interface"`
}

// Archive is the Phase 1 output configuration.
type Archive struct {
	Root             string `yaml:"root"`
	FileDurationSec  int    `yaml:"file_duration_sec"`
	CompressionLevel int    `yaml:"compression_level"`
}

// Phase2 tunes the tone/discrimination/Kalman pipeline.
type Phase2 struct {
	StartupBufferSec     int     `yaml:"startup_buffer_sec"`
	PeriodicToneCheckSec int     `yaml:"periodic_tone_check_sec"`
	InnovationSigma      float64 `yaml:"innovation_sigma"`
	ResetOnDriftMsPerMin float64 `yaml:"reset_on_drift_ms_per_min"`

	// NTPServer is the "host:port" SNTP fallback queried when no
	// confident marker-tone detection arrives within StartupBufferSec.
	NTPServer string `yaml:"ntp_server"`
}

// Phase3 tunes the corrected-product generator.
type Phase3 struct {
	StreamingLatencySec int `yaml:"streaming_latency_sec"`
	OutputRateHz        int `yaml:"output_rate_hz"`
}

// Config is the top-level configuration surface (§6).
type Config struct {
	Channels  []Channel `yaml:"channels"`
	RTPSource RTPSource `yaml:"rtp_source"`
	Archive   Archive   `yaml:"archive"`
	Phase2    Phase2    `yaml:"phase2"`
	Phase3    Phase3    `yaml:"phase3"`
	StateRoot string    `yaml:"state_root"`
	LogLevel  string    `yaml:"log_level"`

	// SeriesRoot is where the live §6 clock-offset and discrimination
	// CSV series are appended, one directory per channel. Empty
	// selects archive.root/series.
	SeriesRoot string `yaml:"series_root"`
}

// defaults applies the spec's documented defaults to any field left
// at its zero value, the same way the grounding codebase leaves
// defaulting to the config author's YAML but documents the effective
// value when a field is omitted.
func (c *Config) defaults() {
	if c.Phase2.StartupBufferSec == 0 {
		c.Phase2.StartupBufferSec = 120
	}
	if c.Phase2.PeriodicToneCheckSec == 0 {
		c.Phase2.PeriodicToneCheckSec = 300
	}
	if c.Phase2.InnovationSigma == 0 {
		c.Phase2.InnovationSigma = 5
	}
	if c.Phase2.ResetOnDriftMsPerMin == 0 {
		c.Phase2.ResetOnDriftMsPerMin = 0.1
	}
	if c.Phase2.NTPServer == "" {
		c.Phase2.NTPServer = "pool.ntp.org:123"
	}
	if c.Phase3.StreamingLatencySec == 0 {
		c.Phase3.StreamingLatencySec = 120
	}
	if c.Phase3.OutputRateHz == 0 {
		c.Phase3.OutputRateHz = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects an invalid config before any worker starts.
func (c *Config) Validate() error {
	c.defaults()

	if len(c.Channels) == 0 {
		return fmt.Errorf("bad config: at least one channel must be configured")
	}
	seen := map[string]bool{}
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("bad config: channel missing 'name'")
		}
		if seen[ch.Name] {
			return fmt.Errorf("bad config: duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = true
		if ch.CenterFreqHz <= 0 {
			return fmt.Errorf("bad config: channel %q: 'center_freq_hz' must be >0", ch.Name)
		}
		if ch.SampleRateHz <= 0 {
			return fmt.Errorf("bad config: channel %q: 'sample_rate_hz' must be >0", ch.Name)
		}
	}

	if c.RTPSource.MulticastGroup == "" {
		return fmt.Errorf("bad config: 'rtp_source.multicast_group' is required")
	}
	if c.RTPSource.Port <= 0 {
		return fmt.Errorf("bad config: 'rtp_source.port' must be >0")
	}

	if c.Archive.Root == "" {
		return fmt.Errorf("bad config: 'archive.root' is required")
	}
	if c.Archive.CompressionLevel < 0 || c.Archive.CompressionLevel > 9 {
		return fmt.Errorf("bad config: 'archive.compression_level' must be between 0 and 9")
	}

	if c.Phase2.InnovationSigma <= 0 {
		return fmt.Errorf("bad config: 'phase2.innovation_sigma' must be >0")
	}
	if c.Phase2.ResetOnDriftMsPerMin <= 0 {
		return fmt.Errorf("bad config: 'phase2.reset_on_drift_ms_per_min' must be >0")
	}

	if c.Phase3.OutputRateHz <= 0 {
		return fmt.Errorf("bad config: 'phase3.output_rate_hz' must be >0")
	}

	if c.StateRoot == "" {
		return fmt.Errorf("bad config: 'state_root' is required")
	}
	if c.SeriesRoot == "" {
		c.SeriesRoot = filepath.Join(c.Archive.Root, "series")
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error", "fatal":
	default:
		return fmt.Errorf("bad config: unrecognised 'log_level' %q", c.LogLevel)
	}

	return nil
}

// ReadConfig reads path and strictly unmarshals it into Config,
// rejecting unknown fields the same way the grounding codebase's
// ReadConfig does via yaml.UnmarshalStrict.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	c := Config{}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &c, nil
}
