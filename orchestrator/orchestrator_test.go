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

	"github.com/hfreceiver/wwvclock/bcd"
	"github.com/hfreceiver/wwvclock/config"
	"github.com/hfreceiver/wwvclock/groundtruth"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Channels: []config.Channel{
			{Name: "wwv-10mhz", CenterFreqHz: 10_000_000, SampleRateHz: 20000, SSRC: 1, StationHint: "WWV"},
			{Name: "wwvh-10mhz", CenterFreqHz: 10_000_000, SampleRateHz: 20000, SSRC: 2, StationHint: "WWVH"},
		},
		RTPSource: config.RTPSource{MulticastGroup: "239.255.9.9", Port: 17845},
		Archive:   config.Archive{Root: t.TempDir()},
		StateRoot: t.TempDir(),
	}
}

func TestNewBuildsOneWorkerPerChannel(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	disc := bcd.NewDiscriminator([5]float64{1, 0, 0, 0, 0}, 0)
	o, err := New(cfg, disc)
	require.NoError(t, err)

	assert.NotNil(t, o.Worker("wwv-10mhz"))
	assert.NotNil(t, o.Worker("wwvh-10mhz"))
	assert.Nil(t, o.Worker("does-not-exist"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&config.Config{}, bcd.NewDiscriminator([5]float64{}, 0))
	assert.Error(t, err)
}

func TestOrchestratorValidatorPublishesToMetrics(t *testing.T) {
	cfg := testConfig(t)
	o, err := New(cfg, bcd.NewDiscriminator([5]float64{1, 0, 0, 0, 0}, 0))
	require.NoError(t, err)

	o.Validator().Observe(groundtruth.Observation{Tier: groundtruth.TierGPSPPS, ResidualMs: 1.5})

	v := testutilGaugeValue(o.metrics.GroundTruthBiasMs.WithLabelValues("wwv-10mhz"))
	assert.InDelta(t, 1.5, v, 1e-9)
}

func TestOrchestratorRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	o, err := New(cfg, bcd.NewDiscriminator([5]float64{1, 0, 0, 0, 0}, 0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after context cancellation")
	}
}
