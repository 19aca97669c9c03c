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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
channels:
  - name: wwv-10mhz
    center_freq_hz: 10000000
    sample_rate_hz: 20000
    ssrc: 1
    station_hint: WWV
rtp_source:
  multicast_group: 239.1.1.1
  port: 5004
  interface: eth0
archive:
  root: /var/lib/wwvclock/archive
  file_duration_sec: 3600
  compression_level: 9
state_root: /var/lib/wwvclock/state
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, validYAML)
	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 120, c.Phase2.StartupBufferSec)
	assert.Equal(t, 300, c.Phase2.PeriodicToneCheckSec)
	assert.Equal(t, 5.0, c.Phase2.InnovationSigma)
	assert.Equal(t, 0.1, c.Phase2.ResetOnDriftMsPerMin)
	assert.Equal(t, 120, c.Phase3.StreamingLatencySec)
	assert.Equal(t, 10, c.Phase3.OutputRateHz)
	assert.Equal(t, "info", c.LogLevel)
}

func TestValidateRejectsNoChannels(t *testing.T) {
	c := &Config{RTPSource: RTPSource{MulticastGroup: "239.1.1.1", Port: 1}, Archive: Archive{Root: "/tmp"}, StateRoot: "/tmp"}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsDuplicateChannelNames(t *testing.T) {
	c := &Config{
		Channels: []Channel{
			{Name: "a", CenterFreqHz: 1, SampleRateHz: 1},
			{Name: "a", CenterFreqHz: 1, SampleRateHz: 1},
		},
		RTPSource: RTPSource{MulticastGroup: "239.1.1.1", Port: 1},
		Archive:   Archive{Root: "/tmp"},
		StateRoot: "/tmp",
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsMissingMulticastGroup(t *testing.T) {
	c := &Config{
		Channels:  []Channel{{Name: "a", CenterFreqHz: 1, SampleRateHz: 1}},
		RTPSource: RTPSource{Port: 1},
		Archive:   Archive{Root: "/tmp"},
		StateRoot: "/tmp",
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadCompressionLevel(t *testing.T) {
	c := &Config{
		Channels:  []Channel{{Name: "a", CenterFreqHz: 1, SampleRateHz: 1}},
		RTPSource: RTPSource{MulticastGroup: "239.1.1.1", Port: 1},
		Archive:   Archive{Root: "/tmp", CompressionLevel: 99},
		StateRoot: "/tmp",
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnrecognisedLogLevel(t *testing.T) {
	c := &Config{
		Channels:  []Channel{{Name: "a", CenterFreqHz: 1, SampleRateHz: 1}},
		RTPSource: RTPSource{MulticastGroup: "239.1.1.1", Port: 1},
		Archive:   Archive{Root: "/tmp"},
		StateRoot: "/tmp",
		LogLevel:  "verbose",
	}
	assert.Error(t, c.Validate())
}

func TestReadConfigRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, validYAML+"\nbogus_field: true\n")
	_, err := ReadConfig(path)
	assert.Error(t, err)
}

func TestReadConfigMissingFileErrors(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
