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

package packager

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// RenderCompletenessReport writes a human-readable day-wide
// completeness summary table to w, one row per subchannel.
func RenderCompletenessReport(w io.Writer, c Container) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"station", "freq_hz", "cal_offset_ms", "samples", "expected", "completeness"})

	for _, sc := range c.Subchannels {
		table.Append([]string{
			sc.Station,
			strconv.FormatFloat(sc.CenterFreqHz, 'f', 0, 64),
			strconv.FormatFloat(sc.CalibrationOffsetMs, 'f', 3, 64),
			strconv.FormatInt(sc.SampleCount, 10),
			strconv.FormatInt(sc.ExpectedSampleCount, 10),
			fmt.Sprintf("%.2f%%", sc.CompletenessFraction*100),
		})
	}
	table.Render()
}
