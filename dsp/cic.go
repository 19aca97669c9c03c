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

package dsp

// CICStage is a single-order cascaded-integrator-comb decimator
// stage: an integrator run at the input rate, a decimation by R, then
// a comb (single-sample differentiator) run at the output rate. State
// persists across Process calls so repeated short bursts behave
// identically to one long contiguous call.
type CICStage struct {
	rate int

	integrator float64
	combDelay  float64

	// counter tracks progress toward the next decimation boundary, so
	// a Process call whose length isn't a multiple of rate carries
	// the partial count into the next call rather than losing it.
	counter int
}

// NewCICStage creates a CIC stage with decimation factor rate.
func NewCICStage(rate int) *CICStage {
	return &CICStage{rate: rate}
}

// Process integrates and combs in, decimating by the configured rate,
// and returns the decimated output.
func (c *CICStage) Process(in []float64) []float64 {
	out := make([]float64, 0, len(in)/c.rate+1)
	for _, x := range in {
		c.integrator += x
		c.counter++
		if c.counter == c.rate {
			c.counter = 0
			comb := c.integrator - c.combDelay
			c.combDelay = c.integrator
			out = append(out, comb)
		}
	}
	return out
}

// Reset clears accumulated integrator/comb state, used on resync.
func (c *CICStage) Reset() {
	c.integrator = 0
	c.combDelay = 0
	c.counter = 0
}
