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

// Package bcd implements the 100 Hz BCD time-code subcarrier
// correlator and the probabilistic WWV/WWVH station discriminator fed
// by it.
package bcd

import (
	"container/ring"
	"math"
)

// featureWindow keeps a fixed-length ring of recent per-minute
// feature vectors for a single feature stream, used to normalise raw
// feature values to ~N(0,1) before they enter the logistic
// regression.
type featureWindow struct {
	size        int
	currentSize int
	sum, sumSq  float64
	samples     *ring.Ring
}

func newFeatureWindow(size int) *featureWindow {
	if size < 1 {
		size = 1
	}
	w := &featureWindow{size: size, samples: ring.New(size)}
	for i := 0; i < size; i++ {
		w.samples.Value = math.NaN()
		w.samples = w.samples.Next()
	}
	return w
}

func (w *featureWindow) add(sample float64) {
	w.samples = w.samples.Next()
	old := w.samples.Value.(float64)
	if !math.IsNaN(old) {
		w.sum -= old
		w.sumSq -= old * old
	} else if w.currentSize < w.size {
		w.currentSize++
	}
	w.samples.Value = sample
	w.sum += sample
	w.sumSq += sample * sample
}

func (w *featureWindow) mean() float64 {
	if w.currentSize == 0 {
		return 0
	}
	return w.sum / float64(w.currentSize)
}

func (w *featureWindow) stddev() float64 {
	if w.currentSize < 2 {
		return 1
	}
	n := float64(w.currentSize)
	variance := w.sumSq/n - (w.sum/n)*(w.sum/n)
	if variance <= 0 {
		return 1
	}
	return math.Sqrt(variance)
}

// normalize centers and scales a raw feature value against this
// stream's running statistics, producing the ~N(0,1) inputs the
// voting features contract calls for.
func (w *featureWindow) normalize(raw float64) float64 {
	sd := w.stddev()
	if sd == 0 {
		sd = 1
	}
	z := (raw - w.mean()) / sd
	w.add(raw)
	return z
}
