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

package bcd

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// uncertainThreshold is the contract's max(p) < 0.6 cutoff below which
// the discriminator reports UNCERTAIN rather than picking a station.
const uncertainThreshold = 0.6

// Verdict is the discriminator's per-minute output.
type Verdict struct {
	PWWV       float64
	PWWVH      float64
	PUncertain float64
	Entropy    float64
	Uncertain  bool
}

// Discriminator is a trained logistic-regression classifier:
// p_wwv = sigma(w . x + b). Weights are fit offline from labelled
// ground-truth minutes via L2-regularised gradient descent and loaded
// here, never hand-tuned.
type Discriminator struct {
	weights [numFeatures]float64
	bias    float64
}

// NewDiscriminator wraps a pre-trained weight vector and bias.
func NewDiscriminator(weights [numFeatures]float64, bias float64) *Discriminator {
	return &Discriminator{weights: weights, bias: bias}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Classify scores a feature vector and returns the WWV/WWVH/uncertain
// verdict with its entropy.
func (d *Discriminator) Classify(x [numFeatures]float64) Verdict {
	var z float64
	for i, w := range d.weights {
		z += w * x[i]
	}
	z += d.bias

	pWWV := sigmoid(z)
	pWWVH := 1 - pWWV

	maxP := math.Max(pWWV, pWWVH)
	entropy := -pWWV*safeLog(pWWV) - pWWVH*safeLog(pWWVH)

	v := Verdict{PWWV: pWWV, PWWVH: pWWVH, Entropy: entropy}
	if maxP < uncertainThreshold {
		v.Uncertain = true
		v.PUncertain = 1 - maxP
		// Keep p_wwv + p_wwvh + p_uncertain == 1 by construction: when
		// uncertain, the residual mass above the confident component is
		// reassigned to PUncertain, scaled off the original pWWV/pWWVH
		// split so the invariant holds for any maxP.
		v.PWWV = pWWV * maxP
		v.PWWVH = pWWVH * maxP
		v.PUncertain = 1 - v.PWWV - v.PWWVH
	}
	return v
}

func safeLog(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return math.Log(p)
}

// TrainLogisticRegression fits weights and a bias from labelled
// feature vectors (label 1.0 = WWV, 0.0 = WWVH) via L2-regularised
// batch gradient descent, the "learned, not hand-tuned" weight-fit
// contract calls for.
func TrainLogisticRegression(features [][numFeatures]float64, labels []float64, l2 float64, iterations int, learningRate float64) *Discriminator {
	n := len(features)
	if n == 0 || n != len(labels) {
		return NewDiscriminator([numFeatures]float64{}, 0)
	}

	x := mat.NewDense(n, numFeatures, nil)
	for i, f := range features {
		for j, v := range f {
			x.Set(i, j, v)
		}
	}
	y := mat.NewVecDense(n, labels)

	weights := mat.NewVecDense(numFeatures, nil)
	bias := 0.0

	for iter := 0; iter < iterations; iter++ {
		var linear mat.VecDense
		linear.MulVec(x, weights)

		grad := make([]float64, numFeatures)
		var biasGrad float64
		for i := 0; i < n; i++ {
			z := linear.AtVec(i) + bias
			p := sigmoid(z)
			errTerm := p - y.AtVec(i)
			for j := 0; j < numFeatures; j++ {
				grad[j] += errTerm * x.At(i, j)
			}
			biasGrad += errTerm
		}

		for j := 0; j < numFeatures; j++ {
			reg := l2 * weights.AtVec(j)
			update := learningRate * (grad[j]/float64(n) + reg)
			weights.SetVec(j, weights.AtVec(j)-update)
		}
		bias -= learningRate * biasGrad / float64(n)
	}

	var w [numFeatures]float64
	for j := 0; j < numFeatures; j++ {
		w[j] = weights.AtVec(j)
	}
	return NewDiscriminator(w, bias)
}
