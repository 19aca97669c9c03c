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

package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShuffleRoundTrip(t *testing.T) {
	src := make([]byte, elemSize*37)
	for i := range src {
		src[i] = byte(i * 7)
	}
	shuffled := shuffle(src, elemSize)
	assert.Len(t, shuffled, len(src))
	assert.Equal(t, src, unshuffle(shuffled, elemSize))
}

func TestShuffleGroupsSameSignificanceBytes(t *testing.T) {
	// 2 elements, elemSize 4: bytes [a0 a1 a2 a3 b0 b1 b2 b3] should
	// become [a0 b0 a1 b1 a2 b2 a3 b3].
	src := []byte{0, 1, 2, 3, 10, 11, 12, 13}
	got := shuffle(src, 4)
	want := []byte{0, 10, 1, 11, 2, 12, 3, 13}
	assert.Equal(t, want, got)
}

func TestShuffleRaggedInputPassesThroughUnchanged(t *testing.T) {
	src := []byte{1, 2, 3}
	assert.Equal(t, src, shuffle(src, elemSize))
	assert.Equal(t, src, unshuffle(src, elemSize))
}
