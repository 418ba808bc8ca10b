//
// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package rand draws the randomness used by the Blender noise mechanisms and
// by the client-side local randomizer. All draws are backed by crypto/rand so
// that the noise cannot be predicted from earlier outputs.
package rand

import (
	"bufio"
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	"sync"

	log "github.com/golang/glog"
)

var (
	bufLock sync.Mutex
	randBuf io.Reader = bufio.NewReaderSize(cryptorand.Reader, 65536)

	// Boolean consumes one bit at a time from bitBuf.
	bitLock sync.Mutex
	bitBuf  uint8
	bitPos  int8 = math.MaxInt8
)

func fill(b []byte) {
	bufLock.Lock()
	defer bufLock.Unlock()
	if _, err := io.ReadFull(randBuf, b); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
}

// U64 returns a uniformly random uint64.
func U64() uint64 {
	var r [8]byte
	fill(r[:])
	return binary.LittleEndian.Uint64(r[:])
}

func u8() uint8 {
	var r [1]byte
	fill(r[:])
	return r[0]
}

// Boolean returns true or false with equal probability.
func Boolean() bool {
	bitLock.Lock()
	defer bitLock.Unlock()
	if bitPos > 7 {
		bitBuf = u8()
		bitPos = 0
	}
	res := bitBuf&(1<<bitPos) > 0
	bitPos++
	return res
}

// Sign returns +1.0 or -1.0 with equal probability.
func Sign() float64 {
	if Boolean() {
		return 1.0
	}
	return -1.0
}

// I63n returns an integer from {0, ..., n-1} uniformly at random. Values of n
// less than 1 are a programming error.
func I63n(n int64) int64 {
	if n <= 0 {
		log.Fatalf("I63n: n is %d, must be strictly positive", n)
	}
	// Rejection sampling removes the modulo bias of the last partial block.
	largestMultipleOfN := (math.MaxInt64 / n) * n
	for {
		r := int64(U64() & 0x7fffffffffffffff)
		if r < largestMultipleOfN {
			return r % n
		}
	}
}

// Index returns a uniformly random index into a slice of length n.
func Index(n int) int {
	return int(I63n(int64(n)))
}

// Uniform returns a float64 from (0, 1] such that every float64 in the
// interval has positive probability, simulating a continuous uniform
// distribution. The result is never 0 so callers may take its logarithm.
func Uniform() float64 {
	i := U64() % (1 << 53)
	r := (1 + float64(i)/(1<<53)) / math.Pow(2, geometricHalf())
	if r == 0 {
		return 1
	}
	return r
}

// geometricHalf counts the Bernoulli(0.5) trials until the first success,
// i.e. one plus the number of leading zeros of an infinite random bit stream.
func geometricHalf() float64 {
	n := 1
	var r uint8
	for r == 0 {
		r = u8()
		n += bits.LeadingZeros8(r)
	}
	return float64(n)
}
