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

package noise

import (
	"math"

	"github.com/google/differential-privacy/blender/rand"
)

// granularityParam determines the resolution of the generated noise relative
// to the scale b. Noise is a multiple of the smallest power of 2 that is at
// least b/granularityParam. This parameter should be a power of 2.
var granularityParam = math.Exp2(40)

type laplace struct{}

// Laplace returns a Noise instance that adds Laplace noise to its input.
//
// The noise is drawn with a geometric sampling mechanism on a grid of powers
// of two, which avoids the privacy leaks caused by the uneven spacing of
// floating point numbers in textbook inverse-CDF samplers. See
// https://github.com/google/differential-privacy/blob/main/common_docs/Secure_Noise_Generation.pdf.
func Laplace() Noise {
	return laplace{}
}

// AddNoiseFloat64 adds Laplace noise of scale l1Sensitivity/ε to x.
func (laplace) AddNoiseFloat64(x, l1Sensitivity, epsilon float64) (float64, error) {
	if err := checkArgs("noise.Laplace", l1Sensitivity, epsilon); err != nil {
		return 0, err
	}
	return addLaplaceFloat64(x, epsilon, l1Sensitivity), nil
}

func (laplace) String() string {
	return "Laplace Noise"
}

func addLaplaceFloat64(x, epsilon, l1Sensitivity float64) float64 {
	granularity := ceilPowerOfTwo((l1Sensitivity / epsilon) / granularityParam)
	sample := twoSidedGeometric(granularity * epsilon / (l1Sensitivity + granularity))
	return roundToMultipleOfPowerOfTwo(x, granularity) + float64(sample)*granularity
}

// geometric draws the number of Bernoulli trials until the first success,
// with success probability p = 1 - e^-λ. Samples beyond math.MaxInt64 are
// truncated to math.MaxInt64.
func geometric(lambda float64) int64 {
	if rand.Uniform() > -1.0*math.Expm1(-1.0*lambda*math.MaxInt64) {
		return math.MaxInt64
	}

	// Binary search over (left, right]: each step keeps the subinterval that
	// contains the sample with the probability the sample lies in it.
	var left int64 = 0
	var right int64 = math.MaxInt64

	for left+1 < right {
		// mid splits the remaining probability mass roughly in half, which
		// takes fewer steps than the arithmetic mean for large p.
		mid := left - int64(math.Floor((math.Log(0.5)+math.Log1p(math.Exp(lambda*float64(left-right))))/lambda))
		if mid <= left {
			mid = left + 1
		} else if mid >= right {
			mid = right - 1
		}

		// q = Pr[X ≤ mid | left < X ≤ right]
		q := math.Expm1(lambda*float64(left-mid)) / math.Expm1(lambda*float64(left-right))
		if rand.Uniform() <= q {
			right = mid
		} else {
			left = mid
		}
	}
	return right
}

// twoSidedGeometric draws from a geometric distribution mirrored at 0.
func twoSidedGeometric(lambda float64) int64 {
	var sample int64 = 0
	var sign int64 = -1
	// A zero is only kept with a positive sign, otherwise 0 would be drawn
	// twice as often as it should.
	for sample == 0 && sign == -1 {
		sample = geometric(lambda) - 1
		sign = int64(rand.Sign())
	}
	return sample * sign
}
