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
	"testing"
)

func TestCeilPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		x, want float64
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{0.3, 0.5},
		{1 << 40, 1 << 40},
		{(1 << 40) + 1, 1 << 41},
		{math.Exp2(-1074), math.Exp2(-1074)},
		{5.0 / (1 << 40), 8.0 / (1 << 40)},
	} {
		if got := ceilPowerOfTwo(tc.x); got != tc.want {
			t.Errorf("ceilPowerOfTwo(%g) = %g, want %g", tc.x, got, tc.want)
		}
	}
	for _, x := range []float64{0, -1, math.Inf(1), math.NaN(), math.MaxFloat64} {
		if got := ceilPowerOfTwo(x); !math.IsNaN(got) {
			t.Errorf("ceilPowerOfTwo(%g) = %g, want NaN", x, got)
		}
	}
}

func TestRoundToMultipleOfPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		x, granularity, want float64
	}{
		{100, 1.0 / 1024, 100},
		{0.3, 0.5, 0.5},
		{0.2, 0.5, 0},
		{-1.3, 1, -1},
	} {
		if got := roundToMultipleOfPowerOfTwo(tc.x, tc.granularity); got != tc.want {
			t.Errorf("roundToMultipleOfPowerOfTwo(%g, %g) = %g, want %g", tc.x, tc.granularity, got, tc.want)
		}
	}
}
