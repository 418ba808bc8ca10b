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
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type seededLaplace struct {
	mu  sync.Mutex
	src rand.Source
}

// SeededLaplace returns a Noise instance that draws Laplace noise from a
// deterministic source seeded with seed. Two instances with the same seed
// produce the same sequence of draws.
//
// It is meant for reproducible simulations and tests over public or synthetic
// data. Its output is predictable, so it must not be used on real user data;
// use Laplace() instead.
func SeededLaplace(seed uint64) Noise {
	return &seededLaplace{src: rand.NewSource(seed)}
}

// AddNoiseFloat64 adds Laplace noise of scale l1Sensitivity/ε to x.
func (s *seededLaplace) AddNoiseFloat64(x, l1Sensitivity, epsilon float64) (float64, error) {
	if err := checkArgs("noise.SeededLaplace", l1Sensitivity, epsilon); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := distuv.Laplace{Mu: x, Scale: Scale(l1Sensitivity, epsilon), Src: s.src}
	return d.Rand(), nil
}

func (s *seededLaplace) String() string {
	return "Seeded Laplace Noise"
}
