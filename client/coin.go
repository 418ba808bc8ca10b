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

package client

import (
	"sync"

	"github.com/google/differential-privacy/blender/rand"
	xrand "golang.org/x/exp/rand"
)

// Coin supplies the randomness of local randomization.
type Coin interface {
	// Uniform returns a float64 from (0, 1].
	Uniform() float64
	// Index returns a uniform int from [0, n). n must be positive.
	Index(n int) int
	// ForClient returns the Coin the i-th client of a batch flips, so that a
	// batch randomized concurrently draws the same values as one randomized
	// sequentially.
	ForClient(i int) Coin
}

type secureCoin struct{}

// SecureCoin returns a Coin backed by cryptographically secure randomness.
func SecureCoin() Coin { return secureCoin{} }

func (secureCoin) Uniform() float64     { return rand.Uniform() }
func (secureCoin) Index(n int) int      { return rand.Index(n) }
func (c secureCoin) ForClient(int) Coin { return c }

type seededCoin struct {
	seed uint64
	mu   sync.Mutex
	r    *xrand.Rand
}

// SeededCoin returns a deterministic Coin. It is meant for simulations over
// synthetic data and must not be used by real clients.
func SeededCoin(seed uint64) Coin {
	return &seededCoin{seed: seed, r: xrand.New(xrand.NewSource(seed))}
}

func (c *seededCoin) Uniform() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 1 - c.r.Float64()
}

func (c *seededCoin) Index(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r.Intn(n)
}

// ForClient derives an independent seed per client with a splitmix64 step.
func (c *seededCoin) ForClient(i int) Coin {
	z := c.seed + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return SeededCoin(z ^ (z >> 31))
}
