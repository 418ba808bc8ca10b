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

// Package noise contains the Laplace mechanisms used by the Blender opt-in
// stages.
package noise

import (
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/checks"
)

// Kind is an enum type. Its values are the supported Laplace samplers.
type Kind int

// Laplace samplers used by the opt-in stages.
const (
	LaplaceNoise Kind = iota
	SeededLaplaceNoise
	Unrecognised
)

func (k Kind) String() string {
	switch k {
	case LaplaceNoise:
		return "laplace"
	case SeededLaplaceNoise:
		return "seeded"
	}
	return "unrecognised"
}

// ParseKind converts the name of a sampler, as printed by Kind.String, into a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "laplace":
		return LaplaceNoise, nil
	case "seeded":
		return SeededLaplaceNoise, nil
	}
	return Unrecognised, fmt.Errorf("noise.ParseKind: unknown noise kind %q, want laplace or seeded", name)
}

// ToNoise converts a Kind into a Noise instance. seed is only used by
// SeededLaplaceNoise.
func ToNoise(k Kind, seed uint64) Noise {
	switch k {
	case LaplaceNoise:
		return Laplace()
	case SeededLaplaceNoise:
		return SeededLaplace(seed)
	}
	log.Warningf("ToNoise: unknown kind (%v) specified", k)
	return nil
}

// Noise is an interface for primitives that add zero-mean Laplace noise to data.
type Noise interface {
	// AddNoiseFloat64 returns x + Y where Y ~ Laplace(0, l1Sensitivity/ε).
	// Every call draws Y independently of all earlier calls.
	AddNoiseFloat64(x, l1Sensitivity, epsilon float64) (float64, error)
}

// Scale returns the scale b of the Laplace distribution that achieves
// ε-differential privacy for a query with the given L_1 sensitivity.
func Scale(l1Sensitivity, epsilon float64) float64 {
	return l1Sensitivity / epsilon
}

func checkArgs(label string, l1Sensitivity, epsilon float64) error {
	if err := checks.CheckL1Sensitivity(label, l1Sensitivity); err != nil {
		return err
	}
	return checks.CheckEpsilonStrict(label, epsilon)
}
