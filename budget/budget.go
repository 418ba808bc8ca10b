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

// Package budget derives the Blender privacy constants from the user-facing
// parameters (ε, δ, m_o, m_c, f_c, M).
//
// A client user may contribute up to m_c records, so under basic composition
// each record gets ε' = ε/m_c and δ' = δ/m_c. A fraction f_c of that per-record
// budget is spent on reporting the query and the rest on reporting the url:
//
//	ε'_q = f_c·ε'    ε'_u = ε' − ε'_q
//	δ'_q = f_c·δ'    δ'_u = δ' − δ'_q
//
// On the opt-in side, a user contributes up to m_o records, so a count query
// has L_1 sensitivity 2·m_o under substitution of one user and the Laplace
// scale is b = 2·m_o/ε.
package budget

import (
	"fmt"
	"math"

	"github.com/google/differential-privacy/blender/checks"
)

// Default parameter values.
const (
	DefaultEpsilon             = 4.0
	DefaultDelta               = 1e-6
	DefaultMaxOptinRecords     = 1.0
	DefaultMaxClientRecords    = 1.0
	DefaultClientQueryFraction = 0.85
	DefaultHeadListSize        = 1000
)

// Params contains the user-facing privacy parameters. Zero-valued fields are
// replaced by their defaults in New.
type Params struct {
	Epsilon float64 // Privacy parameter ε. Defaults to 4.
	Delta   float64 // Privacy parameter δ. Defaults to 1e-6.
	// MaxOptinRecords (m_o) is the maximum number of records a single opt-in
	// user may contribute. Defaults to 1.
	MaxOptinRecords float64
	// MaxClientRecords (m_c) is the maximum number of records a single client
	// user may contribute. Defaults to 1.
	MaxClientRecords float64
	// ClientQueryFraction (f_c) is the fraction of the client budget spent on
	// reporting queries. Defaults to 0.85.
	ClientQueryFraction float64
	// HeadListSize (M) is the maximum number of queries kept in the head list.
	// Defaults to 1000.
	HeadListSize int64
}

// Budget holds validated parameters and the constants derived from them.
// It is immutable.
type Budget struct {
	params Params

	epsilonPrime, epsilonPrimeQ, epsilonPrimeU float64
	deltaPrime, deltaPrimeQ, deltaPrimeU       float64
	noiseScale                                 float64
	discoveryThreshold                         float64
}

func (b *Budget) String() string {
	return fmt.Sprintf("&Budget(epsilon %f, delta %e, m_o %f, m_c %f, f_c %f, M %d, b %f, tau %f)",
		b.params.Epsilon, b.params.Delta, b.params.MaxOptinRecords, b.params.MaxClientRecords,
		b.params.ClientQueryFraction, b.params.HeadListSize, b.noiseScale, b.discoveryThreshold)
}

// New validates p and derives the per-record budgets, the opt-in noise scale
// and the discovery threshold. It returns an error if any parameter is out of
// range or if the discovery threshold is below 1.
func New(p *Params) (*Budget, error) {
	if p == nil {
		p = &Params{}
	}
	params := *p
	if params.Epsilon == 0 {
		params.Epsilon = DefaultEpsilon
	}
	if params.Delta == 0 {
		params.Delta = DefaultDelta
	}
	if params.MaxOptinRecords == 0 {
		params.MaxOptinRecords = DefaultMaxOptinRecords
	}
	if params.MaxClientRecords == 0 {
		params.MaxClientRecords = DefaultMaxClientRecords
	}
	if params.ClientQueryFraction == 0 {
		params.ClientQueryFraction = DefaultClientQueryFraction
	}
	if params.HeadListSize == 0 {
		params.HeadListSize = DefaultHeadListSize
	}

	const label = "budget.New"
	if err := checks.CheckEpsilonStrict(label, params.Epsilon); err != nil {
		return nil, err
	}
	if err := checks.CheckDeltaStrict(label, params.Delta); err != nil {
		return nil, err
	}
	if err := checks.CheckMaxRecords(label, "m_o", params.MaxOptinRecords); err != nil {
		return nil, err
	}
	if err := checks.CheckMaxRecords(label, "m_c", params.MaxClientRecords); err != nil {
		return nil, err
	}
	if err := checks.CheckFraction(label, "f_c", params.ClientQueryFraction); err != nil {
		return nil, err
	}
	if err := checks.CheckHeadListSize(label, params.HeadListSize); err != nil {
		return nil, err
	}

	b := &Budget{params: params}
	b.epsilonPrime = params.Epsilon / params.MaxClientRecords
	b.epsilonPrimeQ = params.ClientQueryFraction * b.epsilonPrime
	b.epsilonPrimeU = b.epsilonPrime - b.epsilonPrimeQ
	b.deltaPrime = params.Delta / params.MaxClientRecords
	b.deltaPrimeQ = params.ClientQueryFraction * b.deltaPrime
	b.deltaPrimeU = b.deltaPrime - b.deltaPrimeQ
	b.noiseScale = NoiseScale(params.MaxOptinRecords, params.Epsilon)
	b.discoveryThreshold = DiscoveryThreshold(params.Epsilon, params.Delta, params.MaxOptinRecords)
	if err := checks.CheckDiscoveryThreshold(label, b.discoveryThreshold); err != nil {
		return nil, err
	}
	return b, nil
}

// Params returns a copy of the parameters with defaults applied.
func (b *Budget) Params() Params { return b.params }

// Epsilon returns ε.
func (b *Budget) Epsilon() float64 { return b.params.Epsilon }

// HeadListSize returns M.
func (b *Budget) HeadListSize() int64 { return b.params.HeadListSize }

// MaxOptinRecords returns m_o.
func (b *Budget) MaxOptinRecords() float64 { return b.params.MaxOptinRecords }

// MaxClientRecords returns m_c.
func (b *Budget) MaxClientRecords() float64 { return b.params.MaxClientRecords }

// EpsilonPrime returns ε' = ε/m_c.
func (b *Budget) EpsilonPrime() float64 { return b.epsilonPrime }

// EpsilonPrimeQ returns ε'_q = f_c·ε'.
func (b *Budget) EpsilonPrimeQ() float64 { return b.epsilonPrimeQ }

// EpsilonPrimeU returns ε'_u = ε' − ε'_q.
func (b *Budget) EpsilonPrimeU() float64 { return b.epsilonPrimeU }

// DeltaPrime returns δ' = δ/m_c.
func (b *Budget) DeltaPrime() float64 { return b.deltaPrime }

// DeltaPrimeQ returns δ'_q = f_c·δ'.
func (b *Budget) DeltaPrimeQ() float64 { return b.deltaPrimeQ }

// DeltaPrimeU returns δ'_u = δ' − δ'_q.
func (b *Budget) DeltaPrimeU() float64 { return b.deltaPrimeU }

// NoiseScale returns b = 2·m_o/ε, shared by the discovery and the refinement
// passes over the opt-in data.
func (b *Budget) NoiseScale() float64 { return b.noiseScale }

// L1Sensitivity returns 2·m_o, the sensitivity of an opt-in count.
func (b *Budget) L1Sensitivity() float64 { return 2 * b.params.MaxOptinRecords }

// DiscoveryThreshold returns τ_discover.
func (b *Budget) DiscoveryThreshold() float64 { return b.discoveryThreshold }

// QueryRetention returns the probability τ that a client reports its query
// unchanged, given κ, the total count of the head list.
func (b *Budget) QueryRetention(kappa float64) float64 {
	return RetentionProbability(b.epsilonPrimeQ, b.deltaPrimeQ, kappa)
}

// URLRetention returns the probability τ_q that a client reports its url
// unchanged, given the count of the query in the head list.
func (b *Budget) URLRetention(queryCount float64) float64 {
	return RetentionProbability(b.epsilonPrimeU, b.deltaPrimeU, queryCount)
}

// NoiseScale returns the Laplace scale b = 2·m_o/ε.
func NoiseScale(maxOptinRecords, epsilon float64) float64 {
	return 2.0 * maxOptinRecords / epsilon
}

// DiscoveryThreshold returns
//
//	τ_discover = b·(ln(exp(ε/2) + m_o − 1) − ln(δ))
//
// the noisy count a pair must exceed to enter the head list.
func DiscoveryThreshold(epsilon, delta, maxOptinRecords float64) float64 {
	b := NoiseScale(maxOptinRecords, epsilon)
	return b * (math.Log(math.Exp(epsilon/2.0)+maxOptinRecords-1.0) - math.Log(delta))
}

// RetentionProbability returns the randomized response retention rate
//
//	(e^ε + (δ/2)·(n−1)) / (e^ε + n − 1)
//
// for a population of n candidate values.
func RetentionProbability(epsilon, delta, n float64) float64 {
	return (math.Exp(epsilon) + (delta/2.0)*(n-1.0)) / (math.Exp(epsilon) + n - 1.0)
}
