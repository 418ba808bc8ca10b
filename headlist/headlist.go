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

// Package headlist builds the Blender head list: the bounded set of frequent
// (query, url) pairs discovered on opt-in data, together with the
// probabilities, variances and retention thresholds clients and the blender
// need.
//
// A HeadList moves through the stages Empty, Discovered, Refined, Truncated
// and Finalized. Discover consumes the opt-in dataset S; Refine, Truncate and
// Finalize consume the independent opt-in dataset T. Every stage draws fresh
// Laplace noise, so S and T must not overlap.
package headlist

import (
	"fmt"
	"iter"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/checks"
	"github.com/google/differential-privacy/blender/internal/sortedindex"
	"github.com/google/differential-privacy/blender/noise"
	"github.com/google/differential-privacy/blender/querydb"
)

// HeadList is a WithVarianceAndTau database restricted to at most M queries
// besides the catch-all query. It is not safe for concurrent use until it is
// finalized, after which it is read-only.
type HeadList struct {
	budget *budget.Budget
	noise  noise.Noise

	db    *querydb.Database
	index sortedindex.Index
	state State

	// Size of opt-in dataset T, recorded by Refine.
	optinCount int64
	tau        float64
}

// New returns an empty HeadList. It returns an error if the discovery
// threshold derived from b is below 1.
func New(b *budget.Budget, n noise.Noise) (*HeadList, error) {
	if b == nil {
		return nil, fmt.Errorf("headlist.New: budget is nil")
	}
	if n == nil {
		return nil, fmt.Errorf("headlist.New: noise is nil")
	}
	if err := checks.CheckDiscoveryThreshold("headlist.New", b.DiscoveryThreshold()); err != nil {
		return nil, err
	}
	return &HeadList{
		budget: b,
		noise:  n,
		db:     querydb.New(querydb.WithVarianceAndTau),
	}, nil
}

func (h *HeadList) String() string {
	return fmt.Sprintf("&HeadList(state %s, M %d, queries %d, pairs %d, count %d, tau %f)",
		h.state, h.budget.HeadListSize(), h.db.NumQueries(), h.db.NumPairs(), h.db.Count(), h.tau)
}

func (h *HeadList) checkState(op string, want State) error {
	switch {
	case h.state < want:
		return fmt.Errorf("%s: head list is %s: %s", op, h.state, h.state.errorMessage())
	case h.state > want:
		return fmt.Errorf("%s: head list is already %s", op, h.state)
	}
	return nil
}

func (h *HeadList) addNoise(x float64) (float64, error) {
	return h.noise.AddNoiseFloat64(x, h.budget.L1Sensitivity(), h.budget.Epsilon())
}

// Discover builds the preliminary head list from opt-in dataset s: a pair with
// count c is kept iff c + Y > τ_discover, where Y ~ Laplace(0, b) is drawn
// afresh for every pair. Kept pairs are recorded with count 1. The catch-all
// pair <*,*> is always present, with count 0.
func (h *HeadList) Discover(s *querydb.Database) error {
	if err := h.checkState("headlist.Discover", Empty); err != nil {
		return err
	}
	threshold := h.budget.DiscoveryThreshold()
	considered := 0
	for q, u := range s.Records() {
		l, _ := s.Leaf(q, u)
		noisy, err := h.addNoise(float64(l.Count))
		if err != nil {
			return fmt.Errorf("headlist.Discover: %w", err)
		}
		considered++
		if noisy > threshold {
			h.db.Add(q, u)
			log.V(2).Infof("Discover: kept (%q, %q) with noisy count %f", q, u, noisy)
		}
	}
	h.db.Touch(querydb.Star, querydb.Star)
	h.state = Discovered
	log.Infof("Discover: kept %d of %d pairs with threshold %f", h.db.Count(), considered, threshold)
	return nil
}

// Refine estimates the probability of every head list pair on opt-in dataset
// t as (count_T(q, u) + Y) / |T|, with a fresh Y ~ Laplace(0, b) per pair.
// Pairs of t that are not in the head list are first subsumed into t's <*,*>,
// so the head list's <*,*> picks up their mass. Every query but the catch-all
// is then indexed by its aggregate probability.
func (h *HeadList) Refine(t *querydb.Database) error {
	const op = "headlist.Refine"
	if err := h.checkState(op, Discovered); err != nil {
		return err
	}
	t.SubsumeThoseNotPresentIn(h.db)
	n := t.Count()
	if n == 0 {
		return &querydb.ComputationError{Op: op, Query: querydb.Star, URL: querydb.Star, Reason: "opt-in dataset T is empty"}
	}
	for q, u := range h.db.Records() {
		var c int64
		if l, ok := t.Leaf(q, u); ok {
			c = l.Count
		}
		noisy, err := h.addNoise(float64(c))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := h.db.SetProbability(q, u, noisy/float64(n)); err != nil {
			return err
		}
	}
	for _, q := range h.db.Queries() {
		if q == querydb.Star {
			continue
		}
		b, _ := h.db.Bucket(q)
		if err := h.index.Insert(b.Probability(), q); err != nil {
			return &querydb.ComputationError{Op: op, Query: q, Reason: err.Error()}
		}
	}
	h.optinCount = n
	h.state = Refined
	log.Infof("Refine: estimated %d pairs against %d opt-in records", h.db.NumPairs(), n)
	return nil
}

// Truncate keeps the M queries of highest probability. Every url of a query
// ranked M or lower is subsumed into <*,*> and deleted once the ranking has
// been traversed. Queries of equal probability keep the order in which Refine
// indexed them, so the first indexed is kept first.
func (h *HeadList) Truncate() error {
	const op = "headlist.Truncate"
	if err := h.checkState(op, Refined); err != nil {
		return err
	}
	h.db.Touch(querydb.Star, querydb.Star)

	type ranked struct {
		probability float64
		query       string
	}
	var evicted []ranked
	var rank int64
	for p, q := range h.index.Descending() {
		if rank >= h.budget.HeadListSize() {
			evicted = append(evicted, ranked{p, q})
		}
		rank++
	}

	type pair struct{ query, url string }
	var doomed []pair
	for _, e := range evicted {
		for _, u := range h.db.URLs(e.query) {
			if err := h.db.Subsume(querydb.Star, querydb.Star, e.query, u); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			doomed = append(doomed, pair{e.query, u})
		}
	}
	for _, d := range doomed {
		h.db.Delete(d.query, d.url)
	}
	for _, e := range evicted {
		h.index.Remove(e.probability, e.query)
	}
	h.state = Truncated
	log.Infof("Truncate: evicted %d queries, %d remain besides %q", len(evicted), h.index.Len(), querydb.Star)
	return nil
}

// Finalize computes the variance of every pair relative to opt-in dataset t,
//
//	p(1−p)/(n−1) + 2b²/(n(n−1))    with n = |T|,
//
// then adds the catch-all url to every query and calculates τ and every τ_q.
// Catch-all urls added here keep probability and variance 0.
func (h *HeadList) Finalize(t *querydb.Database) error {
	const op = "headlist.Finalize"
	if err := h.checkState(op, Truncated); err != nil {
		return err
	}
	n := float64(t.Count())
	if n <= 1 {
		return &querydb.ComputationError{Op: op, Query: querydb.Star, URL: querydb.Star,
			Reason: fmt.Sprintf("opt-in dataset T has %d records, need at least 2", t.Count())}
	}
	b := h.budget.NoiseScale()
	for q, u := range h.db.Records() {
		l, _ := h.db.Leaf(q, u)
		p := l.Probability
		if err := h.db.SetVariance(q, u, p*(1-p)/(n-1)+2*b*b/(n*(n-1))); err != nil {
			return err
		}
	}
	h.db.AppendStarValues()
	if err := h.calculateTau(); err != nil {
		return err
	}
	if err := h.db.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	h.state = Finalized
	log.Infof("Finalize: %d queries, %d pairs, kappa %d, tau %f", h.db.NumQueries(), h.db.NumPairs(), h.db.Count(), h.tau)
	return nil
}

// calculateTau sets the query retention probability τ, using the head list
// count κ as population, and every τ_q, using the count of q. Catch-all urls
// carry no count, so they do not enlarge the population.
func (h *HeadList) calculateTau() error {
	h.tau = h.budget.QueryRetention(float64(h.db.Count()))
	for _, q := range h.db.Queries() {
		b, _ := h.db.Bucket(q)
		if err := h.db.SetTau(q, h.budget.URLRetention(float64(b.Count()))); err != nil {
			return err
		}
	}
	return nil
}

// EstimateOptinProbabilities runs Refine, Truncate and Finalize against t.
func (h *HeadList) EstimateOptinProbabilities(t *querydb.Database) error {
	if err := h.Refine(t); err != nil {
		return err
	}
	if err := h.Truncate(); err != nil {
		return err
	}
	return h.Finalize(t)
}

// State returns the construction stage reached.
func (h *HeadList) State() State { return h.state }

// Budget returns the budget the head list was built with.
func (h *HeadList) Budget() *budget.Budget { return h.budget }

// Tau returns the query retention probability τ. It is zero until the head
// list is finalized.
func (h *HeadList) Tau() float64 { return h.tau }

// Count returns κ, the total count of the head list.
func (h *HeadList) Count() int64 { return h.db.Count() }

// NumQueries returns the number of queries, including the catch-all query.
func (h *HeadList) NumQueries() int { return h.db.NumQueries() }

// Queries returns the queries in sorted order.
func (h *HeadList) Queries() []string { return h.db.Queries() }

// URLs returns the urls of query in sorted order.
func (h *HeadList) URLs(query string) []string { return h.db.URLs(query) }

// HasPair reports whether (query, url) is in the head list.
func (h *HeadList) HasPair(query, url string) bool { return h.db.HasPair(query, url) }

// Bucket returns the bucket of query.
func (h *HeadList) Bucket(query string) (*querydb.Bucket, bool) { return h.db.Bucket(query) }

// Leaf returns the statistics of (query, url).
func (h *HeadList) Leaf(query, url string) (querydb.Leaf, bool) { return h.db.Leaf(query, url) }

// Records returns every pair of the head list in sorted order.
func (h *HeadList) Records() iter.Seq2[string, string] { return h.db.Records() }

// TotalProbability returns the sum of the probabilities of all queries.
func (h *HeadList) TotalProbability() float64 { return h.db.TotalProbability() }
