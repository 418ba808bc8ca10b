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

package headlist

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/google/differential-privacy/blender/querydb"
)

// Distribution is the part of a finalized head list shipped to clients: its
// queries and urls with the retention probabilities τ and τ_q. It carries no
// probabilities or variances.
type Distribution struct {
	Tau     float64                      `codec:"tau"`
	Queries map[string]QueryDistribution `codec:"queries"`
}

// QueryDistribution holds the urls of one query, sorted, and τ_q.
type QueryDistribution struct {
	Tau  float64  `codec:"tau"`
	URLs []string `codec:"urls"`
}

// Distribution exports the client view of a finalized head list.
func (h *HeadList) Distribution() (*Distribution, error) {
	if err := h.checkState("headlist.Distribution", Finalized); err != nil {
		return nil, err
	}
	d := &Distribution{Tau: h.tau, Queries: make(map[string]QueryDistribution, h.db.NumQueries())}
	for _, q := range h.db.Queries() {
		b, _ := h.db.Bucket(q)
		tau, _ := b.Tau()
		d.Queries[q] = QueryDistribution{Tau: tau, URLs: b.URLs()}
	}
	return d, nil
}

// QueryKeys returns the queries of the distribution in sorted order.
func (d *Distribution) QueryKeys() []string {
	return slices.Sorted(maps.Keys(d.Queries))
}

// Validate checks that d can drive local randomization: the retention
// probabilities are finite, <*,*> is present and every query has a catch-all
// url.
func (d *Distribution) Validate() error {
	if math.IsNaN(d.Tau) || math.IsInf(d.Tau, 0) {
		return fmt.Errorf("headlist.Distribution: tau is %f, must be finite", d.Tau)
	}
	star, ok := d.Queries[querydb.Star]
	if !ok {
		return fmt.Errorf("headlist.Distribution: catch-all query %q is missing", querydb.Star)
	}
	if !slices.Contains(star.URLs, querydb.Star) {
		return fmt.Errorf("headlist.Distribution: catch-all pair <%s,%s> is missing", querydb.Star, querydb.Star)
	}
	for _, q := range d.QueryKeys() {
		qd := d.Queries[q]
		if math.IsNaN(qd.Tau) || math.IsInf(qd.Tau, 0) {
			return fmt.Errorf("headlist.Distribution: tau of query %q is %f, must be finite", q, qd.Tau)
		}
		if !slices.IsSorted(qd.URLs) {
			return fmt.Errorf("headlist.Distribution: urls of query %q are not sorted", q)
		}
		if _, found := slices.BinarySearch(qd.URLs, querydb.Star); !found {
			return fmt.Errorf("headlist.Distribution: query %q has no catch-all url", q)
		}
	}
	return nil
}
