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

// Package blend combines the head list's opt-in estimates with the client
// estimates into the final distribution, weighting each by the inverse of its
// variance.
package blend

import (
	"fmt"
	"io"
	"iter"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/google/differential-privacy/blender/internal/sortedindex"
	"github.com/google/differential-privacy/blender/querydb"
	"gonum.org/v1/gonum/floats"
)

// Row is one line of the final table.
type Row struct {
	Query       string
	URL         string
	Probability float64
}

// Result is the blended distribution.
type Result struct {
	db      *querydb.Database
	queries sortedindex.Index            // blended mass → query
	urls    map[string]*sortedindex.Index // query → (blended probability → url)
}

// Blend computes, for every pair of the head list h,
//
//	ω = Var_client / (Var_head + Var_client)
//	p = ω·p_head + (1−ω)·p_client
//
// so the estimate with the smaller variance gets the larger weight. The
// variance of the blend is Var_head·Var_client / (Var_head + Var_client).
// clientEstimates must hold an estimate for every pair of h.
func Blend(h *headlist.HeadList, clientEstimates *querydb.Database) (*Result, error) {
	const op = "blend.Blend"
	if h.State() != headlist.Finalized {
		return nil, fmt.Errorf("%s: head list is %s, want %s", op, h.State(), headlist.Finalized)
	}
	res := &Result{
		db:   querydb.New(querydb.WithProbability),
		urls: make(map[string]*sortedindex.Index),
	}
	for _, q := range h.Queries() {
		idx := &sortedindex.Index{}
		res.urls[q] = idx
		var emitted []float64
		for _, u := range h.URLs(q) {
			head, _ := h.Leaf(q, u)
			c, ok := clientEstimates.Leaf(q, u)
			if !ok {
				return nil, &querydb.ComputationError{Op: op, Query: q, URL: u, Reason: "no client estimate"}
			}
			p, v, err := combine(head, c)
			if err != nil {
				return nil, &querydb.ComputationError{Op: op, Query: q, URL: u, Reason: err.Error()}
			}
			res.db.Touch(q, u)
			if err := res.db.SetProbability(q, u, p); err != nil {
				return nil, err
			}
			if err := res.db.SetVariance(q, u, v); err != nil {
				return nil, err
			}
			if err := idx.Insert(p, u); err != nil {
				return nil, &querydb.ComputationError{Op: op, Query: q, URL: u, Reason: err.Error()}
			}
			if emits(q, u, p) {
				emitted = append(emitted, p)
			}
		}
		if err := res.queries.Insert(floats.Sum(emitted), q); err != nil {
			return nil, &querydb.ComputationError{Op: op, Query: q, Reason: err.Error()}
		}
	}
	log.Infof("Blend: blended %d pairs over %d queries", res.db.NumPairs(), res.db.NumQueries())
	return res, nil
}

func combine(head, client querydb.Leaf) (probability, variance float64, err error) {
	sum := head.Variance + client.Variance
	if sum == 0 {
		return 0, 0, fmt.Errorf("head list and client variances sum to zero")
	}
	omega := client.Variance / sum
	probability = omega*head.Probability + (1-omega)*client.Probability
	variance = head.Variance * client.Variance / sum
	return probability, variance, nil
}

// emits reports whether a blended pair belongs in the final table: the
// catch-all pair and zero probabilities are left out.
func emits(query, url string, probability float64) bool {
	if query == querydb.Star && url == querydb.Star {
		return false
	}
	return probability != 0
}

// Database returns the blended estimates, including the pairs Rows leaves out.
func (r *Result) Database() *querydb.Database { return r.db }

// Rows returns the final table: queries by descending blended mass, ties by
// query, and within a query its urls by descending probability, ties by url.
func (r *Result) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, q := range r.queries.Descending() {
			for p, u := range r.urls[q].Descending() {
				if !emits(q, u, p) {
					continue
				}
				if !yield(Row{Query: q, URL: u, Probability: p}) {
					return
				}
			}
		}
	}
}

// WriteTo writes one "query url probability" line per row.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for row := range r.Rows() {
		n, err := fmt.Fprintf(w, "%s %s %v\n", row.Query, row.URL, row.Probability)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
