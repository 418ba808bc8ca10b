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
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/google/differential-privacy/blender/querydb"
)

const estimateOp = "client.EstimateProbabilities"

// EstimateProbabilities inverts local randomization: given the finalized head
// list h and the aggregated client reports, it returns a WithProbability
// database holding, for every pair of h, an estimate of its probability among
// the clients' true records and the variance of that estimate. Every query
// bucket also carries the query-level estimate.
//
// Fractions are taken over every report, duplicates included.
func EstimateProbabilities(h *headlist.HeadList, reports *querydb.Database) (*querydb.Database, error) {
	if h.State() != headlist.Finalized {
		return nil, fmt.Errorf("%s: head list is %s, want %s", estimateOp, h.State(), headlist.Finalized)
	}
	if reports.Kind() != querydb.Counting {
		return nil, fmt.Errorf("%s: reports are a %s database, want %s", estimateOp, reports.Kind(), querydb.Counting)
	}
	n := float64(reports.Count())
	if n <= 1 {
		return nil, &querydb.ComputationError{Op: estimateOp, Query: querydb.Star, URL: querydb.Star,
			Reason: fmt.Sprintf("%d client reports, need at least 2", reports.Count())}
	}
	kappa := float64(h.NumQueries())
	if kappa <= 1 {
		return nil, &querydb.ComputationError{Op: estimateOp, Query: querydb.Star,
			Reason: "head list has a single query, kappa - 1 is zero"}
	}
	tau := h.Tau()
	r := (1 - tau) / (kappa - 1)
	if tau == r {
		return nil, &querydb.ComputationError{Op: estimateOp, Query: querydb.Star,
			Reason: fmt.Sprintf("tau equals the noise floor %f", r)}
	}

	est := querydb.New(querydb.WithProbability)
	for _, q := range h.Queries() {
		var count float64
		if b, ok := reports.Bucket(q); ok {
			count = float64(b.Count())
		}
		f := count / n
		pq := (f - r) / (tau - r)
		varQ := (1 / ((tau - r) * (tau - r))) * f * (1 - f) / (n - 1)
		log.V(2).Infof("EstimateProbabilities: query %q f %f p %f var %g", q, f, pq, varQ)

		head, _ := h.Bucket(q)
		urls := head.URLs()
		for _, u := range urls {
			est.Touch(q, u)
		}
		if err := est.SetQueryEstimate(q, pq, varQ); err != nil {
			return nil, err
		}

		tauQ, _ := head.Tau()
		kappaQ := float64(head.NumURLs())
		for _, u := range urls {
			var p, v float64
			if kappaQ == 1 {
				if q != querydb.Star {
					log.Warningf("EstimateProbabilities: query %q has a single url, using its head list estimate", q)
				}
				l, _ := h.Leaf(q, u)
				p, v = l.Probability, l.Variance
			} else {
				var countQU float64
				if l, ok := reports.Leaf(q, u); ok {
					countQU = float64(l.Count)
				}
				var err error
				p, v, err = estimatePair(pairInputs{
					rQU: countQU / n, n: n,
					tau: tau, kappa: kappa,
					tauQ: tauQ, kappaQ: kappaQ,
					pQ: pq, varQ: varQ,
				})
				if err != nil {
					return nil, &querydb.ComputationError{Op: estimateOp, Query: q, URL: u, Reason: err.Error()}
				}
			}
			if err := est.SetProbability(q, u, p); err != nil {
				return nil, err
			}
			if err := est.SetVariance(q, u, v); err != nil {
				return nil, err
			}
		}
	}
	log.Infof("EstimateProbabilities: estimated %d pairs from %d client reports", est.NumPairs(), reports.Count())
	return est, nil
}

type pairInputs struct {
	rQU, n       float64 // report fraction of the pair, number of reports
	tau, kappa   float64 // query retention, number of head list queries
	tauQ, kappaQ float64 // url retention, number of urls of the query
	pQ, varQ     float64 // query-level estimate
}

// estimatePair evaluates the pair estimator of Figure 5 in the Blender paper,
// term by term. kappaQ must be at least 2.
func estimatePair(in pairInputs) (probability, variance float64, err error) {
	tau, kappa, tauQ, kappaQ := in.tau, in.kappa, in.tauQ, in.kappaQ
	if tau == 0 {
		return 0, 0, fmt.Errorf("tau is zero")
	}
	urlSpread := tauQ - (1-tauQ)/(kappaQ-1)
	if urlSpread == 0 {
		return 0, 0, fmt.Errorf("tau_q equals (1 - tau_q)/(kappa_q - 1)")
	}
	if kappa*tau == 1 {
		return 0, 0, fmt.Errorf("kappa * tau is one")
	}

	term1 := in.rQU
	term2 := (1 - tauQ) * tau * in.pQ / (kappaQ - 1)
	term3 := (1 - tauQ) * (1 - in.pQ) / ((kappa - 1) * kappaQ)
	term4 := tau * urlSpread
	probability = (term1 - term2 - term3) / term4

	noiseFloor := (1 - tau) / (kappa - 1) / kappaQ
	urlFloor := (tau - tau*tauQ) / (kappaQ - 1)
	t1 := in.rQU * (1 - in.rQU) / (in.n - 1)
	t2 := (2 * in.n / (in.n - 1)) * (noiseFloor - urlFloor) * (in.rQU * (kappa - 2 + tau) / (kappa*tau - 1))
	t3 := (noiseFloor - urlFloor*urlFloor) * in.varQ
	t4 := 1 / (tau * tau) / (urlSpread * urlSpread)
	variance = (t1 + t2 + t3) * t4
	return probability, variance, nil
}
