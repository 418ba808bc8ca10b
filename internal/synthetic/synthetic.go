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

// Package synthetic provides small hand-built datasets and parameter sets with
// known outcomes, used to exercise the Blender stages end to end.
package synthetic

import (
	"iter"

	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/querydb"
)

// Entry is a (query, url) pair with the number of times it occurs.
type Entry struct {
	Query, URL string
	Count      int
}

// Single has two queries with one url each.
var Single = []Entry{
	{"q1", "q1u1", 100},
	{"q2", "q2u1", 100},
}

// Tiny has seven queries. With StandardParams and no noise, discovery keeps
// exactly the pairs counted 99.
var Tiny = []Entry{
	{"q1", "q1u1", 10},
	{"q2", "q2u1", 10},
	{"q2", "q2u2", 20},
	{"q3", "q3u1", 30},
	{"q4", "q4u1", 99},
	{"q4", "q4u2", 99},
	{"q5", "q5u1", 10},
	{"q5", "q5u2", 20},
	{"q6", "q6u1", 99},
	{"q6", "q6u2", 10},
	{"q7", "q7u1", 99},
	{"q7", "q7u2", 99},
}

// Small has 1000 records. With StandardParams and no noise, discovery keeps
// exactly the pairs counted 100, and the remaining 500 records end up in <*,*>.
var Small = []Entry{
	{"q1", "q1u1", 10},
	{"q2", "q2u1", 10},
	{"q2", "q2u2", 20},
	{"q3", "q3u1", 30},
	{"q4", "q4u1", 100},
	{"q4", "q4u2", 100},
	{"q5", "q5u1", 10},
	{"q5", "q5u2", 20},
	{"q6", "q6u1", 100},
	{"q6", "q6u2", 10},
	{"q7", "q7u1", 100},
	{"q7", "q7u2", 100},
	{"q8", "q8u1", 50},
	{"q8", "q8u2", 50},
	{"q8", "q8u3", 50},
	{"q8", "q8u4", 50},
	{"q8", "q8u5", 50},
	{"q8", "q8u6", 50},
	{"q8", "q8u7", 45},
	{"q8", "q8u8", 45},
}

// Records yields every record of set, repeated Count times.
func Records(set []Entry) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range set {
			for range e.Count {
				if !yield(e.Query, e.URL) {
					return
				}
			}
		}
	}
}

// Load returns a database of the given kind holding every record of set.
func Load(kind querydb.Kind, set []Entry) *querydb.Database {
	return querydb.FromRecords(kind, Records(set))
}

// StandardParams gives b = 5 and τ_discover ≈ 83.06.
func StandardParams() budget.Params {
	return budget.Params{
		Epsilon:         4.0,
		Delta:           1e-6,
		MaxOptinRecords: 10,
		HeadListSize:    5,
	}
}
