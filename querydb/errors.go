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

package querydb

import "fmt"

// ComputationError reports an arithmetic degeneracy, such as a vanishing
// denominator, hit while estimating the statistics of a pair or a query.
type ComputationError struct {
	Op     string
	Query  string
	URL    string // empty for query-level computations
	Reason string
}

func (e *ComputationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: query %q: %s", e.Op, e.Query, e.Reason)
	}
	return fmt.Sprintf("%s: pair (%q, %q): %s", e.Op, e.Query, e.URL, e.Reason)
}
