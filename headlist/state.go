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

// State is the construction stage a HeadList has reached. Stages only move
// forward, one at a time.
type State int

// Head list construction stages.
const (
	Empty State = iota
	Discovered
	Refined
	Truncated
	Finalized
)

var stateName = map[State]string{
	Empty:      "Empty",
	Discovered: "Discovered",
	Refined:    "Refined",
	Truncated:  "Truncated",
	Finalized:  "Finalized",
}

// errorMessages explains what a head list in a given state still needs before
// a later stage can run.
var errorMessages = map[State]string{
	Empty:      "Discover has not been called",
	Discovered: "Refine has not been called",
	Refined:    "Truncate has not been called",
	Truncated:  "Finalize has not been called",
	Finalized:  "",
}

func (s State) String() string {
	if name, ok := stateName[s]; ok {
		return name
	}
	return "Unknown"
}

func (s State) errorMessage() string {
	return errorMessages[s]
}
