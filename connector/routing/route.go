// Copyright 2026 ILPnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package routing contains the forwarding table of the connector.
//
// The table maps ILP address prefixes to a single best route each and resolves
// destination addresses by longest dot-segment aligned prefix. Every change is
// recorded in an epoch log that is broadcast to peers over CCP.
package routing

import (
	"slices"
	"strings"
)

// Route is the route installed for a prefix.
type Route struct {
	// NextHop is the id of the peer packets are forwarded to.
	NextHop string
	// Path is the list of connector addresses the route traverses, nearest
	// first, excluding the local node.
	Path []string
	// Weight is the preference of the route. Higher wins.
	Weight int
	// Auth is the route authentication value advertised over CCP.
	Auth [32]byte
}

// Equal reports whether r and o are the same route.
func (r Route) Equal(o Route) bool {
	return r.NextHop == o.NextHop && r.Weight == o.Weight && r.Auth == o.Auth &&
		slices.Equal(r.Path, o.Path)
}

func (r Route) clone() Route {
	r.Path = slices.Clone(r.Path)
	return r
}

// Better reports whether candidate is strictly preferred over incumbent: a
// higher weight wins, then a shorter path. Equal scores keep the incumbent.
func Better(candidate, incumbent Route) bool {
	if candidate.Weight != incumbent.Weight {
		return candidate.Weight > incumbent.Weight
	}
	return len(candidate.Path) < len(incumbent.Path)
}

// Entry is a prefix together with its installed route.
type Entry struct {
	Prefix string
	Route  Route
}

// parentPrefix strips the last segment of prefix. The parent of a single
// segment prefix is the default route "".
func parentPrefix(prefix string) string {
	if i := strings.LastIndexByte(prefix, '.'); i >= 0 {
		return prefix[:i]
	}
	return ""
}
