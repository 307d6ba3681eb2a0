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

package routing

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// ErrRouteNotFound is returned when no prefix matches a destination.
var ErrRouteNotFound = errors.New("no route found")

// Option configures a Table.
type Option func(*Table)

// WithRoutesGauge reports the number of installed routes to g.
func WithRoutesGauge(g metrics.Gauge) Option {
	return func(t *Table) {
		t.routesGauge = g
	}
}

// Table is the forwarding table. It is safe for concurrent use; readers see
// a consistent state between two mutations.
type Table struct {
	mtx         sync.RWMutex
	ownAddress  string
	routes      map[string]Route
	log         epochLog
	routesGauge metrics.Gauge
}

// NewTable returns an empty table with a fresh routing table id.
func NewTable(opts ...Option) *Table {
	t := &Table{
		routes: make(map[string]Route),
		log:    newEpochLog(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetOwnAddress records the address of the local node.
func (t *Table) SetOwnAddress(address string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.ownAddress = address
}

// OwnAddress returns the address of the local node.
func (t *Table) OwnAddress() string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.ownAddress
}

// AddRoute installs route for prefix if there is no route yet, if the
// incumbent has the same next hop, or if route is Better than the incumbent.
// It reports whether the table changed.
func (t *Table) AddRoute(prefix string, route Route) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if incumbent, ok := t.routes[prefix]; ok {
		if incumbent.NextHop != route.NextHop && !Better(route, incumbent) {
			return false
		}
		if incumbent.Equal(route) {
			return false
		}
	}
	t.setLocked(prefix, route)
	return true
}

// SetRoute installs route for prefix regardless of the incumbent. It reports
// whether the table changed.
func (t *Table) SetRoute(prefix string, route Route) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if incumbent, ok := t.routes[prefix]; ok && incumbent.Equal(route) {
		return false
	}
	t.setLocked(prefix, route)
	return true
}

func (t *Table) setLocked(prefix string, route Route) {
	route = route.clone()
	t.routes[prefix] = route
	t.log.append(prefix, &route)
	metrics.GaugeSet(t.routesGauge, float64(len(t.routes)))
}

// RemoveRoute removes the route for prefix. It reports whether a route was
// removed.
func (t *Table) RemoveRoute(prefix string) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.removeLocked(prefix)
}

// RemoveRouteVia removes the route for prefix only if it points to nextHop.
func (t *Table) RemoveRouteVia(prefix, nextHop string) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if r, ok := t.routes[prefix]; !ok || r.NextHop != nextHop {
		return false
	}
	return t.removeLocked(prefix)
}

func (t *Table) removeLocked(prefix string) bool {
	if _, ok := t.routes[prefix]; !ok {
		return false
	}
	delete(t.routes, prefix)
	t.log.append(prefix, nil)
	metrics.GaugeSet(t.routesGauge, float64(len(t.routes)))
	return true
}

// Get returns the route installed for exactly prefix.
func (t *Table) Get(prefix string) (Route, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	r, ok := t.routes[prefix]
	return r.clone(), ok
}

// Keys returns the installed prefixes in lexical order.
func (t *Table) Keys() []string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	keys := make([]string, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns all installed routes ordered by prefix.
func (t *Table) Entries() []Entry {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	entries := make([]Entry, 0, len(t.routes))
	for prefix, r := range t.routes {
		entries = append(entries, Entry{Prefix: prefix, Route: r.clone()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Prefix < entries[j].Prefix
	})
	return entries
}

// Resolve returns the route of the longest prefix of destination, walking
// dot-separated segments from the most specific prefix to the default route
// "".
func (t *Table) Resolve(destination string) (Entry, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	for prefix := destination; ; prefix = parentPrefix(prefix) {
		if r, ok := t.routes[prefix]; ok {
			return Entry{Prefix: prefix, Route: r.clone()}, nil
		}
		if prefix == "" {
			break
		}
	}
	return Entry{}, serrors.JoinNoStack(ErrRouteNotFound, nil, "destination", destination)
}

// NextHop returns the next hop peer id for destination.
func (t *Table) NextHop(destination string) (string, error) {
	e, err := t.Resolve(destination)
	if err != nil {
		return "", err
	}
	return e.Route.NextHop, nil
}

// ID returns the routing table id. It is fixed for the life of the table.
func (t *Table) ID() uuid.UUID {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.log.id
}

// CurrentEpoch returns the number of updates ever recorded.
func (t *Table) CurrentEpoch() uint32 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.log.epoch
}

// Updates returns the surviving log entries with from <= epoch < to.
func (t *Table) Updates(from, to uint32) []Update {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.log.slice(from, to)
}
