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

// Package routemgr mediates between the routes advertised by individual
// peers and the forwarding table.
//
// Every peer has its own table of incoming routes. For each prefix the
// manager installs the best advertised route into the forwarding table and
// falls back to the next best one when the winner is withdrawn.
package routemgr

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

var (
	// ErrPeerExists is returned when adding a peer twice.
	ErrPeerExists = errors.New("peer already exists")
	// ErrUnknownPeer is returned for operations on a peer that was never
	// added.
	ErrUnknownPeer = errors.New("unknown peer")
)

// IncomingRoute is a route as advertised by a peer.
type IncomingRoute struct {
	Peer   string
	Prefix string
	Path   []string
	// Weight zero selects the weight of the advertising peer.
	Weight int
	Auth   [32]byte
}

// PeerRoutes is a snapshot of the routes advertised by one peer.
type PeerRoutes struct {
	ID       string
	Relation peer.Relation
	Weight   int
	Routes   map[string]IncomingRoute
}

type peerTable struct {
	relation peer.Relation
	weight   int
	routes   map[string]IncomingRoute
}

// Manager keeps the per-peer route tables and the forwarding table in sync.
// It is safe for concurrent use.
type Manager struct {
	mtx    sync.Mutex
	table  *routing.Table
	peers  map[string]*peerTable
	logger log.Logger
}

// New returns a manager that installs routes into table. The local node is
// registered as peer.SelfID with relation local.
func New(table *routing.Table, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	m := &Manager{
		table:  table,
		peers:  make(map[string]*peerTable),
		logger: logger,
	}
	m.peers[peer.SelfID] = &peerTable{
		relation: peer.RelationLocal,
		weight:   peer.OwnAddressWeight,
		routes:   make(map[string]IncomingRoute),
	}
	return m
}

// Table returns the forwarding table.
func (m *Manager) Table() *routing.Table {
	return m.table
}

// AddPeer registers a peer with an empty route table. A weight of zero
// selects the relation weight.
func (m *Manager) AddPeer(id string, relation peer.Relation, weight int) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.peers[id]; ok {
		return serrors.JoinNoStack(ErrPeerExists, nil, "peer", id)
	}
	if weight == 0 {
		weight = relation.Weight()
	}
	m.peers[id] = &peerTable{
		relation: relation,
		weight:   weight,
		routes:   make(map[string]IncomingRoute),
	}
	m.logger.Debug("Added peer to route manager", "peer", id, "relation", relation)
	return nil
}

// RemovePeer removes the peer and every route it contributed. The local node
// cannot be removed.
func (m *Manager) RemovePeer(id string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if id == peer.SelfID {
		return serrors.New("cannot remove local node")
	}
	pt, ok := m.peers[id]
	if !ok {
		return serrors.JoinNoStack(ErrUnknownPeer, nil, "peer", id)
	}
	delete(m.peers, id)
	prefixes := make([]string, 0, len(pt.routes))
	for prefix := range pt.routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		m.withdrawnLocked(id, prefix)
	}
	m.logger.Debug("Removed peer from route manager", "peer", id, "routes", len(prefixes))
	return nil
}

// AddRoute records route in the table of its peer and updates the forwarding
// table. Routes of unknown peers are dropped.
func (m *Manager) AddRoute(route IncomingRoute) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pt, ok := m.peers[route.Peer]
	if !ok {
		m.logger.Debug("Dropping route of unknown peer", "peer", route.Peer,
			"prefix", route.Prefix)
		return
	}
	if route.Weight == 0 {
		route.Weight = pt.weight
	}
	route.Path = slices.Clone(route.Path)
	pt.routes[route.Prefix] = route

	candidate := toRoute(route)
	if incumbent, ok := m.table.Get(route.Prefix); ok && incumbent.NextHop == route.Peer {
		// The winner changed its own route, another peer may now be better.
		m.reevaluateLocked(route.Prefix)
		return
	}
	if m.table.AddRoute(route.Prefix, candidate) {
		m.logger.Debug("Installed route", "prefix", route.Prefix, "next_hop", route.Peer,
			"weight", route.Weight)
	}
}

// RemoveRoute removes the route for prefix advertised by peerID.
func (m *Manager) RemoveRoute(peerID, prefix string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pt, ok := m.peers[peerID]
	if !ok {
		return
	}
	if _, ok := pt.routes[prefix]; !ok {
		return
	}
	delete(pt.routes, prefix)
	m.withdrawnLocked(peerID, prefix)
}

// withdrawnLocked updates the forwarding table after peerID stopped
// advertising prefix.
func (m *Manager) withdrawnLocked(peerID, prefix string) {
	incumbent, ok := m.table.Get(prefix)
	if !ok || incumbent.NextHop != peerID {
		return
	}
	m.reevaluateLocked(prefix)
}

// reevaluateLocked installs the best advertised route for prefix. The current
// winner keeps the prefix unless another route is strictly better; remaining
// ties go to the lowest peer id.
func (m *Manager) reevaluateLocked(prefix string) {
	var best *routing.Route
	if incumbent, ok := m.table.Get(prefix); ok {
		if pt, ok := m.peers[incumbent.NextHop]; ok {
			if r, ok := pt.routes[prefix]; ok {
				cand := toRoute(r)
				best = &cand
			}
		}
	}
	for _, id := range m.sortedPeerIDsLocked() {
		r, ok := m.peers[id].routes[prefix]
		if !ok {
			continue
		}
		cand := toRoute(r)
		if best == nil || routing.Better(cand, *best) {
			best = &cand
		}
	}
	if best == nil {
		if m.table.RemoveRoute(prefix) {
			m.logger.Debug("Removed route", "prefix", prefix)
		}
		return
	}
	if m.table.SetRoute(prefix, *best) {
		m.logger.Debug("Installed route", "prefix", prefix, "next_hop", best.NextHop,
			"weight", best.Weight)
	}
}

// PeerList returns the ids of all registered peers, excluding the local
// node, in lexical order.
func (m *Manager) PeerList() []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	ids := m.sortedPeerIDsLocked()
	return slices.DeleteFunc(ids, func(id string) bool { return id == peer.SelfID })
}

// Peer returns a snapshot of the routes advertised by id.
func (m *Manager) Peer(id string) (PeerRoutes, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pt, ok := m.peers[id]
	if !ok {
		return PeerRoutes{}, false
	}
	routes := make(map[string]IncomingRoute, len(pt.routes))
	for prefix, r := range pt.routes {
		r.Path = slices.Clone(r.Path)
		routes[prefix] = r
	}
	return PeerRoutes{ID: id, Relation: pt.relation, Weight: pt.weight, Routes: routes}, true
}

// Relation returns the relation of a registered peer.
func (m *Manager) Relation(id string) (peer.Relation, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pt, ok := m.peers[id]
	if !ok {
		return "", false
	}
	return pt.relation, true
}

// Weight returns the weight assigned to routes of a registered peer, or zero.
func (m *Manager) Weight(id string) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if pt, ok := m.peers[id]; ok {
		return pt.weight
	}
	return 0
}

func (m *Manager) sortedPeerIDsLocked() []string {
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func toRoute(r IncomingRoute) routing.Route {
	return routing.Route{
		NextHop: r.Peer,
		Path:    slices.Clone(r.Path),
		Weight:  r.Weight,
		Auth:    r.Auth,
	}
}
