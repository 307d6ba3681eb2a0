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

package routemgr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/routemgr"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/pkg/log/testlog"
)

func newManager(t *testing.T) *routemgr.Manager {
	return routemgr.New(routing.NewTable(), testlog.NewLogger(t))
}

func nextHop(t *testing.T, m *routemgr.Manager, dst string) string {
	t.Helper()
	hop, err := m.Table().NextHop(dst)
	require.NoError(t, err)
	return hop
}

func TestAddPeer(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("alice", peer.RelationChild, 0))
	assert.ErrorIs(t, m.AddPeer("alice", peer.RelationChild, 0), routemgr.ErrPeerExists)
	assert.ErrorIs(t, m.AddPeer(peer.SelfID, peer.RelationLocal, 0), routemgr.ErrPeerExists)
	assert.Equal(t, []string{"alice"}, m.PeerList())
	assert.Equal(t, peer.WeightChild, m.Weight("alice"))

	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 1000))
	assert.Equal(t, 1000, m.Weight("bob"))
	rel, ok := m.Relation("bob")
	require.True(t, ok)
	assert.Equal(t, peer.RelationPeer, rel)
}

func TestAddRouteUnknownPeer(t *testing.T) {
	m := newManager(t)
	m.AddRoute(routemgr.IncomingRoute{Peer: "ghost", Prefix: "test.ghost"})
	assert.Empty(t, m.Table().Keys())
	_, ok := m.Peer("ghost")
	assert.False(t, ok)
}

func TestTieBreakAcrossPeers(t *testing.T) {
	for name, order := range map[string][]string{
		"peer first":  {"bob", "carol"},
		"child first": {"carol", "bob"},
	} {
		t.Run(name, func(t *testing.T) {
			m := newManager(t)
			require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
			require.NoError(t, m.AddPeer("carol", peer.RelationChild, 0))
			for _, id := range order {
				m.AddRoute(routemgr.IncomingRoute{Peer: id, Prefix: "test.x", Path: []string{}})
			}
			assert.Equal(t, "bob", nextHop(t, m, "test.x.y"))
		})
	}
}

func TestWithdrawFallsBack(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
	require.NoError(t, m.AddPeer("carol", peer.RelationChild, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.x"})
	m.AddRoute(routemgr.IncomingRoute{Peer: "carol", Prefix: "test.x"})
	assert.Equal(t, "bob", nextHop(t, m, "test.x"))

	m.RemoveRoute("bob", "test.x")
	assert.Equal(t, "carol", nextHop(t, m, "test.x"))

	m.RemoveRoute("carol", "test.x")
	_, err := m.Table().NextHop("test.x")
	assert.ErrorIs(t, err, routing.ErrRouteNotFound)
}

func TestRemoveNonWinnerKeepsWinner(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
	require.NoError(t, m.AddPeer("carol", peer.RelationChild, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.x"})
	m.AddRoute(routemgr.IncomingRoute{Peer: "carol", Prefix: "test.x"})
	epoch := m.Table().CurrentEpoch()
	m.RemoveRoute("carol", "test.x")
	assert.Equal(t, "bob", nextHop(t, m, "test.x"))
	assert.Equal(t, epoch, m.Table().CurrentEpoch(), "forwarding table untouched")
}

func TestRemovePeerCascades(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
	require.NoError(t, m.AddPeer("dave", peer.RelationPeer, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.a"})
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.b"})
	m.AddRoute(routemgr.IncomingRoute{Peer: "dave", Prefix: "test.b", Path: []string{"x"}})

	require.NoError(t, m.RemovePeer("bob"))
	assert.Equal(t, []string{"test.b"}, m.Table().Keys())
	assert.Equal(t, "dave", nextHop(t, m, "test.b"))
	assert.ErrorIs(t, m.RemovePeer("bob"), routemgr.ErrUnknownPeer)
	assert.Error(t, m.RemovePeer(peer.SelfID))

	// Late routes of the removed peer are dropped.
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.a"})
	assert.Equal(t, []string{"test.b"}, m.Table().Keys())
}

func TestWinnerDegradesToBetterAlternative(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
	require.NoError(t, m.AddPeer("dave", peer.RelationPeer, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.x", Path: []string{"1"}})
	m.AddRoute(routemgr.IncomingRoute{Peer: "dave", Prefix: "test.x", Path: []string{"1", "2"}})
	assert.Equal(t, "bob", nextHop(t, m, "test.x"))

	// bob's path gets longer than dave's.
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.x",
		Path: []string{"1", "2", "3"}})
	assert.Equal(t, "dave", nextHop(t, m, "test.x"))

	// bob's path gets longer but stays the best.
	m.AddRoute(routemgr.IncomingRoute{Peer: "dave", Prefix: "test.x",
		Path: []string{"1", "2", "3", "4"}})
	assert.Equal(t, "bob", nextHop(t, m, "test.x"))
}

func TestOwnAddressWins(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("parent", peer.RelationParent, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "parent", Prefix: "test.connie"})
	m.AddRoute(routemgr.IncomingRoute{Peer: peer.SelfID, Prefix: "test.connie"})
	assert.Equal(t, peer.SelfID, nextHop(t, m, "test.connie"))

	r, ok := m.Peer(peer.SelfID)
	require.True(t, ok)
	assert.Equal(t, peer.OwnAddressWeight, r.Routes["test.connie"].Weight)
}

func TestPeerSnapshotIsCopy(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.AddPeer("bob", peer.RelationPeer, 0))
	m.AddRoute(routemgr.IncomingRoute{Peer: "bob", Prefix: "test.x", Path: []string{"a"}})
	snap, ok := m.Peer("bob")
	require.True(t, ok)
	snap.Routes["test.x"].Path[0] = "mutated"
	snap2, _ := m.Peer("bob")
	assert.Equal(t, []string{"a"}, snap2.Routes["test.x"].Path)
	assert.Equal(t, peer.WeightPeer, snap2.Routes["test.x"].Weight)
}
