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

package ccp_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	ccpstate "github.com/ilpnet/connector/connector/ccp"
	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/log/testlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type relations map[string]peer.Relation

func (r relations) Relation(id string) (peer.Relation, bool) {
	rel, ok := r[id]
	return rel, ok
}

// recordingSend decodes route updates and answers with reply.
type recordingSend struct {
	updates chan *ccp.RouteUpdateRequest
	reply   ilp.Reply
	err     error
}

func newRecordingSend(reply ilp.Reply) *recordingSend {
	return &recordingSend{updates: make(chan *ccp.RouteUpdateRequest, 16), reply: reply}
}

func (s *recordingSend) Send(_ context.Context, p *ilp.Prepare) (ilp.Reply, error) {
	if p.Destination == ilp.AddressRouteUpdate {
		req, err := ccp.ParseRouteUpdateRequest(p.Data)
		if err != nil {
			return nil, err
		}
		s.updates <- req
	}
	return s.reply, s.err
}

func testTable() *routing.Table {
	table := routing.NewTable()
	table.SetOwnAddress("test.conn")
	table.AddRoute("test.a", routing.Route{NextHop: "alice", Path: []string{"test.a"}})
	table.AddRoute("test.b", routing.Route{NextHop: "bob", Path: []string{"test.b"}})
	table.AddRoute("test.c", routing.Route{NextHop: "carol", Path: []string{}})
	return table
}

func TestSenderSendSingleRouteUpdate(t *testing.T) {
	table := testTable()
	send := newRecordingSend(ilp.NewPeerProtocolFulfill(nil))
	s := ccpstate.NewSender(ccpstate.SenderConfig{
		PeerID:       "bob",
		PeerRelation: peer.RelationChild,
		Table:        table,
		Relations:    relations{},
		Send:         send.Send,
		Logger:       testlog.NewLogger(t),
	})
	defer s.Stop()

	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req := <-send.updates
	assert.Equal(t, table.ID(), req.RoutingTableID)
	assert.Equal(t, uint32(0), req.FromEpochIndex)
	assert.Equal(t, uint32(3), req.ToEpochIndex)
	assert.Equal(t, uint32(3), req.CurrentEpochIndex)
	assert.Equal(t, "test.conn", req.Speaker)
	assert.Equal(t, uint32(ccpstate.DefaultRouteExpiry.Milliseconds()), req.HoldDownTime)
	require.Len(t, req.NewRoutes, 2)
	assert.Equal(t, "test.a", req.NewRoutes[0].Prefix)
	assert.Equal(t, []string{"test.conn", "test.a"}, req.NewRoutes[0].Path)
	assert.Equal(t, "test.c", req.NewRoutes[1].Prefix)
	assert.Equal(t, []string{"test.conn"}, req.NewRoutes[1].Path)
	// Routes through the receiving peer are sent as withdrawals.
	assert.Equal(t, []string{"test.b"}, req.WithdrawnRoutes)
	assert.Equal(t, uint32(3), s.LastKnownEpoch())

	// Nothing new: an empty heartbeat.
	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req = <-send.updates
	assert.Equal(t, uint32(3), req.FromEpochIndex)
	assert.Equal(t, uint32(3), req.ToEpochIndex)
	assert.Empty(t, req.NewRoutes)
	assert.Empty(t, req.WithdrawnRoutes)

	table.RemoveRoute("test.a")
	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req = <-send.updates
	assert.Equal(t, []string{"test.a"}, req.WithdrawnRoutes)
	assert.Equal(t, uint32(4), s.LastKnownEpoch())
}

func TestSenderRollsBackOnFailure(t *testing.T) {
	tests := map[string]*recordingSend{
		"reject": newRecordingSend(&ilp.Reject{Code: ilp.CodeUnreachable}),
		"error": func() *recordingSend {
			s := newRecordingSend(nil)
			s.err = context.DeadlineExceeded
			return s
		}(),
	}
	for name, send := range tests {
		t.Run(name, func(t *testing.T) {
			s := ccpstate.NewSender(ccpstate.SenderConfig{
				PeerID: "bob",
				Table:  testTable(),
				Send:   send.Send,
				Logger: testlog.NewLogger(t),
			})
			defer s.Stop()
			assert.Error(t, s.SendSingleRouteUpdate(context.Background()))
			assert.Equal(t, uint32(0), s.LastKnownEpoch())
		})
	}
}

func TestSenderMaxEpochsPerUpdate(t *testing.T) {
	send := newRecordingSend(ilp.NewPeerProtocolFulfill(nil))
	s := ccpstate.NewSender(ccpstate.SenderConfig{
		PeerID:             "dave",
		Table:              testTable(),
		Send:               send.Send,
		MaxEpochsPerUpdate: 2,
		Logger:             testlog.NewLogger(t),
	})
	defer s.Stop()
	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req := <-send.updates
	assert.Equal(t, uint32(2), req.ToEpochIndex)
	assert.Equal(t, uint32(3), req.CurrentEpochIndex)
	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req = <-send.updates
	assert.Equal(t, uint32(2), req.FromEpochIndex)
	assert.Equal(t, uint32(3), req.ToEpochIndex)
}

func TestSenderWithholdsFromParent(t *testing.T) {
	table := routing.NewTable()
	table.SetOwnAddress("test.conn")
	table.AddRoute("test.parent2", routing.Route{NextHop: "parent2"})
	table.AddRoute("test.peer", routing.Route{NextHop: "peer1"})
	table.AddRoute("test.conn.child", routing.Route{NextHop: "child1"})
	table.AddRoute("test.conn", routing.Route{NextHop: peer.SelfID})
	rels := relations{
		"parent1":   peer.RelationParent,
		"parent2":   peer.RelationParent,
		"peer1":     peer.RelationPeer,
		"child1":    peer.RelationChild,
		peer.SelfID: peer.RelationLocal,
	}

	send := newRecordingSend(ilp.NewPeerProtocolFulfill(nil))
	s := ccpstate.NewSender(ccpstate.SenderConfig{
		PeerID:       "parent1",
		PeerRelation: peer.RelationParent,
		Table:        table,
		Relations:    rels,
		Send:         send.Send,
		Logger:       testlog.NewLogger(t),
	})
	defer s.Stop()
	require.NoError(t, s.SendSingleRouteUpdate(context.Background()))
	req := <-send.updates
	var advertised []string
	for _, r := range req.NewRoutes {
		advertised = append(advertised, r.Prefix)
	}
	assert.Equal(t, []string{"test.conn.child", "test.conn"}, advertised)
	assert.Equal(t, []string{"test.parent2", "test.peer"}, req.WithdrawnRoutes)
}

func TestSenderHandleRouteControl(t *testing.T) {
	table := testTable()
	send := newRecordingSend(ilp.NewPeerProtocolFulfill(nil))
	s := ccpstate.NewSender(ccpstate.SenderConfig{
		PeerID: "dave",
		Table:  table,
		Send:   send.Send,
		Logger: testlog.NewLogger(t),
	})
	defer s.Stop()
	assert.Equal(t, ccp.ModeIdle, s.Mode())

	s.HandleRouteControl(&ccp.RouteControlRequest{
		Mode:                    ccp.ModeIdle,
		LastKnownRoutingTableID: table.ID(),
		LastKnownEpoch:          100,
	})
	assert.Equal(t, uint32(3), s.LastKnownEpoch(), "clamped to current epoch")

	s.HandleRouteControl(&ccp.RouteControlRequest{
		Mode:                    ccp.ModeIdle,
		LastKnownRoutingTableID: uuid.New(),
		LastKnownEpoch:          2,
	})
	assert.Equal(t, uint32(0), s.LastKnownEpoch(), "unknown table id restarts")

	s.HandleRouteControl(&ccp.RouteControlRequest{
		Mode:                    ccp.ModeSync,
		LastKnownRoutingTableID: table.ID(),
		LastKnownEpoch:          1,
	})
	assert.Equal(t, ccp.ModeSync, s.Mode())
	select {
	case req := <-send.updates:
		assert.Equal(t, uint32(1), req.FromEpochIndex)
		assert.Equal(t, uint32(3), req.ToEpochIndex)
	case <-time.After(5 * time.Second):
		t.Fatal("no route update broadcast")
	}
}

func TestSenderRollsBackWhenTransportHangs(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s := ccpstate.NewSender(ccpstate.SenderConfig{
		PeerID:       "bob",
		PeerRelation: peer.RelationChild,
		Table:        testTable(),
		// The transport neither observes ctx nor returns before release.
		Send: func(context.Context, *ilp.Prepare) (ilp.Reply, error) {
			<-release
			return ilp.NewPeerProtocolFulfill(nil), nil
		},
		Logger:                 testlog.NewLogger(t),
		RouteBroadcastInterval: 100 * time.Millisecond,
	})
	defer s.Stop()

	start := time.Now()
	err := s.SendSingleRouteUpdate(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, uint32(0), s.LastKnownEpoch())
}
