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

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/connector/pipeline"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/ilp/ildcp"
)

type fakeProtocols struct {
	controls []*ccp.RouteControlRequest
	updates  []*ccp.RouteUpdateRequest
	settles  []*ilp.Prepare
	from     []string
}

func (f *fakeProtocols) HandleRouteControl(_ context.Context, from string,
	req *ccp.RouteControlRequest) error {

	f.from = append(f.from, from)
	f.controls = append(f.controls, req)
	return nil
}

func (f *fakeProtocols) HandleRouteUpdate(_ context.Context, from string,
	req *ccp.RouteUpdateRequest) error {

	f.from = append(f.from, from)
	f.updates = append(f.updates, req)
	return nil
}

func (f *fakeProtocols) ILDCPResponse(from string) (*ildcp.Response, error) {
	if from != "alice" {
		return nil, ilp.BadRequestError("not a child")
	}
	return &ildcp.Response{ClientAddress: "test.conn.alice", AssetScale: 9, AssetCode: "XRP"}, nil
}

func (f *fakeProtocols) HandleSettlement(_ context.Context, from string,
	p *ilp.Prepare) (ilp.Reply, error) {

	f.from = append(f.from, from)
	f.settles = append(f.settles, p)
	return ilp.NewPeerProtocolFulfill([]byte("settled")), nil
}

func (f *fakeProtocols) OwnAddresses() []string {
	return []string{"test.conn"}
}

func TestProtocolsPeerProtocols(t *testing.T) {
	h := &fakeProtocols{}
	rule := pipeline.Protocols(h, 0)
	process := func(dest string, data []byte) (ilp.Reply, error) {
		req := newRequest(t, 0)
		req.Prepare = ilp.NewPeerProtocolPrepare(dest, data, time.Minute)
		return rule.Incoming.Process(context.Background(), req, mustNotCall(t))
	}

	ctrl := &ccp.RouteControlRequest{Mode: ccp.ModeSync, LastKnownRoutingTableID: uuid.New(),
		LastKnownEpoch: 3, Features: []string{}}
	reply, err := process(ilp.AddressRouteControl, ctrl.Marshal())
	require.NoError(t, err)
	assert.Equal(t, ilp.NewPeerProtocolFulfill(nil), reply)
	require.Len(t, h.controls, 1)
	assert.Equal(t, ctrl.LastKnownRoutingTableID, h.controls[0].LastKnownRoutingTableID)

	update := &ccp.RouteUpdateRequest{RoutingTableID: uuid.New(), ToEpochIndex: 2,
		Speaker: "test.alice", NewRoutes: []ccp.Route{}, WithdrawnRoutes: []string{"test.x"}}
	_, err = process(ilp.AddressRouteUpdate, update.Marshal())
	require.NoError(t, err)
	require.Len(t, h.updates, 1)
	assert.Equal(t, []string{"test.x"}, h.updates[0].WithdrawnRoutes)

	_, err = process(ilp.AddressRouteUpdate, []byte{1, 2, 3})
	assertCode(t, ilp.CodeInvalidPacket, err)

	reply, err = process(ilp.AddressConfig, nil)
	require.NoError(t, err)
	f, ok := reply.(*ilp.Fulfill)
	require.True(t, ok)
	resp, err := ildcp.ParseResponse(f.Data)
	require.NoError(t, err)
	assert.Equal(t, "test.conn.alice", resp.ClientAddress)

	reply, err = process(ilp.AddressSettle, []byte("money"))
	require.NoError(t, err)
	assert.Equal(t, []byte("settled"), reply.(*ilp.Fulfill).Data)
	assert.Equal(t, []string{"alice", "alice", "alice"}, h.from)
}

func TestProtocolsEcho(t *testing.T) {
	rule := pipeline.Protocols(&fakeProtocols{}, time.Second)

	req := newRequest(t, 5)
	req.Prepare.Destination = "test.conn"
	req.Prepare.Data = pipeline.NewEchoRequest("test.alice")
	expiry := req.Prepare.ExpiresAt
	var forwarded *ilp.Prepare
	_, err := rule.Incoming.Process(context.Background(), req,
		func(ctx context.Context, req *pipeline.Request) (ilp.Reply, error) {
			forwarded = req.Prepare
			return fulfill(ctx, req)
		})
	require.NoError(t, err)
	require.NotNil(t, forwarded)
	assert.Equal(t, "test.alice", forwarded.Destination)
	assert.Equal(t, append([]byte(pipeline.EchoPrefix), pipeline.EchoResponse), forwarded.Data)
	assert.Equal(t, expiry.Add(-time.Second), forwarded.ExpiresAt)
	assert.Equal(t, uint64(5), forwarded.Amount)

	tests := map[string][]byte{
		"response":  append([]byte(pipeline.EchoPrefix), pipeline.EchoResponse),
		"too short": []byte(pipeline.EchoPrefix),
		"bad type":  append([]byte(pipeline.EchoPrefix), 7),
		"bad source": append(append([]byte(pipeline.EchoPrefix), pipeline.EchoRequest),
			3, 'x', 'y', 'z'),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			req := newRequest(t, 5)
			req.Prepare.Destination = "test.conn"
			req.Prepare.Data = data
			_, err := rule.Incoming.Process(context.Background(), req, mustNotCall(t))
			assertCode(t, ilp.CodeInvalidPacket, err)
		})
	}
}

func TestProtocolsPassThrough(t *testing.T) {
	rule := pipeline.Protocols(&fakeProtocols{}, 0)
	req := newRequest(t, 5)
	req.Prepare.Data = pipeline.NewEchoRequest("test.alice")
	called := false
	_, err := rule.Incoming.Process(context.Background(), req,
		func(ctx context.Context, r *pipeline.Request) (ilp.Reply, error) {
			called = true
			assert.Equal(t, "test.bob", r.Prepare.Destination, "echo only for own addresses")
			return fulfill(ctx, r)
		})
	require.NoError(t, err)
	assert.True(t, called)
}
