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

package pipeline

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/ilp/ildcp"
	"github.com/ilpnet/connector/pkg/ilp/oer"
)

// EchoPrefix starts the data of echo packets.
const EchoPrefix = "ECHOECHOECHOECHO"

// Echo packet types.
const (
	EchoRequest  uint8 = 0
	EchoResponse uint8 = 1
)

// ProtocolHandler serves the peer protocols addressed to the connector.
type ProtocolHandler interface {
	HandleRouteControl(ctx context.Context, peerID string, req *ccp.RouteControlRequest) error
	HandleRouteUpdate(ctx context.Context, peerID string, req *ccp.RouteUpdateRequest) error
	// ILDCPResponse returns the configuration handed out to the peer.
	ILDCPResponse(peerID string) (*ildcp.Response, error)
	HandleSettlement(ctx context.Context, peerID string, prepare *ilp.Prepare) (ilp.Reply, error)
	OwnAddresses() []string
}

// Protocols returns the rule that answers packets addressed to the peer
// protocols and echo requests addressed to the connector. Other packets pass
// through to forwarding.
func Protocols(h ProtocolHandler, minMessageWindow time.Duration) Rule {
	if minMessageWindow == 0 {
		minMessageWindow = DefaultMinMessageWindow
	}
	return Rule{
		Name:     RuleProtocols,
		Required: true,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			prepare := req.Prepare
			from := req.Peers.Incoming.Info.ID
			switch prepare.Destination {
			case ilp.AddressRouteControl:
				ctrl, err := ccp.ParseRouteControlRequest(prepare.Data)
				if err != nil {
					return nil, ilp.InvalidPacketError("invalid route control request: %s", err)
				}
				if err := h.HandleRouteControl(ctx, from, ctrl); err != nil {
					return nil, err
				}
				return ilp.NewPeerProtocolFulfill(nil), nil
			case ilp.AddressRouteUpdate:
				update, err := ccp.ParseRouteUpdateRequest(prepare.Data)
				if err != nil {
					return nil, ilp.InvalidPacketError("invalid route update request: %s", err)
				}
				if err := h.HandleRouteUpdate(ctx, from, update); err != nil {
					return nil, err
				}
				return ilp.NewPeerProtocolFulfill(nil), nil
			case ilp.AddressConfig:
				resp, err := h.ILDCPResponse(from)
				if err != nil {
					return nil, err
				}
				return ildcp.Serve(resp), nil
			case ilp.AddressSettle:
				return h.HandleSettlement(ctx, from, prepare)
			}
			if slices.Contains(h.OwnAddresses(), prepare.Destination) &&
				bytes.HasPrefix(prepare.Data, []byte(EchoPrefix)) {

				if err := echo(prepare, minMessageWindow); err != nil {
					return nil, err
				}
			}
			return next(ctx, req)
		}),
	}
}

// echo turns an echo request into the echo response sent back to the
// source address.
func echo(prepare *ilp.Prepare, minMessageWindow time.Duration) error {
	r := oer.NewReader(prepare.Data[len(EchoPrefix):])
	typ, err := r.ReadUint8()
	if err != nil {
		return ilp.InvalidPacketError("packet data too short for echo request.")
	}
	switch typ {
	case EchoRequest:
	case EchoResponse:
		return ilp.InvalidPacketError("received unexpected echo response.")
	default:
		return ilp.InvalidPacketError("received unexpected echo type. type=%d", typ)
	}
	source, err := r.ReadVarString()
	if err != nil || !ilp.ValidAddress(source) {
		return ilp.InvalidPacketError("invalid echo source address.")
	}
	prepare.Destination = source
	prepare.Data = append([]byte(EchoPrefix), EchoResponse)
	prepare.ExpiresAt = prepare.ExpiresAt.Add(-minMessageWindow)
	return nil
}

// NewEchoRequest returns the data of an echo request asking the receiver to
// send the packet back to source.
func NewEchoRequest(source string) []byte {
	var w oer.Writer
	w.WriteOctetString([]byte(EchoPrefix))
	w.WriteUint8(EchoRequest)
	w.WriteVarString(source)
	return w.Bytes()
}
