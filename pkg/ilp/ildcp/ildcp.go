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

// Package ildcp implements the Interledger dynamic configuration protocol, used
// by a child to learn its address and asset from its parent.
package ildcp

import (
	"context"
	"time"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/oer"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// DefaultExpiry is the expiry of ILDCP requests.
const DefaultExpiry = time.Minute

// Response is the configuration a parent hands out to a child.
type Response struct {
	ClientAddress string
	AssetScale    uint8
	AssetCode     string
}

// Marshal serializes the response.
func (r *Response) Marshal() []byte {
	var w oer.Writer
	w.WriteVarString(r.ClientAddress)
	w.WriteUint8(r.AssetScale)
	w.WriteVarString(r.AssetCode)
	return w.Bytes()
}

// ParseResponse decodes a serialized response.
func ParseResponse(raw []byte) (*Response, error) {
	r := oer.NewReader(raw)
	var resp Response
	var err error
	if resp.ClientAddress, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading client address", err)
	}
	if resp.AssetScale, err = r.ReadUint8(); err != nil {
		return nil, serrors.Wrap("reading asset scale", err)
	}
	if resp.AssetCode, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading asset code", err)
	}
	return &resp, nil
}

// SendFunc sends a prepare to the parent and returns its reply.
type SendFunc func(ctx context.Context, prepare *ilp.Prepare) (ilp.Reply, error)

// Fetch requests the configuration from the parent reachable through send. It
// gives up once ctx is done, even if send does not return.
func Fetch(ctx context.Context, send SendFunc) (*Response, error) {
	prepare := ilp.NewPeerProtocolPrepare(ilp.AddressConfig, nil, DefaultExpiry)
	reply, err := ilp.SendBounded(ctx, send, prepare)
	if err != nil {
		return nil, serrors.Wrap("sending ildcp request", err)
	}
	switch r := reply.(type) {
	case *ilp.Fulfill:
		resp, err := ParseResponse(r.Data)
		if err != nil {
			return nil, err
		}
		if !ilp.ValidAddress(resp.ClientAddress) {
			return nil, serrors.New("parent returned invalid address",
				"address", resp.ClientAddress)
		}
		return resp, nil
	case *ilp.Reject:
		return nil, serrors.New("ildcp request rejected",
			"code", r.Code, "message", r.Message, "triggered_by", r.TriggeredBy)
	default:
		return nil, serrors.New("unexpected ildcp reply")
	}
}

// Serve returns the fulfill answering an ILDCP request with resp.
func Serve(resp *Response) *ilp.Fulfill {
	return ilp.NewPeerProtocolFulfill(resp.Marshal())
}
