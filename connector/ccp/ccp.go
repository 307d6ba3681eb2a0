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

// Package ccp implements the per-peer state machines of the route broadcast
// protocol.
//
// A Sender broadcasts the local forwarding table to one peer, incrementally by
// epoch. A Receiver applies the broadcasts of one peer to the route manager
// and keeps requesting them.
package ccp

import (
	"context"
	"time"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// Defaults of the protocol timers.
const (
	DefaultRouteBroadcastInterval = 30 * time.Second
	DefaultRouteExpiry            = 45 * time.Second
	DefaultMaxEpochsPerUpdate     = 50
	MinimumUpdateInterval         = 150 * time.Millisecond

	DefaultRouteControlRetry = 30 * time.Second
	DefaultCheckInterval     = 20 * time.Second
	DefaultStaleAfter        = 60 * time.Second
)

// SendFunc sends a peer protocol prepare to the peer and returns the reply.
type SendFunc func(ctx context.Context, prepare *ilp.Prepare) (ilp.Reply, error)

// expectFulfill turns a reject reply into an error.
func expectFulfill(reply ilp.Reply, err error) error {
	if err != nil {
		return err
	}
	switch r := reply.(type) {
	case *ilp.Fulfill:
		return nil
	case *ilp.Reject:
		return serrors.New("peer rejected request", "code", r.Code, "message", r.Message)
	default:
		return serrors.New("unexpected reply")
	}
}
