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

package ilp

import (
	"crypto/sha256"
	"time"
)

// Reserved addresses of the peer protocols.
const (
	AddressRouteControl = "peer.route.control"
	AddressRouteUpdate  = "peer.route.update"
	AddressConfig       = "peer.config"
	AddressSettle       = "peer.settle"
)

var (
	// PeerProtocolFulfillment is the fulfillment used by the peer protocols,
	// 32 zero bytes.
	PeerProtocolFulfillment [32]byte
	// PeerProtocolCondition is the condition matching
	// PeerProtocolFulfillment.
	PeerProtocolCondition = sha256.Sum256(PeerProtocolFulfillment[:])
)

// NewPeerProtocolPrepare returns a zero amount prepare addressed to one of the
// reserved peer protocol addresses.
func NewPeerProtocolPrepare(destination string, data []byte, expiry time.Duration) *Prepare {
	return &Prepare{
		Destination:        destination,
		ExpiresAt:          time.Now().Add(expiry),
		ExecutionCondition: PeerProtocolCondition,
		Data:               data,
	}
}

// NewPeerProtocolFulfill returns the fulfill answering a peer protocol
// prepare.
func NewPeerProtocolFulfill(data []byte) *Fulfill {
	return &Fulfill{Fulfillment: PeerProtocolFulfillment, Data: data}
}
