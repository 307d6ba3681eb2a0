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

// Package peer contains the static description and runtime state of the
// peers a connector is linked to.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilpnet/connector/connector/balance"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// SelfID is the next hop of routes that terminate at the connector itself.
const SelfID = "self"

// Relation is the business relation to a peer. It determines route
// preference.
type Relation string

// The relations.
const (
	RelationParent Relation = "parent"
	RelationPeer   Relation = "peer"
	RelationChild  Relation = "child"
	RelationLocal  Relation = "local"
)

// Route weights per relation. Own addresses use OwnAddressWeight.
const (
	WeightParent     = 400
	WeightPeer       = 300
	WeightChild      = 200
	WeightLocal      = 100
	OwnAddressWeight = 500
)

// Weight returns the route weight of r.
func (r Relation) Weight() int {
	switch r {
	case RelationParent:
		return WeightParent
	case RelationPeer:
		return WeightPeer
	case RelationChild:
		return WeightChild
	case RelationLocal:
		return WeightLocal
	default:
		return 0
	}
}

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	return r.Weight() != 0
}

// Duration is a time.Duration that is stored as a duration string in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// BucketConfig configures a token bucket. A zero RefillCount disables the
// limit.
type BucketConfig struct {
	RefillPeriod Duration `json:"refill_period,omitempty"`
	RefillCount  uint64   `json:"refill_count,omitempty"`
	Capacity     uint64   `json:"capacity,omitempty"`
}

// ThroughputConfig configures money throughput limits per direction.
type ThroughputConfig struct {
	Incoming BucketConfig `json:"incoming,omitempty"`
	Outgoing BucketConfig `json:"outgoing,omitempty"`
}

// ExpiryConfig configures the expiry reduction of forwarded packets. Zero
// values select the connector defaults.
type ExpiryConfig struct {
	MinMessageWindow Duration `json:"min_message_window,omitempty"`
	MaxHoldWindow    Duration `json:"max_hold_window,omitempty"`
}

// BalanceConfig configures the account balance of a peer.
type BalanceConfig struct {
	Initial int64 `json:"initial,omitempty"`
	Minimum int64 `json:"minimum"`
	Maximum int64 `json:"maximum"`
	// SettleThreshold enables settlement. The connector settles once the
	// balance falls below it.
	SettleThreshold *int64 `json:"settle_threshold,omitempty"`
	// SettleTo is the balance a settlement brings the account back to.
	SettleTo int64 `json:"settle_to,omitempty"`
}

// Protocols lists the peer protocols enabled for a peer.
type Protocols struct {
	CCPSender   bool `json:"ccp_sender,omitempty"`
	CCPReceiver bool `json:"ccp_receiver,omitempty"`
	ILDCP       bool `json:"ildcp,omitempty"`
}

// Info is the static description of a peer. It is never mutated once a Peer
// is built; updates replace it wholesale.
type Info struct {
	ID         string   `json:"id"`
	Relation   Relation `json:"relation"`
	Endpoint   string   `json:"endpoint,omitempty"`
	AssetCode  string   `json:"asset_code"`
	AssetScale uint8    `json:"asset_scale"`
	// MaxPacketAmount is the largest accepted packet amount. Zero disables
	// the check.
	MaxPacketAmount uint64           `json:"max_packet_amount,omitempty"`
	RateLimit       BucketConfig     `json:"rate_limit,omitempty"`
	Throughput      ThroughputConfig `json:"throughput,omitempty"`
	Expiry          ExpiryConfig     `json:"expiry,omitempty"`
	Balance         *BalanceConfig   `json:"balance,omitempty"`
	// Rules lists the pipeline stages for the peer in addition to the ones
	// every peer gets. Nil selects the default set, an empty list only the
	// required stages.
	Rules     []string  `json:"rules"`
	Protocols Protocols `json:"protocols,omitempty"`
	// RouteWeight overrides the relation weight of routes learned from this
	// peer.
	RouteWeight int `json:"route_weight,omitempty"`
}

// Validate checks the info for consistency.
func (i *Info) Validate() error {
	if i.ID == "" {
		return serrors.New("peer id must not be empty")
	}
	if i.ID == SelfID {
		return serrors.New("peer id is reserved", "id", i.ID)
	}
	if !i.Relation.Valid() {
		return serrors.New("invalid relation", "id", i.ID, "relation", i.Relation)
	}
	if b := i.Balance; b != nil {
		if b.Minimum > b.Maximum || b.Initial < b.Minimum || b.Initial > b.Maximum {
			return serrors.New("invalid balance bounds", "id", i.ID,
				"initial", b.Initial, "min", b.Minimum, "max", b.Maximum)
		}
		if b.SettleThreshold != nil && b.SettleTo < *b.SettleThreshold {
			return serrors.New("settle_to must not be below settle_threshold", "id", i.ID)
		}
	}
	return nil
}

// Weight returns the route weight of routes learned from the peer.
func (i *Info) Weight() int {
	if i.RouteWeight != 0 {
		return i.RouteWeight
	}
	return i.Relation.Weight()
}

// HasRule reports whether name is configured for the peer.
func (i *Info) HasRule(name string) bool {
	for _, r := range i.Rules {
		if r == name {
			return true
		}
	}
	return false
}

// Client sends serialized ILP packets to a peer and returns the serialized
// reply.
type Client interface {
	Send(ctx context.Context, data []byte) ([]byte, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, data []byte) ([]byte, error)

func (f ClientFunc) Send(ctx context.Context, data []byte) ([]byte, error) {
	return f(ctx, data)
}

// Peer is the runtime state of a linked peer.
type Peer struct {
	Info    Info
	Client  Client
	Balance *balance.Balance
}

// New builds the runtime peer for info.
func New(info Info, client Client) (*Peer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	p := &Peer{Info: info, Client: client}
	if info.Balance != nil {
		b, err := balance.New(info.Balance.Initial, info.Balance.Minimum, info.Balance.Maximum)
		if err != nil {
			return nil, serrors.Wrap("creating balance", err, "peer", info.ID)
		}
		p.Balance = b
	}
	return p, nil
}

// SendPacket serializes packet, sends it through the client and parses the
// reply.
func (p *Peer) SendPacket(ctx context.Context, packet *ilp.Prepare) (ilp.Reply, error) {
	if p.Client == nil {
		return nil, ilp.PeerUnreachableError("no client for peer %s", p.Info.ID)
	}
	raw, err := ilp.Marshal(packet)
	if err != nil {
		return nil, serrors.Wrap("serializing prepare", err, "peer", p.Info.ID)
	}
	rawReply, err := p.Client.Send(ctx, raw)
	if err != nil {
		return nil, serrors.Wrap("sending packet", err, "peer", p.Info.ID)
	}
	reply, err := ilp.ParseReply(rawReply)
	if err != nil {
		return nil, ilp.InvalidPacketError("invalid reply from peer %s: %s", p.Info.ID, err)
	}
	return reply, nil
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s(%s)", p.Info.ID, p.Info.Relation)
}
