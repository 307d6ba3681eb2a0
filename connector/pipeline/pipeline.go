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

// Package pipeline contains the middleware chains every packet passes through.
//
// A packet from a peer runs through the incoming chain of that peer. The
// terminal handler of the incoming chain resolves the next hop and runs the
// outgoing chain of the next hop, whose terminal handler sends the packet.
// The reply unwinds both chains in reverse.
//
// Rules are connector wide. A rule that keeps per-peer state keys it by peer id
// and releases it in Shutdown.
package pipeline

import (
	"context"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/pkg/ilp"
)

// Rule names.
const (
	RuleErrorHandler        = "error-handler"
	RuleRateLimit           = "rate-limit"
	RuleMaxPacketAmount     = "max-packet-amount"
	RuleThroughput          = "throughput"
	RuleExpiry              = "expire"
	RuleBalance             = "balance"
	RuleLiquidityCheck      = "liquidity-check"
	RuleValidateFulfillment = "validate-fulfillment"
	RuleProtocols           = "protocols"
)

// Peers are the peers a packet travels between. Incoming is set when the
// packet enters the connector, Outgoing once the next hop is resolved.
type Peers struct {
	Incoming *peer.Peer
	Outgoing *peer.Peer
}

// Request is the state of one packet in flight.
type Request struct {
	Prepare *ilp.Prepare
	Peers   Peers
}

// Handler processes a request. It returns either a reply or an error, never
// both.
type Handler func(ctx context.Context, req *Request) (ilp.Reply, error)

// Middleware intercepts a request on its way to next.
type Middleware interface {
	Process(ctx context.Context, req *Request, next Handler) (ilp.Reply, error)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, req *Request, next Handler) (ilp.Reply, error)

func (f MiddlewareFunc) Process(ctx context.Context, req *Request,
	next Handler) (ilp.Reply, error) {

	return f(ctx, req, next)
}

// Rule is one pipeline stage. Either side may be nil.
type Rule struct {
	Name     string
	Incoming Middleware
	Outgoing Middleware
	// Required rules are installed for every peer, regardless of the rules
	// the peer lists.
	Required bool
	// Shutdown releases the state kept for a peer. It may be nil.
	Shutdown func(peerID string)
}

// Chain wraps h in mws. The first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(ctx context.Context, req *Request) (ilp.Reply, error) {
			return mw.Process(ctx, req, next)
		}
	}
	return h
}

// Pipelines are the composed chains of one peer.
type Pipelines struct {
	Incoming Handler
	Outgoing Handler
	rules    []Rule
}

// Build composes the chains of a peer from rules, in order, around the
// terminal handlers.
func Build(rules []Rule, incoming, outgoing Handler) *Pipelines {
	var in, out []Middleware
	for _, r := range rules {
		if r.Incoming != nil {
			in = append(in, r.Incoming)
		}
		if r.Outgoing != nil {
			out = append(out, r.Outgoing)
		}
	}
	return &Pipelines{
		Incoming: Chain(incoming, in...),
		Outgoing: Chain(outgoing, out...),
		rules:    rules,
	}
}

// Shutdown releases the state the rules of the pipelines keep for peerID.
func (p *Pipelines) Shutdown(peerID string) {
	for _, r := range p.rules {
		if r.Shutdown != nil {
			r.Shutdown(peerID)
		}
	}
}

// Select returns the rules the peer described by info gets, in the order of
// rules. A peer without a rule list gets all rules.
func Select(rules []Rule, info *peer.Info) []Rule {
	if info.Rules == nil {
		return rules
	}
	var selected []Rule
	for _, r := range rules {
		if r.Required || info.HasRule(r.Name) {
			selected = append(selected, r)
		}
	}
	return selected
}

// isFulfill reports whether reply is a fulfill.
func isFulfill(reply ilp.Reply) bool {
	f, ok := reply.(*ilp.Fulfill)
	return ok && f != nil
}

// RulesConfig configures the default rules.
type RulesConfig struct {
	OwnAddresses OwnAddressesFunc
	// RateLimit is the rate limit of peers without one.
	RateLimit peer.BucketConfig
	Expiry    ExpiryConfig
	Balance   BalanceConfig
	Alerts    AlertRecorder
	Protocols ProtocolHandler
}

// DefaultRules returns the rules of the connector in pipeline order.
func DefaultRules(cfg RulesConfig) []Rule {
	return []Rule{
		ErrorHandler(cfg.OwnAddresses),
		RateLimit(cfg.RateLimit),
		MaxPacketAmount(),
		Throughput(),
		Expiry(cfg.Expiry),
		Balance(cfg.Balance),
		LiquidityCheck(cfg.Alerts),
		ValidateFulfillment(),
		Protocols(cfg.Protocols, cfg.Expiry.MinMessageWindow),
	}
}
