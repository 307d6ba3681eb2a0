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
	"context"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/metrics"
)

// BalanceConfig configures the balance rule.
type BalanceConfig struct {
	// Settle is called after every committed balance change of a peer. It
	// must not block.
	Settle func(peerID string)
	// Gauge returns the balance gauge of a peer. It may be nil.
	Gauge func(peerID string) metrics.Gauge
}

// Balance returns the rule that keeps peer balances. An incoming packet
// reserves its amount on the balance of the sending peer; the reservation is
// released unless the packet is fulfilled. A fulfilled outgoing packet is
// charged to the balance of the next hop.
func Balance(cfg BalanceConfig) Rule {
	committed := func(p *peer.Peer) {
		if cfg.Gauge != nil {
			metrics.GaugeSet(cfg.Gauge(p.Info.ID), float64(p.Balance.Value()))
		}
		if cfg.Settle != nil {
			cfg.Settle(p.Info.ID)
		}
	}
	return Rule{
		Name: RuleBalance,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			p := req.Peers.Incoming
			if !accounted(p, req.Prepare) {
				return next(ctx, req)
			}
			amount := req.Prepare.Amount
			if _, err := p.Balance.Add(amount); err != nil {
				log.FromCtx(ctx).Info("Balance limit reached", "peer", p.Info.ID, "err", err)
				return nil, ilp.InsufficientLiquidityError("exceeded maximum balance.")
			}
			reply, err := next(ctx, req)
			if err != nil || !isFulfill(reply) {
				if _, rerr := p.Balance.Subtract(amount); rerr != nil {
					log.FromCtx(ctx).Error("Rolling back reserved amount", "peer", p.Info.ID,
						"amount", amount, "err", rerr)
				}
				return reply, err
			}
			committed(p)
			return reply, nil
		}),
		Outgoing: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			reply, err := next(ctx, req)
			p := req.Peers.Outgoing
			if err != nil || !isFulfill(reply) || !accounted(p, req.Prepare) {
				return reply, err
			}
			if _, err := p.Balance.Subtract(req.Prepare.Amount); err != nil {
				// The money already moved downstream, relay the fulfill.
				log.FromCtx(ctx).Error("Charging fulfilled packet", "peer", p.Info.ID,
					"amount", req.Prepare.Amount, "err", err)
				return reply, nil
			}
			committed(p)
			return reply, nil
		}),
	}
}

// accounted reports whether prepare changes the balance of p.
func accounted(p *peer.Peer, prepare *ilp.Prepare) bool {
	return p != nil && p.Balance != nil && prepare.Amount != 0 &&
		prepare.Destination != ilp.AddressSettle
}
