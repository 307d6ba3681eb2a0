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
	"crypto/sha256"

	"github.com/ilpnet/connector/connector/alerts"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log"
)

// MaximumBalanceMessage is the reject message of a peer whose balance limit
// is reached.
const MaximumBalanceMessage = "exceeded maximum balance."

// AlertRecorder records operator alerts.
type AlertRecorder interface {
	Record(peerID, triggeredBy, message string) alerts.Alert
}

// LiquidityCheck returns the rule that raises an alert when the next hop
// rejects a packet because its balance limit is reached. This indicates that
// the balances of both sides disagree, typically after a restart.
func LiquidityCheck(alerts AlertRecorder) Rule {
	return Rule{
		Name: RuleLiquidityCheck,
		Outgoing: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			reply, err := next(ctx, req)
			if r, ok := reply.(*ilp.Reject); ok && r != nil &&
				r.Code == ilp.CodeInsufficientLiquidity && r.Message == MaximumBalanceMessage {

				log.FromCtx(ctx).Error("Next hop rejected packet with liquidity error",
					"peer", req.Peers.Outgoing.Info.ID, "triggered_by", r.TriggeredBy)
				alerts.Record(req.Peers.Outgoing.Info.ID, r.TriggeredBy, r.Message)
			}
			return reply, err
		}),
	}
}

// ValidateFulfillment returns the rule that checks that a fulfillment
// returned by the next hop matches the condition of the prepare.
func ValidateFulfillment() Rule {
	return Rule{
		Name: RuleValidateFulfillment,
		Outgoing: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			reply, err := next(ctx, req)
			if f, ok := reply.(*ilp.Fulfill); ok && f != nil {
				if sha256.Sum256(f.Fulfillment[:]) != req.Prepare.ExecutionCondition {
					log.FromCtx(ctx).Info("Next hop returned invalid fulfillment",
						"peer", req.Peers.Outgoing.Info.ID)
					return nil, ilp.WrongConditionError("fulfillment did not match expected value.")
				}
			}
			return reply, err
		}),
	}
}
