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
	"time"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/pkg/ilp"
)

// Expiry defaults.
const (
	DefaultMinMessageWindow = time.Second
	DefaultMaxHoldWindow    = 30 * time.Second
)

// ExpiryConfig configures the expiry rule.
type ExpiryConfig struct {
	// MinMessageWindow is the time reserved for passing the fulfillment back
	// to the previous hop.
	MinMessageWindow time.Duration
	// MaxHoldWindow is the longest time a forwarded packet may be held.
	MaxHoldWindow time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Expiry returns the rule that enforces packet expiry. Incoming packets that
// already expired are rejected and processing is bounded by their expiry.
// Outgoing packets get their expiry reduced by the message window and capped
// by the hold window.
func Expiry(cfg ExpiryConfig) Rule {
	if cfg.MinMessageWindow == 0 {
		cfg.MinMessageWindow = DefaultMinMessageWindow
	}
	if cfg.MaxHoldWindow == 0 {
		cfg.MaxHoldWindow = DefaultMaxHoldWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return Rule{
		Name: RuleExpiry,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			now := cfg.Now()
			if err := checkExpired(req.Prepare.ExpiresAt, now); err != nil {
				return nil, err
			}
			ctx, cancelF := context.WithDeadline(ctx, req.Prepare.ExpiresAt)
			defer cancelF()
			return next(ctx, req)
		}),
		Outgoing: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			minWindow, maxHold := cfg.windows(req.Peers.Outgoing)
			expiry, err := reduceExpiry(req.Prepare.ExpiresAt, cfg.Now(), minWindow, maxHold)
			if err != nil {
				return nil, err
			}
			req.Prepare.ExpiresAt = expiry
			ctx, cancelF := context.WithDeadline(ctx, expiry)
			defer cancelF()
			return next(ctx, req)
		}),
	}
}

// windows returns the windows configured for p, falling back to the
// defaults.
func (cfg ExpiryConfig) windows(p *peer.Peer) (time.Duration, time.Duration) {
	minWindow, maxHold := cfg.MinMessageWindow, cfg.MaxHoldWindow
	if p == nil {
		return minWindow, maxHold
	}
	if w := time.Duration(p.Info.Expiry.MinMessageWindow); w != 0 {
		minWindow = w
	}
	if w := time.Duration(p.Info.Expiry.MaxHoldWindow); w != 0 {
		maxHold = w
	}
	return minWindow, maxHold
}

func checkExpired(expiry, now time.Time) error {
	if expiry.Before(now) {
		return ilp.InsufficientTimeoutError(
			"source transfer has already expired. sourceExpiry=%s currentTime=%s",
			ilp.FormatTime(expiry), ilp.FormatTime(now))
	}
	return nil
}

// reduceExpiry returns the expiry of the packet sent to the next hop.
func reduceExpiry(source, now time.Time, minWindow, maxHold time.Duration) (time.Time, error) {
	if err := checkExpired(source, now); err != nil {
		return time.Time{}, err
	}
	dest := source.Add(-minWindow)
	if limit := now.Add(maxHold); dest.After(limit) {
		dest = limit
	}
	if required := now.Add(minWindow); dest.Before(required) {
		return time.Time{}, ilp.InsufficientTimeoutError(
			"source transfer expires too soon to complete payment. "+
				"actualSourceExpiry=%s requiredSourceExpiry=%s currentTime=%s",
			ilp.FormatTime(source), ilp.FormatTime(now.Add(2*minWindow)),
			ilp.FormatTime(now))
	}
	return dest, nil
}
