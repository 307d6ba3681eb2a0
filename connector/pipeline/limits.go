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
	"sync"
	"time"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/tokenbucket"
	"github.com/ilpnet/connector/pkg/ilp"
)

// Limit defaults.
const (
	DefaultRateLimitPeriod  = time.Minute
	DefaultRateLimitCount   = 10000
	DefaultThroughputPeriod = time.Second
)

// buckets is a lazily populated set of token buckets keyed by peer id.
type buckets struct {
	mtx     sync.Mutex
	buckets map[string]*tokenbucket.Bucket
}

func newBuckets() *buckets {
	return &buckets{buckets: make(map[string]*tokenbucket.Bucket)}
}

func (b *buckets) get(id string, cfg tokenbucket.Config) *tokenbucket.Bucket {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	bucket, ok := b.buckets[id]
	if !ok {
		bucket = tokenbucket.New(cfg)
		b.buckets[id] = bucket
	}
	return bucket
}

func (b *buckets) remove(id string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.buckets, id)
}

// RateLimit returns the rule that limits the number of packets a peer may
// send. Peers without a configured limit get defaults.
func RateLimit(defaults peer.BucketConfig) Rule {
	if defaults.RefillPeriod == 0 {
		defaults.RefillPeriod = peer.Duration(DefaultRateLimitPeriod)
	}
	if defaults.RefillCount == 0 {
		defaults.RefillCount = DefaultRateLimitCount
	}
	b := newBuckets()
	return Rule{
		Name: RuleRateLimit,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			p := req.Peers.Incoming
			cfg := p.Info.RateLimit
			if cfg.RefillCount == 0 {
				cfg = defaults
			}
			if cfg.RefillPeriod == 0 {
				cfg.RefillPeriod = defaults.RefillPeriod
			}
			bucket := b.get(p.Info.ID, bucketConfig(cfg))
			if !bucket.Take(1) {
				return nil, ilp.RateLimitedError("too many requests, throttling.")
			}
			return next(ctx, req)
		}),
		Shutdown: b.remove,
	}
}

// MaxPacketAmount returns the rule that rejects packets larger than the
// configured maximum of the sending peer.
func MaxPacketAmount() Rule {
	return Rule{
		Name: RuleMaxPacketAmount,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			limit := req.Peers.Incoming.Info.MaxPacketAmount
			if limit != 0 && req.Prepare.Amount > limit {
				return nil, ilp.AmountTooLargeError(req.Prepare.Amount, limit)
			}
			return next(ctx, req)
		}),
	}
}

// Throughput returns the rule that limits the amount of money per period,
// separately for packets from and to a peer. Directions without a
// configured limit are not limited.
func Throughput() Rule {
	in, out := newBuckets(), newBuckets()
	limit := func(b *buckets, p *peer.Peer, cfg peer.BucketConfig, amount uint64) error {
		if cfg.RefillCount == 0 {
			return nil
		}
		if cfg.RefillPeriod == 0 {
			cfg.RefillPeriod = peer.Duration(DefaultThroughputPeriod)
		}
		if !b.get(p.Info.ID, bucketConfig(cfg)).Take(amount) {
			return ilp.InsufficientLiquidityError("exceeded money bandwidth, throttling.")
		}
		return nil
	}
	return Rule{
		Name: RuleThroughput,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			p := req.Peers.Incoming
			if err := limit(in, p, p.Info.Throughput.Incoming, req.Prepare.Amount); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}),
		Outgoing: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			p := req.Peers.Outgoing
			if err := limit(out, p, p.Info.Throughput.Outgoing, req.Prepare.Amount); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}),
		Shutdown: func(id string) {
			in.remove(id)
			out.remove(id)
		},
	}
}

func bucketConfig(cfg peer.BucketConfig) tokenbucket.Config {
	return tokenbucket.Config{
		RefillPeriod: time.Duration(cfg.RefillPeriod),
		RefillCount:  cfg.RefillCount,
		Capacity:     cfg.Capacity,
	}
}
