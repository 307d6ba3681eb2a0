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

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/pipeline"
	"github.com/ilpnet/connector/pkg/ilp"
)

func TestMaxPacketAmount(t *testing.T) {
	rule := pipeline.MaxPacketAmount()
	req := newRequest(t, 100)
	req.Peers.Incoming = newPeer(t, peer.Info{MaxPacketAmount: 100})
	_, err := rule.Incoming.Process(context.Background(), req, fulfill)
	require.NoError(t, err)

	req.Prepare.Amount = 101
	_, err = rule.Incoming.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeAmountTooLarge, err)

	// Unlimited without configuration.
	req = newRequest(t, 1<<62)
	_, err = rule.Incoming.Process(context.Background(), req, fulfill)
	require.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	rule := pipeline.RateLimit(peer.BucketConfig{})
	req := newRequest(t, 1)
	req.Peers.Incoming = newPeer(t, peer.Info{RateLimit: peer.BucketConfig{
		RefillPeriod: peer.Duration(time.Hour),
		RefillCount:  2,
	}})
	for i := 0; i < 2; i++ {
		_, err := rule.Incoming.Process(context.Background(), req, fulfill)
		require.NoError(t, err)
	}
	_, err := rule.Incoming.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeRateLimited, err)

	// Buckets are per peer.
	other := newRequest(t, 1)
	other.Peers.Incoming = newPeer(t, peer.Info{ID: "carol", RateLimit: req.Peers.Incoming.Info.RateLimit})
	_, err = rule.Incoming.Process(context.Background(), other, fulfill)
	require.NoError(t, err)

	// Shutdown drops the bucket of the peer.
	rule.Shutdown("alice")
	_, err = rule.Incoming.Process(context.Background(), req, fulfill)
	require.NoError(t, err)
}

func TestRateLimitDefaults(t *testing.T) {
	rule := pipeline.RateLimit(peer.BucketConfig{RefillCount: 1})
	req := newRequest(t, 1)
	_, err := rule.Incoming.Process(context.Background(), req, fulfill)
	require.NoError(t, err)
	_, err = rule.Incoming.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeRateLimited, err)
}

func TestThroughput(t *testing.T) {
	rule := pipeline.Throughput()
	req := newRequest(t, 60)
	req.Peers.Incoming = newPeer(t, peer.Info{Throughput: peer.ThroughputConfig{
		Incoming: peer.BucketConfig{RefillPeriod: peer.Duration(time.Second), RefillCount: 100},
	}})

	_, err := rule.Incoming.Process(context.Background(), req, fulfill)
	require.NoError(t, err)
	_, err = rule.Incoming.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeInsufficientLiquidity, err)
	assert.ErrorIs(t, err, &ilp.Error{
		Code:    ilp.CodeInsufficientLiquidity,
		Message: "exceeded money bandwidth, throttling.",
	})

	// The outgoing direction of bob is not limited.
	for i := 0; i < 3; i++ {
		_, err = rule.Outgoing.Process(context.Background(), req, fulfill)
		require.NoError(t, err)
	}
}

func TestThroughputOutgoing(t *testing.T) {
	rule := pipeline.Throughput()
	req := newRequest(t, 60)
	req.Peers.Outgoing = newPeer(t, peer.Info{ID: "bob", Throughput: peer.ThroughputConfig{
		Outgoing: peer.BucketConfig{RefillCount: 100},
	}})
	_, err := rule.Outgoing.Process(context.Background(), req, fulfill)
	require.NoError(t, err)
	_, err = rule.Outgoing.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeInsufficientLiquidity, err)
	// A packet above the capacity can never pass.
	req.Prepare.Amount = 101
	rule.Shutdown("bob")
	_, err = rule.Outgoing.Process(context.Background(), req, mustNotCall(t))
	assertCode(t, ilp.CodeInsufficientLiquidity, err)
}
