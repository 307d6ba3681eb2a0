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

func TestExpiryOutgoing(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rule := pipeline.Expiry(pipeline.ExpiryConfig{Now: func() time.Time { return now }})

	tests := map[string]struct {
		source     time.Time
		peer       peer.Info
		wantExpiry time.Time
		wantErr    bool
	}{
		"reduced by message window": {
			source:     now.Add(10 * time.Second),
			wantExpiry: now.Add(9 * time.Second),
		},
		"capped by hold window": {
			source:     now.Add(time.Minute),
			wantExpiry: now.Add(30 * time.Second),
		},
		"peer windows": {
			source: now.Add(time.Minute),
			peer: peer.Info{ID: "bob", Expiry: peer.ExpiryConfig{
				MinMessageWindow: peer.Duration(2 * time.Second),
				MaxHoldWindow:    peer.Duration(10 * time.Second),
			}},
			wantExpiry: now.Add(10 * time.Second),
		},
		"too soon": {
			source:  now.Add(1500 * time.Millisecond),
			wantErr: true,
		},
		"expired": {
			source:  now.Add(-time.Second),
			wantErr: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := newRequest(t, 1)
			if tc.peer.ID != "" {
				req.Peers.Outgoing = newPeer(t, tc.peer)
			}
			req.Prepare.ExpiresAt = tc.source
			var deadline time.Time
			next := func(ctx context.Context, req *pipeline.Request) (ilp.Reply, error) {
				deadline, _ = ctx.Deadline()
				return fulfill(ctx, req)
			}
			_, err := rule.Outgoing.Process(context.Background(), req, next)
			if tc.wantErr {
				assertCode(t, ilp.CodeInsufficientTimeout, err)
				assert.Equal(t, tc.source, req.Prepare.ExpiresAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExpiry, req.Prepare.ExpiresAt)
			assert.Equal(t, tc.wantExpiry, deadline)
		})
	}
}

func TestExpiryExpiredMessage(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rule := pipeline.Expiry(pipeline.ExpiryConfig{Now: func() time.Time { return now }})
	req := newRequest(t, 1)
	req.Prepare.ExpiresAt = now.Add(-time.Minute)

	for _, mw := range []pipeline.Middleware{rule.Incoming, rule.Outgoing} {
		_, err := mw.Process(context.Background(), req, mustNotCall(t))
		assertCode(t, ilp.CodeInsufficientTimeout, err)
		assert.Contains(t, err.Error(), ilp.FormatTime(req.Prepare.ExpiresAt))
		assert.Contains(t, err.Error(), ilp.FormatTime(now))
	}
}

func TestExpiryIncomingDeadline(t *testing.T) {
	rule := pipeline.Expiry(pipeline.ExpiryConfig{})
	req := newRequest(t, 1)
	expiry := req.Prepare.ExpiresAt
	_, err := rule.Incoming.Process(context.Background(), req,
		func(ctx context.Context, req *pipeline.Request) (ilp.Reply, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.Equal(t, expiry, deadline)
			return fulfill(ctx, req)
		})
	require.NoError(t, err)
	assert.Equal(t, expiry, req.Prepare.ExpiresAt, "incoming side does not reduce")
}
