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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/connector/alerts"
	"github.com/ilpnet/connector/connector/pipeline"
	"github.com/ilpnet/connector/pkg/ilp"
)

func TestLiquidityCheck(t *testing.T) {
	store := alerts.New()
	rule := pipeline.LiquidityCheck(store)

	_, err := rule.Outgoing.Process(context.Background(), newRequest(t, 1),
		reject(ilp.CodeInsufficientLiquidity, "exceeded money bandwidth, throttling."))
	require.NoError(t, err)
	_, err = rule.Outgoing.Process(context.Background(), newRequest(t, 1),
		reject(ilp.CodeUnreachable, pipeline.MaximumBalanceMessage))
	require.NoError(t, err)
	assert.Empty(t, store.List())

	reply, err := rule.Outgoing.Process(context.Background(), newRequest(t, 1),
		reject(ilp.CodeInsufficientLiquidity, pipeline.MaximumBalanceMessage))
	require.NoError(t, err)
	assert.IsType(t, &ilp.Reject{}, reply, "reply is relayed unchanged")
	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].PeerID)
	assert.Equal(t, "test.bob", list[0].TriggeredBy)
	assert.Equal(t, pipeline.MaximumBalanceMessage, list[0].Message)
}

func TestValidateFulfillment(t *testing.T) {
	rule := pipeline.ValidateFulfillment()

	reply, err := rule.Outgoing.Process(context.Background(), newRequest(t, 1), fulfill)
	require.NoError(t, err)
	assert.IsType(t, &ilp.Fulfill{}, reply)

	req := newRequest(t, 1)
	req.Prepare.ExecutionCondition = ilp.Condition([32]byte{1})
	_, err = rule.Outgoing.Process(context.Background(), req, fulfill)
	assertCode(t, ilp.CodeWrongCondition, err)

	reply, err = rule.Outgoing.Process(context.Background(), req,
		reject(ilp.CodeUnreachable, "no route"))
	require.NoError(t, err)
	assert.IsType(t, &ilp.Reject{}, reply)
}
