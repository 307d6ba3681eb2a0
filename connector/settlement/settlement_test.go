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

package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/settlement"
	"github.com/ilpnet/connector/connector/settlement/mock_settlement"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log/testlog"
	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/xtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPeer(t *testing.T, threshold *int64) *peer.Peer {
	p, err := peer.New(peer.Info{
		ID:         "alice",
		Relation:   peer.RelationChild,
		AssetScale: 9,
		Balance: &peer.BalanceConfig{
			Minimum:         -1000,
			Maximum:         1000,
			SettleThreshold: threshold,
			SettleTo:        0,
		},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestMaybeSettle(t *testing.T) {
	threshold := int64(-100)
	tests := map[string]struct {
		owed        uint64
		threshold   *int64
		prepare     func(e *mock_settlement.MockEngine)
		wantBalance int64
		assertErr   assert.ErrorAssertionFunc
		wantResult  string
	}{
		"above threshold": {
			owed:        50,
			threshold:   &threshold,
			prepare:     func(e *mock_settlement.MockEngine) {},
			wantBalance: -50,
			assertErr:   assert.NoError,
		},
		"no threshold": {
			owed:        500,
			prepare:     func(e *mock_settlement.MockEngine) {},
			wantBalance: -500,
			assertErr:   assert.NoError,
		},
		"settles to target": {
			owed:      150,
			threshold: &threshold,
			prepare: func(e *mock_settlement.MockEngine) {
				e.EXPECT().SendSettlement(gomock.Any(), "alice", uint64(150), uint8(9)).
					Return(settlement.Quantity{Amount: 150, Scale: 9}, nil)
			},
			wantBalance: 0,
			assertErr:   assert.NoError,
			wantResult:  settlement.ResultOk,
		},
		"partial settlement": {
			owed:      150,
			threshold: &threshold,
			prepare: func(e *mock_settlement.MockEngine) {
				e.EXPECT().SendSettlement(gomock.Any(), "alice", uint64(150), uint8(9)).
					Return(settlement.Quantity{Amount: 100, Scale: 9}, nil)
			},
			wantBalance: -50,
			assertErr:   assert.NoError,
			wantResult:  settlement.ResultOk,
		},
		"engine failure reverts": {
			owed:      150,
			threshold: &threshold,
			prepare: func(e *mock_settlement.MockEngine) {
				e.EXPECT().SendSettlement(gomock.Any(), "alice", uint64(150), uint8(9)).
					Return(settlement.Quantity{}, errors.New("engine down"))
			},
			wantBalance: -150,
			assertErr:   assert.Error,
			wantResult:  settlement.ResultErr,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := mock_settlement.NewMockEngine(ctrl)
			engine.EXPECT().AddAccount(gomock.Any(), "alice").Return(nil).AnyTimes()
			tc.prepare(engine)

			settlements := metrics.NewTestCounterVec()
			m := settlement.NewManager(settlement.Config{
				Engine: engine,
				Logger: testlog.NewLogger(t),
				Metrics: &settlement.Metrics{
					Settlements: func(peerID, result string) metrics.Counter {
						return settlements.With(peerID, result)
					},
				},
			})
			defer m.Close()

			p := newPeer(t, tc.threshold)
			m.AddAccount(p)
			_, err := p.Balance.Subtract(tc.owed)
			require.NoError(t, err)

			tc.assertErr(t, m.MaybeSettle(context.Background(), "alice"))
			assert.Equal(t, tc.wantBalance, p.Balance.Value())
			if tc.wantResult != "" {
				assert.Equal(t, float64(1), settlements.Value("alice", tc.wantResult))
			}
		})
	}
}

func TestAddAccountRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mock_settlement.NewMockEngine(ctrl)
	done := make(chan struct{})
	gomock.InOrder(
		engine.EXPECT().AddAccount(gomock.Any(), "alice").Return(errors.New("not yet")),
		engine.EXPECT().AddAccount(gomock.Any(), "alice").DoAndReturn(
			func(context.Context, string) error {
				close(done)
				return nil
			}),
	)
	m := settlement.NewManager(settlement.Config{
		Engine:        engine,
		Logger:        testlog.NewLogger(t),
		RetryInterval: 10 * time.Millisecond,
	})
	defer m.Close()
	m.AddAccount(newPeer(t, nil))
	xtest.AssertReadReturnsBefore(t, done, 5*time.Second)
}

func TestRemoveAccountBoundedRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mock_settlement.NewMockEngine(ctrl)
	engine.EXPECT().AddAccount(gomock.Any(), "alice").Return(nil).AnyTimes()
	calls := make(chan struct{}, 3)
	engine.EXPECT().RemoveAccount(gomock.Any(), "alice").DoAndReturn(
		func(context.Context, string) error {
			calls <- struct{}{}
			return errors.New("engine down")
		}).Times(3)

	m := settlement.NewManager(settlement.Config{
		Engine:            engine,
		Logger:            testlog.NewLogger(t),
		RetryInterval:     time.Millisecond,
		MaxRemoveAttempts: 3,
	})
	m.AddAccount(newPeer(t, nil))
	m.RemoveAccount("alice")
	for i := 0; i < 3; i++ {
		xtest.AssertReadReturnsBefore(t, calls, 5*time.Second)
	}
	m.Close()

	// Unknown accounts are ignored.
	m.RemoveAccount("bob")
}

func TestReceiveRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mock_settlement.NewMockEngine(ctrl)
	engine.EXPECT().AddAccount(gomock.Any(), "alice").Return(nil).AnyTimes()
	m := settlement.NewManager(settlement.Config{Engine: engine, Logger: testlog.NewLogger(t)})
	defer m.Close()

	prepare := ilp.NewPeerProtocolPrepare(ilp.AddressSettle, []byte("hello"), time.Minute)
	_, err := m.ReceiveRequest(context.Background(), "alice", prepare)
	assert.Equal(t, ilp.CodeUnreachable, ilp.CodeOf(err))

	m.AddAccount(newPeer(t, nil))
	fulfill := ilp.NewPeerProtocolFulfill([]byte("ack"))
	engine.EXPECT().ReceiveRequest(gomock.Any(), "alice", prepare).Return(fulfill, nil)
	reply, err := m.ReceiveRequest(context.Background(), "alice", prepare)
	require.NoError(t, err)
	assert.Equal(t, fulfill, reply)
}
