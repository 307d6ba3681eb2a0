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

// Package settlement connects peer balances to a settlement engine.
//
// The Manager registers peer accounts with the engine, settles a peer once its
// balance drops below the configured threshold, and hands incoming settlement
// messages to the engine.
package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/private/periodic"
)

const (
	DefaultRetryInterval     = 5 * time.Second
	DefaultMaxRemoveAttempts = 10
	DefaultSweepInterval     = time.Minute
)

// Settlement results used as metric label values.
const (
	ResultOk  = "ok"
	ResultErr = "err"
)

// Quantity is an amount at a scale.
type Quantity struct {
	Amount uint64
	Scale  uint8
}

// Engine is the settlement engine of the connector.
type Engine interface {
	AddAccount(ctx context.Context, accountID string) error
	RemoveAccount(ctx context.Context, accountID string) error
	// SendSettlement settles amount at scale with the account and returns the
	// quantity actually settled.
	SendSettlement(ctx context.Context, accountID string, amount uint64,
		scale uint8) (Quantity, error)
	// ReceiveRequest handles a settlement message sent by the account.
	ReceiveRequest(ctx context.Context, accountID string, prepare *ilp.Prepare) (ilp.Reply, error)
}

// Metrics are the metrics of the manager. All fields are optional.
type Metrics struct {
	Settlements func(peerID, result string) metrics.Counter
}

func (m *Metrics) settlements(peerID, result string) metrics.Counter {
	if m == nil || m.Settlements == nil {
		return nil
	}
	return m.Settlements(peerID, result)
}

// Config configures a Manager.
type Config struct {
	Engine            Engine
	Logger            log.Logger
	Metrics           *Metrics
	RetryInterval     time.Duration
	MaxRemoveAttempts int
	SweepInterval     time.Duration
}

type account struct {
	peer     *peer.Peer
	cancelF  context.CancelFunc
	settling bool
}

// Manager drives the settlements of all peer accounts. It is safe for
// concurrent use.
type Manager struct {
	cfg     Config
	logger  log.Logger
	ctx     context.Context
	cancelF context.CancelFunc
	wg      sync.WaitGroup

	mtx      sync.Mutex
	accounts map[string]*account
	runner   *periodic.Runner
}

// NewManager returns a manager. Start enables the periodic sweep.
func NewManager(cfg Config) *Manager {
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRemoveAttempts == 0 {
		cfg.MaxRemoveAttempts = DefaultMaxRemoveAttempts
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	ctx, cancelF := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		logger:   log.SafeNewLogger(cfg.Logger, "component", "settlement"),
		ctx:      ctx,
		cancelF:  cancelF,
		accounts: make(map[string]*account),
	}
}

// Start starts the periodic settlement sweep over all accounts.
func (m *Manager) Start() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.runner != nil {
		return
	}
	m.runner = periodic.Start(periodic.Func{
		TaskName: "settlement_sweep",
		Task:     m.sweep,
	}, m.cfg.SweepInterval, m.cfg.SweepInterval)
}

func (m *Manager) sweep(ctx context.Context) {
	for _, id := range m.accountIDs() {
		if err := m.MaybeSettle(ctx, id); err != nil {
			m.logger.Error("Settlement failed", "peer", id, "err", err)
		}
	}
}

func (m *Manager) accountIDs() []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddAccount registers the account of p with the engine. Registration is
// retried in the background until it succeeds or the account is removed.
func (m *Manager) AddAccount(p *peer.Peer) {
	id := p.Info.ID
	ctx, cancelF := context.WithCancel(m.ctx)
	m.mtx.Lock()
	if old, ok := m.accounts[id]; ok {
		old.cancelF()
	}
	m.accounts[id] = &account{peer: p, cancelF: cancelF}
	m.mtx.Unlock()

	m.goRetry(ctx, id, "add account", 0, m.cfg.Engine.AddAccount)
}

// RemoveAccount unregisters the account with the engine. Unregistration is
// retried a bounded number of times.
func (m *Manager) RemoveAccount(id string) {
	m.mtx.Lock()
	acc, ok := m.accounts[id]
	if ok {
		acc.cancelF()
		delete(m.accounts, id)
	}
	m.mtx.Unlock()
	if !ok {
		return
	}
	m.goRetry(m.ctx, id, "remove account", m.cfg.MaxRemoveAttempts, m.cfg.Engine.RemoveAccount)
}

// goRetry calls op until it succeeds, ctx is done or maxAttempts are used up.
// Zero maxAttempts retries forever.
func (m *Manager) goRetry(ctx context.Context, id, name string, maxAttempts int,
	op func(context.Context, string) error) {

	m.wg.Add(1)
	go func() {
		defer log.HandlePanic()
		defer m.wg.Done()
		for attempt := 1; ; attempt++ {
			err := op(ctx, id)
			if err == nil {
				m.logger.Debug("Settlement engine call succeeded", "op", name, "peer", id)
				return
			}
			m.logger.Error("Settlement engine call failed", "op", name, "peer", id,
				"attempt", attempt, "err", err)
			if maxAttempts > 0 && attempt >= maxAttempts {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.RetryInterval):
			}
		}
	}()
}

// Trigger runs MaybeSettle for the account in the background.
func (m *Manager) Trigger(id string) {
	if m.ctx.Err() != nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer log.HandlePanic()
		defer m.wg.Done()
		if err := m.MaybeSettle(m.ctx, id); err != nil {
			m.logger.Error("Settlement failed", "peer", id, "err", err)
		}
	}()
}

// MaybeSettle settles the account if its balance is below the settle
// threshold. The settled amount brings the balance to the settle target; it is
// credited before the engine call and reverted if the call fails.
func (m *Manager) MaybeSettle(ctx context.Context, id string) error {
	m.mtx.Lock()
	acc, ok := m.accounts[id]
	if !ok || acc.settling {
		m.mtx.Unlock()
		return nil
	}
	p := acc.peer
	cfg := p.Info.Balance
	if p.Balance == nil || cfg == nil || cfg.SettleThreshold == nil {
		m.mtx.Unlock()
		return nil
	}
	value := p.Balance.Value()
	if value >= *cfg.SettleThreshold {
		m.mtx.Unlock()
		return nil
	}
	acc.settling = true
	m.mtx.Unlock()
	defer func() {
		m.mtx.Lock()
		defer m.mtx.Unlock()
		acc.settling = false
	}()

	amount := uint64(cfg.SettleTo) - uint64(value)
	if _, err := p.Balance.Add(amount); err != nil {
		return serrors.Wrap("crediting settlement", err, "peer", id, "amount", amount)
	}
	m.logger.Debug("Settling", "peer", id, "balance", value, "amount", amount)
	settled, err := m.cfg.Engine.SendSettlement(ctx, id, amount, p.Info.AssetScale)
	if err != nil {
		if _, rerr := p.Balance.Subtract(amount); rerr != nil {
			m.logger.Error("Reverting failed settlement", "peer", id, "err", rerr)
		}
		metrics.CounterInc(m.cfg.Metrics.settlements(id, ResultErr))
		return serrors.Wrap("sending settlement", err, "peer", id, "amount", amount)
	}
	if settled.Scale == p.Info.AssetScale && settled.Amount < amount {
		// The engine settled less than requested, owe the remainder again.
		if _, err := p.Balance.Subtract(amount - settled.Amount); err != nil {
			m.logger.Error("Reverting unsettled remainder", "peer", id, "err", err)
		}
	}
	metrics.CounterInc(m.cfg.Metrics.settlements(id, ResultOk))
	m.logger.Info("Settled", "peer", id, "amount", settled.Amount, "scale", settled.Scale)
	return nil
}

// ReceiveRequest hands a settlement message of the peer to the engine.
func (m *Manager) ReceiveRequest(ctx context.Context, id string,
	prepare *ilp.Prepare) (ilp.Reply, error) {

	m.mtx.Lock()
	_, ok := m.accounts[id]
	m.mtx.Unlock()
	if !ok {
		return nil, ilp.UnreachableError("no settlement account for peer %s", id)
	}
	return m.cfg.Engine.ReceiveRequest(ctx, id, prepare)
}

// Close stops the sweep and waits for pending engine calls, which are
// cancelled.
func (m *Manager) Close() {
	m.mtx.Lock()
	runner := m.runner
	m.runner = nil
	m.mtx.Unlock()
	if runner != nil {
		runner.Kill()
	}
	m.cancelF()
	m.wg.Wait()
}
