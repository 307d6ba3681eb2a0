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

// Package connector wires the routing table, the per-peer pipelines, the route
// broadcasting and the settlement of an ILP connector together.
//
// A transport adapter hands packets received from a peer to HandleIncoming (or
// HandleIncomingData for serialized packets) and always gets a fulfill or a
// reject back. Packets are forwarded to the next hop through the peer.Client
// registered with AddPeer.
package connector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilpnet/connector/connector/alerts"
	"github.com/ilpnet/connector/connector/ccp"
	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/pipeline"
	"github.com/ilpnet/connector/connector/routemgr"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/connector/settlement"
	"github.com/ilpnet/connector/connector/storage"
	"github.com/ilpnet/connector/pkg/ilp"
	ccpwire "github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/ilp/ildcp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/prom"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/private/worker"
)

// UnknownAddress is reported as own address while the connector has none.
const UnknownAddress = "unknown"

// DefaultILDCPTimeout bounds the address discovery with a parent.
const DefaultILDCPTimeout = 10 * time.Second

// ErrPeerExists is returned when adding a peer twice.
var ErrPeerExists = errors.New("peer already exists")

// ErrUnknownPeer is returned for operations on a peer that was never added.
var ErrUnknownPeer = errors.New("unknown peer")

// Config configures a Connector.
type Config struct {
	// OwnAddresses are the static addresses of the connector.
	OwnAddresses []string
	Logger       log.Logger
	Metrics      *Metrics
	// Engine is the settlement engine. Settlement is disabled if it is nil.
	Engine settlement.Engine

	RouteBroadcastInterval  time.Duration
	RouteExpiry             time.Duration
	RouteControlRetry       time.Duration
	SettlementSweepInterval time.Duration
	SettlementRetryInterval time.Duration
	ILDCPTimeout            time.Duration

	// Expiry holds the default expiry windows of peers.
	Expiry pipeline.ExpiryConfig
	// RateLimit is the rate limit of peers without one.
	RateLimit peer.BucketConfig
}

type peerState struct {
	peer      *peer.Peer
	pipelines *pipeline.Pipelines
	sender    *ccp.Sender
	receiver  *ccp.Receiver
}

// Connector is an ILP connector. It is safe for concurrent use.
type Connector struct {
	worker.Base

	cfg        Config
	logger     log.Logger
	table      *routing.Table
	routes     *routemgr.Manager
	alerts     *alerts.Store
	settlement *settlement.Manager
	rules      []pipeline.Rule

	mtx          sync.RWMutex
	peers        map[string]*peerState
	ownAddresses map[string]int
	primary      string
}

// New returns a connector without peers. The static own addresses of cfg are
// installed with the default own address weight.
func New(cfg Config) (*Connector, error) {
	if cfg.ILDCPTimeout == 0 {
		cfg.ILDCPTimeout = DefaultILDCPTimeout
	}
	logger := log.SafeNewLogger(cfg.Logger, "component", "connector")
	table := routing.NewTable(routing.WithRoutesGauge(cfg.Metrics.routes()))
	c := &Connector{
		cfg:          cfg,
		logger:       logger,
		table:        table,
		routes:       routemgr.New(table, logger),
		alerts:       alerts.New(),
		peers:        make(map[string]*peerState),
		ownAddresses: make(map[string]int),
	}
	if cfg.Engine != nil {
		c.settlement = settlement.NewManager(settlement.Config{
			Engine:        cfg.Engine,
			Logger:        logger,
			Metrics:       &settlement.Metrics{Settlements: cfg.Metrics.settlements},
			RetryInterval: cfg.SettlementRetryInterval,
			SweepInterval: cfg.SettlementSweepInterval,
		})
	}
	c.alerts.Subscribe(func(a alerts.Alert) {
		metrics.CounterInc(cfg.Metrics.alerts(a.PeerID))
		logger.Info("Alert raised", "peer", a.PeerID, "triggered_by", a.TriggeredBy,
			"message", a.Message, "count", a.Count)
	})
	c.rules = pipeline.DefaultRules(pipeline.RulesConfig{
		OwnAddresses: c.OwnAddresses,
		RateLimit:    cfg.RateLimit,
		Expiry:       cfg.Expiry,
		Balance: pipeline.BalanceConfig{
			Settle: c.triggerSettlement,
			Gauge:  cfg.Metrics.balance,
		},
		Alerts:    c.alerts,
		Protocols: c,
	})
	for _, addr := range cfg.OwnAddresses {
		if err := c.AddOwnAddress(addr, 0); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Table returns the routing table.
func (c *Connector) Table() *routing.Table {
	return c.table
}

// Alerts returns the alert store.
func (c *Connector) Alerts() *alerts.Store {
	return c.alerts
}

// AddPeer links the connector to the peer described by info. Packets for the
// peer are sent through client.
//
// A parent with address discovery enabled is asked for the address of the
// connector, which is installed as own address with the weight of the
// parent. AddPeer fails if the parent does not hand out a usable address. A
// child gets a route for the address derived from the own address.
func (c *Connector) AddPeer(ctx context.Context, info peer.Info, client peer.Client) error {
	p, err := peer.New(info, client)
	if err != nil {
		return err
	}
	id := info.ID
	logger := c.logger.New("peer", id)

	c.mtx.Lock()
	if _, ok := c.peers[id]; ok {
		c.mtx.Unlock()
		return serrors.JoinNoStack(ErrPeerExists, nil, "peer", id)
	}
	if err := c.routes.AddPeer(id, info.Relation, info.Weight()); err != nil {
		c.mtx.Unlock()
		return err
	}
	ps := &peerState{
		peer: p,
		pipelines: pipeline.Build(pipeline.Select(c.rules, &info),
			c.forward, c.send),
	}
	if info.Protocols.CCPSender {
		ps.sender = ccp.NewSender(ccp.SenderConfig{
			PeerID:                 id,
			PeerRelation:           info.Relation,
			Table:                  c.table,
			Relations:              c.routes,
			Send:                   p.SendPacket,
			Logger:                 c.logger,
			RouteBroadcastInterval: c.cfg.RouteBroadcastInterval,
			RouteExpiry:            c.cfg.RouteExpiry,
		})
	}
	if info.Protocols.CCPReceiver {
		ps.receiver = ccp.NewReceiver(ccp.ReceiverConfig{
			PeerID:            id,
			Routes:            c.routes,
			OwnAddresses:      c.OwnAddresses,
			Send:              p.SendPacket,
			Logger:            c.logger,
			RouteControlRetry: c.cfg.RouteControlRetry,
		})
	}
	c.peers[id] = ps
	if info.Relation == peer.RelationChild && c.primary != "" {
		c.addChildRouteLocked(id, c.primary)
	}
	c.mtx.Unlock()
	logger.Info("Added peer", "relation", info.Relation, "endpoint", info.Endpoint)

	if info.Relation == peer.RelationParent && info.Protocols.ILDCP {
		if err := c.discoverAddress(ctx, p); err != nil {
			if rerr := c.RemovePeer(id); rerr != nil {
				logger.Error("Removing peer after failed address discovery", "err", rerr)
			}
			return err
		}
	}
	if c.settlement != nil && info.Balance != nil && info.Balance.SettleThreshold != nil {
		c.settlement.AddAccount(p)
	}
	if ps.receiver != nil {
		ps.receiver.Start()
		go func() {
			defer log.HandlePanic()
			if err := ps.receiver.SendRouteControl(context.Background(), false); err != nil {
				logger.Debug("Initial route control failed", "err", err)
			}
		}()
	}
	return nil
}

func (c *Connector) discoverAddress(ctx context.Context, p *peer.Peer) error {
	ctx, cancelF := context.WithTimeout(ctx, c.cfg.ILDCPTimeout)
	defer cancelF()
	resp, err := ildcp.Fetch(ctx, p.SendPacket)
	if err != nil {
		return serrors.Wrap("discovering own address", err, "parent", p.Info.ID)
	}
	if resp.AssetCode != p.Info.AssetCode || resp.AssetScale != p.Info.AssetScale {
		c.logger.Info("Parent reported a different asset", "parent", p.Info.ID,
			"asset_code", resp.AssetCode, "asset_scale", resp.AssetScale)
	}
	c.logger.Info("Learned own address from parent", "parent", p.Info.ID,
		"address", resp.ClientAddress)
	return c.AddOwnAddress(resp.ClientAddress, p.Info.Weight())
}

// RemovePeer unlinks the peer. The state its pipeline stages keep is
// released, route broadcasting to and from it stops and every route learned
// from it is withdrawn.
func (c *Connector) RemovePeer(id string) error {
	c.mtx.Lock()
	ps, ok := c.peers[id]
	delete(c.peers, id)
	c.mtx.Unlock()
	if !ok {
		return serrors.JoinNoStack(ErrUnknownPeer, nil, "peer", id)
	}

	ps.pipelines.Shutdown(id)
	if ps.sender != nil {
		ps.sender.Stop()
	}
	if ps.receiver != nil {
		ps.receiver.Stop()
	}
	if c.settlement != nil {
		c.settlement.RemoveAccount(id)
	}
	if err := c.routes.RemovePeer(id); err != nil {
		return err
	}
	c.cfg.Metrics.forget(id)
	c.logger.Info("Removed peer", "peer", id)
	return nil
}

// Peer returns the linked peer with id.
func (c *Connector) Peer(id string) (*peer.Peer, bool) {
	ps := c.peerState(id)
	if ps == nil {
		return nil, false
	}
	return ps.peer, true
}

// PeerIDs returns the ids of the linked peers in lexical order.
func (c *Connector) PeerIDs() []string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	ids := make([]string, 0, len(c.peers))
	for id := range c.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Connector) peerState(id string) *peerState {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.peers[id]
}

// AddOwnAddress adds an address of the connector. A zero weight selects
// peer.OwnAddressWeight. Packets for the address terminate at the connector
// and the address is advertised to peers.
func (c *Connector) AddOwnAddress(address string, weight int) error {
	if !ilp.ValidAddress(address) {
		return serrors.New("invalid own address", "address", address)
	}
	if weight == 0 {
		weight = peer.OwnAddressWeight
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.ownAddresses[address] = weight
	c.routes.AddRoute(routemgr.IncomingRoute{
		Peer:   peer.SelfID,
		Prefix: address,
		Weight: weight,
	})
	c.updatePrimaryLocked()
	return nil
}

// RemoveOwnAddress removes an address of the connector.
func (c *Connector) RemoveOwnAddress(address string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, ok := c.ownAddresses[address]; !ok {
		return
	}
	delete(c.ownAddresses, address)
	c.routes.RemoveRoute(peer.SelfID, address)
	c.updatePrimaryLocked()
}

// OwnAddress returns the own address with the highest weight, or
// UnknownAddress if the connector has none.
func (c *Connector) OwnAddress() string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	if c.primary == "" {
		return UnknownAddress
	}
	return c.primary
}

// OwnAddresses returns all own addresses, highest weight first. Addresses
// with the same weight are ordered lexically.
func (c *Connector) OwnAddresses() []string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.ownAddressesLocked()
}

func (c *Connector) ownAddressesLocked() []string {
	addrs := make([]string, 0, len(c.ownAddresses))
	for addr := range c.ownAddresses {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		wi, wj := c.ownAddresses[addrs[i]], c.ownAddresses[addrs[j]]
		if wi != wj {
			return wi > wj
		}
		return addrs[i] < addrs[j]
	})
	return addrs
}

// updatePrimaryLocked re-derives the child routes when the primary own
// address changed.
func (c *Connector) updatePrimaryLocked() {
	var primary string
	if addrs := c.ownAddressesLocked(); len(addrs) > 0 {
		primary = addrs[0]
	}
	old := c.primary
	if primary == old {
		return
	}
	c.primary = primary
	c.table.SetOwnAddress(primary)
	c.logger.Info("Primary own address changed", "old", old, "new", primary)
	for id, ps := range c.peers {
		if ps.peer.Info.Relation != peer.RelationChild {
			continue
		}
		if old != "" {
			c.routes.RemoveRoute(id, childAddress(old, id))
		}
		if primary != "" {
			c.addChildRouteLocked(id, primary)
		}
	}
}

func (c *Connector) addChildRouteLocked(id, primary string) {
	c.routes.AddRoute(routemgr.IncomingRoute{
		Peer:   id,
		Prefix: childAddress(primary, id),
	})
}

func childAddress(own, childID string) string {
	return own + "." + childID
}

// PeerForAddress returns the next hop for destination.
func (c *Connector) PeerForAddress(destination string) (string, error) {
	return c.table.NextHop(destination)
}

// HandleIncoming runs prepare, received from peerID, through the connector.
// The returned reply is always a fulfill or a reject.
func (c *Connector) HandleIncoming(ctx context.Context, peerID string,
	prepare *ilp.Prepare) ilp.Reply {

	ps := c.peerState(peerID)
	if ps == nil {
		metrics.CounterInc(c.cfg.Metrics.packets(DirectionIncoming, peerID, prom.Rejected))
		return ilp.UnreachableError("unknown peer. peer=%s", peerID).Reject(c.triggeredBy())
	}
	ctx = log.CtxWith(ctx, c.logger.New("peer", peerID))
	req := &pipeline.Request{
		Prepare: prepare,
		Peers:   pipeline.Peers{Incoming: ps.peer},
	}
	reply, err := ps.pipelines.Incoming(ctx, req)
	if err != nil || reply == nil {
		reply = c.reject(ctx, err)
	}
	metrics.CounterInc(c.cfg.Metrics.packets(DirectionIncoming, peerID, result(reply)))
	return reply
}

// HandleIncomingData is HandleIncoming for a serialized prepare. It returns
// the serialized reply.
func (c *Connector) HandleIncomingData(ctx context.Context, peerID string,
	data []byte) ([]byte, error) {

	var reply ilp.Reply
	prepare, err := ilp.ParsePrepare(data)
	if err != nil {
		reply = ilp.InvalidPacketError("invalid prepare: %s", err).Reject(c.triggeredBy())
	} else {
		reply = c.HandleIncoming(ctx, peerID, prepare)
	}
	return ilp.Marshal(reply)
}

// SendIlpPacket sends a prepare originating at the connector. It resolves
// the next hop and runs the outgoing pipeline of that peer.
func (c *Connector) SendIlpPacket(ctx context.Context, prepare *ilp.Prepare) (ilp.Reply, error) {
	ps, err := c.resolve(prepare.Destination)
	if err != nil {
		return nil, err
	}
	return ps.pipelines.Outgoing(ctx, &pipeline.Request{
		Prepare: prepare,
		Peers:   pipeline.Peers{Outgoing: ps.peer},
	})
}

func (c *Connector) resolve(destination string) (*peerState, error) {
	nextHop, err := c.table.NextHop(destination)
	if err != nil {
		return nil, ilp.UnreachableError("no route found. source=%s destination=%s",
			c.OwnAddress(), destination)
	}
	if nextHop == peer.SelfID {
		return nil, ilp.UnreachableError("no local handler for destination. destination=%s",
			destination)
	}
	ps := c.peerState(nextHop)
	if ps == nil {
		return nil, ilp.PeerUnreachableError("next hop is not linked. next_hop=%s", nextHop)
	}
	return ps, nil
}

// forward is the terminal handler of every incoming pipeline.
func (c *Connector) forward(ctx context.Context, req *pipeline.Request) (ilp.Reply, error) {
	ps, err := c.resolve(req.Prepare.Destination)
	if err != nil {
		return nil, err
	}
	req.Peers.Outgoing = ps.peer
	return ps.pipelines.Outgoing(ctx, req)
}

// send is the terminal handler of every outgoing pipeline.
func (c *Connector) send(ctx context.Context, req *pipeline.Request) (ilp.Reply, error) {
	p := req.Peers.Outgoing
	reply, err := p.SendPacket(ctx, req.Prepare)
	r := prom.ErrNotClassified
	if err == nil {
		r = result(reply)
	}
	metrics.CounterInc(c.cfg.Metrics.packets(DirectionOutgoing, p.Info.ID, r))
	return reply, err
}

func result(reply ilp.Reply) string {
	if _, ok := reply.(*ilp.Fulfill); ok {
		return prom.Fulfilled
	}
	return prom.Rejected
}

func (c *Connector) triggeredBy() string {
	if addr := c.OwnAddress(); addr != UnknownAddress {
		return addr
	}
	return pipeline.DefaultTriggeredBy
}

func (c *Connector) reject(ctx context.Context, err error) *ilp.Reject {
	var ilpErr *ilp.Error
	if errors.As(err, &ilpErr) {
		return ilpErr.Reject(c.triggeredBy())
	}
	log.FromCtx(ctx).Error("Pipeline returned no reply", "err", err)
	return ilp.InternalError("unexpected internal error.").Reject(c.triggeredBy())
}

func (c *Connector) triggerSettlement(peerID string) {
	if c.settlement != nil {
		c.settlement.Trigger(peerID)
	}
}

// HandleRouteControl applies a route control request of peerID to the route
// broadcasting towards it.
func (c *Connector) HandleRouteControl(_ context.Context, peerID string,
	req *ccpwire.RouteControlRequest) error {

	ps := c.peerState(peerID)
	if ps == nil || ps.sender == nil {
		return ilp.BadRequestError("route broadcasting is not enabled. peer=%s", peerID)
	}
	ps.sender.HandleRouteControl(req)
	return nil
}

// HandleRouteUpdate applies a route update broadcast by peerID.
func (c *Connector) HandleRouteUpdate(_ context.Context, peerID string,
	req *ccpwire.RouteUpdateRequest) error {

	ps := c.peerState(peerID)
	if ps == nil || ps.receiver == nil {
		return ilp.BadRequestError("receiving routes is not enabled. peer=%s", peerID)
	}
	ps.receiver.HandleRouteUpdate(req)
	return nil
}

// ILDCPResponse returns the address and asset handed out to the child
// peerID.
func (c *Connector) ILDCPResponse(peerID string) (*ildcp.Response, error) {
	ps := c.peerState(peerID)
	if ps == nil {
		return nil, ilp.UnreachableError("unknown peer. peer=%s", peerID)
	}
	if ps.peer.Info.Relation != peer.RelationChild {
		return nil, ilp.BadRequestError(
			"cannot generate address for a peer that is not a child. peer=%s", peerID)
	}
	own := c.OwnAddress()
	if own == UnknownAddress {
		return nil, ilp.InternalError("connector has no address.")
	}
	return &ildcp.Response{
		ClientAddress: childAddress(own, peerID),
		AssetCode:     ps.peer.Info.AssetCode,
		AssetScale:    ps.peer.Info.AssetScale,
	}, nil
}

// HandleSettlement hands a settlement message of peerID to the settlement
// engine.
func (c *Connector) HandleSettlement(ctx context.Context, peerID string,
	prepare *ilp.Prepare) (ilp.Reply, error) {

	if c.settlement == nil {
		return nil, ilp.UnreachableError("settlement is not enabled.")
	}
	return c.settlement.ReceiveRequest(ctx, peerID, prepare)
}

// RouteStore is the source of the static routes of the connector.
type RouteStore interface {
	Routes(ctx context.Context) ([]storage.Route, error)
}

// Load installs the static routes of store. Routes of peers that are not
// linked are skipped.
func (c *Connector) Load(ctx context.Context, store RouteStore) error {
	routes, err := store.Routes(ctx)
	if err != nil {
		return serrors.Wrap("loading routes", err)
	}
	for _, r := range routes {
		if c.peerState(r.PeerID) == nil {
			c.logger.Info("Skipping route of unknown peer", "peer", r.PeerID, "prefix", r.Prefix)
			continue
		}
		c.routes.AddRoute(routemgr.IncomingRoute{
			Peer:   r.PeerID,
			Prefix: r.Prefix,
			Path:   r.Path,
			Weight: r.Weight,
		})
	}
	c.logger.Debug("Loaded static routes", "count", len(routes))
	return nil
}

// Run starts the settlement sweep and blocks until ctx is done or the
// connector is closed.
func (c *Connector) Run(ctx context.Context) error {
	return c.RunWrapper(ctx, c.setup, c.run)
}

func (c *Connector) setup(context.Context) error {
	if c.settlement != nil {
		c.settlement.Start()
	}
	return nil
}

func (c *Connector) run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-c.GetDoneChan():
	}
	return nil
}

// Close removes all peers and stops the settlement.
func (c *Connector) Close(ctx context.Context) error {
	return c.CloseWrapper(ctx, func(context.Context) error {
		var g errgroup.Group
		for _, id := range c.PeerIDs() {
			id := id
			g.Go(func() error {
				defer log.HandlePanic()
				return c.RemovePeer(id)
			})
		}
		err := g.Wait()
		if c.settlement != nil {
			c.settlement.Close()
		}
		return err
	})
}
