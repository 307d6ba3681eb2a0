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

package ccp

import (
	"context"
	"sync"
	"time"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// RelationLookup returns the relation of a peer.
type RelationLookup interface {
	Relation(id string) (peer.Relation, bool)
}

// SenderConfig configures a Sender.
type SenderConfig struct {
	// PeerID is the peer the routes are broadcast to.
	PeerID string
	// PeerRelation is the relation of that peer.
	PeerRelation peer.Relation
	Table        *routing.Table
	Relations    RelationLookup
	Send         SendFunc
	Logger       log.Logger

	RouteBroadcastInterval time.Duration
	RouteExpiry            time.Duration
	MaxEpochsPerUpdate     uint32
}

// Sender broadcasts the forwarding table to one peer.
type Sender struct {
	cfg    SenderConfig
	logger log.Logger

	mtx            sync.Mutex
	mode           ccp.Mode
	lastKnownEpoch uint32
	lastUpdate     time.Time
	timer          *time.Timer
	stopped        bool
}

// NewSender returns an idle sender.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.RouteBroadcastInterval == 0 {
		cfg.RouteBroadcastInterval = DefaultRouteBroadcastInterval
	}
	if cfg.RouteExpiry == 0 {
		cfg.RouteExpiry = DefaultRouteExpiry
	}
	if cfg.MaxEpochsPerUpdate == 0 {
		cfg.MaxEpochsPerUpdate = DefaultMaxEpochsPerUpdate
	}
	return &Sender{
		cfg:    cfg,
		logger: log.SafeNewLogger(cfg.Logger, "ccp_sender", cfg.PeerID),
		mode:   ccp.ModeIdle,
	}
}

// Mode returns the mode requested by the peer.
func (s *Sender) Mode() ccp.Mode {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.mode
}

// LastKnownEpoch returns the epoch the peer is assumed to know.
func (s *Sender) LastKnownEpoch() uint32 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.lastKnownEpoch
}

// HandleRouteControl applies a route control request of the peer.
func (s *Sender) HandleRouteControl(req *ccp.RouteControlRequest) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.stopped {
		return
	}
	if s.mode != req.Mode {
		s.logger.Debug("Peer changed route broadcast mode", "mode", req.Mode)
	}
	s.mode = req.Mode

	if req.LastKnownRoutingTableID != s.cfg.Table.ID() {
		s.logger.Debug("Peer has stale routing table id, resyncing",
			"peer_table_id", req.LastKnownRoutingTableID)
		s.lastKnownEpoch = 0
	} else {
		s.lastKnownEpoch = min(req.LastKnownEpoch, s.cfg.Table.CurrentEpoch())
	}

	if s.mode == ccp.ModeSync {
		s.scheduleLocked()
	} else {
		s.cancelLocked()
	}
}

// scheduleLocked schedules the next broadcast: immediately if the peer is
// behind, else once the broadcast interval since the last update elapsed.
func (s *Sender) scheduleLocked() {
	s.cancelLocked()
	var delay time.Duration
	if s.lastKnownEpoch >= s.cfg.Table.CurrentEpoch() {
		delay = s.cfg.RouteBroadcastInterval - time.Since(s.lastUpdate)
	}
	delay = max(delay, MinimumUpdateInterval)
	s.timer = time.AfterFunc(delay, s.broadcast)
}

func (s *Sender) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sender) broadcast() {
	defer log.HandlePanic()
	if err := s.SendSingleRouteUpdate(context.Background()); err != nil {
		s.logger.Debug("Failed to broadcast route update", "err", err)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.stopped && s.mode == ccp.ModeSync {
		s.scheduleLocked()
	}
}

// SendSingleRouteUpdate sends the next batch of updates to the peer. The
// acknowledged epoch advances before the send and is rolled back if the send
// fails or does not complete within the broadcast interval.
func (s *Sender) SendSingleRouteUpdate(ctx context.Context) error {
	s.mtx.Lock()
	table := s.cfg.Table
	s.lastUpdate = time.Now()
	current := table.CurrentEpoch()
	from := s.lastKnownEpoch
	to := min(from+s.cfg.MaxEpochsPerUpdate, current)
	updates := table.Updates(from, to)
	s.lastKnownEpoch = to
	s.mtx.Unlock()

	own := table.OwnAddress()
	req := &ccp.RouteUpdateRequest{
		RoutingTableID:    table.ID(),
		CurrentEpochIndex: current,
		FromEpochIndex:    from,
		ToEpochIndex:      to,
		HoldDownTime:      uint32(s.cfg.RouteExpiry.Milliseconds()),
		Speaker:           own,
		NewRoutes:         []ccp.Route{},
		WithdrawnRoutes:   []string{},
	}
	for _, u := range updates {
		if u.Route == nil || s.withhold(*u.Route) {
			req.WithdrawnRoutes = append(req.WithdrawnRoutes, u.Prefix)
			continue
		}
		path := make([]string, 0, len(u.Route.Path)+1)
		path = append(path, own)
		path = append(path, u.Route.Path...)
		req.NewRoutes = append(req.NewRoutes, ccp.Route{
			Prefix: u.Prefix,
			Path:   path,
			Auth:   u.Route.Auth,
		})
	}

	s.logger.Debug("Sending route update", "from", from, "to", to,
		"new", len(req.NewRoutes), "withdrawn", len(req.WithdrawnRoutes))
	ctx, cancelF := context.WithTimeout(ctx, s.cfg.RouteBroadcastInterval)
	defer cancelF()
	prepare := ccp.NewRouteUpdatePrepare(req, s.cfg.RouteBroadcastInterval)
	if err := expectFulfill(ilp.SendBounded(ctx, s.cfg.Send, prepare)); err != nil {
		s.mtx.Lock()
		if s.lastKnownEpoch == to {
			s.lastKnownEpoch = from
		}
		s.mtx.Unlock()
		return serrors.Wrap("sending route update", err, "peer", s.cfg.PeerID,
			"from", from, "to", to)
	}
	return nil
}

// withhold reports whether route must not be advertised to the peer: routes
// through the peer itself, and routes through peers or parents when the
// peer is a parent.
func (s *Sender) withhold(route routing.Route) bool {
	if route.NextHop == s.cfg.PeerID {
		return true
	}
	if s.cfg.PeerRelation != peer.RelationParent || s.cfg.Relations == nil {
		return false
	}
	rel, ok := s.cfg.Relations.Relation(route.NextHop)
	return ok && (rel == peer.RelationParent || rel == peer.RelationPeer)
}

// Stop cancels any scheduled broadcast. It is safe to call Stop multiple
// times.
func (s *Sender) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.stopped = true
	s.cancelLocked()
}
