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
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ilpnet/connector/connector/routemgr"
	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/ccp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/private/periodic"
)

// RouteSink receives the routes learned from a peer.
type RouteSink interface {
	AddRoute(route routemgr.IncomingRoute)
	RemoveRoute(peerID, prefix string)
	Weight(id string) int
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// PeerID is the peer whose broadcasts are received.
	PeerID string
	Routes RouteSink
	// OwnAddresses returns the addresses of the local node. Routes whose
	// path contains one of them are looped and dropped.
	OwnAddresses func() []string
	Send         SendFunc
	Logger       log.Logger

	RouteControlRetry time.Duration
	CheckInterval     time.Duration
	StaleAfter        time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Receiver applies the route broadcasts of one peer.
type Receiver struct {
	cfg    ReceiverConfig
	logger log.Logger
	group  singleflight.Group

	mtx            sync.Mutex
	routingTableID uuid.UUID
	epoch          uint32
	lastUpdate     time.Time
	runner         *periodic.Runner
	retry          *time.Timer
	stopped        bool
}

// NewReceiver returns a receiver. Start must be called to enable the
// periodic checks.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.RouteControlRetry == 0 {
		cfg.RouteControlRetry = DefaultRouteControlRetry
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OwnAddresses == nil {
		cfg.OwnAddresses = func() []string { return nil }
	}
	return &Receiver{
		cfg:        cfg,
		logger:     log.SafeNewLogger(cfg.Logger, "ccp_receiver", cfg.PeerID),
		lastUpdate: cfg.Now(),
	}
}

// Start starts the periodic staleness check. A peer that has not sent an
// update within the stale interval is asked to resume broadcasting.
func (r *Receiver) Start() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.stopped || r.runner != nil {
		return
	}
	r.runner = periodic.Start(periodic.Func{
		TaskName: "ccp_receiver_check_" + r.cfg.PeerID,
		Task:     r.check,
	}, r.cfg.CheckInterval, r.cfg.CheckInterval)
}

func (r *Receiver) check(ctx context.Context) {
	r.mtx.Lock()
	stale := r.cfg.Now().Sub(r.lastUpdate) > r.cfg.StaleAfter
	r.mtx.Unlock()
	if !stale {
		return
	}
	r.logger.Debug("Route broadcasts of peer went stale, requesting resync")
	if err := r.SendRouteControl(ctx, true); err != nil {
		r.logger.Debug("Failed to send route control", "err", err)
	}
}

// State returns the routing table id and epoch known for the peer.
func (r *Receiver) State() (uuid.UUID, uint32) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.routingTableID, r.epoch
}

// HandleRouteUpdate applies a route update of the peer to the route sink.
// Updates with a gap trigger a route control request and are otherwise
// ignored, as are updates the receiver already applied.
func (r *Receiver) HandleRouteUpdate(req *ccp.RouteUpdateRequest) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.lastUpdate = r.cfg.Now()

	if req.RoutingTableID != r.routingTableID {
		r.logger.Debug("Peer routing table changed", "table_id", req.RoutingTableID)
		r.routingTableID = req.RoutingTableID
		r.epoch = 0
	}
	if req.FromEpochIndex > r.epoch {
		r.logger.Debug("Gap in route updates, requesting resync",
			"known", r.epoch, "from", req.FromEpochIndex)
		go func() {
			defer log.HandlePanic()
			if err := r.SendRouteControl(context.Background(), false); err != nil {
				r.logger.Debug("Failed to send route control", "err", err)
			}
		}()
		return
	}
	if req.ToEpochIndex < r.epoch {
		r.logger.Debug("Ignoring stale route update", "known", r.epoch, "to", req.ToEpochIndex)
		return
	}
	if len(req.NewRoutes) == 0 && len(req.WithdrawnRoutes) == 0 {
		r.epoch = req.ToEpochIndex
		return
	}

	for _, prefix := range req.WithdrawnRoutes {
		r.cfg.Routes.RemoveRoute(r.cfg.PeerID, prefix)
	}
	own := r.cfg.OwnAddresses()
	weight := r.cfg.Routes.Weight(r.cfg.PeerID)
	for _, route := range req.NewRoutes {
		if looped(route.Path, own) {
			r.logger.Debug("Dropping looped route", "prefix", route.Prefix, "path", route.Path)
			continue
		}
		r.cfg.Routes.AddRoute(routemgr.IncomingRoute{
			Peer:   r.cfg.PeerID,
			Prefix: route.Prefix,
			Path:   route.Path,
			Weight: weight,
			Auth:   route.Auth,
		})
	}
	r.epoch = req.ToEpochIndex
}

func looped(path, own []string) bool {
	for _, addr := range own {
		if slices.Contains(path, addr) {
			return true
		}
	}
	return false
}

// SendRouteControl asks the peer to broadcast updates from the last known
// epoch. Concurrent calls share one request. If the request fails and
// sendOnce is false, it is retried after the retry interval.
func (r *Receiver) SendRouteControl(ctx context.Context, sendOnce bool) error {
	_, err, _ := r.group.Do("route_control", func() (any, error) {
		id, epoch := r.State()
		req := &ccp.RouteControlRequest{
			Mode:                    ccp.ModeSync,
			LastKnownRoutingTableID: id,
			LastKnownEpoch:          epoch,
			Features:                []string{},
		}
		ctx, cancelF := context.WithTimeout(ctx, r.cfg.RouteControlRetry)
		defer cancelF()
		prepare := ccp.NewRouteControlPrepare(req, r.cfg.RouteControlRetry)
		return nil, expectFulfill(ilp.SendBounded(ctx, r.cfg.Send, prepare))
	})
	if err == nil {
		return nil
	}
	if !sendOnce {
		r.mtx.Lock()
		if !r.stopped {
			if r.retry != nil {
				r.retry.Stop()
			}
			r.retry = time.AfterFunc(r.cfg.RouteControlRetry, func() {
				defer log.HandlePanic()
				if err := r.SendRouteControl(context.Background(), false); err != nil {
					r.logger.Debug("Retrying route control failed", "err", err)
				}
			})
		}
		r.mtx.Unlock()
	}
	return serrors.Wrap("sending route control", err, "peer", r.cfg.PeerID)
}

// Stop stops the periodic checks and pending retries. It is safe to call
// Stop multiple times.
func (r *Receiver) Stop() {
	r.mtx.Lock()
	r.stopped = true
	runner := r.runner
	r.runner = nil
	if r.retry != nil {
		r.retry.Stop()
		r.retry = nil
	}
	r.mtx.Unlock()
	if runner != nil {
		runner.Kill()
	}
}
