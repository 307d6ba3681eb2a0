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

// The connector binary runs an ILP connector. Peers and static routes are read
// from the sqlite store named in the configuration file.
package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ilpnet/connector/connector"
	"github.com/ilpnet/connector/connector/config"
	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/connector/pipeline"
	"github.com/ilpnet/connector/connector/storage"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/private/app/command"
	"github.com/ilpnet/connector/private/app/launcher"
)

var globalCfg config.Config

// transports are the wire transports compiled into the binary, keyed by
// endpoint scheme.
var transports = connector.Transports{}

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "ILP Connector",
		Commands:   []func(command.Pather) *cobra.Command{newRoutes},
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	store, err := storage.New(globalCfg.Connector.Store, nil)
	if err != nil {
		return serrors.Wrap("opening store", err, "path", globalCfg.Connector.Store)
	}
	defer store.Close()

	c, err := connector.New(connectorConfig(&globalCfg, connector.NewMetrics()))
	if err != nil {
		return serrors.Wrap("creating connector", err)
	}
	if err := addPeers(ctx, c, store); err != nil {
		c.Close(context.Background())
		return err
	}
	if err := c.Load(ctx, store); err != nil {
		c.Close(context.Background())
		return err
	}

	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		return c.Run(errCtx)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx, func(r chi.Router) {
			r.Get("/routes", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				c.DiagnosticsWrite(w)
			})
			r.Get("/alerts", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if err := json.NewEncoder(w).Encode(c.Alerts().List()); err != nil {
					log.Error("Encoding alerts", "err", err)
				}
			})
		})
	})
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		return c.Close(context.Background())
	})
	return g.Wait()
}

func connectorConfig(cfg *config.Config, metrics *connector.Metrics) connector.Config {
	return connector.Config{
		OwnAddresses:            cfg.Connector.OwnAddresses,
		Logger:                  log.Root(),
		Metrics:                 metrics,
		RouteBroadcastInterval:  cfg.Connector.RouteBroadcastInterval.Duration,
		RouteExpiry:             cfg.Connector.RouteExpiry.Duration,
		RouteControlRetry:       cfg.Connector.RouteControlRetry.Duration,
		SettlementSweepInterval: cfg.Connector.SettlementSweepInterval.Duration,
		SettlementRetryInterval: cfg.Connector.SettlementRetryInterval.Duration,
		ILDCPTimeout:            cfg.Connector.ILDCPTimeout.Duration,
		Expiry: pipeline.ExpiryConfig{
			MinMessageWindow: cfg.Peers.MinMessageWindow.Duration,
			MaxHoldWindow:    cfg.Peers.MaxHoldWindow.Duration,
		},
		RateLimit: peer.BucketConfig{
			RefillPeriod: peer.Duration(cfg.Peers.RateLimitPeriod.Duration),
			RefillCount:  cfg.Peers.RateLimitCount,
		},
	}
}

// addPeers links the stored peers. A peer without a usable transport is
// skipped. Failing to link a parent is fatal, since the connector may depend
// on it for its address.
func addPeers(ctx context.Context, c *connector.Connector, store *storage.DB) error {
	infos, err := store.Peers(ctx)
	if err != nil {
		return serrors.Wrap("loading peers", err)
	}
	for _, info := range infos {
		var client peer.Client
		if info.Endpoint != "" {
			if client, err = transports.NewClient(info.Endpoint); err != nil {
				log.Error("Skipping peer", "peer", info.ID, "err", err)
				continue
			}
		}
		if err := c.AddPeer(ctx, info, client); err != nil {
			if info.Relation == peer.RelationParent {
				return serrors.Wrap("adding parent", err, "peer", info.ID)
			}
			log.Error("Skipping peer", "peer", info.ID, "err", err)
		}
	}
	return nil
}
