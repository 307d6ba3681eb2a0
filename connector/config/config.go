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

// Package config describes the configuration of the connector.
package config

import (
	"io"
	"time"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/pkg/private/util"
	"github.com/ilpnet/connector/private/config"
	"github.com/ilpnet/connector/private/env"
)

const (
	// DefaultStore is the default path of the peer and route store.
	DefaultStore = "/var/lib/connector/connector.db"
	// DefaultRouteBroadcastInterval is the default interval between route
	// broadcasts to a peer.
	DefaultRouteBroadcastInterval = 30 * time.Second
	// DefaultRouteExpiry is the default hold down time of advertised routes.
	DefaultRouteExpiry = 45 * time.Second
	// DefaultRouteControlRetry is the default interval between route control
	// attempts.
	DefaultRouteControlRetry = 30 * time.Second
	// DefaultSettlementSweepInterval is the default interval between
	// settlement checks of all accounts.
	DefaultSettlementSweepInterval = time.Minute
	// DefaultSettlementRetryInterval is the default backoff of settlement
	// account registration.
	DefaultSettlementRetryInterval = 5 * time.Second
	// DefaultILDCPTimeout is the default timeout of address discovery.
	DefaultILDCPTimeout = 10 * time.Second

	DefaultMinMessageWindow = time.Second
	DefaultMaxHoldWindow    = 30 * time.Second
	DefaultRateLimitPeriod  = time.Minute
	DefaultRateLimitCount   = 10000
)

var _ config.Config = (*Config)(nil)

// Config is the connector configuration.
type Config struct {
	General   env.General     `toml:"general,omitempty"`
	Logging   log.Config      `toml:"log,omitempty"`
	Metrics   env.Metrics     `toml:"metrics,omitempty"`
	Connector ConnectorConfig `toml:"connector,omitempty"`
	Peers     PeersConfig     `toml:"peers,omitempty"`
}

// InitDefaults initializes the default values for all parts of the config.
func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Connector,
		&cfg.Peers,
	)
}

// Validate validates all parts of the config.
func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Connector,
		&cfg.Peers,
	)
}

// Sample generates a sample config file for the connector.
func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: idSample},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Connector,
		&cfg.Peers,
	)
}

// Load loads, initializes and validates the configuration in file.
func Load(file string) (*Config, error) {
	var cfg Config
	if err := config.LoadFile(file, &cfg); err != nil {
		return nil, err
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var _ config.Config = (*ConnectorConfig)(nil)

// ConnectorConfig holds the node level settings of the connector.
type ConnectorConfig struct {
	// Store is the path of the sqlite database holding peers and routes.
	Store string `toml:"store,omitempty"`
	// OwnAddresses are the static addresses of the connector. A connector
	// without own addresses learns its address from a parent.
	OwnAddresses []string `toml:"own_addresses,omitempty"`
	// RouteBroadcastInterval is the interval between route broadcasts to a
	// peer.
	RouteBroadcastInterval util.DurWrap `toml:"route_broadcast_interval,omitempty"`
	// RouteExpiry is the hold down time of advertised routes.
	RouteExpiry util.DurWrap `toml:"route_expiry,omitempty"`
	// RouteControlRetry is the interval between route control attempts.
	RouteControlRetry util.DurWrap `toml:"route_control_retry,omitempty"`
	// SettlementSweepInterval is the interval between settlement checks of
	// all accounts.
	SettlementSweepInterval util.DurWrap `toml:"settlement_sweep_interval,omitempty"`
	// SettlementRetryInterval is the backoff of settlement account calls.
	SettlementRetryInterval util.DurWrap `toml:"settlement_retry_interval,omitempty"`
	// ILDCPTimeout bounds the address discovery with a parent.
	ILDCPTimeout util.DurWrap `toml:"ildcp_timeout,omitempty"`
}

// InitDefaults sets the unset durations and the store path.
func (cfg *ConnectorConfig) InitDefaults() {
	if cfg.Store == "" {
		cfg.Store = DefaultStore
	}
	initDurWrap(&cfg.RouteBroadcastInterval, DefaultRouteBroadcastInterval)
	initDurWrap(&cfg.RouteExpiry, DefaultRouteExpiry)
	initDurWrap(&cfg.RouteControlRetry, DefaultRouteControlRetry)
	initDurWrap(&cfg.SettlementSweepInterval, DefaultSettlementSweepInterval)
	initDurWrap(&cfg.SettlementRetryInterval, DefaultSettlementRetryInterval)
	initDurWrap(&cfg.ILDCPTimeout, DefaultILDCPTimeout)
}

// Validate checks the own addresses.
func (cfg *ConnectorConfig) Validate() error {
	for _, addr := range cfg.OwnAddresses {
		if !ilp.ValidAddress(addr) {
			return serrors.New("invalid own address", "address", addr)
		}
	}
	return nil
}

// Sample writes the sample of the connector block.
func (cfg *ConnectorConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, connectorSample)
}

// ConfigName is the toml key of the connector block.
func (cfg *ConnectorConfig) ConfigName() string {
	return "connector"
}

var _ config.Config = (*PeersConfig)(nil)

// PeersConfig holds the defaults applied to peers that do not configure a
// setting themselves.
type PeersConfig struct {
	// MinMessageWindow is the time reserved for passing a fulfillment back.
	MinMessageWindow util.DurWrap `toml:"min_message_window,omitempty"`
	// MaxHoldWindow is the longest time a forwarded packet is held.
	MaxHoldWindow util.DurWrap `toml:"max_hold_window,omitempty"`
	// RateLimitPeriod is the refill period of the packet rate limit.
	RateLimitPeriod util.DurWrap `toml:"rate_limit_period,omitempty"`
	// RateLimitCount is the number of packets per period.
	RateLimitCount uint64 `toml:"rate_limit_count,omitempty"`
}

// InitDefaults sets the unset values.
func (cfg *PeersConfig) InitDefaults() {
	initDurWrap(&cfg.MinMessageWindow, DefaultMinMessageWindow)
	initDurWrap(&cfg.MaxHoldWindow, DefaultMaxHoldWindow)
	initDurWrap(&cfg.RateLimitPeriod, DefaultRateLimitPeriod)
	if cfg.RateLimitCount == 0 {
		cfg.RateLimitCount = DefaultRateLimitCount
	}
}

// Validate checks that a packet can be held long enough to be fulfilled.
func (cfg *PeersConfig) Validate() error {
	if cfg.MaxHoldWindow.Duration < cfg.MinMessageWindow.Duration {
		return serrors.New("max_hold_window must not be shorter than min_message_window",
			"max_hold_window", cfg.MaxHoldWindow, "min_message_window", cfg.MinMessageWindow)
	}
	return nil
}

// Sample writes the sample of the peers block.
func (cfg *PeersConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, peersSample)
}

// ConfigName is the toml key of the peers block.
func (cfg *PeersConfig) ConfigName() string {
	return "peers"
}

func initDurWrap(w *util.DurWrap, def time.Duration) {
	if w.Duration == 0 {
		w.Duration = def
	}
}
