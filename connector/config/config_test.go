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

package config_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/ilpnet/connector/connector/config"
	"github.com/ilpnet/connector/pkg/private/xtest"
	"github.com/ilpnet/connector/private/config"
)

func TestSampleCorrect(t *testing.T) {
	var sample bytes.Buffer
	var cfg cfgpkg.Config
	cfg.Sample(&sample, nil, nil)

	var parsed cfgpkg.Config
	require.NoError(t, config.Decode(sample.Bytes(), &parsed))
	parsed.InitDefaults()
	require.NoError(t, parsed.Validate())

	assert.Equal(t, "connector-1", parsed.General.ID)
	assert.Equal(t, "info", parsed.Logging.Console.Level)
	assert.Equal(t, "127.0.0.1:30455", parsed.Metrics.Prometheus)
	assert.Equal(t, []string{"test.connector"}, parsed.Connector.OwnAddresses)
	assert.Equal(t, cfgpkg.DefaultStore, parsed.Connector.Store)
	assert.Equal(t, cfgpkg.DefaultRouteBroadcastInterval,
		parsed.Connector.RouteBroadcastInterval.Duration)
	assert.Equal(t, cfgpkg.DefaultRouteExpiry, parsed.Connector.RouteExpiry.Duration)
	assert.Equal(t, cfgpkg.DefaultSettlementSweepInterval,
		parsed.Connector.SettlementSweepInterval.Duration)
	assert.Equal(t, cfgpkg.DefaultILDCPTimeout, parsed.Connector.ILDCPTimeout.Duration)
	assert.Equal(t, time.Second, parsed.Peers.MinMessageWindow.Duration)
	assert.Equal(t, uint64(cfgpkg.DefaultRateLimitCount), parsed.Peers.RateLimitCount)
}

func TestDefaults(t *testing.T) {
	var cfg cfgpkg.Config
	cfg.InitDefaults()
	assert.Equal(t, cfgpkg.DefaultRouteControlRetry, cfg.Connector.RouteControlRetry.Duration)
	assert.Equal(t, cfgpkg.DefaultMaxHoldWindow, cfg.Peers.MaxHoldWindow.Duration)
	assert.Equal(t, cfgpkg.DefaultRateLimitPeriod, cfg.Peers.RateLimitPeriod.Duration)
	assert.Error(t, cfg.Validate(), "id is required")
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		raw       string
		assertErr assert.ErrorAssertionFunc
	}{
		"minimal": {
			raw:       "[general]\nid = \"c1\"\n",
			assertErr: assert.NoError,
		},
		"invalid own address": {
			raw:       "[general]\nid = \"c1\"\n[connector]\nown_addresses = [\"nope\"]\n",
			assertErr: assert.Error,
		},
		"unknown key": {
			raw:       "[general]\nid = \"c1\"\nfoo = 1\n",
			assertErr: assert.Error,
		},
		"hold shorter than window": {
			raw: "[general]\nid = \"c1\"\n[peers]\nmin_message_window = \"10s\"\n" +
				"max_hold_window = \"5s\"\n",
			assertErr: assert.Error,
		},
		"day durations": {
			raw:       "[general]\nid = \"c1\"\n[connector]\nsettlement_sweep_interval = \"1d\"\n",
			assertErr: assert.NoError,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			file := xtest.MustWriteFile(t, "connector.toml", []byte(tc.raw))
			_, err := cfgpkg.Load(file)
			tc.assertErr(t, err)
		})
	}
}
