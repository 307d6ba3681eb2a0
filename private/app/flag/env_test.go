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

package flag_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/private/app/flag"
)

func TestStoreEnvironment(t *testing.T) {
	setupEnv := func(t *testing.T) {
		t.Setenv(flag.StoreEnvVar, "/tmp/env.db")
	}
	noEnv := func(t *testing.T) {}
	setupFlags := func(t *testing.T, fs *pflag.FlagSet) {
		require.NoError(t, fs.Parse([]string{"--store", "/tmp/flag.db"}))
	}
	noFlags := func(t *testing.T, fs *pflag.FlagSet) {
		require.NoError(t, fs.Parse([]string{}))
	}
	testCases := map[string]struct {
		flags func(t *testing.T, fs *pflag.FlagSet)
		env   func(t *testing.T)
		store string
	}{
		"no flag, no env, defaults only": {
			flags: noFlags,
			env:   noEnv,
			store: flag.DefaultStore,
		},
		"flag value set": {
			flags: setupFlags,
			env:   noEnv,
			store: "/tmp/flag.db",
		},
		"env value set": {
			flags: noFlags,
			env:   setupEnv,
			store: "/tmp/env.db",
		},
		"all set, flag precedence": {
			flags: setupFlags,
			env:   setupEnv,
			store: "/tmp/flag.db",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var env flag.StoreEnvironment
			fs := pflag.NewFlagSet("testSet", pflag.ContinueOnError)
			env.Register(fs)
			tc.flags(t, fs)
			tc.env(t)
			require.NoError(t, env.LoadExternalVars())
			assert.Equal(t, tc.store, env.Store())
		})
	}
}
