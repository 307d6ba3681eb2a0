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

// Package flag contains command line flags shared by the connector tools.
package flag

import (
	"os"
	"sync"

	"github.com/spf13/pflag"
)

const (
	// DefaultStore is the store used when neither flag nor environment
	// variable are set.
	DefaultStore = "/var/lib/connector/connector.db"
	// StoreEnvVar is the environment variable that selects the store.
	StoreEnvVar = "CONNECTOR_STORE"
)

type stringVal string

func (v *stringVal) Set(val string) error {
	*v = stringVal(val)
	return nil
}

func (v *stringVal) Type() string   { return "string" }
func (v *stringVal) String() string { return string(*v) }

// StoreEnvironment resolves the location of the peer and route store of the
// connector for tools that inspect it offline.
type StoreEnvironment struct {
	store     string
	storeFlag *pflag.Flag
	storeEnv  *string

	mtx sync.Mutex
}

// Register registers the command line flags. This should be called when command
// line flags are set up, before any command that accesses the values is called.
// It is safe to not call this at all, which means command line flag values are
// not considered.
func (e *StoreEnvironment) Register(flagSet *pflag.FlagSet) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.storeFlag = flagSet.VarPF((*stringVal)(&e.store), "store", "s",
		"Path of the connector store (default "+DefaultStore+").")
}

// LoadExternalVars loads the values from the OS environment variables. A
// missing variable is not reported.
func (e *StoreEnvironment) LoadExternalVars() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if s, ok := os.LookupEnv(StoreEnvVar); ok {
		e.storeEnv = &s
	}
	return nil
}

// Store returns the path of the store. The value is loaded from one of the
// following sources with the precedence as listed:
//  1. Command line flag (--store)
//  2. Environment variable (CONNECTOR_STORE)
//  3. Default value.
func (e *StoreEnvironment) Store() string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.storeFlag != nil && e.storeFlag.Changed {
		return e.store
	}
	if e.storeEnv != nil {
		return *e.storeEnv
	}
	return DefaultStore
}
