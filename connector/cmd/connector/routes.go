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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilpnet/connector/connector"
	"github.com/ilpnet/connector/connector/routing"
	"github.com/ilpnet/connector/connector/storage"
	"github.com/ilpnet/connector/pkg/private/serrors"
	"github.com/ilpnet/connector/private/app/command"
	"github.com/ilpnet/connector/private/app/flag"
)

func newRoutes(pather command.Pather) *cobra.Command {
	var env flag.StoreEnvironment
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Display the static routes of the connector store",
		Example: fmt.Sprintf("  %[1]s routes\n  %[1]s routes --store /tmp/connector.db",
			pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.LoadExternalVars(); err != nil {
				return err
			}
			path := env.Store()
			if _, err := os.Stat(path); err != nil {
				return serrors.Wrap("accessing store", err, "path", path)
			}
			store, err := storage.New(path, nil)
			if err != nil {
				return serrors.Wrap("opening store", err, "path", path)
			}
			defer store.Close()
			routes, err := store.Routes(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]routing.Entry, 0, len(routes))
			for _, r := range routes {
				entries = append(entries, routing.Entry{
					Prefix: r.Prefix,
					Route: routing.Route{
						NextHop: r.PeerID,
						Path:    r.Path,
						Weight:  r.Weight,
					},
				})
			}
			connector.WriteRoutes(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	env.Register(cmd.Flags())
	return cmd
}
