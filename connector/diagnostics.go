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

package connector

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ilpnet/connector/connector/routing"
)

// DiagnosticsWrite writes a human readable view of the own addresses and the
// routing table to w.
func (c *Connector) DiagnosticsWrite(w io.Writer) {
	fmt.Fprintf(w, "own addresses: %s\n", strings.Join(c.OwnAddresses(), ", "))
	fmt.Fprintf(w, "routing table: id=%s epoch=%d\n\n", c.table.ID(), c.table.CurrentEpoch())
	WriteRoutes(w, c.table.Entries())
}

// WriteRoutes renders entries as a table.
func WriteRoutes(w io.Writer, entries []routing.Entry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		prefix := e.Prefix
		if prefix == "" {
			prefix = "(default)"
		}
		rows = append(rows, []string{
			prefix,
			e.Route.NextHop,
			strings.Join(e.Route.Path, " "),
			fmt.Sprintf("%d", e.Route.Weight),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"PREFIX", "NEXT HOP", "PATH", "WEIGHT"})
	table.AppendBulk(rows)
	table.Render()
}
