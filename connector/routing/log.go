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

package routing

import (
	"sort"

	"github.com/google/uuid"
)

// Update is one entry of the epoch log. A nil Route is a withdrawal.
type Update struct {
	Epoch  uint32
	Prefix string
	Route  *Route
}

// epochLog is the log of table changes. Only the latest update per prefix is
// kept; superseded entries are compacted away once they make up half of the
// log. Replaying the surviving entries from any epoch yields the current
// table.
type epochLog struct {
	id       uuid.UUID
	epoch    uint32
	entries  []logEntry
	byPrefix map[string]int
	dead     int
}

type logEntry struct {
	Update
	superseded bool
}

func newEpochLog() epochLog {
	return epochLog{
		id:       uuid.New(),
		byPrefix: make(map[string]int),
	}
}

func (l *epochLog) append(prefix string, route *Route) {
	if idx, ok := l.byPrefix[prefix]; ok {
		l.entries[idx].superseded = true
		l.dead++
	}
	l.byPrefix[prefix] = len(l.entries)
	l.entries = append(l.entries, logEntry{
		Update: Update{Epoch: l.epoch, Prefix: prefix, Route: route},
	})
	l.epoch++
	if l.dead > 16 && l.dead*2 > len(l.entries) {
		l.compact()
	}
}

func (l *epochLog) compact() {
	live := make([]logEntry, 0, len(l.entries)-l.dead)
	for _, e := range l.entries {
		if e.superseded {
			continue
		}
		l.byPrefix[e.Prefix] = len(live)
		live = append(live, e)
	}
	l.entries = live
	l.dead = 0
}

func (l *epochLog) slice(from, to uint32) []Update {
	start := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Epoch >= from
	})
	var out []Update
	for _, e := range l.entries[start:] {
		if e.Epoch >= to {
			break
		}
		if e.superseded {
			continue
		}
		u := e.Update
		if u.Route != nil {
			r := u.Route.clone()
			u.Route = &r
		}
		out = append(out, u)
	}
	return out
}
