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

package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDeduplicates(t *testing.T) {
	s := New()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	a := s.Record("alice", "test.alice", "exceeded maximum balance.")
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, 1, a.Count)

	s.now = func() time.Time { return t0.Add(time.Minute) }
	a = s.Record("alice", "test.alice", "exceeded maximum balance.")
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, t0, a.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), a.UpdatedAt)

	b := s.Record("bob", "test.alice", "exceeded maximum balance.")
	assert.Equal(t, uint64(2), b.ID)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].PeerID)
	assert.Equal(t, "bob", list[1].PeerID)
}

func TestDismiss(t *testing.T) {
	s := New()
	a := s.Record("alice", "test.alice", "msg")
	assert.ErrorIs(t, s.Dismiss(a.ID+1), ErrNotFound)
	require.NoError(t, s.Dismiss(a.ID))
	assert.Empty(t, s.List())

	// A new occurrence after dismissal starts a new alert.
	a2 := s.Record("alice", "test.alice", "msg")
	assert.NotEqual(t, a.ID, a2.ID)
	assert.Equal(t, 1, a2.Count)
}

func TestSubscribe(t *testing.T) {
	s := New()
	var seen []Alert
	unsubscribe := s.Subscribe(func(a Alert) { seen = append(seen, a) })
	s.Record("alice", "test.alice", "msg")
	s.Record("alice", "test.alice", "msg")
	unsubscribe()
	s.Record("alice", "test.alice", "msg")
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[1].Count)
}
