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

// Package alerts keeps operator alerts raised while forwarding packets.
//
// An alert is deduplicated by peer, triggering address and message. Alerts
// never expire; they stay until dismissed.
package alerts

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ErrNotFound indicates that no alert with the given id exists.
var ErrNotFound = errors.New("alert not found")

// Alert is a deduplicated alert.
type Alert struct {
	ID          uint64
	PeerID      string
	TriggeredBy string
	Message     string
	Count       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Observer is notified of every recorded alert occurrence.
type Observer func(Alert)

// Store is an in-memory alert store. It is safe for concurrent use.
type Store struct {
	// Do not embed or use type directly to reduce the store's API surface
	c *cache.Cache

	mtx       sync.Mutex
	nextID    uint64
	observers map[uint64]Observer
	nextObs   uint64
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		c:         cache.New(cache.NoExpiration, 0),
		observers: make(map[uint64]Observer),
		now:       time.Now,
	}
}

func key(peerID, triggeredBy, message string) string {
	return strings.Join([]string{peerID, triggeredBy, message}, "\x00")
}

// Record records an occurrence of an alert and notifies the observers. It
// returns the updated alert.
func (s *Store) Record(peerID, triggeredBy, message string) Alert {
	s.mtx.Lock()
	k := key(peerID, triggeredBy, message)
	now := s.now()
	var a Alert
	if obj, ok := s.c.Get(k); ok {
		a = *obj.(*Alert)
		a.Count++
		a.UpdatedAt = now
	} else {
		s.nextID++
		a = Alert{
			ID:          s.nextID,
			PeerID:      peerID,
			TriggeredBy: triggeredBy,
			Message:     message,
			Count:       1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	stored := a
	s.c.Set(k, &stored, cache.NoExpiration)
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mtx.Unlock()

	for _, o := range observers {
		o(a)
	}
	return a
}

// List returns all alerts ordered by id.
func (s *Store) List() []Alert {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	items := s.c.Items()
	list := make([]Alert, 0, len(items))
	for _, item := range items {
		if a, ok := item.Object.(*Alert); ok {
			list = append(list, *a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Dismiss removes the alert with the given id.
func (s *Store) Dismiss(id uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for k, item := range s.c.Items() {
		if a, ok := item.Object.(*Alert); ok && a.ID == id {
			s.c.Delete(k)
			return nil
		}
	}
	return ErrNotFound
}

// Subscribe registers o and returns a function that unregisters it.
func (s *Store) Subscribe(o Observer) func() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = o
	return func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		delete(s.observers, id)
	}
}
