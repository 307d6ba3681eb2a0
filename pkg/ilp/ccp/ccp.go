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

// Package ccp implements the wire format of the connector to connector
// routing protocol. Messages travel as the data of zero amount prepares sent
// to peer.route.control and peer.route.update.
package ccp

import (
	"time"

	"github.com/google/uuid"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/ilp/oer"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// Mode is the route broadcasting mode a receiver requests from a sender.
type Mode uint8

const (
	// ModeIdle asks the sender to stop broadcasting.
	ModeIdle Mode = 0
	// ModeSync asks the sender to broadcast route updates.
	ModeSync Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSync:
		return "sync"
	default:
		return "unknown"
	}
}

// RouteControlRequest is sent by a route receiver to control the broadcasts
// of the sender.
type RouteControlRequest struct {
	Mode                    Mode
	LastKnownRoutingTableID uuid.UUID
	LastKnownEpoch          uint32
	Features                []string
}

// RouteProp is an optional route property.
type RouteProp struct {
	Optional   bool
	Transitive bool
	Partial    bool
	UTF8       bool
	ID         uint16
	Value      []byte
}

// Route is an advertised route.
type Route struct {
	Prefix string
	Path   []string
	Auth   [32]byte
	Props  []RouteProp
}

// RouteUpdateRequest carries the routing table changes between two epochs.
type RouteUpdateRequest struct {
	RoutingTableID    uuid.UUID
	CurrentEpochIndex uint32
	FromEpochIndex    uint32
	ToEpochIndex      uint32
	HoldDownTime      uint32
	Speaker           string
	NewRoutes         []Route
	WithdrawnRoutes   []string
}

// Marshal serializes the request.
func (r *RouteControlRequest) Marshal() []byte {
	var w oer.Writer
	w.WriteUint8(uint8(r.Mode))
	w.WriteOctetString(r.LastKnownRoutingTableID[:])
	w.WriteUint32(r.LastKnownEpoch)
	w.WriteVarUint(uint64(len(r.Features)))
	for _, f := range r.Features {
		w.WriteVarString(f)
	}
	return w.Bytes()
}

// ParseRouteControlRequest decodes a serialized RouteControlRequest.
func ParseRouteControlRequest(raw []byte) (*RouteControlRequest, error) {
	r := oer.NewReader(raw)
	var req RouteControlRequest
	mode, err := r.ReadUint8()
	if err != nil {
		return nil, serrors.Wrap("reading mode", err)
	}
	if Mode(mode) != ModeIdle && Mode(mode) != ModeSync {
		return nil, serrors.New("invalid mode", "mode", mode)
	}
	req.Mode = Mode(mode)
	if req.LastKnownRoutingTableID, err = readUUID(r); err != nil {
		return nil, err
	}
	if req.LastKnownEpoch, err = r.ReadUint32(); err != nil {
		return nil, serrors.Wrap("reading last known epoch", err)
	}
	if req.Features, err = readStrings(r); err != nil {
		return nil, serrors.Wrap("reading features", err)
	}
	return &req, nil
}

// Marshal serializes the request.
func (r *RouteUpdateRequest) Marshal() []byte {
	var w oer.Writer
	w.WriteOctetString(r.RoutingTableID[:])
	w.WriteUint32(r.CurrentEpochIndex)
	w.WriteUint32(r.FromEpochIndex)
	w.WriteUint32(r.ToEpochIndex)
	w.WriteUint32(r.HoldDownTime)
	w.WriteVarString(r.Speaker)
	w.WriteVarUint(uint64(len(r.NewRoutes)))
	for _, route := range r.NewRoutes {
		w.WriteVarString(route.Prefix)
		w.WriteVarUint(uint64(len(route.Path)))
		for _, hop := range route.Path {
			w.WriteVarString(hop)
		}
		w.WriteOctetString(route.Auth[:])
		w.WriteVarUint(uint64(len(route.Props)))
		for _, p := range route.Props {
			w.WriteUint8(p.meta())
			w.WriteUint16(p.ID)
			w.WriteVarOctetString(p.Value)
		}
	}
	w.WriteVarUint(uint64(len(r.WithdrawnRoutes)))
	for _, prefix := range r.WithdrawnRoutes {
		w.WriteVarString(prefix)
	}
	return w.Bytes()
}

// ParseRouteUpdateRequest decodes a serialized RouteUpdateRequest.
func ParseRouteUpdateRequest(raw []byte) (*RouteUpdateRequest, error) {
	r := oer.NewReader(raw)
	var req RouteUpdateRequest
	var err error
	if req.RoutingTableID, err = readUUID(r); err != nil {
		return nil, err
	}
	for _, field := range []*uint32{
		&req.CurrentEpochIndex, &req.FromEpochIndex, &req.ToEpochIndex, &req.HoldDownTime,
	} {
		if *field, err = r.ReadUint32(); err != nil {
			return nil, serrors.Wrap("reading epoch header", err)
		}
	}
	if req.Speaker, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading speaker", err)
	}
	n, err := readCount(r)
	if err != nil {
		return nil, serrors.Wrap("reading new routes", err)
	}
	for i := 0; i < n; i++ {
		route, err := readRoute(r)
		if err != nil {
			return nil, serrors.Wrap("reading new route", err, "index", i)
		}
		req.NewRoutes = append(req.NewRoutes, route)
	}
	if req.WithdrawnRoutes, err = readStrings(r); err != nil {
		return nil, serrors.Wrap("reading withdrawn routes", err)
	}
	return &req, nil
}

// NewRouteControlPrepare wraps req in a prepare to peer.route.control.
func NewRouteControlPrepare(req *RouteControlRequest, ttl time.Duration) *ilp.Prepare {
	return ilp.NewPeerProtocolPrepare(ilp.AddressRouteControl, req.Marshal(), ttl)
}

// NewRouteUpdatePrepare wraps req in a prepare to peer.route.update.
func NewRouteUpdatePrepare(req *RouteUpdateRequest, ttl time.Duration) *ilp.Prepare {
	return ilp.NewPeerProtocolPrepare(ilp.AddressRouteUpdate, req.Marshal(), ttl)
}

func (p RouteProp) meta() uint8 {
	var m uint8
	if p.Optional {
		m |= 0x80
	}
	if p.Transitive {
		m |= 0x40
	}
	if p.Partial {
		m |= 0x20
	}
	if p.UTF8 {
		m |= 0x10
	}
	return m
}

func readRoute(r *oer.Reader) (Route, error) {
	var route Route
	var err error
	if route.Prefix, err = r.ReadVarString(); err != nil {
		return Route{}, err
	}
	if route.Path, err = readStrings(r); err != nil {
		return Route{}, err
	}
	auth, err := r.ReadOctetString(32)
	if err != nil {
		return Route{}, err
	}
	copy(route.Auth[:], auth)
	n, err := readCount(r)
	if err != nil {
		return Route{}, err
	}
	for i := 0; i < n; i++ {
		meta, err := r.ReadUint8()
		if err != nil {
			return Route{}, err
		}
		id, err := r.ReadUint16()
		if err != nil {
			return Route{}, err
		}
		value, err := r.ReadVarOctetString()
		if err != nil {
			return Route{}, err
		}
		route.Props = append(route.Props, RouteProp{
			Optional:   meta&0x80 != 0,
			Transitive: meta&0x40 != 0,
			Partial:    meta&0x20 != 0,
			UTF8:       meta&0x10 != 0,
			ID:         id,
			Value:      append([]byte(nil), value...),
		})
	}
	return route, nil
}

func readUUID(r *oer.Reader) (uuid.UUID, error) {
	raw, err := r.ReadOctetString(16)
	if err != nil {
		return uuid.Nil, serrors.Wrap("reading routing table id", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, serrors.Wrap("parsing routing table id", err)
	}
	return id, nil
}

func readCount(r *oer.Reader) (int, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	// Every element takes at least one byte.
	if n > uint64(r.Len()) {
		return 0, serrors.New("element count exceeds input", "count", n, "remaining", r.Len())
	}
	return int(n), nil
}

func readStrings(r *oer.Reader) ([]string, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.ReadVarString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
