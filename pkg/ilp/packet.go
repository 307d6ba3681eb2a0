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

// Package ilp contains the Interledger packet types, their binary codec and
// the ILP error taxonomy.
package ilp

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ilpnet/connector/pkg/ilp/oer"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// Type is the ILP packet type.
type Type uint8

// Packet types.
const (
	TypePrepare Type = 12
	TypeFulfill Type = 13
	TypeReject  Type = 14
)

func (t Type) String() string {
	switch t {
	case TypePrepare:
		return "prepare"
	case TypeFulfill:
		return "fulfill"
	case TypeReject:
		return "reject"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

const timeLayout = "20060102150405"

var (
	// ErrUnknownType is returned when parsing a packet of an unknown type.
	ErrUnknownType = errors.New("unknown packet type")
	// ErrTrailingData is returned when a packet envelope or its content holds
	// more data than the packet declares.
	ErrTrailingData = errors.New("trailing data")
)

// Packet is an ILP packet.
type Packet interface {
	Type() Type
	marshalContent(w *oer.Writer) error
}

// Reply is a Fulfill or a Reject.
type Reply interface {
	Packet
	reply()
}

// Prepare is a conditional payment request.
type Prepare struct {
	Amount             uint64
	ExpiresAt          time.Time
	ExecutionCondition [32]byte
	Destination        string
	Data               []byte
}

func (*Prepare) Type() Type { return TypePrepare }

func (p *Prepare) String() string {
	return fmt.Sprintf("Prepare{amount=%d destination=%s expiresAt=%s}",
		p.Amount, p.Destination, p.ExpiresAt.UTC().Format(time.RFC3339Nano))
}

// Clone returns a deep copy of p.
func (p *Prepare) Clone() *Prepare {
	c := *p
	c.Data = bytes.Clone(p.Data)
	return &c
}

func (p *Prepare) marshalContent(w *oer.Writer) error {
	w.WriteUint64(p.Amount)
	w.WriteOctetString([]byte(FormatTime(p.ExpiresAt)))
	w.WriteOctetString(p.ExecutionCondition[:])
	w.WriteVarString(p.Destination)
	w.WriteVarOctetString(p.Data)
	return nil
}

// Fulfill is the successful reply to a Prepare.
type Fulfill struct {
	Fulfillment [32]byte
	Data        []byte
}

func (*Fulfill) Type() Type { return TypeFulfill }
func (*Fulfill) reply()     {}

func (f *Fulfill) marshalContent(w *oer.Writer) error {
	w.WriteOctetString(f.Fulfillment[:])
	w.WriteVarOctetString(f.Data)
	return nil
}

// Reject is the failure reply to a Prepare.
type Reject struct {
	Code        ErrorCode
	TriggeredBy string
	Message     string
	Data        []byte
}

func (*Reject) Type() Type { return TypeReject }
func (*Reject) reply()     {}

func (r *Reject) String() string {
	return fmt.Sprintf("Reject{code=%s triggeredBy=%s message=%q}",
		r.Code, r.TriggeredBy, r.Message)
}

func (r *Reject) marshalContent(w *oer.Writer) error {
	if len(r.Code) != 3 {
		return serrors.New("invalid error code", "code", string(r.Code))
	}
	w.WriteOctetString([]byte(r.Code))
	w.WriteVarString(r.TriggeredBy)
	w.WriteVarString(r.Message)
	w.WriteVarOctetString(r.Data)
	return nil
}

// Marshal serializes p.
func Marshal(p Packet) ([]byte, error) {
	var content oer.Writer
	if err := p.marshalContent(&content); err != nil {
		return nil, err
	}
	var w oer.Writer
	w.WriteUint8(uint8(p.Type()))
	w.WriteVarOctetString(content.Bytes())
	return w.Bytes(), nil
}

// Parse decodes a serialized packet. The returned packet does not alias raw.
func Parse(raw []byte) (Packet, error) {
	r := oer.NewReader(raw)
	t, err := r.ReadUint8()
	if err != nil {
		return nil, serrors.Wrap("reading packet type", err)
	}
	content, err := r.ReadVarOctetString()
	if err != nil {
		return nil, serrors.Wrap("reading packet content", err, "type", Type(t))
	}
	if r.Len() != 0 {
		return nil, serrors.JoinNoStack(ErrTrailingData, nil, "bytes", r.Len())
	}
	cr := oer.NewReader(bytes.Clone(content))
	var p Packet
	switch Type(t) {
	case TypePrepare:
		p, err = parsePrepare(cr)
	case TypeFulfill:
		p, err = parseFulfill(cr)
	case TypeReject:
		p, err = parseReject(cr)
	default:
		return nil, serrors.JoinNoStack(ErrUnknownType, nil, "type", t)
	}
	if err != nil {
		return nil, serrors.Wrap("parsing packet", err, "type", Type(t))
	}
	if cr.Len() != 0 {
		return nil, serrors.JoinNoStack(ErrTrailingData, nil,
			"type", Type(t), "bytes", cr.Len())
	}
	return p, nil
}

// ParsePrepare decodes a serialized Prepare.
func ParsePrepare(raw []byte) (*Prepare, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	prepare, ok := p.(*Prepare)
	if !ok {
		return nil, serrors.New("packet is not a prepare", "type", p.Type())
	}
	return prepare, nil
}

// ParseReply decodes a serialized Fulfill or Reject.
func ParseReply(raw []byte) (Reply, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	reply, ok := p.(Reply)
	if !ok {
		return nil, serrors.New("packet is not a reply", "type", p.Type())
	}
	return reply, nil
}

func parsePrepare(r *oer.Reader) (*Prepare, error) {
	var p Prepare
	var err error
	if p.Amount, err = r.ReadUint64(); err != nil {
		return nil, serrors.Wrap("reading amount", err)
	}
	rawTime, err := r.ReadOctetString(17)
	if err != nil {
		return nil, serrors.Wrap("reading expiry", err)
	}
	if p.ExpiresAt, err = ParseTime(string(rawTime)); err != nil {
		return nil, err
	}
	cond, err := r.ReadOctetString(32)
	if err != nil {
		return nil, serrors.Wrap("reading execution condition", err)
	}
	copy(p.ExecutionCondition[:], cond)
	if p.Destination, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading destination", err)
	}
	if p.Data, err = r.ReadVarOctetString(); err != nil {
		return nil, serrors.Wrap("reading data", err)
	}
	return &p, nil
}

func parseFulfill(r *oer.Reader) (*Fulfill, error) {
	var f Fulfill
	raw, err := r.ReadOctetString(32)
	if err != nil {
		return nil, serrors.Wrap("reading fulfillment", err)
	}
	copy(f.Fulfillment[:], raw)
	if f.Data, err = r.ReadVarOctetString(); err != nil {
		return nil, serrors.Wrap("reading data", err)
	}
	return &f, nil
}

func parseReject(r *oer.Reader) (*Reject, error) {
	var rj Reject
	code, err := r.ReadOctetString(3)
	if err != nil {
		return nil, serrors.Wrap("reading code", err)
	}
	rj.Code = ErrorCode(code)
	if rj.TriggeredBy, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading triggered by", err)
	}
	if rj.Message, err = r.ReadVarString(); err != nil {
		return nil, serrors.Wrap("reading message", err)
	}
	if rj.Data, err = r.ReadVarOctetString(); err != nil {
		return nil, serrors.Wrap("reading data", err)
	}
	return &rj, nil
}

// FormatTime formats t in the 17 character GeneralizedTime form used on the
// wire (YYYYMMDDHHmmSSfff, UTC, millisecond precision).
func FormatTime(t time.Time) string {
	t = t.UTC()
	return t.Format(timeLayout) + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// ParseTime parses the wire time format produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	if len(s) != 17 {
		return time.Time{}, serrors.New("invalid timestamp length", "value", s)
	}
	t, err := time.ParseInLocation(timeLayout, s[:14], time.UTC)
	if err != nil {
		return time.Time{}, serrors.Wrap("parsing timestamp", err, "value", s)
	}
	for _, c := range s[14:] {
		if c < '0' || c > '9' {
			return time.Time{}, serrors.New("invalid timestamp millis", "value", s)
		}
	}
	ms, err := strconv.Atoi(s[14:])
	if err != nil {
		return time.Time{}, serrors.Wrap("parsing timestamp millis", err, "value", s)
	}
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}

// Condition returns the execution condition for the fulfillment, i.e. its
// SHA-256 hash.
func Condition(fulfillment [32]byte) [32]byte {
	return sha256.Sum256(fulfillment[:])
}
