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

// Package oer implements the subset of the canonical Octet Encoding Rules
// used by the Interledger packet formats.
//
// Length determinants below 128 are encoded in a single byte. Longer lengths
// are encoded as 0x80|n followed by n big-endian length bytes.
package oer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/bits"

	"github.com/ilpnet/connector/pkg/private/serrors"
)

var (
	// ErrShortBuffer is returned when the input ends before a field is
	// complete.
	ErrShortBuffer = errors.New("buffer too short")
	// ErrNonCanonical is returned for length determinants that are not in
	// their shortest form.
	ErrNonCanonical = errors.New("non-canonical length determinant")
)

// maxLength bounds decoded lengths to protect against allocation attacks.
const maxLength = 1 << 24

// Writer serializes OER fields into an in-memory buffer.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the serialized data.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, v))
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, v))
}

// WriteOctetString writes b without a length prefix.
func (w *Writer) WriteOctetString(b []byte) {
	w.buf.Write(b)
}

// WriteLength writes a length determinant.
func (w *Writer) WriteLength(n int) {
	if n < 0x80 {
		w.buf.WriteByte(byte(n))
		return
	}
	raw := minimalBigEndian(uint64(n))
	w.buf.WriteByte(0x80 | byte(len(raw)))
	w.buf.Write(raw)
}

// WriteVarOctetString writes b prefixed by its length.
func (w *Writer) WriteVarOctetString(b []byte) {
	w.WriteLength(len(b))
	w.buf.Write(b)
}

// WriteVarString writes s prefixed by its length.
func (w *Writer) WriteVarString(s string) {
	w.WriteLength(len(s))
	w.buf.WriteString(s)
}

// WriteVarUint writes v as a variable length unsigned integer, i.e. the
// minimal big-endian representation as var octet string.
func (w *Writer) WriteVarUint(v uint64) {
	w.WriteVarOctetString(minimalBigEndian(v))
}

func minimalBigEndian(v uint64) []byte {
	n := (bits.Len64(v) + 7) / 8
	if n == 0 {
		n = 1
	}
	raw := binary.BigEndian.AppendUint64(nil, v)
	return raw[8-n:]
}

// Reader decodes OER fields from a byte slice.
type Reader struct {
	raw []byte
	off int
}

// NewReader returns a reader over raw.
func NewReader(raw []byte) *Reader {
	return &Reader{raw: raw}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.raw) - r.off
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, serrors.JoinNoStack(ErrShortBuffer, nil, "want", n, "have", r.Len())
	}
	b := r.raw[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadOctetString reads exactly n bytes. The result aliases the input.
func (r *Reader) ReadOctetString(n int) ([]byte, error) {
	return r.next(n)
}

// ReadLength reads a length determinant.
func (r *Reader) ReadLength() (int, error) {
	first, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	if first&0x80 == 0 {
		return int(first), nil
	}
	n := int(first &^ 0x80)
	if n == 0 || n > 4 {
		return 0, serrors.New("unsupported length of length", "bytes", n)
	}
	b, err := r.next(n)
	if err != nil {
		return 0, err
	}
	var length uint64
	for _, v := range b {
		length = length<<8 | uint64(v)
	}
	if length < 0x80 || b[0] == 0 {
		return 0, serrors.JoinNoStack(ErrNonCanonical, nil, "length", length)
	}
	if length > maxLength {
		return 0, serrors.New("length exceeds maximum", "length", length, "max", maxLength)
	}
	return int(length), nil
}

// ReadVarOctetString reads a length prefixed byte string. The result aliases
// the input.
func (r *Reader) ReadVarOctetString() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	return r.next(n)
}

// ReadVarString reads a length prefixed string.
func (r *Reader) ReadVarString() (string, error) {
	b, err := r.ReadVarOctetString()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadVarUint reads a variable length unsigned integer of at most 8 bytes.
func (r *Reader) ReadVarUint() (uint64, error) {
	b, err := r.ReadVarOctetString()
	if err != nil {
		return 0, err
	}
	if len(b) == 0 || len(b) > 8 {
		return 0, serrors.New("invalid var uint length", "bytes", len(b))
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}
