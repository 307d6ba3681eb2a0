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

// Package balance tracks the bounded balance of a peer account.
//
// A positive balance means the peer owes the connector. Incoming prepares
// from the peer increase it, fulfilled packets sent to the peer decrease it.
package balance

import (
	"errors"
	"sync"

	"github.com/ilpnet/connector/pkg/private/serrors"
)

var (
	// ErrMaximumExceeded is returned when a change would exceed the maximum.
	ErrMaximumExceeded = errors.New("exceeded maximum balance")
	// ErrMinimumExceeded is returned when a change would drop below the
	// minimum.
	ErrMinimumExceeded = errors.New("insufficient balance")
	// ErrInvalidBounds is returned for a balance whose initial value is out
	// of bounds.
	ErrInvalidBounds = errors.New("invalid balance bounds")
)

// Balance is a bounded integer balance. Every mutation is atomic and either
// fully applied or rejected. The zero value is not usable; use New.
//
// Headroom is computed in uint64 arithmetic, which is exact for any pair of
// int64 values with value within bounds.
type Balance struct {
	mtx     sync.Mutex
	value   int64
	minimum int64
	maximum int64
}

// New returns a balance with the given initial value and bounds.
func New(initial, minimum, maximum int64) (*Balance, error) {
	if minimum > maximum || initial < minimum || initial > maximum {
		return nil, serrors.JoinNoStack(ErrInvalidBounds, nil,
			"initial", initial, "min", minimum, "max", maximum)
	}
	return &Balance{value: initial, minimum: minimum, maximum: maximum}, nil
}

// Add increases the balance by amount and returns the new value.
func (b *Balance) Add(amount uint64) (int64, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if amount > uint64(b.maximum)-uint64(b.value) {
		return b.value, serrors.JoinNoStack(ErrMaximumExceeded, nil,
			"balance", b.value, "amount", amount, "max", b.maximum)
	}
	b.value += int64(amount)
	return b.value, nil
}

// Subtract decreases the balance by amount and returns the new value.
func (b *Balance) Subtract(amount uint64) (int64, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if amount > uint64(b.value)-uint64(b.minimum) {
		return b.value, serrors.JoinNoStack(ErrMinimumExceeded, nil,
			"balance", b.value, "amount", amount, "min", b.minimum)
	}
	b.value -= int64(amount)
	return b.value, nil
}

// Value returns the current balance.
func (b *Balance) Value() int64 {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.value
}

// Bounds returns the minimum and maximum.
func (b *Balance) Bounds() (int64, int64) {
	return b.minimum, b.maximum
}
