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

// Package tokenbucket provides the token bucket used for packet rate and
// money throughput limiting.
package tokenbucket

import (
	"time"

	"golang.org/x/time/rate"
)

// Bucket refills RefillCount tokens every RefillPeriod, up to its capacity.
// It is safe for concurrent use.
type Bucket struct {
	limiter *rate.Limiter
}

// Config describes a bucket.
type Config struct {
	RefillPeriod time.Duration
	RefillCount  uint64
	// Capacity defaults to RefillCount.
	Capacity uint64
}

// New returns a full bucket.
func New(cfg Config) *Bucket {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = cfg.RefillCount
	}
	limit := rate.Inf
	if cfg.RefillPeriod > 0 {
		limit = rate.Limit(float64(cfg.RefillCount) / cfg.RefillPeriod.Seconds())
	}
	return &Bucket{limiter: rate.NewLimiter(limit, clampInt(capacity))}
}

// Take takes n tokens from the bucket. It returns false, and takes nothing,
// if fewer than n tokens are available.
func (b *Bucket) Take(n uint64) bool {
	return b.TakeAt(time.Now(), n)
}

// TakeAt is Take at the given time.
func (b *Bucket) TakeAt(now time.Time, n uint64) bool {
	if n > uint64(b.limiter.Burst()) {
		return false
	}
	return b.limiter.AllowN(now, int(n))
}

// Tokens returns the number of tokens currently available.
func (b *Bucket) Tokens() float64 {
	return b.limiter.Tokens()
}

func clampInt(v uint64) int {
	const maxInt = int(^uint(0) >> 1)
	if v > uint64(maxInt) {
		return maxInt
	}
	return int(v)
}
