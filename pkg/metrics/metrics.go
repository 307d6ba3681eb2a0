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

// Package metrics contains the metric interfaces used by the connector
// components together with nil-safe helpers.
//
// The interfaces are a subset of the prometheus client types, so that
// prometheus.Counter, prometheus.Gauge and prometheus.Observer values can be
// passed in directly. Components treat a nil metric as disabled.
package metrics

// Counter is a metric that only increases.
type Counter interface {
	Add(delta float64)
}

// Gauge is a metric that can be set to arbitrary values.
type Gauge interface {
	Set(value float64)
	Add(delta float64)
}

// Histogram records observations into buckets.
type Histogram interface {
	Observe(value float64)
}

// CounterInc increments c if it is not nil.
func CounterInc(c Counter) {
	if c != nil {
		c.Add(1)
	}
}

// CounterAdd adds v to c if it is not nil.
func CounterAdd(c Counter, v float64) {
	if c != nil {
		c.Add(v)
	}
}

// GaugeSet sets g to v if it is not nil.
func GaugeSet(g Gauge, v float64) {
	if g != nil {
		g.Set(v)
	}
}

// GaugeAdd adds v to g if it is not nil.
func GaugeAdd(g Gauge, v float64) {
	if g != nil {
		g.Add(v)
	}
}

// HistogramObserve records v in h if it is not nil.
func HistogramObserve(h Histogram, v float64) {
	if h != nil {
		h.Observe(v)
	}
}
