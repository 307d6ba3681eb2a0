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

package metrics

import (
	"strings"
	"sync"
)

// TestCounter is a Counter that records its value in memory.
type TestCounter struct {
	mtx sync.Mutex
	v   float64
}

// NewTestCounter returns a zero counter.
func NewTestCounter() *TestCounter {
	return &TestCounter{}
}

// Add increases the value of the counter. It panics on negative deltas, like
// a prometheus counter does.
func (c *TestCounter) Add(delta float64) {
	if delta < 0 {
		panic("counter cannot decrease in value")
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.v += delta
}

// CounterValue returns the value of c, which must be a *TestCounter.
func CounterValue(c Counter) float64 {
	tc := c.(*TestCounter)
	tc.mtx.Lock()
	defer tc.mtx.Unlock()
	return tc.v
}

// TestGauge is a Gauge that records its value in memory.
type TestGauge struct {
	mtx sync.Mutex
	v   float64
}

// NewTestGauge returns a zero gauge.
func NewTestGauge() *TestGauge {
	return &TestGauge{}
}

func (g *TestGauge) Set(v float64) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.v = v
}

func (g *TestGauge) Add(delta float64) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.v += delta
}

// GaugeValue returns the value of g, which must be a *TestGauge.
func GaugeValue(g Gauge) float64 {
	tg := g.(*TestGauge)
	tg.mtx.Lock()
	defer tg.mtx.Unlock()
	return tg.v
}

// TestCounterVec hands out one TestCounter per label combination. It stands
// in for the per-peer and per-result counter funcs of the connector metrics.
type TestCounterVec struct {
	mtx      sync.Mutex
	counters map[string]*TestCounter
}

// NewTestCounterVec returns an empty vector.
func NewTestCounterVec() *TestCounterVec {
	return &TestCounterVec{counters: map[string]*TestCounter{}}
}

// With returns the counter for the label values, creating it on first use.
func (v *TestCounterVec) With(labels ...string) Counter {
	key := strings.Join(labels, "\x00")
	v.mtx.Lock()
	defer v.mtx.Unlock()
	c, ok := v.counters[key]
	if !ok {
		c = NewTestCounter()
		v.counters[key] = c
	}
	return c
}

// Value returns the value of the counter for the label values. Counters that
// were never handed out read as 0.
func (v *TestCounterVec) Value(labels ...string) float64 {
	v.mtx.Lock()
	c, ok := v.counters[strings.Join(labels, "\x00")]
	v.mtx.Unlock()
	if !ok {
		return 0
	}
	return CounterValue(c)
}

// TestGaugeVec hands out one TestGauge per label combination.
type TestGaugeVec struct {
	mtx    sync.Mutex
	gauges map[string]*TestGauge
}

// NewTestGaugeVec returns an empty vector.
func NewTestGaugeVec() *TestGaugeVec {
	return &TestGaugeVec{gauges: map[string]*TestGauge{}}
}

// With returns the gauge for the label values, creating it on first use.
func (v *TestGaugeVec) With(labels ...string) Gauge {
	key := strings.Join(labels, "\x00")
	v.mtx.Lock()
	defer v.mtx.Unlock()
	g, ok := v.gauges[key]
	if !ok {
		g = NewTestGauge()
		v.gauges[key] = g
	}
	return g
}

// Value returns the value of the gauge for the label values, or 0 if it was
// never handed out.
func (v *TestGaugeVec) Value(labels ...string) float64 {
	v.mtx.Lock()
	g, ok := v.gauges[strings.Join(labels, "\x00")]
	v.mtx.Unlock()
	if !ok {
		return 0
	}
	return GaugeValue(g)
}
