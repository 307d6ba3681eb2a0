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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ilpnet/connector/pkg/metrics"
)

func TestHelpersNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.CounterInc(nil)
		metrics.CounterAdd(nil, 2)
		metrics.GaugeSet(nil, 1)
		metrics.GaugeAdd(nil, -1)
		metrics.HistogramObserve(nil, 0.5)
	})
}

func TestFakes(t *testing.T) {
	c := metrics.NewTestCounter()
	metrics.CounterInc(c)
	metrics.CounterAdd(c, 2)
	assert.Equal(t, float64(3), metrics.CounterValue(c))
	assert.Panics(t, func() { c.Add(-1) })

	g := metrics.NewTestGauge()
	metrics.GaugeSet(g, 5)
	metrics.GaugeAdd(g, -7)
	assert.Equal(t, float64(-2), metrics.GaugeValue(g))
}

func TestFakeVecs(t *testing.T) {
	settlements := metrics.NewTestCounterVec()
	metrics.CounterInc(settlements.With("alice", "ok"))
	metrics.CounterInc(settlements.With("alice", "ok"))
	metrics.CounterInc(settlements.With("alice", "err"))
	assert.Equal(t, float64(2), settlements.Value("alice", "ok"))
	assert.Equal(t, float64(1), settlements.Value("alice", "err"))
	assert.Zero(t, settlements.Value("bob", "ok"))
	assert.Same(t, settlements.With("alice", "ok"), settlements.With("alice", "ok"))

	balances := metrics.NewTestGaugeVec()
	metrics.GaugeSet(balances.With("alice"), 10)
	metrics.GaugeAdd(balances.With("alice"), -15)
	assert.Equal(t, float64(-5), balances.Value("alice"))
	assert.Zero(t, balances.Value("bob"))
}

func TestPrometheusCompatible(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total"},
		[]string{"peer"})
	var c metrics.Counter = cv.WithLabelValues("alice")
	metrics.CounterInc(c)
	assert.Equal(t, float64(1), testutil.ToFloat64(cv.WithLabelValues("alice")))
}
