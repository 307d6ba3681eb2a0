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

// Package prom contains utility functions for registering prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace of all connector metrics.
const Namespace = "connector"

// Common label names.
const (
	LabelResult    = "result"
	LabelPeer      = "peer"
	LabelDirection = "direction"
)

// Common result values.
const (
	// Success is no error.
	Success = "ok_success"
	// Fulfilled is a packet answered with a fulfill.
	Fulfilled = "fulfilled"
	// Rejected is a packet answered with a reject.
	Rejected = "rejected"
	// ErrNotClassified is an error that is not further classified.
	ErrNotClassified = "err_not_classified"
)

// ExportElementID exports the connector id as configured in the config file.
func ExportElementID(id string) {
	promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "elem_id",
			Help:      "The connector ID from the config file",
		},
		[]string{"cfg"},
	).WithLabelValues(id).Set(1)
}

// SafeRegister registers c and returns the registered collector. If c was
// already registered the already registered collector is returned. In case of
// any other error this method panics (as MustRegister).
func SafeRegister(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// NewCounterVec creates a counter vec that is registered with the default
// registry. Registering the same vec twice returns the existing one.
func NewCounterVec(subsystem, name, help string, labelNames []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	return SafeRegister(c).(*prometheus.CounterVec)
}

// NewGaugeVec creates a gauge vec that is registered with the default
// registry. Registering the same vec twice returns the existing one.
func NewGaugeVec(subsystem, name, help string, labelNames []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	return SafeRegister(g).(*prometheus.GaugeVec)
}

// NewGauge creates a gauge that is registered with the default registry.
func NewGauge(subsystem, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	return SafeRegister(g).(prometheus.Gauge)
}
