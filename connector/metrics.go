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

package connector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/prom"
)

// Packet directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Metrics are the prometheus metrics of the connector. A nil *Metrics
// disables them.
type Metrics struct {
	Packets     *prometheus.CounterVec
	Balances    *prometheus.GaugeVec
	Routes      prometheus.Gauge
	Settlements *prometheus.CounterVec
	Alerts      *prometheus.CounterVec
}

// NewMetrics registers the connector metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Packets: prom.NewCounterVec("", "packets_total",
			"Total number of ILP packets handled, by direction and result.",
			[]string{prom.LabelDirection, prom.LabelPeer, prom.LabelResult}),
		Balances: prom.NewGaugeVec("", "balance",
			"Current balance of a peer account.",
			[]string{prom.LabelPeer}),
		Routes: prom.NewGauge("", "routes",
			"Number of prefixes in the routing table."),
		Settlements: prom.NewCounterVec("", "settlements_total",
			"Total number of settlements sent, by result.",
			[]string{prom.LabelPeer, prom.LabelResult}),
		Alerts: prom.NewCounterVec("", "alerts_total",
			"Total number of alerts raised for a peer.",
			[]string{prom.LabelPeer}),
	}
}

func (m *Metrics) packets(direction, peerID, result string) metrics.Counter {
	if m == nil || m.Packets == nil {
		return nil
	}
	return m.Packets.WithLabelValues(direction, peerID, result)
}

func (m *Metrics) balance(peerID string) metrics.Gauge {
	if m == nil || m.Balances == nil {
		return nil
	}
	return m.Balances.WithLabelValues(peerID)
}

func (m *Metrics) routes() metrics.Gauge {
	if m == nil || m.Routes == nil {
		return nil
	}
	return m.Routes
}

func (m *Metrics) settlements(peerID, result string) metrics.Counter {
	if m == nil || m.Settlements == nil {
		return nil
	}
	return m.Settlements.WithLabelValues(peerID, result)
}

func (m *Metrics) alerts(peerID string) metrics.Counter {
	if m == nil || m.Alerts == nil {
		return nil
	}
	return m.Alerts.WithLabelValues(peerID)
}

// forget drops the per-peer series of a removed peer.
func (m *Metrics) forget(peerID string) {
	if m == nil {
		return
	}
	if m.Balances != nil {
		m.Balances.DeleteLabelValues(peerID)
	}
	labels := prometheus.Labels{prom.LabelPeer: peerID}
	for _, vec := range []*prometheus.CounterVec{m.Packets, m.Settlements, m.Alerts} {
		if vec != nil {
			vec.DeletePartialMatch(labels)
		}
	}
}
