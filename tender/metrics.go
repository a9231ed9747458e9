// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tender

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

type engineMetrics struct {
	operations          *prometheus.CounterVec
	nullifierRejections *prometheus.CounterVec
	phaseTransitions    *prometheus.CounterVec
	oracleFallbacks     *prometheus.CounterVec
	oracleLatency       *prometheus.HistogramVec
}

func (m *engineMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.operations = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zktender_operations_total",
			Help: "engine operations by kind and result",
		},
		[]string{"operation", "result"},
	)
	m.nullifierRejections = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zktender_nullifier_rejections_total",
			Help: "operations rejected for a reused nullifier",
		},
		[]string{"namespace"},
	)
	m.phaseTransitions = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zktender_phase_transitions_total",
			Help: "phase transitions by direction",
		},
		[]string{"direction"},
	)
	m.oracleFallbacks = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zktender_oracle_fallbacks_total",
			Help: "evaluations produced by the fallback heuristic",
		},
		[]string{"kind"},
	)
	m.oracleLatency = promautoFactory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zktender_oracle_duration_seconds",
			Help:    "time spent producing an evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"kind"},
	)
}

func (m *engineMetrics) observe(op string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.operations.WithLabelValues(op, result).Inc()
}
