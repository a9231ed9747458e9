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

package event

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	eventsTotal   *prometheus.CounterVec
	subscribers   *prometheus.GaugeVec
	dropped       *prometheus.CounterVec
	handlerPanics *prometheus.CounterVec
}

func (e *EventBus) initMetrics(promRegistry prometheus.Registerer) {
	e.metrics = &eventMetrics{
		eventsTotal: registerOrExisting(
			promRegistry,
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zktender_event_published_total",
					Help: "total events published by type",
				},
				[]string{"type"},
			),
		),
		subscribers: registerOrExisting(
			promRegistry,
			prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "zktender_event_subscribers",
					Help: "current subscribers by event type",
				},
				[]string{"type"},
			),
		),
		dropped: registerOrExisting(
			promRegistry,
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zktender_event_dropped_total",
					Help: "events dropped because a queue was full",
				},
				[]string{"type"},
			),
		),
		handlerPanics: registerOrExisting(
			promRegistry,
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zktender_event_handler_panics_total",
					Help: "event handler panics by type",
				},
				[]string{"type"},
			),
		),
	}
}

func registerOrExisting[T prometheus.Collector](
	registry prometheus.Registerer,
	c T,
) T {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
