/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package events

import (
	"context"
	"errors"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/prometheus/client_golang/prometheus"
)

var _ Sink = (*MetricsSink)(nil)

// MetricsSink counts lifecycle events per type in a prometheus counter.
type MetricsSink struct {
	counter *prometheus.CounterVec
}

// NewMetricsSink creates a MetricsSink and registers its counter with the given registerer.
// When the counter is already registered, the existing one is used.
func NewMetricsSink(registerer prometheus.Registerer) (*MetricsSink, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: core.MetricsNamespace,
		Subsystem: "auth",
		Name:      "lifecycle_events_total",
		Help:      "Number of authorization request and response lifecycle events, by type.",
	}, []string{"type"})
	if err := registerer.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	return &MetricsSink{counter: counter}, nil
}

// Handle increments the counter of the event's type.
func (m *MetricsSink) Handle(_ context.Context, event Event) error {
	m.counter.WithLabelValues(string(event.Type)).Inc()
	return nil
}
