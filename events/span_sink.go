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

	"github.com/nuts-foundation/nuts-siop/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ Sink = SpanSink{}

// SpanSink adds lifecycle events to the span of the context. Events are dropped when the span isn't recording.
type SpanSink struct{}

func (SpanSink) Handle(ctx context.Context, event Event) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	attributes := []attribute.KeyValue{attribute.String(core.LogFieldCorrelationID, event.CorrelationID)}
	if event.Error != nil {
		attributes = append(attributes, attribute.String("error", event.Error.Error()))
	}
	span.AddEvent(string(event.Type), trace.WithAttributes(attributes...), trace.WithTimestamp(event.Timestamp))
	return nil
}
