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

package tracing

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// middleware starts a server span for the request, continuing the trace of the caller if it propagated one.
func middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !Enabled() {
			return next(c)
		}
		request := c.Request()
		ctx := otel.GetTextMapPropagator().Extract(request.Context(), propagation.HeaderCarrier(request.Header))
		ctx, span := Tracer().Start(ctx, request.Method+" "+c.Path(),
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithAttributes(
				semconv.HTTPMethodKey.String(request.Method),
				semconv.HTTPRouteKey.String(c.Path()),
				semconv.HTTPTargetKey.String(request.URL.RequestURI()),
			))
		defer span.End()
		c.SetRequest(request.WithContext(ctx))

		if err := next(c); err != nil {
			span.RecordError(err)
			// render the error here, so the span gets the status code
			c.Error(err)
		}
		status := c.Response().Status
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return nil
	}
}

var _ http.RoundTripper = (*transport)(nil)

// transport starts a client span for outgoing requests and propagates the trace context.
type transport struct {
	next http.RoundTripper
}

func newTransport(next http.RoundTripper) http.RoundTripper {
	return &transport{next: next}
}

func (t *transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx, span := Tracer().Start(request.Context(), "HTTP "+request.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(request.Method),
			semconv.HTTPURLKey.String(request.URL.Redacted()),
		))
	defer span.End()
	request = request.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))

	response, err := t.next.RoundTrip(request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(response.StatusCode))
	if response.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, response.Status)
	}
	return response, nil
}
