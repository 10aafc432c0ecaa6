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
	"strings"
	"time"
)

// Type identifies a lifecycle event of an authorization request or response.
type Type string

const (
	// AuthRequestCreatedSuccess is emitted by the RP when an authorization request was created.
	AuthRequestCreatedSuccess Type = "AUTH_REQUEST_CREATED_SUCCESS"
	// AuthRequestCreatedFailed is emitted by the RP when an authorization request could not be created.
	AuthRequestCreatedFailed Type = "AUTH_REQUEST_CREATED_FAILED"
	// AuthRequestSentSuccess is emitted by the RP when an authorization request was retrieved by the OP.
	AuthRequestSentSuccess Type = "AUTH_REQUEST_SENT_SUCCESS"
	// AuthRequestSentFailed is emitted by the RP when an authorization request could not be delivered.
	AuthRequestSentFailed Type = "AUTH_REQUEST_SENT_FAILED"
	// AuthRequestReceivedSuccess is emitted by the OP when an authorization request was parsed.
	AuthRequestReceivedSuccess Type = "AUTH_REQUEST_RECEIVED_SUCCESS"
	// AuthRequestReceivedFailed is emitted by the OP when an authorization request could not be parsed.
	AuthRequestReceivedFailed Type = "AUTH_REQUEST_RECEIVED_FAILED"
	// AuthRequestVerifiedSuccess is emitted by the OP when an authorization request was verified.
	AuthRequestVerifiedSuccess Type = "AUTH_REQUEST_VERIFIED_SUCCESS"
	// AuthRequestVerifiedFailed is emitted by the OP when an authorization request failed verification.
	AuthRequestVerifiedFailed Type = "AUTH_REQUEST_VERIFIED_FAILED"
	// AuthResponseCreateSuccess is emitted by the OP when an authorization response was created.
	AuthResponseCreateSuccess Type = "AUTH_RESPONSE_CREATE_SUCCESS"
	// AuthResponseCreateFailed is emitted by the OP when an authorization response could not be created.
	AuthResponseCreateFailed Type = "AUTH_RESPONSE_CREATE_FAILED"
	// AuthResponseSentSuccess is emitted by the OP when an authorization response was submitted to the RP.
	AuthResponseSentSuccess Type = "AUTH_RESPONSE_SENT_SUCCESS"
	// AuthResponseSentFailed is emitted by the OP when an authorization response could not be submitted.
	AuthResponseSentFailed Type = "AUTH_RESPONSE_SENT_FAILED"
	// AuthResponseReceivedSuccess is emitted by the RP when an authorization response was parsed.
	AuthResponseReceivedSuccess Type = "AUTH_RESPONSE_RECEIVED_SUCCESS"
	// AuthResponseReceivedFailed is emitted by the RP when an authorization response could not be parsed.
	AuthResponseReceivedFailed Type = "AUTH_RESPONSE_RECEIVED_FAILED"
	// AuthResponseVerifiedSuccess is emitted by the RP when an authorization response was verified.
	AuthResponseVerifiedSuccess Type = "AUTH_RESPONSE_VERIFIED_SUCCESS"
	// AuthResponseVerifiedFailed is emitted by the RP when an authorization response failed verification.
	AuthResponseVerifiedFailed Type = "AUTH_RESPONSE_VERIFIED_FAILED"
)

// SubjectPrefix is the NATS subject prefix of all lifecycle events.
const SubjectPrefix = "siop"

// Failed returns true for the _FAILED variant of an event.
func (t Type) Failed() bool {
	return strings.HasSuffix(string(t), "_FAILED")
}

// IsRequest returns true for events concerning an authorization request.
func (t Type) IsRequest() bool {
	return strings.HasPrefix(string(t), "AUTH_REQUEST_")
}

// IsResponse returns true for events concerning an authorization response.
func (t Type) IsResponse() bool {
	return strings.HasPrefix(string(t), "AUTH_RESPONSE_")
}

// Subject returns the NATS subject the event is published on, e.g. siop.auth.request.created.success
func (t Type) Subject() string {
	return SubjectPrefix + "." + strings.ReplaceAll(strings.ToLower(string(t)), "_", ".")
}

// Event is a lifecycle event of an authorization request or response, keyed by the correlation ID
// the RP assigned when creating the request.
type Event struct {
	Type          Type
	CorrelationID string
	// Subject is the request or response the event concerns. It may be nil for failure events.
	Subject   interface{}
	Error     error
	Timestamp time.Time
}

// NewEvent creates an Event of the given type, timestamped now.
func NewEvent(eventType Type, correlationID string, subject interface{}, err error) Event {
	return Event{
		Type:          eventType,
		CorrelationID: correlationID,
		Subject:       subject,
		Error:         err,
		Timestamp:     time.Now(),
	}
}

// Sink consumes lifecycle events.
type Sink interface {
	// Handle processes the event. An error means the sink could not process the event,
	// it does not change the outcome of the operation that emitted it.
	Handle(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f SinkFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard is a Sink that ignores all events.
var Discard Sink = SinkFunc(func(_ context.Context, _ Event) error {
	return nil
})

// Multicast passes every event to all of its sinks, in order.
// All sinks receive the event even if one fails; the errors are joined.
type Multicast []Sink

// Handle passes the event to all sinks.
func (m Multicast) Handle(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
