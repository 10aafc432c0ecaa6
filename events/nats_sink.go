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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events/log"
	"go.uber.org/atomic"
)

// CorrelationIDHeader is the NATS message header carrying the correlation ID of the event.
const CorrelationIDHeader = "Siop-Correlation-Id"

var _ Sink = (*NATSSink)(nil)

// Message is the JSON body of a lifecycle event published on NATS.
type Message struct {
	Type          Type      `json:"type"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
	Error         string    `json:"error,omitempty"`
}

// NATSSink publishes lifecycle events to the lifecycle JetStream stream.
// The connection is established on the first event, and re-established after it was closed.
type NATSSink struct {
	connector Connector
	stream    *stream
	mux       sync.Mutex
	conn      Conn
	connected atomic.Bool
	closed    atomic.Bool
}

// NewNATSSink creates a NATSSink that connects using the given Connector.
func NewNATSSink(connector Connector) *NATSSink {
	return &NATSSink{
		connector: connector,
		stream:    newLifecycleStream(),
	}
}

// Handle publishes the event.
func (s *NATSSink) Handle(ctx context.Context, event Event) error {
	if s.closed.Load() {
		return nil
	}
	conn, err := s.connection()
	if err != nil {
		return fmt.Errorf("NATS connection: %w", err)
	}
	data, err := json.Marshal(newMessage(event))
	if err != nil {
		return err
	}
	msg := nats.NewMsg(event.Type.Subject())
	msg.Data = data
	msg.Header.Set(CorrelationIDHeader, event.CorrelationID)
	if err = s.stream.Publish(conn, msg, nats.Context(ctx)); err != nil {
		s.connected.Store(conn.IsConnected())
		if !s.connected.Load() {
			s.stream.reset()
		}
		return fmt.Errorf("unable to publish event (subject=%s): %w", msg.Subject, err)
	}
	log.Logger().
		WithField(core.LogFieldEventType, event.Type).
		WithField(core.LogFieldEventSubject, msg.Subject).
		WithField(core.LogFieldCorrelationID, event.CorrelationID).
		Trace("Published lifecycle event")
	return nil
}

// Connected returns true if the sink holds a live connection to the NATS server.
func (s *NATSSink) Connected() bool {
	return s.connected.Load()
}

// Close closes the connection. Events handled after Close are dropped.
func (s *NATSSink) Close() {
	s.closed.Store(true)
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected.Store(false)
}

func (s *NATSSink) connection() (Conn, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.conn != nil {
		s.connected.Store(s.conn.IsConnected())
		return s.conn, nil
	}
	conn, err := s.connector()
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.connected.Store(conn.IsConnected())
	return conn, nil
}

func newMessage(event Event) Message {
	result := Message{
		Type:          event.Type,
		CorrelationID: event.CorrelationID,
		Timestamp:     event.Timestamp,
	}
	if event.Error != nil {
		result.Error = event.Error.Error()
	}
	return result
}
