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
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
)

// LifecycleStreamName is the name of the JetStream stream all lifecycle events are published to.
const LifecycleStreamName = "siop-lifecycle"

// newLifecycleStream returns the stream for lifecycle events.
// Observers that only need recent history can replay it; old events are discarded.
func newLifecycleStream() *stream {
	return &stream{config: &nats.StreamConfig{
		Name: LifecycleStreamName,
		Subjects: []string{
			SubjectPrefix + ".auth.>",
		},
		MaxMsgs:   10000,
		MaxAge:    24 * time.Hour,
		Retention: nats.LimitsPolicy,
		Storage:   nats.MemoryStorage,
		Discard:   nats.DiscardOld,
	}}
}

type stream struct {
	config  *nats.StreamConfig
	created atomic.Bool
}

// Config returns the configuration of the stream on the server.
func (stream *stream) Config() *nats.StreamConfig {
	return stream.config
}

func (stream *stream) create(conn Conn) error {
	if stream.created.Load() {
		return nil
	}

	js, err := conn.JetStream()
	if err != nil {
		return err
	}

	_, err = js.StreamInfo(stream.config.Name)
	if errors.Is(err, nats.ErrStreamNotFound) {
		if _, err = js.AddStream(stream.config); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	stream.created.Store(true)
	return nil
}

// Publish publishes the message to the stream, creating the stream first when it doesn't exist.
func (stream *stream) Publish(conn Conn, msg *nats.Msg, opts ...nats.PubOpt) error {
	if err := stream.create(conn); err != nil {
		return err
	}

	ctx, err := conn.JetStream()
	if err != nil {
		return err
	}

	_, err = ctx.PublishMsg(msg, opts...)
	return err
}

// reset forgets the stream was created, e.g. after the server restarted.
func (stream *stream) reset() {
	stream.created.Store(false)
}
