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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType(t *testing.T) {
	t.Run("Subject", func(t *testing.T) {
		assert.Equal(t, "siop.auth.request.created.success", AuthRequestCreatedSuccess.Subject())
		assert.Equal(t, "siop.auth.response.verified.failed", AuthResponseVerifiedFailed.Subject())
	})
	t.Run("Failed", func(t *testing.T) {
		assert.True(t, AuthRequestSentFailed.Failed())
		assert.False(t, AuthRequestSentSuccess.Failed())
	})
	t.Run("IsRequest/IsResponse", func(t *testing.T) {
		assert.True(t, AuthRequestReceivedSuccess.IsRequest())
		assert.False(t, AuthRequestReceivedSuccess.IsResponse())
		assert.True(t, AuthResponseCreateSuccess.IsResponse())
		assert.False(t, AuthResponseCreateSuccess.IsRequest())
	})
}

func TestNewEvent(t *testing.T) {
	err := errors.New("failed")

	event := NewEvent(AuthRequestCreatedFailed, "123", nil, err)

	assert.Equal(t, AuthRequestCreatedFailed, event.Type)
	assert.Equal(t, "123", event.CorrelationID)
	assert.Equal(t, err, event.Error)
	assert.False(t, event.Timestamp.IsZero())
}

func TestMulticast_Handle(t *testing.T) {
	ctx := context.Background()
	event := NewEvent(AuthRequestCreatedSuccess, "123", "subject", nil)

	t.Run("ok", func(t *testing.T) {
		var received []string
		sink := Multicast{
			SinkFunc(func(_ context.Context, e Event) error {
				received = append(received, "first:"+e.CorrelationID)
				return nil
			}),
			nil,
			SinkFunc(func(_ context.Context, e Event) error {
				received = append(received, "second:"+e.CorrelationID)
				return nil
			}),
		}

		err := sink.Handle(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, []string{"first:123", "second:123"}, received)
	})
	t.Run("error - all sinks are called", func(t *testing.T) {
		calls := 0
		failing := SinkFunc(func(_ context.Context, _ Event) error {
			calls++
			return errors.New("failed")
		})

		err := Multicast{failing, failing}.Handle(ctx, event)

		assert.EqualError(t, err, "failed\nfailed")
		assert.Equal(t, 2, calls)
	})
	t.Run("empty", func(t *testing.T) {
		assert.NoError(t, Multicast{}.Handle(ctx, event))
	})
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Handle(context.Background(), Event{}))
}
