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

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ok - index set by same correlation id", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectHSetNX("siop:session:nonce", "42", "c1").SetVal(false)
		mock.ExpectHGet("siop:session:nonce", "42").SetVal("c1")

		err := NewRedisStore(client, "").SetIndex(ctx, IndexNonce, 42, "c1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("error - index conflict", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectHSetNX("test:state", "-7", "c2").SetVal(false)
		mock.ExpectHGet("test:state", "-7").SetVal("c1")

		err := NewRedisStore(client, "test").SetIndex(ctx, IndexState, -7, "c2")

		assert.ErrorIs(t, err, ErrCorrelationConflict)
	})
	t.Run("not found", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectHGet("siop:session:request", "c1").RedisNil()

		record, err := NewRedisStore(client, "").GetRecord(ctx, KindRequest, "c1")

		require.NoError(t, err)
		assert.Nil(t, record)
	})
	t.Run("error - redis failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectHVals("siop:session:response").SetErr(errors.New("connection refused"))

		_, err := NewRedisStore(client, "").Records(ctx, KindResponse)

		assert.EqualError(t, err, "connection refused")
	})
	t.Run("error - invalid record", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectHGet("siop:session:request", "c1").SetVal("not JSON")

		_, err := NewRedisStore(client, "").GetRecord(ctx, KindRequest, "c1")

		assert.Error(t, err)
	})
}
