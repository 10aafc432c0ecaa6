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

package rp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_CreateRequest(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ctx := newTestContext(t, true)
		server := httptest.NewServer(ctx.server)
		defer server.Close()
		client := NewHTTPClient(server.URL, time.Second)

		result, err := client.CreateRequest(CreateRequest{State: "state"})

		require.NoError(t, err)
		assert.Equal(t, "state", result.State)
		state, err := client.GetSession(result.CorrelationID)
		require.NoError(t, err)
		require.NotNil(t, state.Request)
		assert.Equal(t, session.StatusCreated, state.Request.Status)
		assert.Nil(t, state.Response)
	})
	t.Run("error - server returns error", func(t *testing.T) {
		ctx := newTestContext(t, false)
		server := httptest.NewServer(ctx.server)
		defer server.Close()
		client := NewHTTPClient(server.URL, time.Second)

		_, err := client.CreateRequest(CreateRequest{})

		var httpErr core.HttpError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	})
}
