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

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_bodyLoggerMiddleware(t *testing.T) {
	call := func(t *testing.T, contentType string, requestBody string, responseBody []byte) *test.Hook {
		e := echo.New()
		logger, hook := test.NewNullLogger()
		e.Use(bodyLoggerMiddleware(func(c echo.Context) bool {
			return false
		}, logger.WithFields(logrus.Fields{})))
		e.POST("/", func(c echo.Context) error {
			return c.Blob(http.StatusOK, contentType, responseBody)
		})
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(requestBody))
		request.Header.Set("Content-Type", contentType)
		e.ServeHTTP(httptest.NewRecorder(), request)
		return hook
	}

	t.Run("it logs", func(t *testing.T) {
		hook := call(t, "application/x-www-form-urlencoded", "state=1", []byte(`state=2`))

		require.Len(t, hook.Entries, 2)
		assert.Equal(t, `HTTP request body: state=1`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: state=2`, hook.AllEntries()[1].Message)
	})
	t.Run("request and response not loggable", func(t *testing.T) {
		hook := call(t, "application/binary", "\x01\x02", []byte{1, 2, 3})

		require.Len(t, hook.Entries, 2)
		assert.Equal(t, `HTTP request body: (not loggable: application/binary)`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: (not loggable: application/binary)`, hook.AllEntries()[1].Message)
	})
}
