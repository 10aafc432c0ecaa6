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

package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

type testResolver struct{}

func (t testResolver) ResolveStatusCode(err error) int {
	return ResolveStatusCode(err, map[error]int{errTest: http.StatusConflict})
}

func TestCreateHTTPErrorHandler(t *testing.T) {
	handle := func(err error, resolver ErrorStatusCodeResolver) (*httptest.ResponseRecorder, map[string]interface{}) {
		e := echo.New()
		rec := httptest.NewRecorder()
		ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		ctx.Set(OperationIDContextKey, "GetRequestObject")
		if resolver != nil {
			ctx.Set(StatusCodeResolverContextKey, resolver)
		}
		CreateHTTPErrorHandler()(err, ctx)
		var body map[string]interface{}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec, body
	}

	t.Run("predefined status code", func(t *testing.T) {
		rec, body := handle(NotFoundError("request %s not found", "123"), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "GetRequestObject failed", body["title"])
		assert.Equal(t, "request 123 not found", body["detail"])
	})
	t.Run("echo HTTP error", func(t *testing.T) {
		rec, _ := handle(echo.NewHTTPError(http.StatusBadRequest, "bad"), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("resolved by context resolver", func(t *testing.T) {
		rec, _ := handle(errTest, testResolver{})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
	t.Run("unmapped error", func(t *testing.T) {
		rec, body := handle(errors.New("boom"), testResolver{})

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "boom", body["detail"])
	})
}

func TestInvalidInputError(t *testing.T) {
	cause := errors.New("cause")
	err := InvalidInputError("invalid: %w", cause)

	assert.EqualError(t, err, "invalid: cause")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, err.(HTTPStatusCodeError).StatusCode())
}
