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
	"mime"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// bodyLoggerMiddleware returns middleware that logs body of HTTP requests and their replies.
// Request metadata is logged by the echo server itself (see core).
func bodyLoggerMiddleware(skipper middleware.Skipper, logger *logrus.Entry) echo.MiddlewareFunc {
	return middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(e echo.Context, request []byte, response []byte) {
			requestContentType := e.Request().Header.Get("Content-Type")
			requestBody := "(not loggable: " + requestContentType + ")"
			if isLoggableContentType(requestContentType) {
				requestBody = string(request)
			}

			responseContentType := e.Response().Header().Get("Content-Type")
			responseBody := "(not loggable: " + responseContentType + ")"
			if isLoggableContentType(responseContentType) {
				responseBody = string(response)
			}

			logger.Infof("HTTP request body: %s", requestBody)
			logger.Infof("HTTP response body: %s", responseBody)
		},
		Skipper: skipper,
	})
}

func isLoggableContentType(contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json", "application/problem+json", "application/x-www-form-urlencoded",
		"application/oauth-authz-req+jwt", "application/jwt":
		return true
	}
	return false
}
