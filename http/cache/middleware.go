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

package cache

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const noStore = -1

// Middleware sets the Cache-Control header (no-store or max-age) for the given route paths.
// Use MaxAge or NoStore to create a new instance.
type Middleware struct {
	Skipper middleware.Skipper
	maxAge  time.Duration
}

func (m Middleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.Skipper(c) {
			if m.maxAge == noStore {
				c.Response().Header().Set("Cache-Control", "no-store")
				// Pragma is deprecated (HTTP/1.0) but it's specified by OAuth2 RFC6749
				c.Response().Header().Set("Pragma", "no-cache")
			} else if m.maxAge > 0 {
				c.Response().Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(m.maxAge.Seconds())))
			}
		}
		return next(c)
	}
}

// MaxAge creates a middleware that lets clients cache responses of the given route paths for maxAge,
// e.g. presentation definitions that are referenced through presentation_definition_uri.
func MaxAge(maxAge time.Duration, routePaths ...string) Middleware {
	return Middleware{
		Skipper: matchRoutePathSkipper(routePaths),
		maxAge:  maxAge,
	}
}

// NoStore creates a middleware that forbids caching of responses of the given route paths,
// e.g. request objects and anything else that contains a nonce.
func NoStore(routePaths ...string) Middleware {
	return Middleware{
		Skipper: matchRoutePathSkipper(routePaths),
		maxAge:  noStore,
	}
}

func matchRoutePathSkipper(routePaths []string) func(c echo.Context) bool {
	return func(c echo.Context) bool {
		for _, curr := range routePaths {
			if c.Path() == curr {
				return false
			}
		}
		return true
	}
}
