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
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// rateLimiterStore keeps a token bucket per caller. Buckets of callers that have been idle for a while are evicted.
type rateLimiterStore struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	mux      sync.Mutex
}

func (s *rateLimiterStore) Allow(identifier string) (bool, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	var limiter *rate.Limiter
	if existing, ok := s.limiters.Get(identifier); ok {
		limiter = existing.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(s.limit, s.burst)
	}
	// refreshes the expiry
	s.limiters.SetDefault(identifier, limiter)
	return limiter.Allow(), nil
}

// newRateLimiterStore creates a store that allows limitPerInterval calls per interval with the given burst,
// e.g. 120 calls per minute with a burst of 30.
func newRateLimiterStore(interval time.Duration, limitPerInterval rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: cache.New(10*interval, 20*interval),
		limit:    limitPerInterval * rate.Every(interval),
		burst:    burst,
	}
}

// newRateLimiter creates a rate limiter based on the echo middleware RateLimiter, limiting per client IP.
// Only the given paths are limited. Paths are matched against the router path, so they can contain a variable.
func newRateLimiter(protectedPaths map[string][]string, interval time.Duration, limitPerInterval rate.Limit, burst int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		// Returning true means skipping the middleware
		Skipper: func(c echo.Context) bool {
			for _, path := range protectedPaths[c.Request().Method] {
				if c.Path() == path {
					return false
				}
			}
			return true
		},
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return &echo.HTTPError{
				Code:     middleware.ErrExtractorError.Code,
				Message:  middleware.ErrExtractorError.Message,
				Internal: err,
			}
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return &echo.HTTPError{
				Code:     middleware.ErrRateLimitExceeded.Code,
				Message:  middleware.ErrRateLimitExceeded.Message,
				Internal: err,
			}
		},
		Store: newRateLimiterStore(interval, limitPerInterval, burst),
	})
}
