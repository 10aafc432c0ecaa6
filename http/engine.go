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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/http/log"
)

const moduleName = "HTTP"

// rateLimitedPaths are the endpoints that create state or do expensive verification on behalf of anonymous callers.
var rateLimitedPaths = map[string][]string{
	http.MethodPost: {
		"/siop/rp/request",
		"/siop/rp/response",
		"/siop/op/request",
	},
}

// EchoCreator creates the echo server, with the routes of all engines registered.
type EchoCreator func(cfg core.HTTPConfig, strictmode bool) (core.EchoServer, error)

// New returns a new HTTP engine. The callback is called when the HTTP interface shuts down unexpectedly.
func New(serverShutdownCb func(), creator EchoCreator) *Engine {
	return &Engine{
		creator:          creator,
		serverShutdownCb: serverShutdownCb,
		config:           DefaultConfig(),
	}
}

// Engine is the HTTP engine. It runs the echo server on the configured http.address.
type Engine struct {
	server           core.EchoServer
	creator          EchoCreator
	address          string
	serverShutdownCb func()
	config           Config
}

// Router returns the router of the HTTP engine.
func (h *Engine) Router() core.EchoRouter {
	return h.server
}

// Configure creates the echo server and applies the engine's middleware.
func (h *Engine) Configure(serverConfig core.ServerConfig) error {
	switch h.config.Log {
	case LogMetadataLevel, LogMetadataAndBodyLevel:
	default:
		return fmt.Errorf("invalid http.log: %s", h.config.Log)
	}
	if h.config.RateLimit.PerMinute < 0 || h.config.RateLimit.Burst < 0 {
		return errors.New("http.ratelimit values can't be negative")
	}
	client.StrictMode = serverConfig.Strictmode
	server, err := h.creator(serverConfig.HTTP, serverConfig.Strictmode)
	if err != nil {
		return err
	}
	h.server = server
	h.address = serverConfig.HTTP.Address
	log.Logger().Infof("Binding / -> %s", h.address)

	perMinute, burst := h.config.RateLimit.PerMinute, h.config.RateLimit.Burst
	if perMinute == 0 && serverConfig.Strictmode {
		// always enabled in strict mode
		defaults := DefaultConfig().RateLimit
		perMinute, burst = defaults.PerMinute, defaults.Burst
	}
	if perMinute > 0 {
		h.server.Use(newRateLimiter(rateLimitedPaths, time.Minute, rate.Limit(perMinute), burst))
	}
	if h.config.Log == LogMetadataAndBodyLevel {
		h.server.Use(bodyLoggerMiddleware(skipMonitoringEndpoints, log.Logger()))
	}
	return nil
}

func skipMonitoringEndpoints(c echo.Context) bool {
	for _, path := range []string{"/metrics", "/status", "/health"} {
		if strings.HasPrefix(c.Request().URL.Path, path) {
			return true
		}
	}
	return false
}

// Name returns the name of the engine.
func (h *Engine) Name() string {
	return moduleName
}

// Config returns the configuration of the HTTP engine.
func (h *Engine) Config() interface{} {
	return &h.config
}

// Start starts the HTTP server in the background.
func (h *Engine) Start() error {
	go func(server core.EchoServer, address string, cancel func()) {
		if err := server.Start(address); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				log.Logger().
					WithError(err).
					Error("HTTP server stopped due to error")
			}
		}
		if cancel != nil {
			cancel()
		}
	}(h.server, h.address, h.serverShutdownCb)
	return nil
}

// Shutdown shuts down the HTTP server.
func (h *Engine) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Close()
}
