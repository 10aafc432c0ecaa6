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

package client

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/storage"
)

func init() {
	httpTransport := http.DefaultTransport.(*http.Transport)
	if httpTransport.TLSClientConfig == nil {
		httpTransport.TLSClientConfig = &tls.Config{}
	}
	httpTransport.TLSClientConfig.MinVersion = tls.VersionTLS12
}

// StrictMode is a flag that can be set to true to enable strict mode for the HTTP client.
var StrictMode bool

// DefaultTransport is the transport used by clients created through New and NewWithCache.
var DefaultTransport = http.DefaultTransport

var _ core.HTTPRequestDoer = (*StrictHTTPClient)(nil)

// New creates a new HTTP client with the given timeout.
func New(timeout time.Duration) *StrictHTTPClient {
	return &StrictHTTPClient{
		client: &http.Client{
			Transport: DefaultTransport,
			Timeout:   timeout,
		},
	}
}

// NewWithCache creates a new HTTP client with the given timeout, which caches GET responses in the given store.
func NewWithCache(timeout time.Duration, store storage.SessionStore) *StrictHTTPClient {
	return &StrictHTTPClient{
		client: &http.Client{
			Transport: NewCachingTransport(DefaultTransport, store),
			Timeout:   timeout,
		},
	}
}

// NewWithTLSConfig creates a new HTTP client with the given timeout and TLS configuration.
// It copies the http.DefaultTransport and sets the TLSClientConfig to the given tls.Config.
// As such, it can't be used in conjunction with the CachingRoundTripper.
func NewWithTLSConfig(timeout time.Duration, tlsConfig *tls.Config) *StrictHTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &StrictHTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// StrictHTTPClient is an HTTP client that refuses plain HTTP in strict mode and identifies itself with a User-Agent.
type StrictHTTPClient struct {
	client *http.Client
}

func (s *StrictHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if StrictMode && req.URL.Scheme != "https" {
		return nil, errors.New("strictmode is enabled, but request is not over HTTPS")
	}
	if req.Header.Get("User-Agent") == "" {
		_ = core.UserAgentRequestEditor(req.Context(), req)
	}
	return s.client.Do(req)
}
