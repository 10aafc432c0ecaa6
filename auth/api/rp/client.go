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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/client"
)

// HTTPClient calls the relying party API of a (remote) server.
type HTTPClient struct {
	Address string
	Timeout time.Duration
	client  core.HTTPRequestDoer
}

// NewHTTPClient creates an HTTPClient for the server at the given address.
func NewHTTPClient(address string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{Address: address, Timeout: timeout, client: client.New(timeout)}
}

// CreateRequest creates an authorization request.
func (h HTTPClient) CreateRequest(body CreateRequest) (*CreateRequestResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var result CreateRequestResponse
	if err = h.do(http.MethodPost, requestPath, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSession returns the request and response state of the given correlation ID.
func (h HTTPClient) GetSession(correlationID string) (*SessionState, error) {
	var result SessionState
	if err := h.do(http.MethodGet, "/siop/rp/session/"+url.PathEscape(correlationID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (h HTTPClient) do(method string, path string, body []byte, target interface{}) error {
	ctx, cancel := h.withTimeout()
	defer cancel()
	endpoint, err := url.JoinPath(h.Address, path)
	if err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	httpRequest.Header.Set("Accept", "application/json")
	response, err := h.client.Do(httpRequest)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if err = core.TestResponseCode(http.StatusOK, response); err != nil {
		return err
	}
	return json.NewDecoder(response.Body).Decode(target)
}

func (h HTTPClient) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.Timeout)
}
