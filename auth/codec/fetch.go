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

package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/client"
)

// ErrReferenceFetch is returned when an object passed by reference could not be fetched.
var ErrReferenceFetch = errors.New("object passed by reference could not be fetched")

// ErrAmbiguousReference is returned when an object is passed both by reference and by value.
var ErrAmbiguousReference = errors.New("object can't be passed by reference and by value at the same time")

// maxResponseSize limits the size of fetched objects.
const maxResponseSize = 1024 * 1024

// Fetcher fetches objects passed by reference.
type Fetcher interface {
	// FetchJSON fetches the JSON document at the given URI and unmarshals it into target.
	FetchJSON(ctx context.Context, uri string, target interface{}) error
	// FetchText fetches the document at the given URI as text, e.g. a request object JWT.
	FetchText(ctx context.Context, uri string) (string, error)
}

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher is a Fetcher that performs HTTP GET requests, retrying on transport errors and 5xx responses.
// Responses are cached when the given client caches (see client.NewWithCache).
type HTTPFetcher struct {
	client   core.HTTPRequestDoer
	attempts uint
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(httpClient core.HTTPRequestDoer) *HTTPFetcher {
	return &HTTPFetcher{client: httpClient, attempts: client.DefaultAttempts}
}

func (f HTTPFetcher) FetchJSON(ctx context.Context, uri string, target interface{}) error {
	data, err := f.get(ctx, uri, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("invalid JSON response from %s: %w", uri, err)
	}
	return nil
}

func (f HTTPFetcher) FetchText(ctx context.Context, uri string) (string, error) {
	data, err := f.get(ctx, uri, "application/oauth-authz-req+jwt, application/jwt, text/plain")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f HTTPFetcher) get(ctx context.Context, uri string, accept string) ([]byte, error) {
	response, err := client.DoWithRetry(ctx, f.client, f.attempts, func(ctx context.Context) (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		request.Header.Set("Accept", accept)
		_ = core.UserAgentRequestEditor(ctx, request)
		return request, nil
	})
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode >= http.StatusBadRequest {
		return nil, core.TestResponseCodeWithLog(http.StatusOK, response, log.Logger())
	}
	return io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
}

// FetchByReferenceOrUseByValue returns the object at referenceURI when given, or value converted to T otherwise.
// Passing both is an error. When T is string the reference is fetched as text, otherwise as JSON.
// It returns nil when neither is given.
func FetchByReferenceOrUseByValue[T any](ctx context.Context, fetcher Fetcher, referenceURI string, value interface{}) (*T, error) {
	if referenceURI != "" && value != nil {
		return nil, fmt.Errorf("%w (uri=%s)", ErrAmbiguousReference, referenceURI)
	}
	var result T
	if referenceURI != "" {
		if fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher configured (uri=%s)", ErrReferenceFetch, referenceURI)
		}
		var err error
		if text, ok := any(&result).(*string); ok {
			*text, err = fetcher.FetchText(ctx, referenceURI)
		} else {
			err = fetcher.FetchJSON(ctx, referenceURI, &result)
		}
		if err != nil {
			log.Logger().WithError(err).WithField(core.LogFieldURL, referenceURI).Warn("Unable to fetch object passed by reference")
			return nil, core.WrapError(ErrReferenceFetch, fmt.Errorf("%w, URL: %s", err, referenceURI))
		}
		return &result, nil
	}
	if value == nil {
		return nil, nil
	}
	if err := oauth.Convert(value, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", oauth.ErrMalformedInput, err)
	}
	return &result, nil
}
