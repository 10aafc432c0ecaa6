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
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nuts-foundation/nuts-siop/http/log"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/pquerna/cachecontrol"
)

// MaxCacheTime is the maximum time responses are cached.
// Even if the server responds with a longer cache time, responses are never cached longer than MaxCacheTime.
// Stores passed to NewCachingTransport should have a TTL of at least MaxCacheTime.
const MaxCacheTime = time.Hour

// maxEntryBytes is the maximum size of a single cached response body.
const maxEntryBytes = 1024 * 1024

var _ http.RoundTripper = &CachingRoundTripper{}

// NewCachingTransport creates a new CachingRoundTripper with the given underlying transport, storing responses in the given store.
func NewCachingTransport(underlyingTransport http.RoundTripper, store storage.SessionStore) *CachingRoundTripper {
	return &CachingRoundTripper{
		store:            store,
		wrappedTransport: underlyingTransport,
	}
}

// CachingRoundTripper is a simple HTTP client cache for HTTP responses.
// It only caches GET requests (since for POST request caching, request bodies need to be cached as well),
// and only if the response is cacheable according to RFC 7234.
// It only works on expiration time and does not respect ETags headers.
// Entries live in a storage.SessionStore, so the cache can be shared between instances when backed by Redis or memcached.
type CachingRoundTripper struct {
	store            storage.SessionStore
	wrappedTransport http.RoundTripper
	// now is used to determine entry expiry, replaceable in tests.
	now func() time.Time
}

type cacheEntry struct {
	ResponseData    []byte      `json:"data"`
	ResponseStatus  int         `json:"status"`
	ResponseHeaders http.Header `json:"headers"`
	ExpirationTime  time.Time   `json:"expires"`
}

func (r *CachingRoundTripper) RoundTrip(httpRequest *http.Request) (*http.Response, error) {
	if httpRequest.Method == http.MethodGet {
		if response := r.get(httpRequest); response != nil {
			return response, nil
		}
	}
	httpResponse, err := r.wrappedTransport.RoundTrip(httpRequest)
	if err != nil {
		return nil, err
	}
	err = r.cacheResponse(httpRequest, httpResponse)
	if err != nil {
		return nil, err
	}
	return httpResponse, nil
}

func (r *CachingRoundTripper) get(httpRequest *http.Request) *http.Response {
	key := cacheKey(httpRequest)
	var entry cacheEntry
	if err := r.store.Get(key, &entry); err != nil {
		return nil
	}
	if entry.ExpirationTime.Before(r.timeNow()) {
		_ = r.store.Delete(key)
		return nil
	}
	return &http.Response{
		StatusCode: entry.ResponseStatus,
		Header:     entry.ResponseHeaders,
		Body:       io.NopCloser(bytes.NewReader(entry.ResponseData)),
		Request:    httpRequest,
	}
}

// cacheResponse caches the response if it's cacheable.
func (r *CachingRoundTripper) cacheResponse(httpRequest *http.Request, httpResponse *http.Response) error {
	if httpRequest.Method != http.MethodGet {
		return nil
	}
	reasons, expirationTime, err := cachecontrol.CachableResponse(httpRequest, httpResponse, cachecontrol.Options{PrivateCache: false})
	if err != nil {
		log.Logger().WithError(err).Infof("error while checking cacheability of response (url=%s), not caching", httpRequest.URL.String())
		return nil
	}
	// Cap the cache time to limit staleness.
	maxExpirationTime := r.timeNow().Add(MaxCacheTime)
	if expirationTime.After(maxExpirationTime) {
		expirationTime = maxExpirationTime
	}
	if len(reasons) > 0 || expirationTime.IsZero() {
		log.Logger().Debugf("response (url=%s) is not cacheable: %v", httpRequest.URL.String(), reasons)
		return nil
	}
	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("error while reading response body for caching: %w", err)
	}
	httpResponse.Body = io.NopCloser(bytes.NewReader(responseBytes))
	if len(responseBytes) > maxEntryBytes {
		return nil
	}
	err = r.store.Put(cacheKey(httpRequest), cacheEntry{
		ResponseData:    responseBytes,
		ResponseStatus:  httpResponse.StatusCode,
		ResponseHeaders: httpResponse.Header,
		ExpirationTime:  expirationTime,
	})
	if err != nil {
		log.Logger().WithError(err).Warnf("unable to cache response (url=%s)", httpRequest.URL.String())
	}
	return nil
}

func (r *CachingRoundTripper) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func cacheKey(httpRequest *http.Request) string {
	return httpRequest.Method + " " + httpRequest.URL.String()
}
