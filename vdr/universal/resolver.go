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

package universal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
)

var _ resolver.DIDResolver = (*Resolver)(nil)

// Resolver resolves DIDs of any method through a DIF Universal Resolver instance.
type Resolver struct {
	BaseURL    string
	HttpClient core.HTTPRequestDoer
}

// NewResolver creates a universal resolver client for the given base URL (e.g. https://dev.uniresolver.io).
func NewResolver(baseURL string, httpClient core.HTTPRequestDoer) *Resolver {
	return &Resolver{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HttpClient: httpClient,
	}
}

// resolutionResult is the DID resolution result as returned by the universal resolver.
type resolutionResult struct {
	Document         json.RawMessage `json:"didDocument"`
	DocumentMetadata struct {
		Deactivated bool `json:"deactivated"`
	} `json:"didDocumentMetadata"`
	ResolutionMetadata struct {
		Error       string `json:"error"`
		ContentType string `json:"contentType"`
	} `json:"didResolutionMetadata"`
}

func (r Resolver) Resolve(ctx context.Context, id did.DID, _ *resolver.ResolveMetadata) (*did.Document, *resolver.DocumentMetadata, error) {
	targetURL := r.BaseURL + "/1.0/identifiers/" + url.PathEscape(id.String())
	log.Logger().
		WithField(core.LogFieldDID, id.String()).
		WithField(core.LogFieldURL, targetURL).
		Debug("Resolving DID through universal resolver")
	httpResponse, err := client.DoWithRetry(ctx, r.HttpClient, client.DefaultAttempts, func(ctx context.Context) (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, err
		}
		request.Header.Set("Accept", "application/ld+json;profile=\"https://w3id.org/did-resolution\", application/did+json, application/json")
		return request, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("universal resolver request failed: %w", err)
	}
	defer httpResponse.Body.Close()
	switch httpResponse.StatusCode {
	case http.StatusNotFound:
		return nil, nil, resolver.ErrNotFound
	case http.StatusNotImplemented:
		return nil, nil, resolver.ErrDIDMethodNotSupported
	case http.StatusGone:
		return nil, nil, resolver.ErrDeactivated
	}
	if err = core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger()); err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("universal resolver response read error: %w", err)
	}
	return parseResponse(id, data)
}

// parseResponse accepts both a DID resolution result and a plain DID document.
func parseResponse(id did.DID, data []byte) (*did.Document, *resolver.DocumentMetadata, error) {
	metadata := &resolver.DocumentMetadata{}
	documentData := data
	var result resolutionResult
	if err := json.Unmarshal(data, &result); err == nil && len(result.Document) > 0 && !bytes.Equal(result.Document, []byte("null")) {
		documentData = result.Document
		metadata.Deactivated = result.DocumentMetadata.Deactivated
		metadata.ContentType = result.ResolutionMetadata.ContentType
	} else if err == nil && result.ResolutionMetadata.Error != "" {
		if result.ResolutionMetadata.Error == "notFound" {
			return nil, nil, resolver.ErrNotFound
		}
		return nil, nil, fmt.Errorf("universal resolver error: %s", result.ResolutionMetadata.Error)
	}
	var document did.Document
	if err := document.UnmarshalJSON(documentData); err != nil {
		return nil, nil, fmt.Errorf("universal resolver JSON unmarshal error: %w", err)
	}
	if !document.ID.Equals(id) {
		return nil, nil, fmt.Errorf("universal resolver document ID mismatch: %s != %s", document.ID, id)
	}
	return &document, metadata, nil
}
