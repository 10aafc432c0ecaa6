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

package didweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
)

// MethodName is the name of this DID method.
const MethodName = "web"

var _ resolver.DIDResolver = (*Resolver)(nil)

// Resolver is a DID resolver for the did:web method.
type Resolver struct {
	HttpClient core.HTTPRequestDoer
}

// NewResolver creates a new did:web Resolver that uses the given HTTP client.
func NewResolver(httpClient core.HTTPRequestDoer) *Resolver {
	return &Resolver{
		HttpClient: httpClient,
	}
}

// URL returns the location of the DID document of the given did:web DID.
func URL(id did.DID) (*url.URL, error) {
	if id.Method != MethodName {
		return nil, errors.New("DID is not did:web")
	}
	var baseID = id.ID
	var path string
	subpathIdx := strings.Index(id.ID, ":")
	if subpathIdx == -1 {
		path = "/.well-known/did.json"
	} else {
		// subpaths are encoded as / -> :
		baseID = id.ID[:subpathIdx]
		path = id.ID[subpathIdx:]
		path = strings.ReplaceAll(path, ":", "/") + "/did.json"
	}
	unescapedID, err := url.PathUnescape(baseID)
	if err != nil {
		return nil, fmt.Errorf("invalid did:web: %w", err)
	}
	return url.Parse("https://" + unescapedID + path)
}

// Resolve implements the DIDResolver interface.
func (w Resolver) Resolve(ctx context.Context, id did.DID, _ *resolver.ResolveMetadata) (*did.Document, *resolver.DocumentMetadata, error) {
	targetURL, err := URL(id)
	if err != nil {
		return nil, nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	request.Header.Set("Accept", "application/did+json, application/json")
	log.Logger().
		WithField(core.LogFieldDID, id.String()).
		WithField(core.LogFieldURL, targetURL.String()).
		Debug("Resolving did:web")
	httpResponse, err := w.HttpClient.Do(request)
	if err != nil {
		return nil, nil, fmt.Errorf("did:web HTTP error: %w", err)
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode == http.StatusNotFound {
		return nil, nil, resolver.ErrNotFound
	}
	if !(httpResponse.StatusCode >= 200 && httpResponse.StatusCode < 300) {
		return nil, nil, fmt.Errorf("did:web non-ok HTTP status: %s", httpResponse.Status)
	}

	ct, _, err := mime.ParseMediaType(httpResponse.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, fmt.Errorf("did:web invalid content-type: %w", err)
	}
	switch ct {
	case "application/did+ld+json":
		// no JSON-LD processing
		fallthrough
	case "application/did+json":
		fallthrough
	case "application/json":
		// This is OK
	default:
		return nil, nil, fmt.Errorf("did:web unsupported content-type: %s", ct)
	}

	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("did:web HTTP response read error: %w", err)
	}
	var document did.Document
	err = document.UnmarshalJSON(data)
	if err != nil {
		return nil, nil, fmt.Errorf("did:web JSON unmarshal error: %w", err)
	}

	if !document.ID.Equals(id) {
		return nil, nil, fmt.Errorf("did:web document ID mismatch: %s != %s", document.ID, id)
	}

	return &document, &resolver.DocumentMetadata{ContentType: ct}, nil
}
