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

package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
)

// DIDResolver is the interface for DID resolvers: the process of getting the backing document of a DID.
type DIDResolver interface {
	// Resolve returns a DID Document for the provided DID.
	// It returns ErrNotFound if there is no corresponding DID document.
	// It returns ErrDeactivated if the DID Document has been deactivated and metadata is unset or metadata.AllowDeactivated is false.
	Resolve(ctx context.Context, id did.DID, metadata *ResolveMetadata) (*did.Document, *DocumentMetadata, error)
}

// ErrDIDMethodNotSupported is returned when a DID method is not supported by the DID resolver
var ErrDIDMethodNotSupported = errors.New("DID method not supported")

// ErrNotFound The DID resolver was unable to find the DID document resulting from this resolution request.
var ErrNotFound = errors.New("unable to find the DID document")

// ErrDeactivated signals rejection due to document deactivation.
var ErrDeactivated = errors.New("the DID document has been deactivated")

// DocumentMetadata holds the metadata of a resolved DID document
type DocumentMetadata struct {
	Created *time.Time `json:"created,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`
	// Deactivated indicates if the document is deactivated
	Deactivated bool `json:"deactivated"`
	// ContentType is the media type of the resolved representation, if known.
	ContentType string `json:"contentType,omitempty"`
}

// ResolveMetadata contains metadata for the resolver.
type ResolveMetadata struct {
	// Allow DIDs which are deactivated
	AllowDeactivated bool
	// NoCache skips cached documents
	NoCache bool
}

func checkDeactivated(documentMetadata *DocumentMetadata, metadata *ResolveMetadata) error {
	if documentMetadata != nil && documentMetadata.Deactivated && (metadata == nil || !metadata.AllowDeactivated) {
		return ErrDeactivated
	}
	return nil
}

var _ DIDResolver = &DIDResolverRouter{}

// DIDResolverRouter is a DID resolver that can route to different DID resolvers based on the DID method.
// DIDs of methods that are not registered are resolved by Fallback (e.g. a universal resolver), if set.
type DIDResolverRouter struct {
	Fallback  DIDResolver
	resolvers sync.Map
}

// Resolve looks up the right resolver for the given DID and delegates the resolution to it.
// If no resolver is registered for the given DID method and there's no fallback, ErrDIDMethodNotSupported is returned.
func (r *DIDResolverRouter) Resolve(ctx context.Context, id did.DID, metadata *ResolveMetadata) (*did.Document, *DocumentMetadata, error) {
	var didResolver DIDResolver
	if registered, ok := r.resolvers.Load(id.Method); ok {
		didResolver = registered.(DIDResolver)
	} else if r.Fallback != nil {
		didResolver = r.Fallback
	} else {
		return nil, nil, ErrDIDMethodNotSupported
	}
	document, documentMetadata, err := didResolver.Resolve(ctx, id, metadata)
	if err != nil {
		return nil, nil, err
	}
	if err = checkDeactivated(documentMetadata, metadata); err != nil {
		return nil, nil, err
	}
	return document, documentMetadata, nil
}

// Register registers a DID resolver for the given DID method.
func (r *DIDResolverRouter) Register(method string, resolver DIDResolver) {
	r.resolvers.Store(method, resolver)
}

// SupportedMethods returns the DID methods that have a registered resolver.
func (r *DIDResolverRouter) SupportedMethods() []string {
	var result []string
	r.resolvers.Range(func(key, _ any) bool {
		result = append(result, key.(string))
		return true
	})
	return result
}

var _ DIDResolver = &CachingDIDResolver{}

// cachedDocument is the form in which resolved DID documents are kept in the session store.
type cachedDocument struct {
	Document did.Document    `json:"document"`
	Metadata DocumentMetadata `json:"metadata"`
}

// CachingDIDResolver caches the DID documents resolved by the underlying resolver in a storage.SessionStore.
type CachingDIDResolver struct {
	Resolver DIDResolver
	Store    storage.SessionStore
}

// NewCachingDIDResolver creates a DIDResolver that caches documents for the TTL of the given store.
func NewCachingDIDResolver(resolver DIDResolver, store storage.SessionStore) *CachingDIDResolver {
	return &CachingDIDResolver{Resolver: resolver, Store: store}
}

func (c CachingDIDResolver) Resolve(ctx context.Context, id did.DID, metadata *ResolveMetadata) (*did.Document, *DocumentMetadata, error) {
	key := id.String()
	if metadata == nil || !metadata.NoCache {
		var cached cachedDocument
		err := c.Store.Get(key, &cached)
		if err == nil {
			if err = checkDeactivated(&cached.Metadata, metadata); err != nil {
				return nil, nil, err
			}
			return &cached.Document, &cached.Metadata, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Logger().
				WithError(err).
				WithField(core.LogFieldDID, key).
				Warn("Unable to read DID document from cache")
		}
	}
	document, documentMetadata, err := c.Resolver.Resolve(ctx, id, metadata)
	if err != nil {
		return nil, nil, err
	}
	entry := cachedDocument{Document: *document}
	if documentMetadata != nil {
		entry.Metadata = *documentMetadata
	}
	if err = c.Store.Put(key, entry); err != nil {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldDID, key).
			Warn("Unable to cache DID document")
	}
	return document, documentMetadata, nil
}

// GetDIDFromURL returns the DID from the given URL, stripping any query parameters, path segments and fragments.
func GetDIDFromURL(didURL string) (did.DID, error) {
	parsed, err := did.ParseDIDURL(didURL)
	if err != nil {
		return did.DID{}, err
	}
	return parsed.DID, nil
}
