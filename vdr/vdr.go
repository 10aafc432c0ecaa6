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

package vdr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/vdr/didjwk"
	"github.com/nuts-foundation/nuts-siop/vdr/didkey"
	"github.com/nuts-foundation/nuts-siop/vdr/didweb"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
	"github.com/nuts-foundation/nuts-siop/vdr/universal"
)

var _ core.Named = (*Module)(nil)
var _ core.Configurable = (*Module)(nil)
var _ core.Injectable = (*Module)(nil)

// Module implements the Verifiable Data Registry: it resolves DID documents and the keys they contain,
// and verifies the domain linkage of DIDs.
type Module struct {
	config          Config
	storageInstance *storage.Engine
	router          *resolver.DIDResolverRouter
	didResolver     resolver.DIDResolver
	keyResolver     resolver.DIDKeyResolver
	jwtVerifier     crypto.JWTVerifier
	linkedDomains   *linkeddomains.Validator
}

// NewVDR creates a new Module. Resolved DID documents are cached in the session database of the given storage engine.
func NewVDR(storageInstance *storage.Engine) *Module {
	return &Module{
		config:          DefaultConfig(),
		storageInstance: storageInstance,
		router:          &resolver.DIDResolverRouter{},
	}
}

func (r *Module) Name() string {
	return ModuleName
}

func (r *Module) Config() interface{} {
	return &r.config
}

// Configure registers the supported DID methods: did:web, did:key and did:jwk natively,
// other methods through the universal resolver when configured.
func (r *Module) Configure(_ core.ServerConfig) error {
	httpClient := client.New(r.config.Timeout)
	r.router.Register(didweb.MethodName, didweb.NewResolver(httpClient))
	r.router.Register(didkey.MethodName, didkey.NewResolver())
	r.router.Register(didjwk.MethodName, didjwk.NewResolver())
	if r.config.UniversalResolver != "" {
		parsed, err := url.Parse(r.config.UniversalResolver)
		if err != nil || parsed.Host == "" {
			return errors.New("invalid vdr.universalresolver: must be an absolute URL")
		}
		r.router.Fallback = universal.NewResolver(r.config.UniversalResolver, httpClient)
		log.Logger().Infof("Resolving unsupported DID methods through universal resolver (url=%s)", r.config.UniversalResolver)
	}
	r.didResolver = r.router
	if r.config.CacheTTL > 0 && r.storageInstance != nil && r.storageInstance.GetSessionDatabase() != nil {
		store := r.storageInstance.GetSessionDatabase().GetStore(r.config.CacheTTL, "vdr", "documents")
		r.didResolver = resolver.NewCachingDIDResolver(r.router, store)
	}
	r.keyResolver = resolver.DIDKeyResolver{Resolver: r.didResolver}
	r.jwtVerifier = crypto.NewDIDJWTVerifier(r.keyResolver)
	r.linkedDomains = linkeddomains.NewValidator(r.didResolver, linkeddomains.NewDIFVerifier(httpClient, r.jwtVerifier))
	return nil
}

// Resolve resolves any DID document which DID method is supported.
func (r *Module) Resolve(ctx context.Context, id did.DID, metadata *resolver.ResolveMetadata) (*did.Document, *resolver.DocumentMetadata, error) {
	if r.didResolver == nil {
		return nil, nil, fmt.Errorf("%s engine is not configured", ModuleName)
	}
	return r.didResolver.Resolve(ctx, id, metadata)
}

// Resolver returns the (caching) DID resolver.
func (r *Module) Resolver() resolver.DIDResolver {
	return r.didResolver
}

// KeyResolver returns the resolver for keys in DID documents.
func (r *Module) KeyResolver() resolver.DIDKeyResolver {
	return r.keyResolver
}

// JWTVerifier returns a JWT verifier that resolves signing keys from DID documents.
func (r *Module) JWTVerifier() crypto.JWTVerifier {
	return r.jwtVerifier
}

// LinkedDomains returns the domain linkage validator.
func (r *Module) LinkedDomains() *linkeddomains.Validator {
	return r.linkedDomains
}

// SupportedMethods returns the DID methods that are resolved natively.
func (r *Module) SupportedMethods() []string {
	return r.router.SupportedMethods()
}

// SubjectSyntaxTypes returns the subject_syntax_types_supported client metadata value for the natively resolved
// DID methods, e.g. did:web:.
func (r *Module) SubjectSyntaxTypes() []string {
	var result []string
	for _, method := range r.SupportedMethods() {
		result = append(result, "did:"+method+":")
	}
	sort.Strings(result)
	return result
}
