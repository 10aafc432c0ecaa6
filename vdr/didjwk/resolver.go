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

package didjwk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
)

// MethodName is the name of this DID method.
const MethodName = "jwk"

var _ resolver.DIDResolver = (*Resolver)(nil)

// Resolver is a DID resolver for the did:jwk method.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve implements the DIDResolver interface.
func (w Resolver) Resolve(_ context.Context, id did.DID, _ *resolver.ResolveMetadata) (*did.Document, *resolver.DocumentMetadata, error) {
	if id.Method != MethodName {
		return nil, nil, fmt.Errorf("unsupported DID method: %s", id.Method)
	}
	key, err := Parse(id)
	if err != nil {
		return nil, nil, err
	}
	publicRawKey, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get public key from JWK: %w", err)
	}

	// See https://www.w3.org/TR/did-core/#verification-methods
	keyID := did.DIDURL{DID: id, Fragment: "0"}
	verificationMethod, err := did.NewVerificationMethod(keyID, ssi.JsonWebKey2020, id, publicRawKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create verification method: %w", err)
	}
	document := did.Document{
		Context: []interface{}{did.DIDContextV1URI()},
		ID:      id,
	}
	document.AddAssertionMethod(verificationMethod)
	document.AddAuthenticationMethod(verificationMethod)
	return &document, &resolver.DocumentMetadata{}, nil
}

// Parse decodes the JWK of a did:jwk. DIDs carrying a private key are rejected.
func Parse(id did.DID) (jwk.Key, error) {
	encodedJWK, err := base64.RawURLEncoding.DecodeString(id.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 (%v): %w", id.ID, err)
	}
	key, err := jwk.ParseKey(encodedJWK)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}
	switch key.(type) {
	case jwk.ECDSAPrivateKey, jwk.RSAPrivateKey, jwk.OKPPrivateKey:
		return nil, fmt.Errorf("private keys are forbidden in DID JWK: %s", key.KeyType())
	}
	return key, nil
}

// New creates a did:jwk DID for the public part of the given key.
func New(key jwk.Key) (*did.DID, error) {
	publicKey, err := key.PublicKey()
	if err != nil {
		return nil, err
	}
	data, err := jsonWithoutKeyID(publicKey)
	if err != nil {
		return nil, err
	}
	return did.ParseDID("did:jwk:" + base64.RawURLEncoding.EncodeToString(data))
}

func jsonWithoutKeyID(key jwk.Key) ([]byte, error) {
	clone, err := key.Clone()
	if err != nil {
		return nil, err
	}
	_ = clone.Remove(jwk.KeyIDKey)
	return json.Marshal(clone)
}
