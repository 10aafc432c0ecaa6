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

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/crypto"
)

// NewTestDocument creates a DID document for the DID of the given local signer, listing its key for
// authentication and assertion. To be used in tests.
func NewTestDocument(signer *crypto.Signer) did.Document {
	id := did.MustParseDID(signer.DID())
	document := did.Document{
		Context: []interface{}{did.DIDContextV1URI()},
		ID:      id,
	}
	var publicKey interface{}
	pub, err := signer.Key().PublicKey()
	if err != nil {
		panic(err)
	}
	if err = pub.Raw(&publicKey); err != nil {
		panic(err)
	}
	vm, err := did.NewVerificationMethod(did.MustParseDIDURL(signer.KID()), ssi.JsonWebKey2020, id, publicKey)
	if err != nil {
		panic(err)
	}
	document.AddAuthenticationMethod(vm)
	document.AddAssertionMethod(vm)
	return document
}

// StaticDIDResolver resolves DID documents from a map, keyed by DID. To be used in tests.
type StaticDIDResolver map[string]*did.Document

// Add adds the given document.
func (s StaticDIDResolver) Add(document did.Document) StaticDIDResolver {
	s[document.ID.String()] = &document
	return s
}

func (s StaticDIDResolver) Resolve(_ context.Context, id did.DID, _ *ResolveMetadata) (*did.Document, *DocumentMetadata, error) {
	document, ok := s[id.String()]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return document, &DocumentMetadata{}, nil
}
