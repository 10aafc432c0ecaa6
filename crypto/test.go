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

package crypto

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// NewTestKey generates a P-256 private key with the given key ID, to be used in tests.
func NewTestKey(kid string) jwk.Key {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		panic(err)
	}
	if kid != "" {
		_ = key.Set(jwk.KeyIDKey, kid)
	}
	return key
}

// NewTestSigner creates a local signer with a freshly generated key for the given DID, to be used in tests.
// The key ID is the DID with fragment "#0".
func NewTestSigner(did string) *Signer {
	kid := did + "#0"
	signer, err := NewLocalSigner(NewTestKey(kid), did, kid)
	if err != nil {
		panic(err)
	}
	return signer
}

// StaticKeyResolver is a PublicKeyResolver that resolves keys from a map of key ID to public key, to be used in tests.
// Keys are looked up by their absolute key ID.
type StaticKeyResolver map[string]crypto.PublicKey

// AddSigner adds the public key of the given local signer.
func (s StaticKeyResolver) AddSigner(signer *Signer) StaticKeyResolver {
	var publicKey interface{}
	pub, _ := signer.Key().PublicKey()
	_ = pub.Raw(&publicKey)
	s[signer.KID()] = publicKey
	return s
}

func (s StaticKeyResolver) ResolvePublicKey(_ context.Context, kid string, signerDID string) (crypto.PublicKey, error) {
	if strings.HasPrefix(kid, "#") {
		kid = signerDID + kid
	}
	if kid == "" {
		for id, key := range s {
			if strings.HasPrefix(id, signerDID+"#") {
				return key, nil
			}
		}
	}
	if key, ok := s[kid]; ok {
		return key, nil
	}
	return nil, errors.New("key not found")
}
