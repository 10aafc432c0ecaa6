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
	"crypto"
	"errors"
	"fmt"
	"strings"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	nutsCrypto "github.com/nuts-foundation/nuts-siop/crypto"
)

// ErrKeyNotFound is returned when a particular key or type of key is not found.
var ErrKeyNotFound = errors.New("key not found in DID document")

// SigningKeyTypes lists the verification relationships that are searched, in order, for keys that sign
// request objects and ID tokens.
var SigningKeyTypes = []RelationType{Authentication, AssertionMethod}

// KeyResolver is the interface for resolving keys.
type KeyResolver interface {
	// ResolveKeyByID looks up a specific key of the given RelationType and returns it as crypto.PublicKey.
	// An ErrKeyNotFound is returned when no key (of the specified type) is found.
	ResolveKeyByID(ctx context.Context, keyID string, relationType RelationType) (crypto.PublicKey, error)
	// ResolveKey looks for a key of the given RelationType for the given DID, and returns its ID and the key itself.
	// If multiple keys are found, the first one is returned.
	// An ErrKeyNotFound is returned when no key (of the specified type) is found.
	ResolveKey(ctx context.Context, id did.DID, relationType RelationType) (ssi.URI, crypto.PublicKey, error)
}

var _ KeyResolver = DIDKeyResolver{}
var _ nutsCrypto.PublicKeyResolver = DIDKeyResolver{}

// DIDKeyResolver implements the KeyResolver interface that uses keys from resolved DIDs.
type DIDKeyResolver struct {
	Resolver DIDResolver
}

func (r DIDKeyResolver) ResolveKeyByID(ctx context.Context, keyID string, relationType RelationType) (crypto.PublicKey, error) {
	holder, err := GetDIDFromURL(keyID)
	if err != nil {
		return nil, fmt.Errorf("invalid key ID (id=%s): %w", keyID, err)
	}
	doc, _, err := r.Resolver.Resolve(ctx, holder, nil)
	if err != nil {
		return nil, err
	}
	relationships, err := resolveRelationships(doc, relationType)
	if err != nil {
		return nil, err
	}
	for _, rel := range relationships {
		if rel.ID.String() == keyID {
			return rel.PublicKey()
		}
	}
	return nil, ErrKeyNotFound
}

func (r DIDKeyResolver) ResolveKey(ctx context.Context, id did.DID, relationType RelationType) (ssi.URI, crypto.PublicKey, error) {
	doc, _, err := r.Resolver.Resolve(ctx, id, nil)
	if err != nil {
		return ssi.URI{}, nil, err
	}
	keys, err := resolveRelationships(doc, relationType)
	if err != nil {
		return ssi.URI{}, nil, err
	}
	if len(keys) == 0 {
		return ssi.URI{}, nil, ErrKeyNotFound
	}
	publicKey, err := keys[0].PublicKey()
	if err != nil {
		return ssi.URI{}, nil, err
	}
	return keys[0].ID.URI(), publicKey, nil
}

// ResolvePublicKey resolves the key that signed a JWT: kid may be an absolute DID URL, a fragment relative to
// signerDID or empty, in which case the first signing key of signerDID is used.
// Keys are searched in the relationships listed by SigningKeyTypes.
func (r DIDKeyResolver) ResolvePublicKey(ctx context.Context, kid string, signerDID string) (crypto.PublicKey, error) {
	if kid == "" {
		id, err := did.ParseDID(signerDID)
		if err != nil {
			return nil, fmt.Errorf("invalid signer DID (did=%s): %w", signerDID, err)
		}
		for _, relationType := range SigningKeyTypes {
			_, publicKey, err := r.ResolveKey(ctx, *id, relationType)
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return publicKey, err
		}
		return nil, ErrKeyNotFound
	}
	keyID := absoluteKeyID(kid, signerDID)
	for _, relationType := range SigningKeyTypes {
		publicKey, err := r.ResolveKeyByID(ctx, keyID, relationType)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		return publicKey, err
	}
	return nil, ErrKeyNotFound
}

// absoluteKeyID makes a key ID relative to a DID (e.g. '#key-1' or 'key-1') absolute.
func absoluteKeyID(kid string, signerDID string) string {
	if strings.HasPrefix(kid, "did:") {
		return kid
	}
	return signerDID + "#" + strings.TrimPrefix(kid, "#")
}

func resolveRelationships(doc *did.Document, relationType RelationType) (relationships did.VerificationRelationships, err error) {
	switch relationType {
	case Authentication:
		return doc.Authentication, nil
	case AssertionMethod:
		return doc.AssertionMethod, nil
	case KeyAgreement:
		return doc.KeyAgreement, nil
	case CapabilityInvocation:
		return doc.CapabilityInvocation, nil
	case CapabilityDelegation:
		return doc.CapabilityDelegation, nil
	default:
		return nil, fmt.Errorf("unable to locate RelationType %v", relationType)
	}
}

// RelationType is the type that contains the different possible relationships between a DID Document and a VerificationMethod
// They are defined in the DID spec: https://www.w3.org/TR/did-core/#verification-relationships
type RelationType uint

const (
	Authentication       RelationType = iota
	AssertionMethod      RelationType = iota
	KeyAgreement         RelationType = iota
	CapabilityInvocation RelationType = iota
	CapabilityDelegation RelationType = iota
)
