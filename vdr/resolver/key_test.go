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
	"testing"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testDID = "did:web:example.com"

func newDidDoc() did.Document {
	return NewTestDocument(crypto.NewTestSigner(testDID))
}

func TestKeyResolver_ResolveKey(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	resolver := NewMockDIDResolver(ctrl)
	keyResolver := DIDKeyResolver{Resolver: resolver}

	doc := newDidDoc()
	resolver.EXPECT().Resolve(ctx, doc.ID, gomock.Any()).AnyTimes().Return(&doc, nil, nil)

	t.Run("ok - it finds the key", func(t *testing.T) {
		keyId, key, err := keyResolver.ResolveKey(ctx, doc.ID, AssertionMethod)
		require.NoError(t, err)
		assert.Equal(t, doc.VerificationMethod[0].ID.URI(), keyId)
		assert.NotNil(t, key)
	})

	t.Run("error - document not found", func(t *testing.T) {
		unknownDID := did.MustParseDID("did:example:123")
		resolver.EXPECT().Resolve(ctx, unknownDID, gomock.Any()).Return(nil, nil, ErrNotFound)
		keyId, key, err := keyResolver.ResolveKey(ctx, unknownDID, AssertionMethod)
		assert.EqualError(t, err, "unable to find the DID document")
		assert.Empty(t, keyId)
		assert.Nil(t, key)
	})

	t.Run("error - key not found", func(t *testing.T) {
		keyId, key, err := keyResolver.ResolveKey(ctx, doc.ID, CapabilityDelegation)
		assert.EqualError(t, err, "key not found in DID document")
		assert.Empty(t, keyId)
		assert.Nil(t, key)
	})

	t.Run("error - unknown relationship type", func(t *testing.T) {
		keyId, key, err := keyResolver.ResolveKey(ctx, doc.ID, 1000)
		assert.EqualError(t, err, "unable to locate RelationType 1000")
		assert.Empty(t, keyId)
		assert.Nil(t, key)
	})
}

func TestKeyResolver_ResolveKeyByID(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	resolver := NewMockDIDResolver(ctrl)
	keyResolver := DIDKeyResolver{Resolver: resolver}
	doc := newDidDoc()
	resolver.EXPECT().Resolve(ctx, doc.ID, gomock.Any()).AnyTimes().Return(&doc, nil, nil)
	keyID := doc.VerificationMethod[0].ID

	t.Run("ok - it finds the key", func(t *testing.T) {
		key, err := keyResolver.ResolveKeyByID(ctx, keyID.String(), AssertionMethod)
		assert.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("error - invalid key ID", func(t *testing.T) {
		key, err := keyResolver.ResolveKeyByID(ctx, "abcdef", AssertionMethod)
		assert.ErrorContains(t, err, "invalid key ID (id=abcdef)")
		assert.Nil(t, key)
	})

	t.Run("error - document not found", func(t *testing.T) {
		unknownDID := did.MustParseDID("did:example:123")
		resolver.EXPECT().Resolve(ctx, unknownDID, gomock.Any()).Return(nil, nil, ErrNotFound)
		key, err := keyResolver.ResolveKeyByID(ctx, unknownDID.String()+"#456", AssertionMethod)
		assert.EqualError(t, err, "unable to find the DID document")
		assert.Nil(t, key)
	})

	t.Run("error - key not found", func(t *testing.T) {
		key, err := keyResolver.ResolveKeyByID(ctx, doc.ID.String()+"#123", AssertionMethod)
		assert.EqualError(t, err, "key not found in DID document")
		assert.Nil(t, key)
	})

	t.Run("error - unknown relationship type", func(t *testing.T) {
		key, err := keyResolver.ResolveKeyByID(ctx, keyID.String(), 1000)
		assert.EqualError(t, err, "unable to locate RelationType 1000")
		assert.Nil(t, key)
	})
}

func TestKeyResolver_ResolvePublicKey(t *testing.T) {
	ctx := context.Background()
	doc := newDidDoc()
	keyResolver := DIDKeyResolver{Resolver: StaticDIDResolver{}.Add(doc)}

	t.Run("absolute key ID", func(t *testing.T) {
		key, err := keyResolver.ResolvePublicKey(ctx, testDID+"#0", testDID)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})
	t.Run("relative key ID", func(t *testing.T) {
		key, err := keyResolver.ResolvePublicKey(ctx, "#0", testDID)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})
	t.Run("key ID without '#'", func(t *testing.T) {
		key, err := keyResolver.ResolvePublicKey(ctx, "0", testDID)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})
	t.Run("no key ID, first signing key is used", func(t *testing.T) {
		key, err := keyResolver.ResolvePublicKey(ctx, "", testDID)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})
	t.Run("error - unknown key", func(t *testing.T) {
		key, err := keyResolver.ResolvePublicKey(ctx, "#other", testDID)
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Nil(t, key)
	})
	t.Run("error - no signing keys", func(t *testing.T) {
		empty := did.Document{ID: did.MustParseDID("did:web:empty.example.com")}
		keyResolver := DIDKeyResolver{Resolver: StaticDIDResolver{}.Add(empty)}
		key, err := keyResolver.ResolvePublicKey(ctx, "", "did:web:empty.example.com")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Nil(t, key)
	})
	t.Run("error - invalid signer DID", func(t *testing.T) {
		_, err := keyResolver.ResolvePublicKey(ctx, "", "not a DID")
		assert.ErrorContains(t, err, "invalid signer DID")
	})
}
