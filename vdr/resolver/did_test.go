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
	"time"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDIDResolverRouter_Resolve(t *testing.T) {
	ctx := context.Background()
	doc := newDidDoc()
	t.Run("ok", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		webResolver := NewMockDIDResolver(ctrl)
		webResolver.EXPECT().Resolve(ctx, doc.ID, nil).Return(&doc, &DocumentMetadata{}, nil)
		router := &DIDResolverRouter{}
		router.Register("web", webResolver)

		actual, _, err := router.Resolve(ctx, doc.ID, nil)

		require.NoError(t, err)
		assert.Equal(t, doc.ID, actual.ID)
	})
	t.Run("fallback for unregistered method", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fallback := NewMockDIDResolver(ctrl)
		id := did.MustParseDID("did:example:123")
		fallback.EXPECT().Resolve(ctx, id, nil).Return(&did.Document{ID: id}, &DocumentMetadata{}, nil)
		router := &DIDResolverRouter{Fallback: fallback}

		actual, _, err := router.Resolve(ctx, id, nil)

		require.NoError(t, err)
		assert.Equal(t, id, actual.ID)
	})
	t.Run("error - method not supported", func(t *testing.T) {
		router := &DIDResolverRouter{}

		_, _, err := router.Resolve(ctx, doc.ID, nil)

		assert.ErrorIs(t, err, ErrDIDMethodNotSupported)
	})
	t.Run("error - deactivated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		webResolver := NewMockDIDResolver(ctrl)
		webResolver.EXPECT().Resolve(ctx, doc.ID, gomock.Any()).Return(&doc, &DocumentMetadata{Deactivated: true}, nil).Times(2)
		router := &DIDResolverRouter{}
		router.Register("web", webResolver)

		_, _, err := router.Resolve(ctx, doc.ID, nil)
		assert.ErrorIs(t, err, ErrDeactivated)

		_, _, err = router.Resolve(ctx, doc.ID, &ResolveMetadata{AllowDeactivated: true})
		assert.NoError(t, err)
	})
	t.Run("supported methods", func(t *testing.T) {
		router := &DIDResolverRouter{}
		router.Register("web", StaticDIDResolver{})
		router.Register("key", StaticDIDResolver{})

		assert.ElementsMatch(t, []string{"web", "key"}, router.SupportedMethods())
	})
}

func TestCachingDIDResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	doc := newDidDoc()
	newStore := func(t *testing.T) storage.SessionStore {
		db := storage.NewInMemorySessionDatabase()
		t.Cleanup(db.Close)
		return db.GetStore(time.Minute, "didcache")
	}
	t.Run("second resolution is served from cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		underlying := NewMockDIDResolver(ctrl)
		underlying.EXPECT().Resolve(ctx, doc.ID, nil).Return(&doc, &DocumentMetadata{}, nil).Times(1)
		cachingResolver := NewCachingDIDResolver(underlying, newStore(t))

		_, _, err := cachingResolver.Resolve(ctx, doc.ID, nil)
		require.NoError(t, err)
		actual, _, err := cachingResolver.Resolve(ctx, doc.ID, nil)

		require.NoError(t, err)
		assert.Equal(t, doc.ID.String(), actual.ID.String())
		require.Len(t, actual.VerificationMethod, 1)
		assert.Equal(t, doc.VerificationMethod[0].ID.String(), actual.VerificationMethod[0].ID.String())
	})
	t.Run("cache is skipped when requested", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		underlying := NewMockDIDResolver(ctrl)
		metadata := &ResolveMetadata{NoCache: true}
		underlying.EXPECT().Resolve(ctx, doc.ID, metadata).Return(&doc, &DocumentMetadata{}, nil).Times(2)
		cachingResolver := NewCachingDIDResolver(underlying, newStore(t))

		_, _, _ = cachingResolver.Resolve(ctx, doc.ID, metadata)
		_, _, err := cachingResolver.Resolve(ctx, doc.ID, metadata)

		assert.NoError(t, err)
	})
	t.Run("error - resolution failed", func(t *testing.T) {
		cachingResolver := NewCachingDIDResolver(StaticDIDResolver{}, newStore(t))

		_, _, err := cachingResolver.Resolve(ctx, doc.ID, nil)

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGetDIDFromURL(t *testing.T) {
	t.Run("just it", func(t *testing.T) {
		actual, err := GetDIDFromURL("did:web:example.com")
		assert.NoError(t, err)
		assert.Equal(t, "did:web:example.com", actual.String())
	})
	t.Run("with fragment", func(t *testing.T) {
		actual, err := GetDIDFromURL("did:web:example.com#key-1")
		assert.NoError(t, err)
		assert.Equal(t, "did:web:example.com", actual.String())
	})
	t.Run("invalid DID", func(t *testing.T) {
		_, err := GetDIDFromURL("https://example.com")
		assert.Error(t, err)
	})
}
