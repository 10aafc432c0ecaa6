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

package pex

import (
	"context"
	"testing"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/nuts-siop/crypto"
	vcrTest "github.com/nuts-foundation/nuts-siop/vcr/test"
	"github.com/stretchr/testify/assert"
)

func TestNewJWTPresentationVerifier(t *testing.T) {
	ctx := context.Background()
	holder := crypto.NewTestSigner("did:example:holder")
	issuer := crypto.NewTestSigner("did:example:issuer")
	credential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", testOrganizationSubject)
	presentation := vcrTest.CreateJWTPresentation(t, holder, nil, credential)
	verifier := NewJWTPresentationVerifier(crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}.AddSigner(holder)))

	t.Run("ok", func(t *testing.T) {
		err := verifier(ctx, presentation)

		assert.NoError(t, err)
	})
	t.Run("error - unknown signer", func(t *testing.T) {
		other := NewJWTPresentationVerifier(crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}))

		err := other(ctx, presentation)

		assert.ErrorIs(t, err, ErrPresentationSignatureInvalid)
	})
	t.Run("error - signer is not the holder", func(t *testing.T) {
		otherHolder := ssi.MustParseURI("did:example:other")
		parsed := presentation
		parsed.Holder = &otherHolder

		err := verifier(ctx, parsed)

		assert.ErrorIs(t, err, ErrPresentationSignatureInvalid)
	})
	t.Run("error - JSON-LD presentation", func(t *testing.T) {
		err := verifier(ctx, vcrTest.CreateJSONLDPresentation(t, "did:example:holder", credential))

		assert.ErrorIs(t, err, ErrPresentationSignatureInvalid)
	})
}
