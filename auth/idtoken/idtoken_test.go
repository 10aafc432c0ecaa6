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

package idtoken

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const rpDID = "did:web:verifier.example.com"
const holderDID = "did:web:holder.example.com"

func verifiedRequest() *request.VerifiedAuthorizationRequest {
	return &request.VerifiedAuthorizationRequest{
		CorrelationID: "c1",
		Payload: oauth.Payload{
			oauth.ClientIDParam:     rpDID,
			oauth.ResponseTypeParam: oauth.IDTokenResponseType,
			oauth.NonceParam:        "n1",
			oauth.StateParam:        "s1",
		},
		RegistrationMetadata: &oauth.RPRegistrationMetadata{
			SubjectSyntaxTypesSupported: []string{"did:web:", oauth.SubjectSyntaxTypeJWKThumbprint},
		},
		Versions: version.Versions{version.ID1, version.JWTVCPresentationProfileV1},
	}
}

func TestCreatePayload(t *testing.T) {
	ctx := context.Background()
	signer := crypto.NewTestSigner(holderDID)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	timeFunc = func() time.Time { return now }
	defer func() { timeFunc = time.Now }()

	t.Run("ok", func(t *testing.T) {
		payload, err := CreatePayload(ctx, verifiedRequest(), Options{Signer: signer})

		require.NoError(t, err)
		assert.Equal(t, oauth.SelfIssuedJWTVCPresentationV1, payload[oauth.IssuerParam])
		assert.Equal(t, rpDID, payload[oauth.AudienceParam])
		assert.Equal(t, holderDID, payload[oauth.SubjectParam])
		assert.Equal(t, "n1", payload[oauth.NonceParam])
		assert.Equal(t, "s1", payload[oauth.StateParam])
		assert.Equal(t, now.Unix()-60, payload[oauth.IssuedAtParam])
		assert.Equal(t, now.Add(10*time.Minute).Unix(), payload[oauth.ExpirationParam])
		assert.NotContains(t, payload, oauth.AuthTimeParam)
		assert.NotContains(t, payload, oauth.SubjectJWKParam)
	})
	t.Run("ok - SIOPv2 issuer for ID1", func(t *testing.T) {
		payload, err := CreatePayload(ctx, verifiedRequest(), Options{Signer: signer, Version: version.ID1})

		require.NoError(t, err)
		assert.Equal(t, oauth.SelfIssuedV2, payload[oauth.IssuerParam])
	})
	t.Run("ok - overrides", func(t *testing.T) {
		payload, err := CreatePayload(ctx, verifiedRequest(), Options{
			Signer:    signer,
			Issuer:    holderDID,
			Audience:  "https://verifier.example.com",
			ExpiresIn: time.Minute,
		})

		require.NoError(t, err)
		assert.Equal(t, holderDID, payload[oauth.IssuerParam])
		assert.Equal(t, "https://verifier.example.com", payload[oauth.AudienceParam])
		assert.Equal(t, now.Add(time.Minute).Unix(), payload[oauth.ExpirationParam])
	})
	t.Run("ok - auth_time is echoed", func(t *testing.T) {
		verified := verifiedRequest()
		verified.Payload[oauth.AuthTimeParam] = float64(1700000000)

		payload, err := CreatePayload(ctx, verified, Options{Signer: signer})

		require.NoError(t, err)
		assert.Equal(t, float64(1700000000), payload[oauth.AuthTimeParam])
	})
	t.Run("ok - JWK thumbprint subject", func(t *testing.T) {
		key := crypto.NewTestKey("")
		keySigner, _ := crypto.NewLocalSigner(key, "", "")
		thumbprint, _ := crypto.Thumbprint(key)

		payload, err := CreatePayload(ctx, verifiedRequest(), Options{Signer: keySigner})

		require.NoError(t, err)
		assert.Equal(t, thumbprint, payload[oauth.SubjectParam])
		subJWK, ok := payload[oauth.SubjectJWKParam].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "EC", subJWK["kty"])
		assert.NotContains(t, subJWK, "d")
	})
	t.Run("error - JWK thumbprint subject not supported by relying party", func(t *testing.T) {
		keySigner, _ := crypto.NewLocalSigner(crypto.NewTestKey(""), "", "")
		verified := verifiedRequest()
		verified.RegistrationMetadata.SubjectSyntaxTypesSupported = []string{"did:web:"}

		_, err := CreatePayload(ctx, verified, Options{Signer: keySigner})

		assert.ErrorIs(t, err, ErrMissingSubject)
	})
	t.Run("error - version not supported by relying party", func(t *testing.T) {
		_, err := CreatePayload(ctx, verifiedRequest(), Options{Signer: signer, Version: version.D11})

		assert.ErrorIs(t, err, ErrUnsupportedResponseVersion)
	})
	t.Run("error - no verified request", func(t *testing.T) {
		_, err := CreatePayload(ctx, nil, Options{Signer: signer})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}

func TestIDToken_Sign(t *testing.T) {
	ctx := context.Background()
	signer := crypto.NewTestSigner(holderDID)

	t.Run("ok", func(t *testing.T) {
		token, err := FromVerifiedRequest(ctx, verifiedRequest(), Options{Signer: signer})
		require.NoError(t, err)
		require.Equal(t, Unsigned, token.State())

		jwt, err := token.Sign(ctx)

		require.NoError(t, err)
		assert.Equal(t, Signed, token.State())
		assert.Equal(t, jwt, token.JWT())
		assert.Equal(t, holderDID+"#0", token.Header()["kid"])
		again, _ := token.Sign(ctx)
		assert.Equal(t, jwt, again)
	})
	t.Run("error - no signer", func(t *testing.T) {
		token, _ := FromPayload(oauth.Payload{oauth.NonceParam: "n1"}, nil)

		_, err := token.Sign(ctx)

		assert.ErrorIs(t, err, ErrMissingSigner)
	})
	t.Run("error - FromVerifiedRequest without signer", func(t *testing.T) {
		_, err := FromVerifiedRequest(ctx, verifiedRequest(), Options{})

		assert.ErrorIs(t, err, ErrMissingSigner)
	})
}

func TestFromJWT(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		signer := crypto.NewTestSigner(holderDID)
		jwt, _ := signer.Sign(context.Background(), map[string]interface{}{oauth.IssuerParam: holderDID, oauth.SubjectParam: holderDID}, nil)

		token, err := FromJWT(jwt)

		require.NoError(t, err)
		assert.Equal(t, Signed, token.State())
		assert.True(t, token.IsSelfIssued())
	})
	t.Run("error - not a JWT", func(t *testing.T) {
		_, err := FromJWT("not a JWT")

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}

func TestIDToken_IsSelfIssued(t *testing.T) {
	for iss, expected := range map[string]bool{
		oauth.SelfIssuedV2:                  true,
		oauth.SelfIssuedJWTVCPresentationV1: true,
		holderDID:                           true,
		"https://issuer.example.com":        false,
	} {
		token, _ := FromPayload(oauth.Payload{oauth.IssuerParam: iss, oauth.SubjectParam: holderDID}, nil)
		assert.Equal(t, expected, token.IsSelfIssued(), iss)
	}
}

func TestIDToken_Verify(t *testing.T) {
	ctx := context.Background()
	signer := crypto.NewTestSigner(holderDID)
	verifier := crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}.AddSigner(signer))
	signed := func(t *testing.T, modify func(payload oauth.Payload)) *IDToken {
		payload, err := CreatePayload(ctx, verifiedRequest(), Options{Signer: signer})
		require.NoError(t, err)
		if modify != nil {
			modify(payload)
		}
		token, _ := FromPayload(payload, signer)
		_, err = token.Sign(ctx)
		require.NoError(t, err)
		return token
	}
	opts := VerifyOptions{CorrelationID: "c1", Verifier: verifier, Audience: rpDID, Nonce: "n1"}

	t.Run("ok", func(t *testing.T) {
		verified, err := signed(t, nil).Verify(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, holderDID, verified.Subject)
		assert.Equal(t, oauth.SelfIssuedJWTVCPresentationV1, verified.Issuer)
		assert.Equal(t, holderDID, verified.VerifiedJWT.Signer)
	})
	t.Run("ok - parsed from JWT", func(t *testing.T) {
		token, err := FromJWT(signed(t, nil).JWT())
		require.NoError(t, err)

		_, err = token.Verify(ctx, opts)

		assert.NoError(t, err)
	})
	t.Run("ok - JWK thumbprint subject", func(t *testing.T) {
		keySigner, _ := crypto.NewLocalSigner(crypto.NewTestKey(""), "", "")
		token, err := FromVerifiedRequest(ctx, verifiedRequest(), Options{Signer: keySigner})
		require.NoError(t, err)
		_, err = token.Sign(ctx)
		require.NoError(t, err)

		verified, err := token.Verify(ctx, VerifyOptions{CorrelationID: "c1", Verifier: crypto.NewDIDJWTVerifier(nil), Audience: rpDID})

		require.NoError(t, err)
		assert.Equal(t, token.Payload()[oauth.SubjectParam], verified.Subject)
	})
	t.Run("ok - linked domains", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		linkedDomains := request.NewMockLinkedDomainValidator(ctrl)
		linkedDomains.EXPECT().Validate(gomock.Any(), holderDID, linkeddomains.ModeAlways).Return(nil)
		withLinkedDomains := opts
		withLinkedDomains.LinkedDomains = linkedDomains
		withLinkedDomains.LinkedDomainMode = linkeddomains.ModeAlways

		_, err := signed(t, nil).Verify(ctx, withLinkedDomains)

		assert.NoError(t, err)
	})
	t.Run("error - linked domains invalid", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		linkedDomains := request.NewMockLinkedDomainValidator(ctrl)
		linkedDomains.EXPECT().Validate(gomock.Any(), holderDID, linkeddomains.ModeIfPresent).Return(linkeddomains.ErrLinkedDomainInvalid)
		withLinkedDomains := opts
		withLinkedDomains.LinkedDomains = linkedDomains
		withLinkedDomains.LinkedDomainMode = linkeddomains.ModeIfPresent

		_, err := signed(t, nil).Verify(ctx, withLinkedDomains)

		assert.ErrorIs(t, err, linkeddomains.ErrLinkedDomainInvalid)
	})
	t.Run("error - nonce mismatch", func(t *testing.T) {
		withNonce := opts
		withNonce.Nonce = "other"

		_, err := signed(t, nil).Verify(ctx, withNonce)

		assert.ErrorIs(t, err, request.ErrNonceMismatch)
	})
	t.Run("error - no nonce", func(t *testing.T) {
		token := signed(t, func(payload oauth.Payload) {
			delete(payload, oauth.NonceParam)
		})

		_, err := token.Verify(ctx, opts)

		assert.ErrorIs(t, err, ErrInvalidIDToken)
	})
	t.Run("error - audience mismatch", func(t *testing.T) {
		withAudience := opts
		withAudience.Audience = "did:web:other.example.com"

		_, err := signed(t, nil).Verify(ctx, withAudience)

		assert.ErrorIs(t, err, crypto.ErrSignatureVerification)
	})
	t.Run("error - issuer not self-issued", func(t *testing.T) {
		token := signed(t, func(payload oauth.Payload) {
			payload[oauth.IssuerParam] = "https://issuer.example.com"
		})

		_, err := token.Verify(ctx, opts)

		assert.ErrorIs(t, err, ErrInvalidIDToken)
	})
	t.Run("error - invalid signature", func(t *testing.T) {
		otherVerifier := crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}.AddSigner(crypto.NewTestSigner(holderDID)))
		withVerifier := opts
		withVerifier.Verifier = otherVerifier

		_, err := signed(t, nil).Verify(ctx, withVerifier)

		assert.ErrorIs(t, err, crypto.ErrSignatureVerification)
	})
	t.Run("error - verifier fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockVerifier := crypto.NewMockJWTVerifier(ctrl)
		mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), crypto.VerifyOptions{Audience: rpDID}).Return(nil, errors.New("failed"))
		withVerifier := opts
		withVerifier.Verifier = mockVerifier

		_, err := signed(t, nil).Verify(ctx, withVerifier)

		assert.EqualError(t, err, "failed")
	})
	t.Run("error - unsigned", func(t *testing.T) {
		token, _ := FromPayload(oauth.Payload{oauth.IssuerParam: oauth.SelfIssuedV2}, signer)

		_, err := token.Verify(ctx, opts)

		assert.ErrorIs(t, err, ErrInvalidIDToken)
	})
	t.Run("error - no verifier", func(t *testing.T) {
		_, err := signed(t, nil).Verify(ctx, VerifyOptions{})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}
