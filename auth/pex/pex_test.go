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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	vcrTest "github.com/nuts-foundation/nuts-siop/vcr/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testDefinition(t *testing.T) map[string]interface{} {
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(testDefinitionJSON), &result))
	return result
}

func definitionServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/definition":
			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(testDefinitionJSON))
		case "/invalid":
			_, _ = writer.Write([]byte(`{"id": "invalid"}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFindValidPresentationDefinitions(t *testing.T) {
	client.RetryDelay = time.Millisecond
	ctx := context.Background()
	server := definitionServer(t)
	fetcher := codec.NewHTTPFetcher(client.New(5 * time.Second))

	t.Run("claims, by value", func(t *testing.T) {
		payload := oauth.Payload{oauth.ClaimsParam: map[string]interface{}{
			oauth.VpTokenParam: map[string]interface{}{oauth.PresentationDefParam: testDefinition(t)},
		}}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.ID1, fetcher)

		require.NoError(t, err)
		require.Len(t, definitions, 1)
		assert.Equal(t, "organization", definitions[0].Definition.Id)
		assert.Equal(t, LocationClaimsVPToken, definitions[0].Location)
		assert.Equal(t, version.ID1, definitions[0].Version)
	})
	t.Run("claims, by reference", func(t *testing.T) {
		payload := oauth.Payload{oauth.ClaimsParam: map[string]interface{}{
			oauth.VpTokenParam: map[string]interface{}{oauth.PresentationDefUriParam: server.URL + "/definition"},
		}}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.JWTVCPresentationProfileV1, fetcher)

		require.NoError(t, err)
		require.Len(t, definitions, 1)
		assert.Equal(t, "organization", definitions[0].Definition.Id)
	})
	t.Run("claims are ignored from D11", func(t *testing.T) {
		payload := oauth.Payload{oauth.ClaimsParam: map[string]interface{}{
			oauth.VpTokenParam: map[string]interface{}{oauth.PresentationDefParam: testDefinition(t)},
		}}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		require.NoError(t, err)
		assert.Empty(t, definitions)
	})
	t.Run("top level, single value", func(t *testing.T) {
		payload := oauth.Payload{oauth.PresentationDefParam: testDefinition(t)}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		require.NoError(t, err)
		require.Len(t, definitions, 1)
		assert.Equal(t, LocationTopLevel, definitions[0].Location)
	})
	t.Run("top level, list of references", func(t *testing.T) {
		payload := oauth.Payload{oauth.PresentationDefUriParam: []interface{}{server.URL + "/definition"}}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		require.NoError(t, err)
		require.Len(t, definitions, 1)
		assert.Equal(t, "organization", definitions[0].Definition.Id)
	})
	t.Run("duplicate definitions are skipped", func(t *testing.T) {
		payload := oauth.Payload{
			oauth.ClaimsParam: map[string]interface{}{
				oauth.VpTokenParam: map[string]interface{}{oauth.PresentationDefParam: testDefinition(t)},
			},
			oauth.PresentationDefParam: []interface{}{testDefinition(t), testDefinition(t)},
		}

		definitions, err := FindValidPresentationDefinitions(ctx, payload, version.ID1, fetcher)

		require.NoError(t, err)
		require.Len(t, definitions, 1)
		assert.Equal(t, LocationClaimsVPToken, definitions[0].Location)
	})
	t.Run("no definitions", func(t *testing.T) {
		definitions, err := FindValidPresentationDefinitions(ctx, oauth.Payload{oauth.ScopeParam: "openid"}, version.ID1, fetcher)

		require.NoError(t, err)
		assert.Empty(t, definitions)
	})
	t.Run("error - claims by value and by reference", func(t *testing.T) {
		payload := oauth.Payload{oauth.ClaimsParam: map[string]interface{}{
			oauth.VpTokenParam: map[string]interface{}{
				oauth.PresentationDefParam:    testDefinition(t),
				oauth.PresentationDefUriParam: server.URL + "/definition",
			},
		}}

		_, err := FindValidPresentationDefinitions(ctx, payload, version.ID1, fetcher)

		assert.ErrorIs(t, err, ErrAmbiguousDefinitionSource)
	})
	t.Run("error - top level by value and by reference", func(t *testing.T) {
		payload := oauth.Payload{
			oauth.PresentationDefParam:    testDefinition(t),
			oauth.PresentationDefUriParam: server.URL + "/definition",
		}

		_, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		assert.ErrorIs(t, err, ErrAmbiguousDefinitionSource)
	})
	t.Run("error - invalid definition", func(t *testing.T) {
		payload := oauth.Payload{oauth.PresentationDefParam: map[string]interface{}{"id": "invalid"}}

		_, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		assert.ErrorIs(t, err, pe.ErrInvalidPresentationDefinition)
	})
	t.Run("error - invalid definition by reference", func(t *testing.T) {
		payload := oauth.Payload{oauth.PresentationDefUriParam: server.URL + "/invalid"}

		_, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		assert.ErrorIs(t, err, pe.ErrInvalidPresentationDefinition)
	})
	t.Run("error - reference can't be fetched", func(t *testing.T) {
		payload := oauth.Payload{oauth.PresentationDefUriParam: server.URL + "/unknown"}

		_, err := FindValidPresentationDefinitions(ctx, payload, version.D11, fetcher)

		assert.ErrorIs(t, err, codec.ErrReferenceFetch)
	})
}

func TestCreateClaimsProperties(t *testing.T) {
	definition, err := pe.ValidateDefinition(testDefinition(t))
	require.NoError(t, err)

	t.Run("by value", func(t *testing.T) {
		claims, err := CreateClaimsProperties(&Claims{VPToken: &VPTokenClaims{PresentationDefinition: definition}})

		require.NoError(t, err)
		assert.Equal(t, "organization", claims.Path(oauth.VpTokenParam, oauth.PresentationDefParam, "id"))
		assert.Nil(t, claims.Path(oauth.VpTokenParam, oauth.PresentationDefUriParam))
	})
	t.Run("by reference, with id_token claims", func(t *testing.T) {
		claims, err := CreateClaimsProperties(&Claims{
			IDToken: map[string]interface{}{"email": nil},
			VPToken: &VPTokenClaims{PresentationDefinitionURI: "https://example.com/pd"},
		})

		require.NoError(t, err)
		assert.Equal(t, oauth.Payload{
			oauth.VpTokenParam: map[string]interface{}{oauth.PresentationDefUriParam: "https://example.com/pd"},
			oauth.IDTokenParam: map[string]interface{}{"email": nil},
		}, claims)
	})
	t.Run("nothing requested", func(t *testing.T) {
		claims, err := CreateClaimsProperties(&Claims{VPToken: &VPTokenClaims{}})

		require.NoError(t, err)
		assert.Nil(t, claims)
	})
	t.Run("error - by value and by reference", func(t *testing.T) {
		_, err := CreateClaimsProperties(&Claims{VPToken: &VPTokenClaims{PresentationDefinition: definition, PresentationDefinitionURI: "https://example.com/pd"}})

		assert.ErrorIs(t, err, ErrAmbiguousDefinitionSource)
	})
	t.Run("error - invalid definition", func(t *testing.T) {
		_, err := CreateClaimsProperties(&Claims{VPToken: &VPTokenClaims{PresentationDefinition: &pe.PresentationDefinition{Id: "invalid"}}})

		assert.ErrorIs(t, err, pe.ErrInvalidPresentationDefinition)
	})
}

type presentationFixture struct {
	definitions  []DefinitionWithLocation
	presentation vc.VerifiablePresentation
	envelope     *pe.Envelope
	submission   pe.PresentationSubmission
}

func newPresentationFixture(t *testing.T) presentationFixture {
	definition, err := pe.ValidateDefinition(testDefinition(t))
	require.NoError(t, err)
	holderDID := did.MustParseDID("did:example:holder")
	holder := crypto.NewTestSigner(holderDID.String())
	issuer := crypto.NewTestSigner("did:example:issuer")
	credential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", testOrganizationSubject)
	presentation := vcrTest.CreateJWTPresentation(t, holder, nil, credential)
	envelope, err := pe.EnvelopeFromPresentations([]vc.VerifiablePresentation{presentation})
	require.NoError(t, err)
	builder := definition.PresentationSubmissionBuilder()
	builder.AddWallet(holderDID, []vc.VerifiableCredential{credential})
	submission, _, err := builder.Build(vc.JWTPresentationProofFormat)
	require.NoError(t, err)
	return presentationFixture{
		definitions:  []DefinitionWithLocation{{Definition: *definition, Location: LocationTopLevel, Version: version.D11}},
		presentation: presentation,
		envelope:     envelope,
		submission:   submission,
	}
}

func TestAssertValidVerifiablePresentations(t *testing.T) {
	ctx := context.Background()
	fixture := newPresentationFixture(t)

	t.Run("ok", func(t *testing.T) {
		var verified []vc.VerifiablePresentation

		err := AssertValidVerifiablePresentations(ctx, AssertOptions{
			Definitions:   fixture.definitions,
			Presentations: fixture.envelope,
			Submission:    &fixture.submission,
			Verifier: func(_ context.Context, presentation vc.VerifiablePresentation) error {
				verified = append(verified, presentation)
				return nil
			},
		})

		require.NoError(t, err)
		assert.Len(t, verified, 1)
	})
	t.Run("ok - custom evaluator", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		evaluator := pe.NewMockEvaluator(ctrl)
		evaluator.EXPECT().Evaluate(fixture.definitions[0].Definition, *fixture.envelope, fixture.submission).Return(nil)

		err := AssertValidVerifiablePresentations(ctx, AssertOptions{
			Definitions:   fixture.definitions,
			Presentations: fixture.envelope,
			Submission:    &fixture.submission,
			Evaluator:     evaluator,
		})

		assert.NoError(t, err)
	})
	t.Run("ok - nothing requested, nothing provided", func(t *testing.T) {
		assert.NoError(t, AssertValidVerifiablePresentations(ctx, AssertOptions{}))
	})
	t.Run("error - presentations expected", func(t *testing.T) {
		err := AssertValidVerifiablePresentations(ctx, AssertOptions{Definitions: fixture.definitions})

		assert.ErrorIs(t, err, ErrAuthRequestExpectsVP)
	})
	t.Run("error - presentations not expected", func(t *testing.T) {
		err := AssertValidVerifiablePresentations(ctx, AssertOptions{Presentations: fixture.envelope})

		assert.ErrorIs(t, err, ErrAuthRequestDoesntExpectVP)
	})
	t.Run("error - number of presentations doesn't match", func(t *testing.T) {
		envelope, err := pe.EnvelopeFromPresentations([]vc.VerifiablePresentation{fixture.presentation, fixture.presentation})
		require.NoError(t, err)

		err = AssertValidVerifiablePresentations(ctx, AssertOptions{Definitions: fixture.definitions, Presentations: envelope, Submission: &fixture.submission})

		assert.ErrorIs(t, err, ErrAuthRequestExpectsVP)
	})
	t.Run("error - invalid signature", func(t *testing.T) {
		err := AssertValidVerifiablePresentations(ctx, AssertOptions{
			Definitions:   fixture.definitions,
			Presentations: fixture.envelope,
			Submission:    &fixture.submission,
			Verifier: func(_ context.Context, _ vc.VerifiablePresentation) error {
				return errors.New("bad signature")
			},
		})

		assert.ErrorIs(t, err, ErrPresentationSignatureInvalid)
		assert.ErrorContains(t, err, "bad signature")
	})
	t.Run("error - missing submission", func(t *testing.T) {
		err := AssertValidVerifiablePresentations(ctx, AssertOptions{Definitions: fixture.definitions, Presentations: fixture.envelope})

		assert.ErrorIs(t, err, ErrMissingSubmission)
	})
	t.Run("error - submission for other definition", func(t *testing.T) {
		submission := fixture.submission
		submission.DefinitionId = "other"

		err := AssertValidVerifiablePresentations(ctx, AssertOptions{Definitions: fixture.definitions, Presentations: fixture.envelope, Submission: &submission})

		assert.ErrorIs(t, err, ErrMissingSubmission)
	})
	t.Run("error - credential doesn't match", func(t *testing.T) {
		issuer := crypto.NewTestSigner("did:example:issuer")
		holder := crypto.NewTestSigner("did:example:holder")
		credential := vcrTest.CreateJWTCredential(t, issuer, "OtherCredential", testOrganizationSubject)
		envelope, err := pe.EnvelopeFromPresentations([]vc.VerifiablePresentation{vcrTest.CreateJWTPresentation(t, holder, nil, credential)})
		require.NoError(t, err)

		err = AssertValidVerifiablePresentations(ctx, AssertOptions{Definitions: fixture.definitions, Presentations: envelope, Submission: &fixture.submission})

		assert.ErrorIs(t, err, pe.ErrSubmissionMismatch)
	})
}

func TestExtractPresentations(t *testing.T) {
	fixture := newPresentationFixture(t)

	t.Run("JWT", func(t *testing.T) {
		envelope, err := ExtractPresentations(oauth.Payload{oauth.VpTokenParam: fixture.presentation.Raw()})

		require.NoError(t, err)
		require.Len(t, envelope.Presentations, 1)
		assert.Equal(t, fixture.presentation.Raw(), envelope.Interface)
	})
	t.Run("array", func(t *testing.T) {
		envelope, err := ExtractPresentations(oauth.Payload{oauth.VpTokenParam: []interface{}{fixture.presentation.Raw(), fixture.presentation.Raw()}})

		require.NoError(t, err)
		assert.Len(t, envelope.Presentations, 2)
	})
	t.Run("JSON array as string", func(t *testing.T) {
		asJSON, _ := json.Marshal([]string{fixture.presentation.Raw()})

		envelope, err := ExtractPresentations(oauth.Payload{oauth.VpTokenParam: string(asJSON)})

		require.NoError(t, err)
		assert.Len(t, envelope.Presentations, 1)
	})
	t.Run("no vp_token", func(t *testing.T) {
		envelope, err := ExtractPresentations(oauth.Payload{})

		require.NoError(t, err)
		assert.Nil(t, envelope)
	})
	t.Run("error - invalid vp_token", func(t *testing.T) {
		_, err := ExtractPresentations(oauth.Payload{oauth.VpTokenParam: "invalid"})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}

func TestExtractSubmission(t *testing.T) {
	fixture := newPresentationFixture(t)
	var asMap map[string]interface{}
	require.NoError(t, oauth.Convert(fixture.submission, &asMap))

	t.Run("from response", func(t *testing.T) {
		submission, err := ExtractSubmission(oauth.Payload{oauth.PresentationSubmissionParam: asMap}, nil)

		require.NoError(t, err)
		assert.Equal(t, fixture.submission.Id, submission.Id)
	})
	t.Run("from response, as JSON string", func(t *testing.T) {
		asJSON, _ := json.Marshal(asMap)

		submission, err := ExtractSubmission(oauth.Payload{oauth.PresentationSubmissionParam: string(asJSON)}, nil)

		require.NoError(t, err)
		assert.Equal(t, fixture.submission.Id, submission.Id)
	})
	t.Run("from ID token", func(t *testing.T) {
		idToken := oauth.Payload{oauth.IDTokenVPTokenParam: map[string]interface{}{oauth.PresentationSubmissionParam: asMap}}

		submission, err := ExtractSubmission(oauth.Payload{}, idToken)

		require.NoError(t, err)
		assert.Equal(t, fixture.submission.DefinitionId, submission.DefinitionId)
	})
	t.Run("none", func(t *testing.T) {
		submission, err := ExtractSubmission(oauth.Payload{}, oauth.Payload{})

		require.NoError(t, err)
		assert.Nil(t, submission)
	})
	t.Run("error - invalid", func(t *testing.T) {
		_, err := ExtractSubmission(oauth.Payload{oauth.PresentationSubmissionParam: map[string]interface{}{"id": "1"}}, nil)

		assert.ErrorIs(t, err, pe.ErrInvalidPresentationSubmission)
	})
}
