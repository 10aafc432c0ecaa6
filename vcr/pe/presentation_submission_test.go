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

package pe

import (
	"encoding/json"
	"testing"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vcr/pe/test"
	vcrTest "github.com/nuts-foundation/nuts-siop/vcr/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePresentationSubmission(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		submission, err := ParsePresentationSubmission([]byte(`{"id": "1", "definition_id": "1", "descriptor_map": [{"id": "1", "path": "$.verifiableCredential", "format": "ldp_vc"}]}`))

		require.NoError(t, err)
		require.NotNil(t, submission)
		require.Len(t, submission.DescriptorMap, 1)
		assert.Equal(t, "$.verifiableCredential", submission.DescriptorMap[0].Path)
	})
	t.Run("ok - nested", func(t *testing.T) {
		submission, err := ParsePresentationSubmission([]byte(`{"id": "1", "definition_id": "1", "descriptor_map": [{"id": "1", "path": "$", "format": "jwt_vp", "path_nested": {"id": "1", "path": "$.verifiableCredential[0]", "format": "jwt_vc"}}]}`))

		require.NoError(t, err)
		require.NotNil(t, submission.DescriptorMap[0].PathNested)
		assert.Equal(t, "jwt_vc", submission.DescriptorMap[0].PathNested.Format)
	})
	t.Run("error - missing definition_id", func(t *testing.T) {
		submission, err := ParsePresentationSubmission([]byte(`{"id": "1", "descriptor_map": []}`))

		assert.ErrorIs(t, err, ErrInvalidPresentationSubmission)
		assert.ErrorContains(t, err, "missing properties")
		assert.Nil(t, submission)
	})
	t.Run("error - unknown format", func(t *testing.T) {
		_, err := ParsePresentationSubmission([]byte(`{"id": "1", "definition_id": "1", "descriptor_map": [{"id": "1", "path": "$", "format": "pdf"}]}`))

		assert.ErrorIs(t, err, ErrInvalidPresentationSubmission)
	})
}

func TestValidateSubmission(t *testing.T) {
	t.Run("ok - string", func(t *testing.T) {
		submission, err := ValidateSubmission(`{"id": "1", "definition_id": "2", "descriptor_map": []}`)

		require.NoError(t, err)
		assert.Equal(t, "2", submission.DefinitionId)
	})
	t.Run("ok - generic JSON", func(t *testing.T) {
		submission, err := ValidateSubmission(map[string]interface{}{"id": "1", "definition_id": "2", "descriptor_map": []interface{}{}})

		require.NoError(t, err)
		assert.Equal(t, "1", submission.Id)
	})
	t.Run("error - invalid", func(t *testing.T) {
		_, err := ValidateSubmission(map[string]interface{}{"id": "1"})

		assert.ErrorIs(t, err, ErrInvalidPresentationSubmission)
	})
}

func TestMergeSubmissions(t *testing.T) {
	first := PresentationSubmission{DescriptorMap: []InputDescriptorMappingObject{{Id: "1", Path: "$.verifiableCredential[0]", Format: "ldp_vc"}}}
	second := PresentationSubmission{DescriptorMap: []InputDescriptorMappingObject{{Id: "2", Path: "$.verifiableCredential[0]", Format: "jwt_vc"}}}

	t.Run("single submission", func(t *testing.T) {
		result := MergeSubmissions("definition", []PresentationSubmission{first}, []string{"ldp_vp"})

		assert.Equal(t, "definition", result.DefinitionId)
		assert.NotEmpty(t, result.Id)
		assert.Equal(t, first.DescriptorMap, result.DescriptorMap)
	})
	t.Run("multiple submissions", func(t *testing.T) {
		result := MergeSubmissions("definition", []PresentationSubmission{first, second}, []string{"ldp_vp", "jwt_vp"})

		require.Len(t, result.DescriptorMap, 2)
		assert.Equal(t, "$[0]", result.DescriptorMap[0].Path)
		assert.Equal(t, "ldp_vp", result.DescriptorMap[0].Format)
		assert.Equal(t, first.DescriptorMap[0], *result.DescriptorMap[0].PathNested)
		assert.Equal(t, "$[1]", result.DescriptorMap[1].Path)
		assert.Equal(t, "jwt_vp", result.DescriptorMap[1].Format)
	})
}

func TestPresentationSubmissionBuilder_Build(t *testing.T) {
	holder1 := did.MustParseDID("did:example:1")
	holder2 := did.MustParseDID("did:example:2")
	id1 := ssi.MustParseURI("1")
	id2 := ssi.MustParseURI("2")
	vc1 := vc.VerifiableCredential{ID: &id1}
	vc2 := vc.VerifiableCredential{ID: &id2}

	t.Run("1 presentation", func(t *testing.T) {
		expectedJSON := `
{
  "id": "for-test",
  "definition_id": "",
  "descriptor_map": [
    {
      "format": "ldp_vp",
      "id": "Match ID=1",
      "path": "$",
      "path_nested": {
        "format": "ldp_vc",
        "id": "Match ID=1",
        "path": "$.verifiableCredential[0]"
      }
    },
    {
      "format": "ldp_vp",
      "id": "Match ID=2",
      "path": "$",
      "path_nested": {
        "format": "ldp_vc",
        "id": "Match ID=2",
        "path": "$.verifiableCredential[1]"
      }
    }
  ]
}`
		presentationDefinition := PresentationDefinition{}
		_ = json.Unmarshal([]byte(test.All), &presentationDefinition)
		presentationDefinition.Id = ""
		presentationDefinition.InputDescriptors[0].Id = "Match ID=1"
		presentationDefinition.InputDescriptors[1].Id = "Match ID=2"
		builder := presentationDefinition.PresentationSubmissionBuilder()
		builder.AddWallet(holder1, []vc.VerifiableCredential{vc1, vc2})

		submission, signInstructions, err := builder.Build("ldp_vp")

		require.NoError(t, err)
		require.NotNil(t, signInstructions)
		assert.Len(t, signInstructions, 1)
		assert.Equal(t, holder1, signInstructions[0].Holder)
		assert.Len(t, signInstructions[0].VerifiableCredentials, 2)
		assert.Len(t, submission.DescriptorMap, 2)

		submission.Id = "for-test" // easier assertion
		actualJSON, _ := json.MarshalIndent(submission, "", "  ")
		assert.JSONEq(t, expectedJSON, string(actualJSON))
	})
	t.Run("2 presentations", func(t *testing.T) {
		presentationDefinition := PresentationDefinition{}
		_ = json.Unmarshal([]byte(test.All), &presentationDefinition)
		builder := presentationDefinition.PresentationSubmissionBuilder()
		builder.AddWallet(holder1, []vc.VerifiableCredential{vc1})
		builder.AddWallet(holder2, []vc.VerifiableCredential{vc2})

		submission, signInstructions, err := builder.Build("ldp_vp")

		require.NoError(t, err)
		require.Len(t, signInstructions, 2)
		assert.Equal(t, holder1, signInstructions[0].Holder)
		assert.Equal(t, holder2, signInstructions[1].Holder)
		require.Len(t, submission.DescriptorMap, 2)
		assert.Equal(t, "$[0]", submission.DescriptorMap[0].Path)
		assert.Equal(t, "$.verifiableCredential[0]", submission.DescriptorMap[0].PathNested.Path)
		assert.Equal(t, "$[1]", submission.DescriptorMap[1].Path)
		assert.Equal(t, "$.verifiableCredential[0]", submission.DescriptorMap[1].PathNested.Path)
	})
	t.Run("2 wallets, but 1 VP", func(t *testing.T) {
		presentationDefinition := PresentationDefinition{}
		_ = json.Unmarshal([]byte(test.All), &presentationDefinition)
		builder := presentationDefinition.PresentationSubmissionBuilder()
		builder.AddWallet(holder1, []vc.VerifiableCredential{vc1, vc2})
		builder.AddWallet(holder2, []vc.VerifiableCredential{})

		submission, signInstructions, err := builder.Build("ldp_vp")

		require.NoError(t, err)
		require.Len(t, signInstructions, 1)
		assert.Equal(t, holder1, signInstructions[0].Holder)
		require.Len(t, submission.DescriptorMap, 2)
		assert.Equal(t, "$", submission.DescriptorMap[0].Path)
	})
	t.Run("no match", func(t *testing.T) {
		presentationDefinition := PresentationDefinition{}
		_ = json.Unmarshal([]byte(test.Pick_1), &presentationDefinition)
		builder := presentationDefinition.PresentationSubmissionBuilder()
		builder.AddWallet(holder1, []vc.VerifiableCredential{})

		_, signInstructions, err := builder.Build("ldp_vp")

		require.Error(t, err)
		assert.True(t, signInstructions.Empty())
	})
}

func TestSignInstructions_Empty(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.True(t, SignInstructions{{}}.Empty())
	})
	t.Run("not empty", func(t *testing.T) {
		assert.False(t, SignInstructions{{}, {VerifiableCredentials: []vc.VerifiableCredential{{}}}}.Empty())
	})
}

func TestPresentationSubmission_Resolve(t *testing.T) {
	issuer := crypto.NewTestSigner("did:example:issuer")
	holder := crypto.NewTestSigner("did:example:holder")
	jwtCredential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", organizationSubject)
	ldpCredential := vcrTest.CreateJSONLDCredential(t, "did:example:issuer#1", "did:example:issuer", "OrganizationCredential", organizationSubject)
	jwtPresentation := vcrTest.CreateJWTPresentation(t, holder, nil, jwtCredential)
	ldpPresentation := vcrTest.CreateJSONLDPresentation(t, "did:example:holder", ldpCredential)

	t.Run("JWT presentation", func(t *testing.T) {
		envelope, err := ParseEnvelope([]byte(jwtPresentation.Raw()))
		require.NoError(t, err)
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{
				{
					Id:     "1",
					Path:   "$",
					Format: vc.JWTPresentationProofFormat,
					PathNested: &InputDescriptorMappingObject{
						Id:     "1",
						Path:   "$.verifiableCredential[0]",
						Format: vc.JWTCredentialProofFormat,
					},
				},
			},
		}

		credentials, err := submission.Resolve(envelope.Interface)

		require.NoError(t, err)
		require.Len(t, credentials, 1)
		assert.Equal(t, jwtCredential.Raw(), credentials["1"].Raw())
	})
	t.Run("JSON-LD presentation", func(t *testing.T) {
		envelope, err := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation})
		require.NoError(t, err)
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{
				{
					Id:     "1",
					Path:   "$.verifiableCredential[0]",
					Format: vc.JSONLDCredentialProofFormat,
				},
			},
		}

		credentials, err := submission.Resolve(envelope.Interface)

		require.NoError(t, err)
		require.Len(t, credentials, 1)
		assert.Equal(t, ldpCredential.ID.String(), credentials["1"].ID.String())
	})
	t.Run("multiple presentations", func(t *testing.T) {
		envelope, err := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation, jwtPresentation})
		require.NoError(t, err)
		submission := MergeSubmissions("", []PresentationSubmission{
			{DescriptorMap: []InputDescriptorMappingObject{{Id: "1", Path: "$.verifiableCredential[0]", Format: vc.JSONLDCredentialProofFormat}}},
			{DescriptorMap: []InputDescriptorMappingObject{{Id: "2", Path: "$.verifiableCredential[0]", Format: vc.JWTCredentialProofFormat}}},
		}, []string{vc.JSONLDPresentationProofFormat, vc.JWTPresentationProofFormat})

		credentials, err := submission.Resolve(envelope.Interface)

		require.NoError(t, err)
		require.Len(t, credentials, 2)
		assert.Equal(t, ldpCredential.ID.String(), credentials["1"].ID.String())
		assert.Equal(t, jwtCredential.Raw(), credentials["2"].Raw())
	})
	t.Run("error - invalid envelope", func(t *testing.T) {
		_, err := PresentationSubmission{}.Resolve(1)

		assert.EqualError(t, err, "invalid Presentation Exchange envelope")
	})
	t.Run("error - path does not exist", func(t *testing.T) {
		envelope, _ := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation})
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{{Id: "1", Path: "$.verifiableCredential[5]", Format: vc.JSONLDCredentialProofFormat}},
		}

		_, err := submission.Resolve(envelope.Interface)

		assert.ErrorContains(t, err, "unable to resolve credential for input descriptor '1'")
	})
	t.Run("error - format doesn't match value", func(t *testing.T) {
		envelope, _ := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation})
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{{Id: "1", Path: "$.verifiableCredential[0]", Format: vc.JWTCredentialProofFormat}},
		}

		_, err := submission.Resolve(envelope.Interface)

		assert.ErrorContains(t, err, "can't be decoded using format 'jwt_vc'")
	})
	t.Run("error - path references a presentation", func(t *testing.T) {
		envelope, _ := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation})
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{{Id: "1", Path: "$", Format: vc.JSONLDPresentationProofFormat}},
		}

		_, err := submission.Resolve(envelope.Interface)

		assert.ErrorContains(t, err, "path '$' does not reference a credential")
	})
	t.Run("error - nested path in credential", func(t *testing.T) {
		envelope, _ := EnvelopeFromPresentations([]vc.VerifiablePresentation{ldpPresentation})
		submission := PresentationSubmission{
			DescriptorMap: []InputDescriptorMappingObject{{
				Id:         "1",
				Path:       "$.verifiableCredential[0]",
				Format:     vc.JSONLDCredentialProofFormat,
				PathNested: &InputDescriptorMappingObject{Id: "1", Path: "$", Format: vc.JSONLDCredentialProofFormat},
			}},
		}

		_, err := submission.Resolve(envelope.Interface)

		assert.ErrorContains(t, err, "does not reference a presentation")
	})
}
