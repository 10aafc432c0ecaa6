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
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vcr/pe/test"
	vcrTest "github.com/nuts-foundation/nuts-siop/vcr/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPresentationDefinition = `
{
  "id": "Definition requesting OrganizationCredential",
  "input_descriptors": [
	{
	  "id": "some random ID",
	  "name": "Organization matcher",
	  "purpose": "Finding any organization in Caretown starting with 'Care'",
	  "constraints": {
		"fields": [
		  {
			"path": [
			  "$.credentialSubject.organization.city"
			],
			"filter": {
			  "type": "string",
			  "const": "Caretown"
			}
		  },
		  {
			"path": [
			  "$.credentialSubject.organization.name"
			],
			"filter": {
			  "type": "string",
			  "pattern": "^Care"
			}
		  },
		  {
			"path": [
			  "$.type"
			],
			"filter": {
			  "type": "string",
			  "const": "OrganizationCredential"
			}
		  }
		]
	  }
	}
  ],
  "format": {
    "jwt_vc": {
      "alg": ["ES256", "ES384"]
    },
	"ldp_vc": {
      "proof_type": [
	    "JsonWebSignature2020"
	  ]
	}
  }
}
`

var testCredentialString = `
{
  "type": "VerifiableCredential",
  "credentialSubject": {
	"field": "value"
  }
}`

var organizationSubject = map[string]interface{}{
	"id": "did:example:holder",
	"organization": map[string]interface{}{
		"name": "Care Bears",
		"city": "Caretown",
	},
}

func TestParsePresentationDefinition(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		definition, err := ParsePresentationDefinition([]byte(testPresentationDefinition))

		require.NoError(t, err)
		assert.Equal(t, "Definition requesting OrganizationCredential", definition.Id)
		require.Len(t, definition.InputDescriptors, 1)
		assert.Len(t, definition.InputDescriptors[0].Constraints.Fields, 3)
	})
	t.Run("submission requirements", func(t *testing.T) {
		definition, err := ParsePresentationDefinition([]byte(test.Pick_1_from_nested))

		require.NoError(t, err)
		require.Len(t, definition.SubmissionRequirements, 1)
		assert.Len(t, definition.SubmissionRequirements[0].FromNested, 2)
	})
	t.Run("error - missing id", func(t *testing.T) {
		_, err := ParsePresentationDefinition([]byte(`{"input_descriptors": []}`))

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
		assert.ErrorContains(t, err, "missing properties")
	})
	t.Run("error - field without path", func(t *testing.T) {
		_, err := ParsePresentationDefinition([]byte(`{"id": "1", "input_descriptors": [{"id": "1", "constraints": {"fields": [{}]}}]}`))

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
	})
	t.Run("error - unknown format", func(t *testing.T) {
		_, err := ParsePresentationDefinition([]byte(`{"id": "1", "input_descriptors": [], "format": {"pdf": {"alg": ["ES256"]}}}`))

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
	})
	t.Run("error - not JSON", func(t *testing.T) {
		_, err := ParsePresentationDefinition([]byte(`not JSON`))

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
	})
}

func TestValidateDefinition(t *testing.T) {
	t.Run("ok - generic JSON", func(t *testing.T) {
		var asMap map[string]interface{}
		_ = json.Unmarshal([]byte(testPresentationDefinition), &asMap)

		definition, err := ValidateDefinition(asMap)

		require.NoError(t, err)
		assert.Equal(t, "Definition requesting OrganizationCredential", definition.Id)
	})
	t.Run("ok - struct", func(t *testing.T) {
		definition, err := ValidateDefinition(PresentationDefinition{Id: "1", InputDescriptors: []*InputDescriptor{{Id: "a"}}})

		require.NoError(t, err)
		assert.Equal(t, "a", definition.InputDescriptors[0].Id)
	})
	t.Run("error - invalid", func(t *testing.T) {
		_, err := ValidateDefinition(map[string]interface{}{"id": 1})

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
	})
}

func TestMatch(t *testing.T) {
	id1 := ssi.MustParseURI("1")
	id2 := ssi.MustParseURI("2")
	id3 := ssi.MustParseURI("3")
	id4 := ssi.MustParseURI("4")
	vc1 := vc.VerifiableCredential{ID: &id1}
	vc2 := vc.VerifiableCredential{ID: &id2}
	vc3 := vc.VerifiableCredential{ID: &id3}
	vc4 := vc.VerifiableCredential{ID: &id4}

	t.Run("Basic", func(t *testing.T) {
		presentationDefinition, err := ParsePresentationDefinition([]byte(testPresentationDefinition))
		require.NoError(t, err)
		ldpCredential := vcrTest.CreateJSONLDCredential(t, "did:example:issuer#1", "did:example:issuer", "OrganizationCredential", organizationSubject)
		issuer := crypto.NewTestSigner("did:example:issuer")
		jwtCredential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", organizationSubject)

		t.Run("Happy flow", func(t *testing.T) {
			presentationSubmission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{ldpCredential})

			require.NoError(t, err)
			assert.Len(t, vcs, 1)
			assert.Equal(t, presentationDefinition.Id, presentationSubmission.DefinitionId)
			assert.NotEmpty(t, presentationSubmission.Id)
			require.Len(t, presentationSubmission.DescriptorMap, 1)
			assert.Equal(t, "some random ID", presentationSubmission.DescriptorMap[0].Id)
			assert.Equal(t, "$.verifiableCredential[0]", presentationSubmission.DescriptorMap[0].Path)
			assert.Equal(t, vc.JSONLDCredentialProofFormat, presentationSubmission.DescriptorMap[0].Format)
		})
		t.Run("JWT credential", func(t *testing.T) {
			presentationSubmission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{jwtCredential})

			require.NoError(t, err)
			assert.Len(t, vcs, 1)
			require.Len(t, presentationSubmission.DescriptorMap, 1)
			assert.Equal(t, vc.JWTCredentialProofFormat, presentationSubmission.DescriptorMap[0].Format)
		})
		t.Run("Only second VC matches", func(t *testing.T) {
			presentationSubmission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{{Type: []ssi.URI{ssi.MustParseURI("VerifiableCredential")}}, ldpCredential})

			require.NoError(t, err)
			assert.Len(t, vcs, 1)
			require.Len(t, presentationSubmission.DescriptorMap, 1)
			assert.Equal(t, "$.verifiableCredential[0]", presentationSubmission.DescriptorMap[0].Path)
		})
		t.Run("no match", func(t *testing.T) {
			presentationSubmission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1})

			require.NoError(t, err)
			assert.Empty(t, vcs)
			assert.Empty(t, presentationSubmission.DescriptorMap)
		})
	})
	t.Run("Submission requirement feature", func(t *testing.T) {
		t.Run("Pick", func(t *testing.T) {
			t.Run("Pick 1", func(t *testing.T) {
				presentationDefinition := PresentationDefinition{}
				_ = json.Unmarshal([]byte(test.Pick_1), &presentationDefinition)

				submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

				require.NoError(t, err)
				assert.Len(t, vcs, 1)
				require.Len(t, submission.DescriptorMap, 1)
				assert.Equal(t, "descriptor_1", submission.DescriptorMap[0].Id)
				assert.Equal(t, "$.verifiableCredential[0]", submission.DescriptorMap[0].Path)
			})
			t.Run("error", func(t *testing.T) {
				presentationDefinition := PresentationDefinition{}
				_ = json.Unmarshal([]byte(test.Pick_1), &presentationDefinition)

				_, _, err := presentationDefinition.Match([]vc.VerifiableCredential{})

				assert.EqualError(t, err, "submission requirement (Pick 1 matcher) has less credentials (0) than required (1)")
			})
		})
		t.Run("Pick min max", func(t *testing.T) {
			t.Run("Ok", func(t *testing.T) {
				presentationDefinition := PresentationDefinition{}
				_ = json.Unmarshal([]byte(test.Pick_min_max), &presentationDefinition)

				submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

				require.NoError(t, err)
				assert.Len(t, vcs, 2)
				assert.Len(t, submission.DescriptorMap, 2)
			})
			t.Run("error", func(t *testing.T) {
				presentationDefinition := PresentationDefinition{}
				_ = json.Unmarshal([]byte(test.Pick_min_max), &presentationDefinition)

				_, _, err := presentationDefinition.Match([]vc.VerifiableCredential{})

				assert.EqualError(t, err, "submission requirement (Pick 1 matcher) has less matches (0) than minimal required (1)")
			})
		})
		t.Run("Pick 1 per group", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.Pick_1_per_group), &presentationDefinition)

			submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

			require.NoError(t, err)
			assert.Len(t, vcs, 2)
			assert.Len(t, submission.DescriptorMap, 2)
		})
		t.Run("Pick all", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.All), &presentationDefinition)

			submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

			require.NoError(t, err)
			assert.Len(t, vcs, 2)
			assert.Len(t, submission.DescriptorMap, 2)
		})
		t.Run("Pick all - missing credential", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.All), &presentationDefinition)

			_, _, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1})

			assert.EqualError(t, err, "submission requirement (All matcher) does not have all credentials from the group")
		})
		t.Run("Pick 1 from nested", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.Pick_1_from_nested), &presentationDefinition)

			t.Run("all from group A or all from group B", func(t *testing.T) {
				t.Run("all A", func(t *testing.T) {
					submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

					require.NoError(t, err)
					assert.Len(t, vcs, 2)
					assert.Len(t, submission.DescriptorMap, 2)
				})
				t.Run("all B", func(t *testing.T) {
					submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc3, vc4})

					require.NoError(t, err)
					require.Len(t, vcs, 2)
					assert.Equal(t, "3", vcs[0].ID.String())
					assert.Len(t, submission.DescriptorMap, 2)
				})
				t.Run("no match", func(t *testing.T) {
					_, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc3})

					require.Error(t, err)
					assert.Len(t, vcs, 0)
				})
			})
		})
		t.Run("error - group not in submission requirements", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.Pick_1), &presentationDefinition)
			presentationDefinition.InputDescriptors[1].Group = []string{"B"}

			_, _, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

			assert.EqualError(t, err, "group B is required but not available")
		})
		t.Run("error - unknown rule", func(t *testing.T) {
			presentationDefinition := PresentationDefinition{}
			_ = json.Unmarshal([]byte(test.Pick_1), &presentationDefinition)
			presentationDefinition.SubmissionRequirements[0].Rule = "some"

			_, _, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1, vc2})

			assert.EqualError(t, err, "submission requirement (Pick 1 matcher) contains unknown rule (some)")
		})
	})
	t.Run("credential matching multiple descriptors is included once", func(t *testing.T) {
		presentationDefinition := PresentationDefinition{
			Id: "1",
			InputDescriptors: []*InputDescriptor{
				{Id: "a"},
				{Id: "b"},
			},
		}

		submission, vcs, err := presentationDefinition.Match([]vc.VerifiableCredential{vc1})

		require.NoError(t, err)
		assert.Len(t, vcs, 1)
		require.Len(t, submission.DescriptorMap, 2)
		assert.Equal(t, "$.verifiableCredential[0]", submission.DescriptorMap[0].Path)
		assert.Equal(t, "$.verifiableCredential[0]", submission.DescriptorMap[1].Path)
	})
}

func Test_matchFormat(t *testing.T) {
	verifiableCredential := vcrTest.CreateJSONLDCredential(t, "did:example:issuer#1", "did:example:issuer", "OrganizationCredential", organizationSubject)
	issuer := crypto.NewTestSigner("did:example:issuer")
	jwtCredential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", organizationSubject)

	t.Run("no format", func(t *testing.T) {
		match := matchFormat(nil, vc.VerifiableCredential{})

		assert.True(t, match)
	})
	t.Run("empty format", func(t *testing.T) {
		match := matchFormat(&PresentationDefinitionClaimFormatDesignations{}, vc.VerifiableCredential{})

		assert.True(t, match)
	})
	t.Run("only vp formats", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vp": {"alg": {"ES256"}}}

		assert.True(t, matchFormat(&asFormat, verifiableCredential))
	})
	t.Run("format with only jwt_vc doesn't match JSON-LD credential", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc": {"alg": {"ES256K", "ES384"}}}

		assert.False(t, matchFormat(&asFormat, verifiableCredential))
	})
	t.Run("format with matching ldp_vc", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc": {"alg": {"ES256K", "ES384"}}, "ldp_vc": {"proof_type": {"JsonWebSignature2020"}}}

		assert.True(t, matchFormat(&asFormat, verifiableCredential))
	})
	t.Run("non-matching ldp_vc", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc": {"alg": {"ES256K", "ES384"}}, "ldp_vc": {"proof_type": {"Ed25519Signature2018"}}}

		assert.False(t, matchFormat(&asFormat, verifiableCredential))
	})
	t.Run("ldp_vc without proof_type", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"ldp_vc": {}}

		assert.True(t, matchFormat(&asFormat, verifiableCredential))
	})
	t.Run("format with matching jwt_vc", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc": {"alg": {"ES256"}}}

		assert.True(t, matchFormat(&asFormat, jwtCredential))
	})
	t.Run("format with matching jwt_vc_json", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc_json": {"alg": {"ES256"}}}

		assert.True(t, matchFormat(&asFormat, jwtCredential))
	})
	t.Run("jwt_vc with other algorithm", func(t *testing.T) {
		asFormat := PresentationDefinitionClaimFormatDesignations{"jwt_vc": {"alg": {"EdDSA"}}}

		assert.False(t, matchFormat(&asFormat, jwtCredential))
	})
}

func Test_matchCredential(t *testing.T) {
	t.Run("no constraints is a match", func(t *testing.T) {
		match, err := matchCredential(InputDescriptor{}, vc.VerifiableCredential{})

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("JWT credential", func(t *testing.T) {
		issuer := crypto.NewTestSigner("did:example:issuer")
		jwtCredential := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", organizationSubject)
		issuerDID := "did:example:issuer"
		city := "Caretown"
		descriptor := InputDescriptor{Constraints: &Constraints{Fields: []Field{
			{Path: []string{"$.issuer"}, Filter: &Filter{Type: "string", Const: &issuerDID}},
			{Path: []string{"$.credentialSubject.organization.city"}, Filter: &Filter{Type: "string", Const: &city}},
		}}}

		match, err := matchCredential(descriptor, jwtCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
}

func Test_matchConstraint(t *testing.T) {
	testCredential := vc.VerifiableCredential{}
	_ = json.Unmarshal([]byte(testCredentialString), &testCredential)

	typeVal := "VerifiableCredential"
	f1True := Field{Path: []string{"$.credentialSubject.field"}}
	f2True := Field{Path: []string{"$.type"}, Filter: &Filter{Type: "string", Const: &typeVal}}
	f3False := Field{Path: []string{"$.credentialSubject.field"}, Filter: &Filter{Type: "string", Const: &typeVal}}

	t.Run("single constraint match", func(t *testing.T) {
		match, err := matchConstraint(&Constraints{Fields: []Field{f1True}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("single constraint mismatch", func(t *testing.T) {
		match, err := matchConstraint(&Constraints{Fields: []Field{f3False}}, testCredential)

		require.NoError(t, err)
		assert.False(t, match)
	})
	t.Run("multi constraint match", func(t *testing.T) {
		match, err := matchConstraint(&Constraints{Fields: []Field{f1True, f2True}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("multi constraint, single mismatch", func(t *testing.T) {
		match, err := matchConstraint(&Constraints{Fields: []Field{f1True, f3False}}, testCredential)

		require.NoError(t, err)
		assert.False(t, match)
	})
	t.Run("error", func(t *testing.T) {
		match, err := matchConstraint(&Constraints{Fields: []Field{{Path: []string{"$$"}}}}, testCredential)

		require.Error(t, err)
		assert.False(t, match)
	})
}

func Test_matchField(t *testing.T) {
	var testCredential interface{}
	_ = json.Unmarshal([]byte(testCredentialString), &testCredential)

	t.Run("single path match", func(t *testing.T) {
		match, err := matchField(Field{Path: []string{"$.credentialSubject.field"}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("multi path match", func(t *testing.T) {
		match, err := matchField(Field{Path: []string{"$.other", "$.credentialSubject.field"}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("no match", func(t *testing.T) {
		match, err := matchField(Field{Path: []string{"$.foo", "$.bar"}}, testCredential)

		require.NoError(t, err)
		assert.False(t, match)
	})
	t.Run("no match, but optional", func(t *testing.T) {
		trueVal := true
		match, err := matchField(Field{Path: []string{"$.foo", "$.bar"}, Optional: &trueVal}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("invalid match and optional", func(t *testing.T) {
		trueVal := true
		stringVal := "bar"
		match, err := matchField(Field{Path: []string{"$.credentialSubject.field", "$.foo"}, Optional: &trueVal, Filter: &Filter{Const: &stringVal}}, testCredential)

		require.NoError(t, err)
		assert.False(t, match)
	})
	t.Run("valid match with Filter", func(t *testing.T) {
		stringVal := "value"
		match, err := matchField(Field{Path: []string{"$.credentialSubject.field"}, Filter: &Filter{Type: "string", Const: &stringVal}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("match on type", func(t *testing.T) {
		stringVal := "VerifiableCredential"
		match, err := matchField(Field{Path: []string{"$.type"}, Filter: &Filter{Type: "string", Const: &stringVal}}, testCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("match on type array", func(t *testing.T) {
		var arrayCredential interface{}
		_ = json.Unmarshal([]byte(`{"type": ["VerifiableCredential"], "credentialSubject": {"field": "value"}}`), &arrayCredential)
		stringVal := "VerifiableCredential"

		match, err := matchField(Field{Path: []string{"$.type"}, Filter: &Filter{Type: "string", Const: &stringVal}}, arrayCredential)

		require.NoError(t, err)
		assert.True(t, match)
	})
	t.Run("errors", func(t *testing.T) {
		t.Run("invalid path", func(t *testing.T) {
			match, err := matchField(Field{Path: []string{"$$"}}, testCredential)

			require.Error(t, err)
			assert.False(t, match)
		})
		t.Run("invalid pattern", func(t *testing.T) {
			pattern := "["
			match, err := matchField(Field{Path: []string{"$.credentialSubject.field"}, Filter: &Filter{Type: "string", Pattern: &pattern}}, testCredential)

			require.Error(t, err)
			assert.False(t, match)
		})
	})
}

func Test_matchFilter(t *testing.T) {
	// values for pointer fields
	stringValue := "test"
	boolValue := true
	intValue := 1
	floatValue := 1.0

	t.Run("type filter", func(t *testing.T) {
		fString := Filter{Type: "string"}
		fNumber := Filter{Type: "number"}
		fBoolean := Filter{Type: "boolean"}
		fArray := Filter{Type: "array"}
		type testCaseDef struct {
			name   string
			filter Filter
			value  interface{}
			want   bool
		}
		testCases := []testCaseDef{
			{name: "string", filter: fString, value: stringValue, want: true},
			{name: "bool", filter: fBoolean, value: boolValue, want: true},
			{name: "number/float", filter: fNumber, value: floatValue, want: true},
			{name: "number/int", filter: fNumber, value: intValue, want: true},
			{name: "array", filter: fArray, value: []interface{}{stringValue}, want: true},
			{name: "string array", filter: fString, value: []interface{}{stringValue}, want: true},
			{name: "bool array", filter: fBoolean, value: []interface{}{boolValue}, want: true},
			{name: "number/float array", filter: fNumber, value: []interface{}{floatValue}, want: true},
			{name: "number/int array", filter: fNumber, value: []interface{}{intValue}, want: true},
			{name: "string with bool", filter: fString, value: boolValue, want: false},
			{name: "string with int", filter: fString, value: intValue, want: false},
			{name: "bool with float", filter: fBoolean, value: floatValue, want: false},
			{name: "number with string", filter: fNumber, value: stringValue, want: false},
			{name: "string array without strings", filter: fString, value: []interface{}{boolValue}, want: false},
		}

		for _, testCase := range testCases {
			t.Run(testCase.name, func(t *testing.T) {
				got, err := matchFilter(testCase.filter, testCase.value)
				require.NoError(t, err)
				assert.Equal(t, testCase.want, got)
			})
		}
	})
	t.Run("string filter properties", func(t *testing.T) {
		f1 := Filter{Type: "string", Const: &stringValue}
		f2 := Filter{Type: "string", Enum: []string{stringValue}}
		f3 := Filter{Type: "string", Pattern: &stringValue}
		filters := []Filter{f1, f2, f3}
		t.Run("ok", func(t *testing.T) {
			for _, filter := range filters {
				match, err := matchFilter(filter, stringValue)
				require.NoError(t, err)
				assert.True(t, match)
			}
		})
		t.Run("enum value not found", func(t *testing.T) {
			match, err := matchFilter(f2, "foo")
			require.NoError(t, err)
			assert.False(t, match)
		})
		t.Run("ECMAScript pattern", func(t *testing.T) {
			pattern := `^\d{4}-(?=\d)`
			match, err := matchFilter(Filter{Type: "string", Pattern: &pattern}, "2024-01")
			require.NoError(t, err)
			assert.True(t, match)
		})
	})
	t.Run("error cases", func(t *testing.T) {
		t.Run("object value", func(t *testing.T) {
			f := Filter{Type: "object"}
			match, err := matchFilter(f, struct{}{})
			assert.False(t, match)
			assert.Equal(t, err, ErrUnsupportedFilter)
		})
		t.Run("incorrect regex", func(t *testing.T) {
			pattern := "["
			f := Filter{Type: "string", Pattern: &pattern}
			match, err := matchFilter(f, stringValue)
			assert.False(t, match)
			assert.Error(t, err)
			match, err = matchFilter(f, []interface{}{stringValue})
			assert.False(t, match)
			assert.Error(t, err)
		})
	})
}

func TestPresentationDefinition_InputDescriptor(t *testing.T) {
	definition := PresentationDefinition{InputDescriptors: []*InputDescriptor{{Id: "a"}}}

	assert.NotNil(t, definition.InputDescriptor("a"))
	assert.Nil(t, definition.InputDescriptor("b"))
}
