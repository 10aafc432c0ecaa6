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

// Package test contains helpers to create credentials and presentations in tests.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/stretchr/testify/require"
)

// CreateJWTCredential creates a JWT credential of the given type, issued and signed by the given signer.
// The subject is used as credentialSubject; its 'id' (if any) becomes the 'sub' claim.
func CreateJWTCredential(t *testing.T, issuer *crypto.Signer, credentialType string, subject map[string]interface{}) vc.VerifiableCredential {
	claims := map[string]interface{}{
		"iss": issuer.DID(),
		"jti": issuer.DID() + "#" + uuid.NewString(),
		"nbf": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"vc": map[string]interface{}{
			"@context":          []string{vc.VCContextV1URI().String()},
			"type":              []string{vc.VerifiableCredentialTypeV1URI().String(), credentialType},
			"credentialSubject": subject,
		},
	}
	if id, ok := subject["id"].(string); ok {
		claims["sub"] = id
	}
	token, err := issuer.Sign(context.Background(), claims, map[string]interface{}{"typ": "JWT"})
	require.NoError(t, err)
	result, err := vc.ParseVerifiableCredential(token)
	require.NoError(t, err)
	return *result
}

// CreateJSONLDCredential creates a JSON-LD credential with the given ID and type. It isn't actually signed,
// but contains a JsonWebSignature2020 proof.
func CreateJSONLDCredential(t *testing.T, id string, issuer string, credentialType string, subject map[string]interface{}) vc.VerifiableCredential {
	credentialID := ssi.MustParseURI(id)
	credential := vc.VerifiableCredential{
		Context:           []ssi.URI{vc.VCContextV1URI()},
		ID:                &credentialID,
		Type:              []ssi.URI{vc.VerifiableCredentialTypeV1URI(), ssi.MustParseURI(credentialType)},
		Issuer:            ssi.MustParseURI(issuer),
		IssuanceDate:      time.Now().Truncate(time.Second),
		CredentialSubject: []map[string]interface{}{subject},
		Proof: []interface{}{
			map[string]interface{}{
				"type":               ssi.JsonWebSignature2020,
				"verificationMethod": issuer + "#0",
				"proofPurpose":       "assertionMethod",
				"jws":                "invalid",
			},
		},
	}
	return ParseCredential(t, credential)
}

// CreateJWTPresentation creates a JWT presentation containing the given credentials, signed by the given signer.
// The tokenVisitor (optional) can alter the claims before the presentation is signed.
func CreateJWTPresentation(t *testing.T, holder *crypto.Signer, tokenVisitor func(claims map[string]interface{}), credentials ...vc.VerifiableCredential) vc.VerifiablePresentation {
	claims := map[string]interface{}{
		"iss": holder.DID(),
		"sub": holder.DID(),
		"jti": holder.DID() + "#" + uuid.NewString(),
		"nbf": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"vp": vc.VerifiablePresentation{
			Context:              []ssi.URI{vc.VCContextV1URI()},
			Type:                 []ssi.URI{vc.VerifiablePresentationTypeV1URI()},
			VerifiableCredential: credentials,
		},
	}
	if tokenVisitor != nil {
		tokenVisitor(claims)
	}
	token, err := holder.Sign(context.Background(), claims, map[string]interface{}{"typ": "JWT"})
	require.NoError(t, err)
	result, err := vc.ParseVerifiablePresentation(token)
	require.NoError(t, err)
	return *result
}

// CreateJSONLDPresentation creates a JSON-LD presentation with the given holder and credentials.
// The presentation is not actually signed.
func CreateJSONLDPresentation(t *testing.T, holder string, credentials ...vc.VerifiableCredential) vc.VerifiablePresentation {
	id := ssi.MustParseURI(holder + "#" + uuid.NewString())
	holderURI := ssi.MustParseURI(holder)
	presentation := vc.VerifiablePresentation{
		Context:              []ssi.URI{vc.VCContextV1URI()},
		ID:                   &id,
		Type:                 []ssi.URI{vc.VerifiablePresentationTypeV1URI()},
		Holder:               &holderURI,
		VerifiableCredential: credentials,
		Proof: []interface{}{
			map[string]interface{}{
				"type":               ssi.JsonWebSignature2020,
				"verificationMethod": holder + "#0",
				"proofPurpose":       "authentication",
				"jws":                "invalid",
			},
		},
	}
	return ParsePresentation(t, presentation)
}

// ParseCredential marshals and parses the credential, so its raw form and format are set.
func ParseCredential(t *testing.T, credential vc.VerifiableCredential) vc.VerifiableCredential {
	data, err := credential.MarshalJSON()
	require.NoError(t, err)
	result, err := vc.ParseVerifiableCredential(string(data))
	require.NoError(t, err)
	return *result
}

// ParsePresentation marshals and parses the presentation, so its raw form and format are set.
func ParsePresentation(t *testing.T, presentation vc.VerifiablePresentation) vc.VerifiablePresentation {
	data, err := presentation.MarshalJSON()
	require.NoError(t, err)
	result, err := vc.ParseVerifiablePresentation(string(data))
	require.NoError(t, err)
	return *result
}
