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

// Package oauth contains the OAuth2, SIOPv2 and OpenID4VP vocabulary shared by the authorization request and
// response packages: parameter names, payloads, pass-by policies and client metadata.
package oauth

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
)

// ErrMalformedInput is returned when options or payloads are structurally invalid.
var ErrMalformedInput = errors.New("malformed input")

// oauth parameter keys
const (
	// AccessTokenParam is the parameter name for the access_token parameter. (RFC6749)
	AccessTokenParam = "access_token"
	// AudienceParam is the JWT audience claim.
	AudienceParam = "aud"
	// AuthTimeParam is the parameter name for the auth_time ID token claim. (OpenID Connect Core)
	AuthTimeParam = "auth_time"
	// ClaimsParam is the parameter name for the claims parameter. (OpenID Connect Core)
	ClaimsParam = "claims"
	// ClientIDParam is the parameter name for the client_id parameter. (RFC6749)
	ClientIDParam = "client_id"
	// ClientMetadataParam is the parameter name for the client_metadata parameter. (OpenID4VP)
	ClientMetadataParam = "client_metadata"
	// ClientMetadataURIParam is the parameter name for the client_metadata_uri parameter. (OpenID4VP)
	ClientMetadataURIParam = "client_metadata_uri"
	// ExpiresInParam is the parameter name for the expires_in parameter. (RFC6749)
	ExpiresInParam = "expires_in"
	// ExpirationParam is the JWT expiration claim.
	ExpirationParam = "exp"
	// IDTokenParam is the parameter name for the id_token parameter. (OpenID Connect Core)
	IDTokenParam = "id_token"
	// IDTokenHintParam is the parameter name for the id_token_hint parameter. (OpenID Connect Core)
	IDTokenHintParam = "id_token_hint"
	// IssuedAtParam is the JWT issued at claim.
	IssuedAtParam = "iat"
	// IssuerParam is the JWT issuer claim.
	IssuerParam = "iss"
	// JWTIDParam is the JWT ID claim.
	JWTIDParam = "jti"
	// NonceParam is the parameter name for the nonce parameter
	NonceParam = "nonce"
	// NotBeforeParam is the JWT not before claim.
	NotBeforeParam = "nbf"
	// PresentationDefParam is the parameter name for the OpenID4VP presentation_definition parameter. (OpenID4VP)
	PresentationDefParam = "presentation_definition"
	// PresentationDefUriParam is the parameter name for the OpenID4VP presentation_definition_uri parameter. (OpenID4VP)
	PresentationDefUriParam = "presentation_definition_uri"
	// PresentationSubmissionParam is the parameter name for the presentation_submission parameter. (OpenID4VP)
	PresentationSubmissionParam = "presentation_submission"
	// RedirectURIParam is the parameter name for the redirect_uri parameter. (RFC6749)
	RedirectURIParam = "redirect_uri"
	// RefreshTokenParam is the parameter name for the refresh_token parameter. (RFC6749)
	RefreshTokenParam = "refresh_token"
	// RegistrationParam is the parameter name for the SIOPv2 ID1 registration parameter.
	RegistrationParam = "registration"
	// RegistrationURIParam is the parameter name for the SIOPv2 ID1 registration_uri parameter.
	RegistrationURIParam = "registration_uri"
	// RequestParam is the parameter name for the request parameter.	(RFC9101)
	RequestParam = "request"
	// RequestURIParam is the parameter name for the request parameter. (RFC9101)
	RequestURIParam = "request_uri"
	// ResponseModeParam is the parameter name for the OAuth2 response_mode parameter.
	ResponseModeParam = "response_mode"
	// ResponseTypeParam is the parameter name for the response_type parameter. (RFC6749)
	ResponseTypeParam = "response_type"
	// ScopeParam is the parameter name for the scope parameter. (RFC6749)
	ScopeParam = "scope"
	// StateParam is the parameter name for the state parameter. (RFC6749)
	StateParam = "state"
	// SubjectParam is the JWT subject claim.
	SubjectParam = "sub"
	// SubjectJWKParam is the parameter name for the sub_jwk claim of self-issued ID tokens. (SIOPv2)
	SubjectJWKParam = "sub_jwk"
	// TokenTypeParam is the parameter name for the token_type parameter. (RFC6749)
	TokenTypeParam = "token_type"
	// VpTokenParam is the parameter name for the vp_token parameter. (OpenID4VP)
	VpTokenParam = "vp_token"
	// IDTokenVPTokenParam is the ID token claim that carries the presentation submission in pre-D11 responses.
	IDTokenVPTokenParam = "_vp_token"
)

// response types
const (
	// IDTokenResponseType is the response type for a SIOPv2 ID token.
	IDTokenResponseType = "id_token"
	// VPTokenResponseType is paramter name for the vp_token repsponse type. (OpenID4VP)
	VPTokenResponseType = "vp_token"
)

// response modes
const (
	ResponseModePost     = "post"
	ResponseModeFormPost = "form_post"
	ResponseModeFragment = "fragment"
	ResponseModeQuery    = "query"
)

// OpenIDScope is the scope every SIOP request contains.
const OpenIDScope = "openid"

// issuers of self-issued ID tokens
const (
	// SelfIssuedV2 is the iss value of a SIOPv2 ID token.
	SelfIssuedV2 = "https://self-issued.me/v2"
	// SelfIssuedJWTVCPresentationV1 is the iss value of an ID token following the JWT VC Presentation Profile.
	SelfIssuedJWTVCPresentationV1 = "https://self-issued.me/v2/openid-vc"
)

// subject syntax types
const (
	// SubjectSyntaxTypeDID indicates any DID method is supported.
	SubjectSyntaxTypeDID = "did"
	// SubjectSyntaxTypeJWKThumbprint indicates the subject is a JWK thumbprint (RFC7638).
	SubjectSyntaxTypeJWKThumbprint = "urn:ietf:params:oauth:jwk-thumbprint"
)

// subject types
const (
	SubjectTypePairwise = "pairwise"
	SubjectTypePublic   = "public"
)

// Payload is the JSON representation of an authorization request, request object, ID token or authorization response.
type Payload map[string]interface{}

// Get returns the value of the given key as string. It returns an empty string if the key does not exist or isn't a string.
func (p Payload) Get(key string) string {
	if value, ok := p[key].(string); ok {
		return value
	}
	return ""
}

// Has returns true if the payload contains a non-nil value for the given key.
func (p Payload) Has(key string) bool {
	value, ok := p[key]
	return ok && value != nil
}

// Contains returns true if the value of the given key, either a space-delimited string or an array, contains the given value.
// It's used for parameters like scope and response_type.
func (p Payload) Contains(key string, value string) bool {
	for _, curr := range p.Values(key) {
		if curr == value {
			return true
		}
	}
	return false
}

// Values returns the value of the given key as list of strings, splitting space-delimited strings.
func (p Payload) Values(key string) []string {
	switch typed := p[key].(type) {
	case string:
		return strings.Fields(typed)
	case []string:
		return typed
	case []interface{}:
		var result []string
		for _, curr := range typed {
			if str, ok := curr.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	result := make(Payload, len(p))
	for key, value := range p {
		result[key] = value
	}
	return result
}

// Merge returns a copy of the payload with the non-nil values of other added, overwriting existing values.
func (p Payload) Merge(other Payload) Payload {
	result := p.Clone()
	for key, value := range other {
		if value != nil {
			result[key] = value
		}
	}
	return result
}

// Without returns a copy of the payload without the given keys.
func (p Payload) Without(keys ...string) Payload {
	result := p.Clone()
	for _, key := range keys {
		delete(result, key)
	}
	return result
}

// WithoutNil returns a copy of the payload without nil values.
func (p Payload) WithoutNil() Payload {
	result := make(Payload, len(p))
	for key, value := range p {
		if value != nil {
			result[key] = value
		}
	}
	return result
}

// Object returns the value of the given key as JSON object, or nil if it isn't an object.
func (p Payload) Object(key string) map[string]interface{} {
	switch typed := p[key].(type) {
	case map[string]interface{}:
		return typed
	case Payload:
		return typed
	}
	return nil
}

// Path returns the value at the given path of nested objects, or nil when any part doesn't exist.
func (p Payload) Path(keys ...string) interface{} {
	var current interface{} = map[string]interface{}(p)
	for _, key := range keys {
		switch object := current.(type) {
		case map[string]interface{}:
			current = object[key]
		case Payload:
			current = object[key]
		default:
			return nil
		}
	}
	return current
}

// Equal compares two JSON values, normalizing both through JSON encoding so typed and generic values compare equal.
func Equal(a, b interface{}) bool {
	normalizedA, errA := normalize(a)
	normalizedB, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(normalizedA, normalizedB)
}

// Convert converts a JSON value into target through JSON encoding.
func Convert(value interface{}, target interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func normalize(value interface{}) (interface{}, error) {
	var result interface{}
	if err := Convert(value, &result); err != nil {
		return nil, err
	}
	return result, nil
}
