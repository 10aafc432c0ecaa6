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

package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nuts-foundation/nuts-siop/crypto"
	"golang.org/x/text/language"
)

// ErrCredentialFormatsNotProvided is returned when the RP or OP metadata contains no vp_formats.
var ErrCredentialFormatsNotProvided = errors.New("credential formats not provided")

// ErrCredentialFormatsNotSupported is returned when the RP and OP have no credential format (and algorithm) in common.
var ErrCredentialFormatsNotSupported = errors.New("credential formats not supported")

// ErrDIDMethodsNotSupported is returned when the RP and OP have no subject syntax type in common.
var ErrDIDMethodsNotSupported = errors.New("DID methods not supported")

// ErrInvalidClientMetadata is returned when RP registration metadata is invalid.
var ErrInvalidClientMetadata = errors.New("invalid client metadata")

// languageTaggedFields are the metadata fields that may have language-tagged variants, e.g. client_name#nl-NL.
var languageTaggedFields = []string{"client_name", "client_purpose"}

// DefaultSubjectSyntaxTypes are the subject syntax types advertised when none are configured.
var DefaultSubjectSyntaxTypes = []string{"did:web:", "did:key:", "did:jwk:"}

// proofTypeValuesSupported contains a list of supported cipher suites for ldp_vc & ldp_vp presentation formats
var proofTypeValuesSupported = []string{"JsonWebSignature2020"}

// DefaultVPFormats returns the credential and presentation formats the RP and OP support by default.
func DefaultVPFormats() map[string]map[string][]string {
	return map[string]map[string][]string{
		"jwt_vp": {"alg": crypto.SupportedAlgorithms()},
		"jwt_vc": {"alg": crypto.SupportedAlgorithms()},
		"ldp_vc": {"proof_type": proofTypeValuesSupported},
		"ldp_vp": {"proof_type": proofTypeValuesSupported},
	}
}

// RPRegistrationMetadata is the metadata of a relying party, passed in the registration (SIOPv2 ID1) or
// client_metadata (OpenID4VP) parameter of an authorization request.
type RPRegistrationMetadata struct {
	ClientID                               string   `json:"client_id,omitempty"`
	ClientName                             string   `json:"client_name,omitempty"`
	ClientPurpose                          string   `json:"client_purpose,omitempty"`
	LogoURI                                string   `json:"logo_uri,omitempty"`
	TosURI                                 string   `json:"tos_uri,omitempty"`
	IDTokenSigningAlgValuesSupported       []string `json:"id_token_signing_alg_values_supported,omitempty"`
	RequestObjectSigningAlgValuesSupported []string `json:"request_object_signing_alg_values_supported,omitempty"`
	ResponseTypesSupported                 []string `json:"response_types_supported,omitempty"`
	ScopesSupported                        []string `json:"scopes_supported,omitempty"`
	SubjectTypesSupported                  []string `json:"subject_types_supported,omitempty"`
	// SubjectSyntaxTypesSupported lists the DID methods (e.g. did:web:) or "urn:ietf:params:oauth:jwk-thumbprint".
	// nil means absent, an empty slice is invalid.
	SubjectSyntaxTypesSupported []string                       `json:"subject_syntax_types_supported,omitempty"`
	VPFormats                   map[string]map[string][]string `json:"vp_formats,omitempty"`

	// LanguageTagged contains the language-tagged variants of client_name and client_purpose, keyed by the full
	// property name (e.g. client_name#nl-NL).
	LanguageTagged map[string]string `json:"-"`
}

var _ json.Unmarshaler = (*RPRegistrationMetadata)(nil)
var _ json.Marshaler = (*RPRegistrationMetadata)(nil)

func (m *RPRegistrationMetadata) UnmarshalJSON(data []byte) error {
	type Alias RPRegistrationMetadata
	var result Alias
	if err := json.Unmarshal(data, &result); err != nil {
		return err
	}
	raw := map[string]interface{}{}
	_ = json.Unmarshal(data, &raw) // can't fail, already unmarshalled
	for key, value := range raw {
		if _, _, tagged := splitLanguageTag(key); !tagged {
			continue
		}
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidClientMetadata, key)
		}
		if result.LanguageTagged == nil {
			result.LanguageTagged = map[string]string{}
		}
		result.LanguageTagged[key] = str
	}
	*m = RPRegistrationMetadata(result)
	return nil
}

func (m RPRegistrationMetadata) MarshalJSON() ([]byte, error) {
	type Alias RPRegistrationMetadata
	data, err := json.Marshal(Alias(m))
	if err != nil {
		return nil, err
	}
	if len(m.LanguageTagged) == 0 {
		return data, nil
	}
	result := map[string]interface{}{}
	_ = json.Unmarshal(data, &result)
	for key, value := range m.LanguageTagged {
		result[key] = value
	}
	return json.Marshal(result)
}

// Payload returns the metadata as JSON object.
func (m RPRegistrationMetadata) Payload() Payload {
	var result Payload
	_ = Convert(m, &result)
	return result
}

// Localized returns the value of a language-tagged field for the given language, falling back to the untagged value.
// Matching follows BCP 47: a request for nl-NL matches client_name#nl when no exact variant is present.
func (m RPRegistrationMetadata) Localized(field string, tag language.Tag) string {
	fallback := ""
	switch field {
	case "client_name":
		fallback = m.ClientName
	case "client_purpose":
		fallback = m.ClientPurpose
	}
	var tags []language.Tag
	var values []string
	for key, value := range m.LanguageTagged {
		base, keyTag, ok := splitLanguageTag(key)
		if !ok || base != field {
			continue
		}
		parsed, err := language.Parse(keyTag)
		if err != nil {
			continue
		}
		tags = append(tags, parsed)
		values = append(values, value)
	}
	if len(tags) == 0 {
		return fallback
	}
	_, index, confidence := language.NewMatcher(tags).Match(tag)
	if confidence == language.No {
		return fallback
	}
	return values[index]
}

// AssertValidRPRegistrationMetadata validates RP metadata: subject_syntax_types_supported must not be empty when present,
// and language-tagged fields must carry valid BCP 47 tags.
func AssertValidRPRegistrationMetadata(metadata RPRegistrationMetadata) error {
	if metadata.SubjectSyntaxTypesSupported != nil && len(metadata.SubjectSyntaxTypesSupported) == 0 {
		return fmt.Errorf("%w: subject_syntax_types_supported must not be empty", ErrInvalidClientMetadata)
	}
	for key := range metadata.LanguageTagged {
		_, tag, _ := splitLanguageTag(key)
		if _, err := language.Parse(tag); err != nil {
			return fmt.Errorf("%w: invalid language tag in %s: %w", ErrInvalidClientMetadata, key, err)
		}
	}
	return nil
}

// ParseRPRegistrationMetadata converts a JSON value (e.g. the registration parameter) into RPRegistrationMetadata and validates it.
func ParseRPRegistrationMetadata(value interface{}) (*RPRegistrationMetadata, error) {
	var result RPRegistrationMetadata
	if err := Convert(value, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidClientMetadata, err)
	}
	if err := AssertValidRPRegistrationMetadata(result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DiscoveryMetadata is the metadata of an OpenID Provider (wallet).
type DiscoveryMetadata struct {
	AuthorizationEndpoint                  string                         `json:"authorization_endpoint,omitempty"`
	Issuer                                 string                         `json:"issuer,omitempty"`
	ResponseTypesSupported                 []string                       `json:"response_types_supported,omitempty"`
	ScopesSupported                        []string                       `json:"scopes_supported,omitempty"`
	SubjectTypesSupported                  []string                       `json:"subject_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported       []string                       `json:"id_token_signing_alg_values_supported,omitempty"`
	RequestObjectSigningAlgValuesSupported []string                       `json:"request_object_signing_alg_values_supported,omitempty"`
	SubjectSyntaxTypesSupported            []string                       `json:"subject_syntax_types_supported,omitempty"`
	VPFormats                              map[string]map[string][]string `json:"vp_formats,omitempty"`
}

// DefaultDiscoveryMetadata returns the metadata of a SIOPv2 OP as advertised by default.
func DefaultDiscoveryMetadata() DiscoveryMetadata {
	return DiscoveryMetadata{
		AuthorizationEndpoint:                  "openid:",
		Issuer:                                 SelfIssuedV2,
		ResponseTypesSupported:                 []string{IDTokenResponseType, VPTokenResponseType},
		ScopesSupported:                        []string{OpenIDScope},
		SubjectTypesSupported:                  []string{SubjectTypePairwise},
		IDTokenSigningAlgValuesSupported:       crypto.SupportedAlgorithms(),
		RequestObjectSigningAlgValuesSupported: crypto.SupportedAlgorithms(),
		SubjectSyntaxTypesSupported:            DefaultSubjectSyntaxTypes,
		VPFormats:                              DefaultVPFormats(),
	}
}

// NegotiatedMetadata is the outcome of matching OP and RP metadata.
type NegotiatedMetadata struct {
	VPFormats                   map[string]map[string][]string
	SubjectSyntaxTypesSupported []string
}

// AssertValidMetadata matches the metadata of the OP with that of the RP. It returns the credential formats and
// subject syntax types both support, or an error when there is no overlap.
func AssertValidMetadata(op DiscoveryMetadata, rp RPRegistrationMetadata) (*NegotiatedMetadata, error) {
	formats, err := supportedCredentialFormats(rp.VPFormats, op.VPFormats)
	if err != nil {
		return nil, err
	}
	result := &NegotiatedMetadata{VPFormats: formats}
	if !validSubjectSyntaxTypes(rp.SubjectSyntaxTypesSupported) {
		return result, nil
	}
	result.SubjectSyntaxTypesSupported, err = supportedSubjectSyntaxTypes(rp.SubjectSyntaxTypesSupported, op.SubjectSyntaxTypesSupported)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validSubjectSyntaxTypes returns true when every entry is a DID (method) or the JWK thumbprint type.
func validSubjectSyntaxTypes(types []string) bool {
	if len(types) == 0 {
		return false
	}
	for _, curr := range types {
		if !strings.Contains(curr, SubjectSyntaxTypeDID) && curr != SubjectSyntaxTypeJWKThumbprint {
			return false
		}
	}
	return true
}

func supportedSubjectSyntaxTypes(rp []string, op []string) ([]string, error) {
	common := intersection(rp, op)
	if contains(common, SubjectSyntaxTypeDID) {
		return []string{SubjectSyntaxTypeDID}, nil
	}
	// "did" on one side means any DID method of the other side is accepted
	if contains(rp, SubjectSyntaxTypeDID) {
		if methods := didMethods(op); len(methods) > 0 {
			return methods, nil
		}
	}
	if contains(op, SubjectSyntaxTypeDID) {
		if methods := didMethods(rp); len(methods) > 0 {
			return methods, nil
		}
	}
	if len(common) == 0 {
		return nil, ErrDIDMethodsNotSupported
	}
	if methods := didMethods(common); len(methods) > 0 {
		return methods, nil
	}
	return common, nil
}

func supportedCredentialFormats(rp map[string]map[string][]string, op map[string]map[string][]string) (map[string]map[string][]string, error) {
	if len(rp) == 0 || len(op) == 0 {
		return nil, ErrCredentialFormatsNotProvided
	}
	var formats []string
	for format := range rp {
		if _, ok := op[format]; ok {
			formats = append(formats, format)
		}
	}
	if len(formats) == 0 {
		return nil, ErrCredentialFormatsNotSupported
	}
	sort.Strings(formats)
	result := make(map[string]map[string][]string, len(formats))
	for _, format := range formats {
		rpMethod, rpAlgs := flattenFormat(rp[format])
		opMethod, opAlgs := flattenFormat(op[format])
		if rpMethod != opMethod {
			return nil, fmt.Errorf("%w: %s uses %s and %s", ErrCredentialFormatsNotSupported, format, rpMethod, opMethod)
		}
		algs := intersection(rpAlgs, opAlgs)
		if len(algs) == 0 {
			return nil, fmt.Errorf("%w: no common %s for %s", ErrCredentialFormatsNotSupported, opMethod, format)
		}
		result[format] = map[string][]string{opMethod: algs}
	}
	return result, nil
}

// flattenFormat returns the (last, in sorted order) key of a format designation and all of its values.
func flattenFormat(designation map[string][]string) (string, []string) {
	var keys []string
	for key := range designation {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var method string
	var values []string
	for _, key := range keys {
		method = key
		values = append(values, designation[key]...)
	}
	return method, values
}

func didMethods(types []string) []string {
	var result []string
	for _, curr := range types {
		if strings.HasPrefix(curr, "did:") {
			result = append(result, curr)
		}
	}
	return result
}

func intersection(a []string, b []string) []string {
	var result []string
	for _, curr := range a {
		if contains(b, curr) {
			result = append(result, curr)
		}
	}
	return result
}

func contains(values []string, value string) bool {
	for _, curr := range values {
		if curr == value {
			return true
		}
	}
	return false
}

func splitLanguageTag(key string) (string, string, bool) {
	idx := strings.Index(key, "#")
	if idx <= 0 {
		return "", "", false
	}
	base := key[:idx]
	if !contains(languageTaggedFields, base) {
		return "", "", false
	}
	return base, key[idx+1:], true
}
