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
	"errors"
	"fmt"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
)

// Envelope is a parsed Presentation Exchange envelope, e.g. the vp_token of an authorization response.
// It contains one or more presentations.
type Envelope struct {
	// Interface is the generic JSON representation of the envelope, against which the paths of a
	// presentation submission are evaluated. JWT presentations are kept as string.
	Interface interface{}
	// Presentations contains the parsed presentations of the envelope.
	Presentations []vc.VerifiablePresentation
}

// ParseEnvelope parses a Presentation Exchange envelope, which is either a JWT presentation, a JSON-LD presentation
// or a JSON array of those.
func ParseEnvelope(envelopeBytes []byte) (*Envelope, error) {
	var jsonValue interface{}
	if json.Unmarshal(envelopeBytes, &jsonValue) == nil {
		switch jsonValue.(type) {
		case []interface{}, map[string]interface{}:
			return EnvelopeFromValue(jsonValue)
		}
	}
	return EnvelopeFromValue(string(envelopeBytes))
}

// EnvelopeFromValue creates an Envelope from a decoded JSON value: a string (JWT presentation), an object (JSON-LD
// presentation) or an array of those.
func EnvelopeFromValue(value interface{}) (*Envelope, error) {
	var presentations []vc.VerifiablePresentation
	switch typedValue := value.(type) {
	case []interface{}:
		for _, entry := range typedValue {
			presentation, err := parsePresentation(entry)
			if err != nil {
				return nil, err
			}
			presentations = append(presentations, *presentation)
		}
	default:
		presentation, err := parsePresentation(value)
		if err != nil {
			return nil, err
		}
		presentations = append(presentations, *presentation)
	}
	return &Envelope{
		Interface:     value,
		Presentations: presentations,
	}, nil
}

// EnvelopeFromPresentations creates an Envelope for the given presentations, as it would be sent in a vp_token:
// a single presentation as is, multiple presentations as array.
func EnvelopeFromPresentations(presentations []vc.VerifiablePresentation) (*Envelope, error) {
	if len(presentations) == 0 {
		return nil, errors.New("no presentations")
	}
	values, err := PresentationValues(presentations)
	if err != nil {
		return nil, err
	}
	if len(values) == 1 {
		return &Envelope{Interface: values[0], Presentations: presentations}, nil
	}
	return &Envelope{Interface: values, Presentations: presentations}, nil
}

func parsePresentation(value interface{}) (*vc.VerifiablePresentation, error) {
	var raw string
	switch typedValue := value.(type) {
	case string:
		raw = typedValue
	case map[string]interface{}:
		asJSON, _ := json.Marshal(typedValue)
		raw = string(asJSON)
	default:
		return nil, errors.New("unable to parse PEX envelope as verifiable presentation: invalid JWT")
	}
	presentation, err := vc.ParseVerifiablePresentation(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PEX envelope as verifiable presentation: %w", err)
	}
	return presentation, nil
}

// presentationValue returns the vp_token representation of a presentation: the compact JWT for JWT presentations,
// the JSON object for JSON-LD presentations.
func presentationValue(presentation vc.VerifiablePresentation) (interface{}, error) {
	if presentation.Format() == vc.JWTPresentationProofFormat {
		return presentation.Raw(), nil
	}
	value, err := toInterface(presentation)
	if err != nil {
		return nil, err
	}
	if asMap, ok := value.(map[string]interface{}); ok {
		credentialsAsArray(asMap)
	}
	return value, nil
}

// credentialsAsArray makes sure 'verifiableCredential' is an array, since a single credential may be marshalled
// as object. Submission paths always index into the array: "$.verifiableCredential[n]".
func credentialsAsArray(presentation map[string]interface{}) {
	credentials, ok := presentation["verifiableCredential"]
	if !ok {
		return
	}
	if _, isArray := credentials.([]interface{}); !isArray {
		presentation["verifiableCredential"] = []interface{}{credentials}
	}
}

// PresentationValues returns the vp_token representation of the given presentations.
func PresentationValues(presentations []vc.VerifiablePresentation) ([]interface{}, error) {
	result := make([]interface{}, len(presentations))
	for i, presentation := range presentations {
		value, err := presentationValue(presentation)
		if err != nil {
			return nil, err
		}
		result[i] = value
	}
	return result, nil
}

// credentialAsInterface returns the generic JSON representation of a credential, against which JSON paths are
// evaluated. For JWT credentials it's the 'vc' claim, with the registered claims mapped onto it.
func credentialAsInterface(credential vc.VerifiableCredential) (interface{}, error) {
	if credential.Format() == vc.JWTCredentialProofFormat {
		return jwtAsInterface(credential.Raw(), "vc")
	}
	return toInterface(credential)
}

// jwtAsInterface decodes the payload of a JWT credential or presentation. Properties of the claim with the given
// name (e.g. 'vp' or 'vc') are copied to the top level, so paths like '$.verifiableCredential' resolve.
func jwtAsInterface(token string, claim string) (map[string]interface{}, error) {
	decoded, err := crypto.DecodeJWT(token)
	if err != nil {
		return nil, err
	}
	result := decoded.Payload
	if nested, ok := result[claim].(map[string]interface{}); ok {
		for key, value := range nested {
			if _, exists := result[key]; !exists {
				result[key] = value
			}
		}
	}
	if claim == "vp" {
		credentialsAsArray(result)
	}
	if _, exists := result["id"]; !exists && result["jti"] != nil {
		result["id"] = result["jti"]
	}
	if _, exists := result["issuer"]; !exists && result["iss"] != nil {
		result["issuer"] = result["iss"]
	}
	return result, nil
}

// credentialKey returns a value that identifies a credential, used to compare credentials.
func credentialKey(credential vc.VerifiableCredential) (string, error) {
	if credential.Raw() != "" {
		return credential.Raw(), nil
	}
	asJSON, err := json.Marshal(credential)
	if err != nil {
		return "", err
	}
	return string(asJSON), nil
}

func toInterface(value interface{}) (interface{}, error) {
	asJSON, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var result interface{}
	err = json.Unmarshal(asJSON, &result)
	return result, err
}
