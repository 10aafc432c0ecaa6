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

// Package pex discovers the presentation definitions of an authorization request and checks the verifiable
// presentations of an authorization response against them.
package pex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
)

// ErrAmbiguousDefinitionSource is returned when a presentation definition is passed both by value and by reference.
var ErrAmbiguousDefinitionSource = errors.New("presentation definition can't be passed by value and by reference at the same time")

// ErrAuthRequestExpectsVP is returned when the authorization request asks for verifiable presentations, but not (enough) were provided.
var ErrAuthRequestExpectsVP = errors.New("authorization request expects a verifiable presentation in the response")

// ErrAuthRequestDoesntExpectVP is returned when verifiable presentations were provided, but the authorization request didn't ask for them.
var ErrAuthRequestDoesntExpectVP = errors.New("authorization request doesn't expect a verifiable presentation in the response")

// ErrPresentationSignatureInvalid is returned when the verification callback rejects a verifiable presentation.
var ErrPresentationSignatureInvalid = errors.New("verifiable presentation signature is not valid")

// ErrMissingSubmission is returned when presentations must be evaluated, but there's no presentation submission describing them.
var ErrMissingSubmission = errors.New("no presentation submission for presentation definition")

// Location is where a presentation definition was found in an authorization request.
type Location string

const (
	// LocationClaimsVPToken is claims.vp_token.presentation_definition[_uri], used before D11.
	LocationClaimsVPToken Location = "CLAIMS_VP_TOKEN"
	// LocationTopLevel is the top-level presentation_definition[_uri] parameter.
	LocationTopLevel Location = "TOPLEVEL_PRESENTATION_DEF"
)

// DefinitionWithLocation is a presentation definition discovered in an authorization request.
type DefinitionWithLocation struct {
	Definition pe.PresentationDefinition `json:"definition"`
	Location   Location                  `json:"location"`
	Version    version.Version           `json:"version,omitempty"`
}

// PresentationVerifier verifies the signature (proof) of a verifiable presentation.
type PresentationVerifier func(ctx context.Context, presentation vc.VerifiablePresentation) error

type discovery struct {
	ctx         context.Context
	fetcher     codec.Fetcher
	version     version.Version
	definitions []DefinitionWithLocation
}

// FindValidPresentationDefinitions returns the presentation definitions of the given (merged) authorization request payload.
// Definitions passed by reference are fetched. Every definition is validated against the Presentation Exchange JSON schema,
// definitions with an ID that was already seen are skipped.
func FindValidPresentationDefinitions(ctx context.Context, payload oauth.Payload, v version.Version, fetcher codec.Fetcher) ([]DefinitionWithLocation, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	d := discovery{ctx: ctx, fetcher: fetcher, version: v}
	if v == 0 || v < version.D11 {
		if err := d.fromClaims(payload); err != nil {
			return nil, err
		}
	}
	if err := d.fromTopLevel(payload); err != nil {
		return nil, err
	}
	return d.definitions, nil
}

func (d *discovery) fromClaims(payload oauth.Payload) error {
	var document interface{}
	if err := oauth.Convert(payload, &document); err != nil {
		return fmt.Errorf("%w: %w", oauth.ErrMalformedInput, err)
	}
	byValue := selectAll("$..vp_token.presentation_definition", document)
	byReference := selectAll("$..vp_token.presentation_definition_uri", document)
	if len(byValue) > 0 && len(byReference) > 0 {
		return ErrAmbiguousDefinitionSource
	}
	for _, value := range byValue {
		if err := d.add(value, LocationClaimsVPToken); err != nil {
			return err
		}
	}
	for _, reference := range byReference {
		if err := d.addByReference(reference, LocationClaimsVPToken); err != nil {
			return err
		}
	}
	return nil
}

func (d *discovery) fromTopLevel(payload oauth.Payload) error {
	byValue := asList(payload[oauth.PresentationDefParam])
	byReference := asList(payload[oauth.PresentationDefUriParam])
	if len(byValue) > 0 && len(byReference) > 0 {
		return ErrAmbiguousDefinitionSource
	}
	for _, value := range byValue {
		if err := d.add(value, LocationTopLevel); err != nil {
			return err
		}
	}
	for _, reference := range byReference {
		if err := d.addByReference(reference, LocationTopLevel); err != nil {
			return err
		}
	}
	return nil
}

func (d *discovery) addByReference(reference interface{}, location Location) error {
	uri, ok := reference.(string)
	if !ok || uri == "" {
		return fmt.Errorf("%w: presentation definition URI must be a string", oauth.ErrMalformedInput)
	}
	value, err := codec.FetchByReferenceOrUseByValue[map[string]interface{}](d.ctx, d.fetcher, uri, nil)
	if err != nil {
		return err
	}
	return d.add(*value, location)
}

func (d *discovery) add(value interface{}, location Location) error {
	id := definitionID(value)
	for _, existing := range d.definitions {
		if existing.Definition.Id == id {
			log.Logger().
				WithField(core.LogFieldDefinitionID, id).
				Warn("Presentation definition encountered more than once, skipping it")
			return nil
		}
	}
	definition, err := pe.ValidateDefinition(value)
	if err != nil {
		return err
	}
	d.definitions = append(d.definitions, DefinitionWithLocation{
		Definition: *definition,
		Location:   location,
		Version:    d.version,
	})
	return nil
}

func definitionID(value interface{}) string {
	switch typed := value.(type) {
	case map[string]interface{}:
		id, _ := typed["id"].(string)
		return id
	case pe.PresentationDefinition:
		return typed.Id
	case *pe.PresentationDefinition:
		return typed.Id
	}
	return ""
}

// selectAll returns all values matching the JSONPath expression, or nothing if the path doesn't match.
func selectAll(path string, document interface{}) []interface{} {
	result, err := jsonpath.Get(path, document)
	if err != nil {
		return nil
	}
	if list, ok := result.([]interface{}); ok {
		return list
	}
	return []interface{}{result}
}

func asList(value interface{}) []interface{} {
	switch typed := value.(type) {
	case nil:
		return nil
	case []interface{}:
		return typed
	case []string:
		result := make([]interface{}, len(typed))
		for i, curr := range typed {
			result[i] = curr
		}
		return result
	case []pe.PresentationDefinition:
		result := make([]interface{}, len(typed))
		for i, curr := range typed {
			result[i] = curr
		}
		return result
	case string:
		if typed == "" {
			return nil
		}
	}
	return []interface{}{value}
}

// Claims is the claims parameter of an authorization request (OpenID Connect Core §5.5), as used by SIOPv2 before D11
// to request verifiable presentations.
type Claims struct {
	IDToken map[string]interface{} `json:"id_token,omitempty"`
	VPToken *VPTokenClaims         `json:"vp_token,omitempty"`
}

// VPTokenClaims requests verifiable presentations through a presentation definition, by value or by reference.
type VPTokenClaims struct {
	PresentationDefinition    *pe.PresentationDefinition `json:"presentation_definition,omitempty"`
	PresentationDefinitionURI string                     `json:"presentation_definition_uri,omitempty"`
}

// CreateClaimsProperties creates the claims parameter for an authorization request (object).
// It returns nil if no presentation definition is requested.
func CreateClaimsProperties(claims *Claims) (oauth.Payload, error) {
	if claims == nil || claims.VPToken == nil ||
		(claims.VPToken.PresentationDefinition == nil && claims.VPToken.PresentationDefinitionURI == "") {
		return nil, nil
	}
	vpToken := map[string]interface{}{}
	if claims.VPToken.PresentationDefinition != nil {
		if claims.VPToken.PresentationDefinitionURI != "" {
			return nil, ErrAmbiguousDefinitionSource
		}
		definition, err := pe.ValidateDefinition(*claims.VPToken.PresentationDefinition)
		if err != nil {
			return nil, err
		}
		var asMap map[string]interface{}
		if err = oauth.Convert(definition, &asMap); err != nil {
			return nil, err
		}
		vpToken[oauth.PresentationDefParam] = asMap
	} else {
		vpToken[oauth.PresentationDefUriParam] = claims.VPToken.PresentationDefinitionURI
	}
	result := oauth.Payload{oauth.VpTokenParam: vpToken}
	if claims.IDToken != nil {
		result[oauth.IDTokenParam] = claims.IDToken
	}
	return result, nil
}

// ExtractPresentations parses the vp_token of an authorization response. It returns nil if there is no vp_token.
func ExtractPresentations(payload oauth.Payload) (*pe.Envelope, error) {
	value, ok := payload[oauth.VpTokenParam]
	if !ok || value == nil {
		return nil, nil
	}
	if asString, ok := value.(string); ok && len(asString) > 0 && (asString[0] == '{' || asString[0] == '[') {
		envelope, err := pe.ParseEnvelope([]byte(asString))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid vp_token: %w", oauth.ErrMalformedInput, err)
		}
		return envelope, nil
	}
	var normalized interface{}
	if err := oauth.Convert(value, &normalized); err != nil {
		return nil, fmt.Errorf("%w: invalid vp_token: %w", oauth.ErrMalformedInput, err)
	}
	envelope, err := pe.EnvelopeFromValue(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vp_token: %w", oauth.ErrMalformedInput, err)
	}
	return envelope, nil
}

// ExtractSubmission returns the presentation submission of an authorization response: the presentation_submission
// parameter, or (before D11) the _vp_token.presentation_submission claim of the ID token. It returns nil if there is none.
func ExtractSubmission(payload oauth.Payload, idTokenPayload oauth.Payload) (*pe.PresentationSubmission, error) {
	value := payload[oauth.PresentationSubmissionParam]
	if value == nil && idTokenPayload != nil {
		value = idTokenPayload.Path(oauth.IDTokenVPTokenParam, oauth.PresentationSubmissionParam)
	}
	if value == nil {
		return nil, nil
	}
	if asString, ok := value.(string); ok {
		var decoded interface{}
		if err := json.Unmarshal([]byte(asString), &decoded); err != nil {
			return nil, fmt.Errorf("%w: invalid presentation submission: %w", oauth.ErrMalformedInput, err)
		}
		value = decoded
	}
	return pe.ValidateSubmission(value)
}

// AssertOptions contains the input of AssertValidVerifiablePresentations.
type AssertOptions struct {
	// Definitions are the presentation definitions of the authorization request.
	Definitions []DefinitionWithLocation
	// Presentations is the vp_token of the authorization response, nil if it has none.
	Presentations *pe.Envelope
	// Submission describes how the presentations fulfill the definitions.
	Submission *pe.PresentationSubmission
	// Verifier verifies the signature of every presentation. It's optional when creating a response.
	Verifier PresentationVerifier
	// Evaluator evaluates the presentations against the definitions, defaults to pe.NewEvaluator().
	Evaluator pe.Evaluator
}

// AssertValidVerifiablePresentations checks that the presentations fulfill the presentation definitions:
// there must be exactly one presentation per definition, every presentation's signature must be valid
// and the submission must map the credentials to the input descriptors of its definition.
func AssertValidVerifiablePresentations(ctx context.Context, opts AssertOptions) error {
	var presentations []vc.VerifiablePresentation
	if opts.Presentations != nil {
		presentations = opts.Presentations.Presentations
	}
	switch {
	case len(opts.Definitions) == 0 && len(presentations) == 0:
		return nil
	case len(presentations) == 0:
		return ErrAuthRequestExpectsVP
	case len(opts.Definitions) == 0:
		return ErrAuthRequestDoesntExpectVP
	case len(opts.Definitions) != len(presentations):
		return fmt.Errorf("%w: %d presentation definition(s), but %d presentation(s)", ErrAuthRequestExpectsVP, len(opts.Definitions), len(presentations))
	}
	for _, definition := range opts.Definitions {
		if _, err := pe.ValidateDefinition(definition.Definition); err != nil {
			return err
		}
	}
	if opts.Verifier != nil {
		for _, presentation := range presentations {
			if err := opts.Verifier(ctx, presentation); err != nil {
				return core.WrapError(ErrPresentationSignatureInvalid, err)
			}
		}
	}
	if opts.Submission == nil {
		return ErrMissingSubmission
	}
	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = pe.NewEvaluator()
	}
	for _, definition := range opts.Definitions {
		if opts.Submission.DefinitionId != definition.Definition.Id {
			return fmt.Errorf("%w (definition=%s)", ErrMissingSubmission, definition.Definition.Id)
		}
		if err := evaluator.Evaluate(definition.Definition, *opts.Presentations, *opts.Submission); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the plain presentation definitions.
func Definitions(definitions []DefinitionWithLocation) []pe.PresentationDefinition {
	result := make([]pe.PresentationDefinition, len(definitions))
	for i, curr := range definitions {
		result[i] = curr.Definition
	}
	return result
}
