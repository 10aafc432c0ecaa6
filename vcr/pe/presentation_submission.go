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
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/go-did/vc"
	v2 "github.com/nuts-foundation/nuts-siop/vcr/pe/schema/v2"
)

// ErrInvalidPresentationSubmission is returned when a presentation submission doesn't conform to its JSON schema.
var ErrInvalidPresentationSubmission = errors.New("invalid presentation submission")

// ParsePresentationSubmission validates the given JSON and parses it into a PresentationSubmission.
// It returns an error if the JSON is invalid or doesn't match the JSON schema for a PresentationSubmission.
func ParsePresentationSubmission(raw []byte) (*PresentationSubmission, error) {
	if err := v2.Validate(raw, v2.PresentationSubmission); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationSubmission, err)
	}
	var result PresentationSubmission
	err := json.Unmarshal(raw, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationSubmission, err)
	}
	return &result, nil
}

// ValidateSubmission checks the given value (a PresentationSubmission or its generic JSON form) against the
// JSON schema of presentation submissions and converts it to a PresentationSubmission.
func ValidateSubmission(value interface{}) (*PresentationSubmission, error) {
	if asString, ok := value.(string); ok {
		return ParsePresentationSubmission([]byte(asString))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationSubmission, err)
	}
	return ParsePresentationSubmission(data)
}

// MergeSubmissions combines the descriptor maps of the given submissions into one submission for the given
// definition ID. The i-th submission is taken to describe the i-th presentation of the envelope: if there are
// multiple, its mappings are nested under "$[i]".
func MergeSubmissions(definitionID string, submissions []PresentationSubmission, vpFormats []string) PresentationSubmission {
	result := PresentationSubmission{
		Id:            uuid.New().String(),
		DefinitionId:  definitionID,
		DescriptorMap: []InputDescriptorMappingObject{},
	}
	for i, submission := range submissions {
		for _, mapping := range submission.DescriptorMap {
			if len(submissions) == 1 {
				result.DescriptorMap = append(result.DescriptorMap, mapping)
				continue
			}
			nested := mapping
			format := ""
			if i < len(vpFormats) {
				format = vpFormats[i]
			}
			result.DescriptorMap = append(result.DescriptorMap, InputDescriptorMappingObject{
				Id:         mapping.Id,
				Format:     format,
				Path:       fmt.Sprintf("$[%d]", i),
				PathNested: &nested,
			})
		}
	}
	return result
}

// PresentationSubmissionBuilder is a builder for PresentationSubmissions.
// Multiple wallets can be added to the builder.
type PresentationSubmissionBuilder struct {
	holders                []did.DID
	presentationDefinition PresentationDefinition
	wallets                [][]vc.VerifiableCredential
}

// PresentationSubmissionBuilder returns a new PresentationSubmissionBuilder.
// A PresentationSubmissionBuilder can be used to create a PresentationSubmission with multiple wallets as input.
func (presentationDefinition PresentationDefinition) PresentationSubmissionBuilder() PresentationSubmissionBuilder {
	return PresentationSubmissionBuilder{
		presentationDefinition: presentationDefinition,
	}
}

// AddWallet adds credentials from a wallet that may be used to create the PresentationSubmission.
func (b *PresentationSubmissionBuilder) AddWallet(holder did.DID, vcs []vc.VerifiableCredential) *PresentationSubmissionBuilder {
	b.holders = append(b.holders, holder)
	b.wallets = append(b.wallets, vcs)
	return b
}

// SignInstruction is a list of Holder/VCs combinations that can be used to create a VerifiablePresentation.
// When using multiple wallets, the outcome of a PresentationSubmission might require multiple VPs.
type SignInstruction struct {
	// Holder contains the DID of the holder that should sign the VP.
	Holder did.DID
	// VerifiableCredentials contains the VCs that should be included in the VP.
	VerifiableCredentials []vc.VerifiableCredential
	// Mappings contains the Input Descriptor that are mapped by this SignInstruction.
	Mappings []InputDescriptorMappingObject
}

// Empty returns true if there are no VCs in the SignInstruction.
func (signInstruction SignInstruction) Empty() bool {
	return len(signInstruction.VerifiableCredentials) == 0
}

// SignInstructions is a list of SignInstruction.
type SignInstructions []SignInstruction

// Empty returns true if all SignInstructions are empty.
func (signInstructions SignInstructions) Empty() bool {
	for _, signInstruction := range []SignInstruction(signInstructions) {
		if !signInstruction.Empty() {
			return false
		}
	}
	return true
}

// Build creates a PresentationSubmission from the added wallets.
// The VP format is determined by the given format.
func (b *PresentationSubmissionBuilder) Build(format string) (PresentationSubmission, SignInstructions, error) {
	presentationSubmission := PresentationSubmission{
		Id:            uuid.New().String(),
		DefinitionId:  b.presentationDefinition.Id,
		DescriptorMap: []InputDescriptorMappingObject{},
	}

	// first we need to select the VCs from all wallets that match the presentation definition
	allVCs := make([]vc.VerifiableCredential, 0)
	for _, vcs := range b.wallets {
		allVCs = append(allVCs, vcs...)
	}

	matched, selectedVCs, err := b.presentationDefinition.Match(allVCs)
	if err != nil {
		return presentationSubmission, nil, err
	}

	// next we need to map the selected VCs to the correct wallet
	signInstructions := make([]SignInstruction, len(b.wallets))
	for _, mapping := range matched.DescriptorMap {
		selected := selectedVCs[indexOfPath(mapping.Path)]
		selectedKey, _ := credentialKey(selected)
		for i, walletVCs := range b.wallets {
			if !containsCredential(walletVCs, selectedKey) {
				continue
			}
			signInstructions[i].Holder = b.holders[i]
			index := -1
			for j, current := range signInstructions[i].VerifiableCredentials {
				if key, _ := credentialKey(current); key == selectedKey {
					index = j
				}
			}
			if index == -1 {
				index = len(signInstructions[i].VerifiableCredentials)
				signInstructions[i].VerifiableCredentials = append(signInstructions[i].VerifiableCredentials, selected)
			}
			// remap the path to the index within the wallet's VP
			mapping.Path = fmt.Sprintf("$.verifiableCredential[%d]", index)
			signInstructions[i].Mappings = append(signInstructions[i].Mappings, mapping)
			break
		}
	}

	// filter out empty sign instructions
	nonEmptySignInstructions := make([]SignInstruction, 0)
	for _, signInstruction := range signInstructions {
		if !signInstruction.Empty() {
			nonEmptySignInstructions = append(nonEmptySignInstructions, signInstruction)
		}
	}

	// last we create the descriptor map for the presentation submission
	// If there's only one sign instruction the Path will be $.
	// If there are multiple sign instructions (each yielding a VP) the Path will be $[0], $[1], etc.
	for index, signInstruction := range nonEmptySignInstructions {
		for _, inputDescriptorMapping := range signInstruction.Mappings {
			nested := inputDescriptorMapping
			path := "$"
			if len(nonEmptySignInstructions) > 1 {
				path = fmt.Sprintf("$[%d]", index)
			}
			presentationSubmission.DescriptorMap = append(presentationSubmission.DescriptorMap, InputDescriptorMappingObject{
				Id:         inputDescriptorMapping.Id,
				Format:     format,
				Path:       path,
				PathNested: &nested,
			})
		}
	}

	return presentationSubmission, nonEmptySignInstructions, nil
}

func containsCredential(vcs []vc.VerifiableCredential, key string) bool {
	for _, curr := range vcs {
		if currKey, _ := credentialKey(curr); currKey == key {
			return true
		}
	}
	return false
}

// indexOfPath returns n of a "$.verifiableCredential[n]" path.
func indexOfPath(path string) int {
	var index int
	_, _ = fmt.Sscanf(path, "$.verifiableCredential[%d]", &index)
	return index
}

// Resolve returns a map where each of the input descriptors is mapped to the corresponding VerifiableCredential.
// If an input descriptor can't be mapped to a VC, an error is returned.
// This function is specified by https://identity.foundation/presentation-exchange/#processing-of-submission-entries
func (s PresentationSubmission) Resolve(envelope interface{}) (map[string]vc.VerifiableCredential, error) {
	switch envelope.(type) {
	case []interface{}:
		// list of VPs
	case map[string]interface{}:
		// single VP (JSON)
	case string:
		// single VP (JWT)
	default:
		return nil, errors.New("invalid Presentation Exchange envelope")
	}

	result := make(map[string]vc.VerifiableCredential)
	for _, inputDescriptor := range s.DescriptorMap {
		resolvedCredential, err := resolveCredential(nil, inputDescriptor, envelope)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve credential for input descriptor '%s': %w", inputDescriptor.Id, err)
		}
		result[inputDescriptor.Id] = *resolvedCredential
	}
	return result, nil
}

func resolveCredential(path []string, mapping InputDescriptorMappingObject, value interface{}) (*vc.VerifiableCredential, error) {
	fullPath := append(path, mapping.Path)
	fullPathString := strings.Join(fullPath, "/")

	// paths into a JWT presentation are evaluated against its decoded payload
	if token, isString := value.(string); isString && mapping.Path != "$" {
		decoded, err := jwtAsInterface(token, "vp")
		if err != nil {
			return nil, fmt.Errorf("invalid JWT presentation at path '%s': %w", strings.Join(path, "/"), err)
		}
		value = decoded
	}

	targetValueRaw, err := jsonpath.Get(mapping.Path, value)
	if err != nil {
		return nil, fmt.Errorf("unable to get value for path %s: %w", fullPathString, err)
	}

	var decodedTargetValue interface{}
	var nestedValue interface{}
	switch targetValue := targetValueRaw.(type) {
	case string:
		// must be JWT VC or VP
		switch mapping.Format {
		case vc.JWTCredentialProofFormat, "jwt_vc_json":
			decodedTargetValue, err = vc.ParseVerifiableCredential(targetValue)
			if err != nil {
				return nil, fmt.Errorf("invalid JWT credential at path '%s': %w", fullPathString, err)
			}
		case vc.JWTPresentationProofFormat, "jwt_vp_json":
			decodedTargetValue, err = vc.ParseVerifiablePresentation(targetValue)
			if err != nil {
				return nil, fmt.Errorf("invalid JWT presentation at path '%s': %w", fullPathString, err)
			}
			nestedValue = targetValue
		}
	case map[string]interface{}:
		// must be JSON-LD
		targetValueAsJSON, _ := json.Marshal(targetValue)
		switch mapping.Format {
		case vc.JSONLDCredentialProofFormat:
			decodedTargetValue, err = vc.ParseVerifiableCredential(string(targetValueAsJSON))
			if err != nil {
				return nil, fmt.Errorf("invalid JSON-LD credential at path '%s': %w", fullPathString, err)
			}
		case vc.JSONLDPresentationProofFormat:
			decodedTargetValue, err = vc.ParseVerifiablePresentation(string(targetValueAsJSON))
			if err != nil {
				return nil, fmt.Errorf("invalid JSON-LD presentation at path '%s': %w", fullPathString, err)
			}
			nestedValue = targetValue
		}
	}
	if decodedTargetValue == nil {
		return nil, fmt.Errorf("value of Go type '%T' at path '%s' can't be decoded using format '%s'", targetValueRaw, fullPathString, mapping.Format)
	}
	if mapping.PathNested == nil {
		if decodedCredential, ok := decodedTargetValue.(*vc.VerifiableCredential); ok {
			return decodedCredential, nil
		}
		return nil, fmt.Errorf("path '%s' does not reference a credential", fullPathString)
	}
	// path_nested implies the credential is not found at the evaluated JSON path, but further down in the presentation.
	if nestedValue == nil {
		return nil, fmt.Errorf("path '%s' does not reference a presentation", fullPathString)
	}
	return resolveCredential(fullPath, *mapping.PathNested, nestedValue)
}
