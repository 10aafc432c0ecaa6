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
	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
	v2 "github.com/nuts-foundation/nuts-siop/vcr/pe/schema/v2"
)

// ErrUnsupportedFilter is returned when a filter uses unsupported features.
var ErrUnsupportedFilter = errors.New("unsupported filter")

// ErrInvalidPresentationDefinition is returned when a presentation definition doesn't conform to its JSON schema.
var ErrInvalidPresentationDefinition = errors.New("invalid presentation definition")

// Candidate is a struct that holds the result of a match between an input descriptor and a VC
// A non-matching VC also leads to a Candidate, but without a VC.
type Candidate struct {
	InputDescriptor InputDescriptor
	VC              *vc.VerifiableCredential
}

// ParsePresentationDefinition validates the given JSON and parses it into a PresentationDefinition.
// It returns an error if the JSON is invalid or doesn't match the JSON schema for a PresentationDefinition.
func ParsePresentationDefinition(raw []byte) (*PresentationDefinition, error) {
	if err := v2.Validate(raw, v2.PresentationDefinition); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationDefinition, err)
	}
	var result PresentationDefinition
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationDefinition, err)
	}
	return &result, nil
}

// ValidateDefinition checks the given value (a PresentationDefinition or its generic JSON form) against the
// JSON schema of presentation definitions and converts it to a PresentationDefinition.
func ValidateDefinition(value interface{}) (*PresentationDefinition, error) {
	if definition, ok := value.(PresentationDefinition); ok {
		value = &definition
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentationDefinition, err)
	}
	return ParsePresentationDefinition(data)
}

// Match matches the VCs against the presentation definition.
// It implements §5 of the Presentation Exchange specification (v2.x.x pre-Draft, 2023-07-29) (https://identity.foundation/presentation-exchange/#presentation-definition)
// It supports the following:
// - ldp_vc and jwt_vc format
// - pattern, const and enum only on string fields
// - number, boolean, array and string JSON schema types
// - Submission Requirements Feature
// It doesn't do the credential search, this should be done before calling this function.
// The resulting PresentationSubmission has paths that are relative to the matching VCs: "$.verifiableCredential[n]".
// When the definition can't be fulfilled, an empty submission and no credentials are returned.
// ErrUnsupportedFilter is returned when a filter uses unsupported features.
// Other errors can be returned for faulty JSON paths or regex patterns.
func (presentationDefinition PresentationDefinition) Match(vcs []vc.VerifiableCredential) (PresentationSubmission, []vc.VerifiableCredential, error) {
	var candidates []Candidate
	var err error
	if len(presentationDefinition.SubmissionRequirements) > 0 {
		candidates, err = presentationDefinition.matchSubmissionRequirements(vcs)
	} else {
		candidates, err = presentationDefinition.matchBasic(vcs)
	}
	if err != nil {
		return PresentationSubmission{}, nil, err
	}
	if candidates == nil {
		return PresentationSubmission{}, []vc.VerifiableCredential{}, nil
	}
	return presentationDefinition.submissionFor(candidates)
}

// submissionFor creates the descriptor map for the given candidates. A credential that fulfills multiple input
// descriptors is only included once.
func (presentationDefinition PresentationDefinition) submissionFor(candidates []Candidate) (PresentationSubmission, []vc.VerifiableCredential, error) {
	presentationSubmission := PresentationSubmission{
		Id:            uuid.New().String(),
		DefinitionId:  presentationDefinition.Id,
		DescriptorMap: []InputDescriptorMappingObject{},
	}
	selectedVCs := make([]vc.VerifiableCredential, 0)
	indices := make(map[string]int)
	seenDescriptors := make(map[string]bool)
	for _, candidate := range candidates {
		if seenDescriptors[candidate.InputDescriptor.Id] {
			continue
		}
		seenDescriptors[candidate.InputDescriptor.Id] = true
		key, err := credentialKey(*candidate.VC)
		if err != nil {
			return PresentationSubmission{}, nil, err
		}
		index, ok := indices[key]
		if !ok {
			index = len(selectedVCs)
			indices[key] = index
			selectedVCs = append(selectedVCs, *candidate.VC)
		}
		presentationSubmission.DescriptorMap = append(presentationSubmission.DescriptorMap, InputDescriptorMappingObject{
			Id:     candidate.InputDescriptor.Id,
			Format: candidate.VC.Format(),
			Path:   fmt.Sprintf("$.verifiableCredential[%d]", index),
		})
	}
	return presentationSubmission, selectedVCs, nil
}

func (presentationDefinition PresentationDefinition) matchConstraints(vcs []vc.VerifiableCredential) ([]Candidate, error) {
	var candidates []Candidate
	for _, inputDescriptor := range presentationDefinition.InputDescriptors {
		candidate := Candidate{
			InputDescriptor: *inputDescriptor,
		}
		for _, credential := range vcs {
			isMatch, err := matchCredential(*inputDescriptor, credential)
			if err != nil {
				return nil, err
			}
			if isMatch && matchFormat(presentationDefinition.Format, credential) && matchFormat(inputDescriptor.Format, credential) {
				candidate.VC = &credential
				break
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// matchBasic requires every input descriptor to be matched by a credential.
// It returns nil if an input descriptor can't be fulfilled.
func (presentationDefinition PresentationDefinition) matchBasic(vcs []vc.VerifiableCredential) ([]Candidate, error) {
	candidates, err := presentationDefinition.matchConstraints(vcs)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if candidate.VC == nil {
			return nil, nil
		}
	}
	if candidates == nil {
		return []Candidate{}, nil
	}
	return candidates, nil
}

func (presentationDefinition PresentationDefinition) matchSubmissionRequirements(vcs []vc.VerifiableCredential) ([]Candidate, error) {
	// first we use the constraint matching algorithm to get the matching credentials
	candidates, err := presentationDefinition.matchConstraints(vcs)
	if err != nil {
		return nil, err
	}

	// then we check the group constraints
	// for each 'group' in input_descriptor there must be a matching 'from' field in a submission requirement
	availableGroups := make(map[string]GroupCandidates)
	for _, submissionRequirement := range presentationDefinition.SubmissionRequirements {
		for _, group := range submissionRequirement.Groups() {
			availableGroups[group] = GroupCandidates{
				Name: group,
			}
		}
	}
	for _, group := range presentationDefinition.groups() {
		if _, ok := availableGroups[group]; !ok {
			return nil, fmt.Errorf("group %s is required but not available", group)
		}
	}

	// now we know there are no missing groups, we add each candidate to the correct group(s)
	for _, candidate := range candidates {
		for _, group := range candidate.InputDescriptor.Group {
			current := availableGroups[group]
			current.Candidates = append(current.Candidates, candidate)
			availableGroups[group] = current
		}
	}

	// for each submission requirement:
	// we select the candidates that match the requirement
	selected := make([]Candidate, 0)
	for _, submissionRequirement := range presentationDefinition.SubmissionRequirements {
		submissionRequirementCandidates, err := submissionRequirement.match(availableGroups)
		if err != nil {
			return nil, err
		}
		selected = append(selected, submissionRequirementCandidates...)
	}
	return selected, nil
}

// groups returns the names of all groups referenced by the input descriptors.
func (presentationDefinition PresentationDefinition) groups() []string {
	seen := make(map[string]bool)
	var result []string
	for _, inputDescriptor := range presentationDefinition.InputDescriptors {
		for _, group := range inputDescriptor.Group {
			if !seen[group] {
				seen[group] = true
				result = append(result, group)
			}
		}
	}
	return result
}

// InputDescriptor returns the input descriptor with the given ID, or nil if it doesn't exist.
func (presentationDefinition PresentationDefinition) InputDescriptor(id string) *InputDescriptor {
	for _, inputDescriptor := range presentationDefinition.InputDescriptors {
		if inputDescriptor.Id == id {
			return inputDescriptor
		}
	}
	return nil
}

// matchFormat checks if the credential matches the given claim format designations.
// If one of format['ldp_vc'] or format['jwt_vc'] is present, the VC must match that format.
// For ldp_vc, a listed proof_type must also match one of the proofs of the VC.
// vp formats are ignored.
func matchFormat(format *PresentationDefinitionClaimFormatDesignations, credential vc.VerifiableCredential) bool {
	if format == nil {
		return true
	}

	asMap := map[string]map[string][]string(*format)
	// we're only interested in the jwt_vc and ldp_vc formats
	jwtEntry, hasJWT := jwtCredentialFormat(asMap)
	ldpEntry, hasLDP := asMap[vc.JSONLDCredentialProofFormat]
	if !hasJWT && !hasLDP {
		return true
	}

	switch credential.Format() {
	case vc.JWTCredentialProofFormat:
		return hasJWT && matchAlgorithm(jwtEntry["alg"], credential)
	case vc.JSONLDCredentialProofFormat:
		if !hasLDP {
			return false
		}
		proofTypes := ldpEntry["proof_type"]
		if len(proofTypes) == 0 {
			return true
		}
		for _, proofType := range proofTypes {
			if matchProofType(proofType, credential) {
				return true
			}
		}
	}
	return false
}

// jwtCredentialFormat returns the entry for JWT credentials, which is registered as 'jwt_vc' or 'jwt_vc_json'.
func jwtCredentialFormat(formats map[string]map[string][]string) (map[string][]string, bool) {
	if entry, ok := formats[vc.JWTCredentialProofFormat]; ok {
		return entry, true
	}
	entry, ok := formats["jwt_vc_json"]
	return entry, ok
}

func matchAlgorithm(algorithms []string, credential vc.VerifiableCredential) bool {
	if len(algorithms) == 0 {
		return true
	}
	decoded, err := crypto.DecodeJWT(credential.Raw())
	if err != nil {
		return false
	}
	for _, alg := range algorithms {
		if string(decoded.Algorithm()) == alg {
			return true
		}
	}
	return false
}

func matchProofType(proofType string, credential vc.VerifiableCredential) bool {
	proofs, _ := credential.Proofs()
	for _, p := range proofs {
		if string(p.Type) == proofType {
			return true
		}
	}
	return false
}

func matchCredential(descriptor InputDescriptor, credential vc.VerifiableCredential) (bool, error) {
	// for each constraint in descriptor.constraints:
	//   a vc must match the constraint
	if descriptor.Constraints != nil {
		return matchConstraint(descriptor.Constraints, credential)
	}
	return true, nil
}

// matchConstraint matches the constraint against the VC.
// All Fields need to match according to the Field rules.
// IsHolder, SameSubject, SubjectIsIssuer, Statuses are not supported for now.
// LimitDisclosure is not supported for now.
func matchConstraint(constraint *Constraints, credential vc.VerifiableCredential) (bool, error) {
	// jsonpath works on interfaces, so convert the VC to an interface
	asInterface, err := credentialAsInterface(credential)
	if err != nil {
		return false, err
	}
	for _, field := range constraint.Fields {
		match, err := matchField(field, asInterface)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

// matchField matches the field against the VC.
// All fields need to match unless optional is set to true and no values are found for all the paths.
func matchField(field Field, credential interface{}) (bool, error) {
	// for each path in field.paths:
	//   a vc must match one of the path
	var optionalInvalid int
	for _, path := range field.Path {
		// if path is not found continue
		value, err := getValueAtPath(path, credential)
		if err != nil {
			return false, err
		}
		if value == nil {
			continue
		}

		if field.Filter == nil {
			return true, nil
		}

		// if filter at path matches return true
		match, err := matchFilter(*field.Filter, value)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
		// if filter at path does not match continue and set optionalInvalid
		optionalInvalid++
	}
	// no matches, check optional. Optional is only valid if all paths returned no results
	// not if a filter did not match
	if field.Optional != nil && *field.Optional && optionalInvalid == 0 {
		return true, nil
	}
	return false, nil
}

// getValueAtPath uses the JSON path expression to get the value from the VC
func getValueAtPath(path string, vcAsInterface interface{}) (interface{}, error) {
	value, err := jsonpath.Get(path, vcAsInterface)
	// jsonpath.Get returns some errors if the path is not found, or it has a different type as expected
	if err != nil && (strings.HasPrefix(err.Error(), "unknown key") || strings.HasPrefix(err.Error(), "unsupported value type")) {
		return nil, nil
	}
	return value, err
}

// matchFilter matches the value against the filter.
// A filter is a JSON Schema descriptor (https://json-schema.org/draft/2020-12/json-schema-validation.html#name-a-vocabulary-for-structural)
// Supported schema types: string, number, boolean, array, enum.
// Supported schema properties: const, enum, pattern. These only work for strings.
// Supported go value types: string, float64, int, bool and array.
// 'null' values are also not supported.
// It returns an error on unsupported features or when the regex pattern fails.
func matchFilter(filter Filter, value interface{}) (bool, error) {
	// first we check if it's an enum, so we can recursively call matchFilter for each value
	if filter.Enum != nil {
		for _, enum := range filter.Enum {
			f := Filter{
				Type:  "string",
				Const: &enum,
			}
			match, _ := matchFilter(f, value)
			if match {
				return true, nil
			}
		}
		return false, nil
	}

	switch typedValue := value.(type) {
	case string:
		if filter.Type != "string" {
			return false, nil
		}
	case float64, int:
		if filter.Type != "number" {
			return false, nil
		}
	case bool:
		if filter.Type != "boolean" {
			return false, nil
		}
	case []interface{}:
		if filter.Type == "array" {
			return true, nil
		}
		for _, v := range typedValue {
			match, err := matchFilter(filter, v)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
		return false, nil
	default:
		// object not supported for now
		return false, ErrUnsupportedFilter
	}

	if filter.Const != nil {
		if value != *filter.Const {
			return false, nil
		}
	}

	if filter.Pattern != nil && filter.Type == "string" {
		re, err := regexp2.Compile(*filter.Pattern, regexp2.ECMAScript)
		if err != nil {
			return false, err
		}
		return re.MatchString(value.(string))
	}

	// if we get here, no pattern, enum or const is requested just the type.
	return true, nil
}
