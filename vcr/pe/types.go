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

// PresentationDefinitionClaimFormatDesignations maps a claim format (e.g. jwt_vc, ldp_vp) to its supported
// algorithms ('alg') or proof types ('proof_type').
type PresentationDefinitionClaimFormatDesignations map[string]map[string][]string

// PresentationDefinition describes the proofs a verifier requires from a holder.
type PresentationDefinition struct {
	Format                 *PresentationDefinitionClaimFormatDesignations `json:"format,omitempty"`
	Frame                  map[string]interface{}                          `json:"frame,omitempty"`
	Id                     string                                          `json:"id"`
	InputDescriptors       []*InputDescriptor                              `json:"input_descriptors"`
	Name                   string                                          `json:"name,omitempty"`
	Purpose                *string                                         `json:"purpose,omitempty"`
	SubmissionRequirements []*SubmissionRequirement                        `json:"submission_requirements,omitempty"`
}

// InputDescriptor describes a single credential the verifier requires.
type InputDescriptor struct {
	Constraints *Constraints                                   `json:"constraints,omitempty"`
	Format      *PresentationDefinitionClaimFormatDesignations `json:"format,omitempty"`
	Group       []string                                       `json:"group,omitempty"`
	Id          string                                         `json:"id"`
	Name        string                                         `json:"name,omitempty"`
	Purpose     string                                         `json:"purpose,omitempty"`
}

// Constraints holds the field constraints of an input descriptor.
type Constraints struct {
	Fields          []Field `json:"fields,omitempty"`
	LimitDisclosure *string `json:"limit_disclosure,omitempty"`
	SubjectIsIssuer *string `json:"subject_is_issuer,omitempty"`
}

// Field selects a value in a credential with JSON paths and optionally filters it.
type Field struct {
	Id             *string  `json:"id,omitempty"`
	Optional       *bool    `json:"optional,omitempty"`
	Path           []string `json:"path"`
	Purpose        *string  `json:"purpose,omitempty"`
	Name           *string  `json:"name,omitempty"`
	IntentToRetain *bool    `json:"intent_to_retain,omitempty"`
	Filter         *Filter  `json:"filter,omitempty"`
	Predicate      *string  `json:"predicate,omitempty"`
}

// Filter is a JSON schema descriptor applied to the value selected by a Field.
type Filter struct {
	Type    string   `json:"type"`
	Const   *string  `json:"const,omitempty"`
	Enum    []string `json:"enum,omitempty"`
	Pattern *string  `json:"pattern,omitempty"`
}

// SubmissionRequirement describes which combinations of input descriptors satisfy the definition.
type SubmissionRequirement struct {
	Count      *int                     `json:"count,omitempty"`
	From       string                   `json:"from,omitempty"`
	FromNested []*SubmissionRequirement `json:"from_nested,omitempty"`
	Max        *int                     `json:"max,omitempty"`
	Min        *int                     `json:"min,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Purpose    string                   `json:"purpose,omitempty"`
	Rule       string                   `json:"rule"`
}

// PresentationSubmission describes how the VCs in the VP match the input descriptors in the PD
type PresentationSubmission struct {
	// Id is the id of the presentation submission, which is a UUID
	Id string `json:"id"`
	// DefinitionId is the id of the presentation definition that this submission is for
	DefinitionId string `json:"definition_id"`
	// DescriptorMap is a list of mappings from input descriptors to VCs
	DescriptorMap []InputDescriptorMappingObject `json:"descriptor_map"`
}

// InputDescriptorMappingObject maps an input descriptor to the location of the credential fulfilling it.
// PathNested is set when the credential is embedded in the value at Path, e.g. a credential in a presentation.
type InputDescriptorMappingObject struct {
	Id         string                        `json:"id"`
	Path       string                        `json:"path"`
	Format     string                        `json:"format"`
	PathNested *InputDescriptorMappingObject `json:"path_nested,omitempty"`
}
