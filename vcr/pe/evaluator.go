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
	"errors"
	"fmt"

	"github.com/nuts-foundation/go-did/vc"
)

// ErrSubmissionMismatch is returned when a presentation submission doesn't fulfill the presentation definition.
var ErrSubmissionMismatch = errors.New("presentation submission doesn't match presentation definition")

// Evaluator evaluates presentations against presentation definitions.
type Evaluator interface {
	// Evaluate checks that the presentation submission maps the credentials in the envelope to the input descriptors
	// of the definition, and that each mapped credential fulfills its input descriptor.
	// It returns an error matching ErrSubmissionMismatch if it doesn't.
	Evaluate(definition PresentationDefinition, envelope Envelope, submission PresentationSubmission) error
}

var _ Evaluator = (*StructuralEvaluator)(nil)

// StructuralEvaluator is the default Evaluator. It checks the structure of submissions and the field constraints
// and formats of input descriptors. Holder binding, limited disclosure and credential status directives are not evaluated.
type StructuralEvaluator struct{}

// NewEvaluator returns the default Evaluator.
func NewEvaluator() *StructuralEvaluator {
	return &StructuralEvaluator{}
}

func (e StructuralEvaluator) Evaluate(definition PresentationDefinition, envelope Envelope, submission PresentationSubmission) error {
	if submission.DefinitionId != definition.Id {
		return fmt.Errorf("%w: submission is for definition '%s', expected '%s'", ErrSubmissionMismatch, submission.DefinitionId, definition.Id)
	}
	if len(envelope.Presentations) == 0 {
		return fmt.Errorf("%w: no presentations", ErrSubmissionMismatch)
	}
	for _, presentation := range envelope.Presentations {
		if len(presentation.VerifiableCredential) == 0 {
			return fmt.Errorf("%w: presentation does not contain credentials", ErrSubmissionMismatch)
		}
	}
	resolved, err := submission.Resolve(envelope.Interface)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionMismatch, err)
	}
	for inputDescriptorID := range resolved {
		if definition.InputDescriptor(inputDescriptorID) == nil {
			return fmt.Errorf("%w: unknown input descriptor '%s'", ErrSubmissionMismatch, inputDescriptorID)
		}
	}

	if len(definition.SubmissionRequirements) == 0 {
		// every input descriptor must be fulfilled by the credential the submission maps to it
		for _, inputDescriptor := range definition.InputDescriptors {
			credential, ok := resolved[inputDescriptor.Id]
			if !ok {
				return fmt.Errorf("%w: no credential for input descriptor '%s'", ErrSubmissionMismatch, inputDescriptor.Id)
			}
			if err = checkCandidate(definition, *inputDescriptor, credential); err != nil {
				return err
			}
		}
		return nil
	}

	// with submission requirements, the submitted credentials must fulfill the requirements on their own
	for inputDescriptorID, credential := range resolved {
		if err = checkCandidate(definition, *definition.InputDescriptor(inputDescriptorID), credential); err != nil {
			return err
		}
	}
	credentials := make([]vc.VerifiableCredential, 0, len(resolved))
	for _, credential := range resolved {
		credentials = append(credentials, credential)
	}
	if _, err = definition.matchSubmissionRequirements(credentials); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionMismatch, err)
	}
	return nil
}

func checkCandidate(definition PresentationDefinition, inputDescriptor InputDescriptor, credential vc.VerifiableCredential) error {
	match, err := matchCredential(inputDescriptor, credential)
	if err != nil {
		return fmt.Errorf("%w: input descriptor '%s': %w", ErrSubmissionMismatch, inputDescriptor.Id, err)
	}
	if !match || !matchFormat(definition.Format, credential) || !matchFormat(inputDescriptor.Format, credential) {
		return fmt.Errorf("%w: credential does not fulfill input descriptor '%s'", ErrSubmissionMismatch, inputDescriptor.Id)
	}
	return nil
}
