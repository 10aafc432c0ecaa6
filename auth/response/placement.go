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

package response

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
)

// ErrSubmissionPlacement is returned when the presentation submission can't be placed in the requested location.
var ErrSubmissionPlacement = errors.New("presentation submission can't be placed")

// ErrSubmissionDataConflict is returned when the response already contains a different presentation submission.
var ErrSubmissionDataConflict = errors.New("different presentation submission already present")

// ErrNoPresentations is returned when presentation exchange options are given without presentations.
var ErrNoPresentations = errors.New("presentation exchange options set, but no verifiable presentations provided")

// SubmissionLocation is where the presentation submission is put in the response.
type SubmissionLocation string

const (
	// LocationAuthorizationResponse puts the submission in the presentation_submission response parameter.
	LocationAuthorizationResponse SubmissionLocation = "authorization_response"
	// LocationIDToken puts the submission in the _vp_token claim of the ID token. Only allowed before D11.
	LocationIDToken SubmissionLocation = "id_token"
	// LocationTokenResponse is not supported.
	LocationTokenResponse SubmissionLocation = "token_response"
)

// PresentationExchangeOptions contains the presentations to return in the vp_token.
type PresentationExchangeOptions struct {
	Presentations []vc.VerifiablePresentation
	// Submission maps the presentations to the presentation definition. When nil, it's merged from Submissions,
	// or from the presentation_submission embedded in the presentations.
	Submission *pe.PresentationSubmission
	// Submissions are the per-presentation submissions, as created by pe.PresentationSubmissionBuilder.
	Submissions []pe.PresentationSubmission
	// Location overrides where the submission is placed.
	Location SubmissionLocation
}

// placement holds what placeSubmission needs to know about the authorization request.
type placement struct {
	version      version.Version
	idTokenType  bool
	vpTokenType  bool
	definitionID string
}

// placeSubmission puts the vp_token in the response payload and the presentation submission in its location.
// The ID token payload is modified when the location is LocationIDToken.
func placeSubmission(p placement, opts *PresentationExchangeOptions, responsePayload oauth.Payload, idTokenPayload oauth.Payload) error {
	if opts == nil {
		return nil
	}
	if len(opts.Presentations) == 0 {
		return ErrNoPresentations
	}
	submission, err := submissionData(p.definitionID, opts)
	if err != nil {
		return err
	}
	location := opts.Location
	if location == "" {
		location = LocationAuthorizationResponse
		if p.idTokenType {
			location = LocationIDToken
		}
	}
	switch location {
	case LocationTokenResponse:
		return fmt.Errorf("%w: token response is not supported", ErrSubmissionPlacement)
	case LocationIDToken:
		if idTokenPayload == nil {
			return fmt.Errorf("%w: no ID token to put _vp_token in", ErrSubmissionPlacement)
		}
		if p.version >= version.D11 {
			return fmt.Errorf("%w: %s doesn't allow the submission in the ID token", ErrSubmissionPlacement, p.version)
		}
		if !p.idTokenType {
			return fmt.Errorf("%w: relying party didn't request an ID token", ErrSubmissionPlacement)
		}
		vpToken := oauth.Payload(idTokenPayload.Object(oauth.IDTokenVPTokenParam)).Clone()
		if existing := vpToken[oauth.PresentationSubmissionParam]; existing != nil {
			if !oauth.Equal(existing, submission) {
				return fmt.Errorf("%w: in ID token", ErrSubmissionDataConflict)
			}
		} else {
			vpToken[oauth.PresentationSubmissionParam] = submission
		}
		idTokenPayload[oauth.IDTokenVPTokenParam] = map[string]interface{}(vpToken)
	case LocationAuthorizationResponse:
		if !p.vpTokenType {
			return fmt.Errorf("%w: relying party didn't request a vp_token", ErrSubmissionPlacement)
		}
		if existing := responsePayload[oauth.PresentationSubmissionParam]; existing != nil {
			if !oauth.Equal(existing, submission) {
				return fmt.Errorf("%w: in authorization response", ErrSubmissionDataConflict)
			}
		} else {
			responsePayload[oauth.PresentationSubmissionParam] = submission
		}
	default:
		return fmt.Errorf("%w: unknown location %s", ErrSubmissionPlacement, location)
	}

	values, err := pe.PresentationValues(opts.Presentations)
	if err != nil {
		return err
	}
	if len(values) == 1 {
		responsePayload[oauth.VpTokenParam] = values[0]
	} else {
		responsePayload[oauth.VpTokenParam] = values
	}
	return nil
}

func submissionData(definitionID string, opts *PresentationExchangeOptions) (pe.PresentationSubmission, error) {
	if opts.Submission != nil {
		return *opts.Submission, nil
	}
	submissions := opts.Submissions
	if len(submissions) == 0 {
		for _, presentation := range opts.Presentations {
			embedded, err := embeddedSubmission(presentation)
			if err != nil {
				return pe.PresentationSubmission{}, err
			}
			submissions = append(submissions, *embedded)
		}
	}
	if definitionID == "" && len(submissions) > 0 {
		definitionID = submissions[0].DefinitionId
	}
	formats := make([]string, len(opts.Presentations))
	for i, presentation := range opts.Presentations {
		formats[i] = presentationFormat(presentation)
	}
	return pe.MergeSubmissions(definitionID, submissions, formats), nil
}

// embeddedSubmission returns the presentation_submission property of a presentation (the vp claim for JWT presentations).
func embeddedSubmission(presentation vc.VerifiablePresentation) (*pe.PresentationSubmission, error) {
	var value interface{}
	if presentation.Format() == vc.JWTPresentationProofFormat {
		decoded, err := crypto.DecodeJWT(presentation.Raw())
		if err != nil {
			return nil, err
		}
		value = oauth.Payload(decoded.Payload).Path("vp", oauth.PresentationSubmissionParam)
	} else {
		data, err := json.Marshal(presentation)
		if err != nil {
			return nil, err
		}
		var asMap map[string]interface{}
		if err = json.Unmarshal(data, &asMap); err != nil {
			return nil, err
		}
		value = asMap[oauth.PresentationSubmissionParam]
	}
	if value == nil {
		return nil, fmt.Errorf("%w: verifiable presentation has no presentation submission", ErrSubmissionPlacement)
	}
	return pe.ValidateSubmission(value)
}

func presentationFormat(presentation vc.VerifiablePresentation) string {
	if presentation.Format() == vc.JWTPresentationProofFormat {
		return vc.JWTPresentationProofFormat
	}
	return vc.JSONLDPresentationProofFormat
}
