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

// Package response creates and verifies authorization responses: the answer of the OpenID provider (wallet) to an
// authorization request, carrying an ID token and/or verifiable presentations.
package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nuts-foundation/nuts-siop/auth/idtoken"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	"github.com/nuts-foundation/nuts-siop/vcr/revocation"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// ErrPayloadMismatch is returned when the authorization response and its ID token contain different values for the same claim.
var ErrPayloadMismatch = errors.New("mismatch in authorization response and ID token value")

// ErrMissingVerificationCallback is returned when presentations must be verified, but no presentation verifier is configured.
var ErrMissingVerificationCallback = errors.New("no presentation verifier configured")

// DefaultExpiresIn is the expires_in of an authorization response when not specified.
const DefaultExpiresIn = 3600 * time.Second

// Options configures the creation of an authorization response.
type Options struct {
	// Signer signs the ID token.
	Signer *crypto.Signer
	// Version, Issuer, Audience and IDTokenExpiresIn are passed to the ID token, see idtoken.Options.
	Version          version.Version
	Issuer           string
	Audience         string
	IDTokenExpiresIn time.Duration

	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresIn    time.Duration

	// PresentationExchange contains the presentations to return. No vp_token is returned when nil.
	PresentationExchange *PresentationExchangeOptions
	// PresentationVerifier optionally verifies the presentations before they are returned.
	PresentationVerifier pex.PresentationVerifier

	// ResponseMode and RedirectURI are used when submitting the response, see op.SubmitAuthorizationResponse.
	ResponseMode string
	RedirectURI  string
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Signer == nil {
		return fmt.Errorf("%w: response options require a signer", oauth.ErrMalformedInput)
	}
	if o.ResponseMode != "" && o.ResponseMode != oauth.ResponseModePost && o.ResponseMode != oauth.ResponseModeFormPost {
		return fmt.Errorf("%w: unsupported response mode: %s", oauth.ErrMalformedInput, o.ResponseMode)
	}
	return nil
}

func (o Options) idTokenOptions() idtoken.Options {
	return idtoken.Options{
		Signer:    o.Signer,
		Version:   o.Version,
		Issuer:    o.Issuer,
		Audience:  o.Audience,
		ExpiresIn: o.IDTokenExpiresIn,
	}
}

// AuthorizationResponse is an authorization response, created by the OpenID provider or received by the relying party.
type AuthorizationResponse struct {
	payload oauth.Payload
	idToken *idtoken.IDToken
	options *Options
	request *request.AuthorizationRequest
}

// FromRequestObject parses and verifies the given request object and answers it.
func FromRequestObject(ctx context.Context, jwt string, opts Options, verifyOpts request.VerifyOptions) (*AuthorizationResponse, error) {
	authRequest, err := request.FromJWT(jwt)
	if err != nil {
		return nil, err
	}
	return FromRequest(ctx, authRequest, opts, verifyOpts)
}

// FromRequest verifies the given authorization request and answers it.
func FromRequest(ctx context.Context, authRequest *request.AuthorizationRequest, opts Options, verifyOpts request.VerifyOptions) (*AuthorizationResponse, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if authRequest == nil {
		return nil, fmt.Errorf("%w: no authorization request", oauth.ErrMalformedInput)
	}
	verified, err := authRequest.Verify(ctx, verifyOpts)
	if err != nil {
		return nil, err
	}
	return FromVerifiedRequest(ctx, verified, opts)
}

// FromVerifiedRequest answers a verified authorization request. An ID token is only created when the request's
// response_type contains id_token. The returned presentations are checked against the presentation definitions of the request.
func FromVerifiedRequest(ctx context.Context, verified *request.VerifiedAuthorizationRequest, opts Options) (*AuthorizationResponse, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if verified == nil {
		return nil, fmt.Errorf("%w: no verified authorization request", oauth.ErrMalformedInput)
	}
	requestPayload := verified.Payload
	wantsIDToken := requestPayload.Contains(oauth.ResponseTypeParam, oauth.IDTokenResponseType)

	var idTokenPayload oauth.Payload
	if wantsIDToken {
		var err error
		if idTokenPayload, err = idtoken.CreatePayload(ctx, verified, opts.idTokenOptions()); err != nil {
			return nil, err
		}
	}

	payload, err := createPayload(verified, opts, idTokenPayload)
	if err != nil {
		return nil, err
	}
	var token *idtoken.IDToken
	if idTokenPayload != nil {
		if token, err = idtoken.FromPayload(idTokenPayload, opts.Signer); err != nil {
			return nil, err
		}
		jwt, err := token.Sign(ctx)
		if err != nil {
			return nil, err
		}
		payload[oauth.IDTokenParam] = jwt
	}
	result := &AuthorizationResponse{
		payload: payload,
		idToken: token,
		options: &opts,
		request: verified.Request,
	}

	presentations, err := pex.ExtractPresentations(payload)
	if err != nil {
		return nil, err
	}
	submission, err := result.submission()
	if err != nil {
		return nil, err
	}
	err = pex.AssertValidVerifiablePresentations(ctx, pex.AssertOptions{
		Definitions:   verified.PresentationDefinitions,
		Presentations: presentations,
		Submission:    submission,
		Verifier:      opts.PresentationVerifier,
	})
	if err != nil {
		return nil, err
	}
	log.Logger().
		WithField(core.LogFieldCorrelationID, verified.CorrelationID).
		WithField(core.LogFieldClientID, requestPayload.Get(oauth.ClientIDParam)).
		Debug("Created authorization response")
	return result, nil
}

// createPayload creates the authorization response payload. The state of the request is always returned.
func createPayload(verified *request.VerifiedAuthorizationRequest, opts Options, idTokenPayload oauth.Payload) (oauth.Payload, error) {
	expiresIn := opts.ExpiresIn
	if expiresIn == 0 {
		expiresIn = DefaultExpiresIn
	}
	payload := oauth.Payload{
		oauth.ExpiresInParam: int64(expiresIn.Seconds()),
		oauth.StateParam:     verified.Payload[oauth.StateParam],
	}
	if opts.AccessToken != "" {
		payload[oauth.AccessTokenParam] = opts.AccessToken
	}
	if opts.TokenType != "" {
		payload[oauth.TokenTypeParam] = opts.TokenType
	}
	if opts.RefreshToken != "" {
		payload[oauth.RefreshTokenParam] = opts.RefreshToken
	}

	p := placement{
		version:     responseVersion(verified),
		idTokenType: verified.Payload.Contains(oauth.ResponseTypeParam, oauth.IDTokenResponseType),
		vpTokenType: verified.Payload.Contains(oauth.ResponseTypeParam, oauth.VPTokenResponseType),
	}
	if len(verified.PresentationDefinitions) > 0 {
		p.definitionID = verified.PresentationDefinitions[0].Definition.Id
	}
	if err := placeSubmission(p, opts.PresentationExchange, payload, idTokenPayload); err != nil {
		return nil, err
	}
	return payload.WithoutNil(), nil
}

func responseVersion(verified *request.VerifiedAuthorizationRequest) version.Version {
	if verified.Request != nil {
		if v, err := verified.Request.SupportedVersion(); err == nil {
			return v
		}
	}
	return verified.Versions.Max()
}

// FromPayload creates an authorization response from a received payload. The id_token, if any, is decoded but not verified.
func FromPayload(payload oauth.Payload, opts *Options) (*AuthorizationResponse, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: no authorization response payload", oauth.ErrMalformedInput)
	}
	if opts != nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	result := &AuthorizationResponse{payload: payload.Clone(), options: opts}
	if jwt := payload.Get(oauth.IDTokenParam); jwt != "" {
		token, err := idtoken.FromJWT(jwt)
		if err != nil {
			return nil, err
		}
		result.idToken = token
	}
	return result, nil
}

// Payload returns a copy of the response payload.
func (r *AuthorizationResponse) Payload() oauth.Payload {
	return r.payload.Clone()
}

// IDToken returns the ID token of the response, nil if it has none.
func (r *AuthorizationResponse) IDToken() *idtoken.IDToken {
	return r.idToken
}

// Options returns the options the response was created with, nil for received responses.
func (r *AuthorizationResponse) Options() *Options {
	return r.options
}

// AuthorizationRequest returns the request this response answers, nil for received responses.
func (r *AuthorizationResponse) AuthorizationRequest() *request.AuthorizationRequest {
	return r.request
}

// MergedPayloads returns the response payload with the ID token claims added. With consistencyCheck, claims present
// in both with different values fail with ErrPayloadMismatch.
func (r *AuthorizationResponse) MergedPayloads(consistencyCheck bool) (oauth.Payload, error) {
	if r.idToken == nil {
		return r.payload.Clone(), nil
	}
	idTokenPayload := r.idToken.Payload()
	if consistencyCheck {
		for key, value := range idTokenPayload {
			if existing := r.payload[key]; existing != nil && !oauth.Equal(existing, value) {
				return nil, fmt.Errorf("%w: %s", ErrPayloadMismatch, key)
			}
		}
	}
	return r.payload.Merge(idTokenPayload), nil
}

func (r *AuthorizationResponse) submission() (*pe.PresentationSubmission, error) {
	var idTokenPayload oauth.Payload
	if r.idToken != nil {
		idTokenPayload = r.idToken.Payload()
	}
	return pex.ExtractSubmission(r.payload, idTokenPayload)
}

// VerifyOptions configures the verification of an authorization response by the relying party.
type VerifyOptions struct {
	CorrelationID string
	// State is the expected state. It's not checked when empty.
	State string
	// Nonce is the expected ID token nonce.
	Nonce string
	// Audience is the expected ID token audience.
	Audience string
	// Verifier verifies the ID token signature.
	Verifier         crypto.JWTVerifier
	LinkedDomains    request.LinkedDomainValidator
	LinkedDomainMode linkeddomains.Mode
	// PresentationDefinitions are the definitions of the authorization request.
	PresentationDefinitions []pex.DefinitionWithLocation
	// PresentationVerifier verifies the presentation signatures. Required when the response has a vp_token or definitions are given.
	PresentationVerifier pex.PresentationVerifier
	Evaluator            pe.Evaluator
	// RevocationMode defaults to revocation.ModeIfPresent. RevocationChecker is required unless it's revocation.ModeNever.
	RevocationMode    revocation.Mode
	RevocationChecker revocation.Checker
}

// VerifiedAuthorizationResponse is the result of verifying an authorization response.
type VerifiedAuthorizationResponse struct {
	AuthorizationResponse *AuthorizationResponse
	CorrelationID         string
	// IDToken is the verified ID token, nil if the response had none.
	IDToken *idtoken.VerifiedIDToken
	// Presentations is the vp_token, nil if the response had none.
	Presentations *pe.Envelope
	Definitions   []pex.DefinitionWithLocation
	Submission    *pe.PresentationSubmission
	VerifyOptions VerifyOptions
}

// Verify verifies the authorization response: payload consistency, state, the ID token and the presentations.
func (r *AuthorizationResponse) Verify(ctx context.Context, opts VerifyOptions) (*VerifiedAuthorizationResponse, error) {
	merged, err := r.MergedPayloads(true)
	if err != nil {
		return nil, err
	}
	if opts.State != "" && merged.Get(oauth.StateParam) != opts.State {
		return nil, fmt.Errorf("%w: payload: %s, supplied: %s", request.ErrStateMismatch, merged.Get(oauth.StateParam), opts.State)
	}
	result := &VerifiedAuthorizationResponse{
		AuthorizationResponse: r,
		CorrelationID:         opts.CorrelationID,
		Definitions:           opts.PresentationDefinitions,
		VerifyOptions:         opts,
	}
	if r.idToken != nil {
		result.IDToken, err = r.idToken.Verify(ctx, idtoken.VerifyOptions{
			CorrelationID:    opts.CorrelationID,
			Verifier:         opts.Verifier,
			Audience:         opts.Audience,
			Nonce:            opts.Nonce,
			LinkedDomains:    opts.LinkedDomains,
			LinkedDomainMode: opts.LinkedDomainMode,
		})
		if err != nil {
			return nil, err
		}
	}
	if result.Presentations, err = pex.ExtractPresentations(r.payload); err != nil {
		return nil, err
	}
	if result.Presentations == nil && len(opts.PresentationDefinitions) == 0 {
		return result, nil
	}
	if opts.PresentationVerifier == nil {
		return nil, ErrMissingVerificationCallback
	}
	if result.Submission, err = r.submission(); err != nil {
		return nil, err
	}
	err = pex.AssertValidVerifiablePresentations(ctx, pex.AssertOptions{
		Definitions:   opts.PresentationDefinitions,
		Presentations: result.Presentations,
		Submission:    result.Submission,
		Verifier:      opts.PresentationVerifier,
		Evaluator:     opts.Evaluator,
	})
	if err != nil {
		return nil, err
	}
	if result.Presentations != nil {
		if err = revocation.VerifyRevocation(ctx, result.Presentations.Presentations, opts.RevocationChecker, opts.RevocationMode); err != nil {
			return nil, err
		}
	}
	log.Logger().
		WithField(core.LogFieldCorrelationID, opts.CorrelationID).
		Debug("Verified authorization response")
	return result, nil
}
