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

// Package op is the OpenID provider (wallet) side of SIOPv2/OpenID4VP: it verifies authorization requests, creates
// the responses and submits them to the relying party.
package op

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// ErrCorrelationMismatch is returned when the correlation ID of a response differs from that of the verified request.
var ErrCorrelationMismatch = errors.New("correlation id of the response differs from that of the request")

// ErrMissingRedirectURI is returned when a response can't be submitted, because there's no redirect URI.
var ErrMissingRedirectURI = fmt.Errorf("%w: no redirect URI to submit the response to", oauth.ErrMalformedInput)

// ErrNoMatchingCredentials is returned when the holder's credentials don't fulfill the presentation definition of a request.
var ErrNoMatchingCredentials = errors.New("credentials don't fulfill the presentation definition")

// presentationValidity is the lifetime of created presentations when no ID token lifetime is configured.
const presentationValidity = 5 * time.Minute

// defaultHTTPTimeout applies to responses submitted without a configured HTTP client.
const defaultHTTPTimeout = 30 * time.Second

// Options configures an OpenID provider.
type Options struct {
	// Signer signs the ID tokens.
	Signer *crypto.Signer
	// Issuer overrides the iss of ID tokens, which defaults to the self-issued issuer of the response version.
	Issuer string
	// Version is the preferred response version. The highest version the request supports is used when not set.
	Version          version.Version
	IDTokenExpiresIn time.Duration
	// Metadata is the metadata of the OP, matched against the client metadata of requests.
	// oauth.DefaultDiscoveryMetadata is used when nil.
	Metadata *oauth.DiscoveryMetadata

	// Verifier verifies request object signatures.
	Verifier crypto.JWTVerifier
	// Fetcher fetches objects passed by reference.
	Fetcher           codec.Fetcher
	SupportedVersions version.Versions
	LinkedDomains     request.LinkedDomainValidator
	LinkedDomainMode  linkeddomains.Mode
	// PresentationVerifier optionally verifies presentations before they're returned.
	PresentationVerifier pex.PresentationVerifier

	// HTTPClient submits responses.
	HTTPClient core.HTTPRequestDoer
	// Sink receives the lifecycle events. They're discarded when nil.
	Sink events.Sink
}

// OP is an OpenID provider.
type OP struct {
	options  Options
	metadata oauth.DiscoveryMetadata
	sink     events.Sink
}

// New creates an OpenID provider.
func New(opts Options) (*OP, error) {
	if opts.Verifier == nil {
		return nil, fmt.Errorf("%w: OP requires a verifier", oauth.ErrMalformedInput)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = client.New(defaultHTTPTimeout)
	}
	metadata := oauth.DefaultDiscoveryMetadata()
	if opts.Metadata != nil {
		metadata = *opts.Metadata
	}
	var sink events.Sink = events.Discard
	if opts.Sink != nil {
		sink = opts.Sink
	}
	return &OP{options: opts, metadata: metadata, sink: sink}, nil
}

// Metadata returns the metadata of the OP.
func (o *OP) Metadata() oauth.DiscoveryMetadata {
	return o.metadata
}

// VerifyRequestOptions are the per-request verification options.
type VerifyRequestOptions struct {
	// CorrelationID identifies the exchange in events. A random one is generated when empty.
	CorrelationID string
	State         string
	Nonce         string
	// Audience is the expected aud of the request object.
	Audience string
}

// VerifyAuthorizationRequest parses and verifies an authorization request URI or request object JWT. The client
// metadata of the relying party must be compatible with the OP's metadata.
// It emits AuthRequestReceived* and AuthRequestVerified* events.
func (o *OP) VerifyAuthorizationRequest(ctx context.Context, uriOrJWT string, opts VerifyRequestOptions) (*request.VerifiedAuthorizationRequest, error) {
	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	authRequest, err := request.FromURIOrJWT(ctx, uriOrJWT, o.options.Fetcher)
	if err != nil {
		o.emit(ctx, events.AuthRequestReceivedFailed, correlationID, uriOrJWT, err)
		return nil, err
	}
	o.emit(ctx, events.AuthRequestReceivedSuccess, correlationID, authRequest, nil)

	verified, err := o.verify(ctx, authRequest, opts, correlationID)
	if err != nil {
		o.emit(ctx, events.AuthRequestVerifiedFailed, correlationID, authRequest, err)
		return nil, err
	}
	o.emit(ctx, events.AuthRequestVerifiedSuccess, correlationID, authRequest, nil)
	return verified, nil
}

func (o *OP) verify(ctx context.Context, authRequest *request.AuthorizationRequest, opts VerifyRequestOptions, correlationID string) (*request.VerifiedAuthorizationRequest, error) {
	verified, err := authRequest.Verify(ctx, request.VerifyOptions{
		CorrelationID:     correlationID,
		Verifier:          o.options.Verifier,
		Audience:          opts.Audience,
		State:             opts.State,
		Nonce:             opts.Nonce,
		SupportedVersions: o.options.SupportedVersions,
		Fetcher:           o.options.Fetcher,
		LinkedDomains:     o.options.LinkedDomains,
		LinkedDomainMode:  o.options.LinkedDomainMode,
	})
	if err != nil {
		return nil, err
	}
	if verified.RegistrationMetadata != nil {
		if _, err = oauth.AssertValidMetadata(o.metadata, *verified.RegistrationMetadata); err != nil {
			return nil, err
		}
	}
	return verified, nil
}

// CreateResponseOptions are the per-response options.
type CreateResponseOptions struct {
	// CorrelationID must equal the correlation ID of the verified request when both are set.
	CorrelationID string
	// Version, Issuer and Audience override the OP's configuration.
	Version  version.Version
	Issuer   string
	Audience string
	// PresentationExchange contains the presentations to return.
	PresentationExchange *response.PresentationExchangeOptions
	// ResponseMode is post when not set. Only post and form_post responses can be submitted.
	ResponseMode string
	// Credentials are the holder's credentials. When PresentationExchange isn't set, the credentials fulfilling the
	// presentation definition of the request are selected and returned in a JWT presentation signed by the OP.
	Credentials []vc.VerifiableCredential
}

// ResponseWithCorrelation is a created authorization response, ready to be submitted.
type ResponseWithCorrelation struct {
	CorrelationID string
	Response      *response.AuthorizationResponse
	// RedirectURI is the redirect_uri of the request.
	RedirectURI string
}

// CreateAuthorizationResponse creates the response to a verified request, emitting AuthResponseCreate* events.
func (o *OP) CreateAuthorizationResponse(ctx context.Context, verified *request.VerifiedAuthorizationRequest, opts CreateResponseOptions) (*ResponseWithCorrelation, error) {
	if verified == nil {
		return nil, fmt.Errorf("%w: no verified authorization request", oauth.ErrMalformedInput)
	}
	if verified.CorrelationID != "" && opts.CorrelationID != "" && verified.CorrelationID != opts.CorrelationID {
		return nil, fmt.Errorf("%w: %s != %s", ErrCorrelationMismatch, verified.CorrelationID, opts.CorrelationID)
	}
	correlationID := firstNonEmpty(opts.CorrelationID, verified.CorrelationID, uuid.NewString())
	responseOptions := o.responseOptions(opts)
	if responseOptions.PresentationExchange == nil && len(opts.Credentials) > 0 {
		exchange, err := o.selectPresentations(ctx, verified, opts.Credentials)
		if err != nil {
			o.emit(ctx, events.AuthResponseCreateFailed, correlationID, verified.Request, err)
			return nil, err
		}
		responseOptions.PresentationExchange = exchange
	}
	authResponse, err := response.FromVerifiedRequest(ctx, verified, responseOptions)
	if err != nil {
		o.emit(ctx, events.AuthResponseCreateFailed, correlationID, verified.Request, err)
		return nil, err
	}
	o.emit(ctx, events.AuthResponseCreateSuccess, correlationID, authResponse, nil)
	return &ResponseWithCorrelation{
		CorrelationID: correlationID,
		Response:      authResponse,
		RedirectURI:   verified.RedirectURI,
	}, nil
}

func (o *OP) responseOptions(opts CreateResponseOptions) response.Options {
	v := opts.Version
	if v == 0 {
		v = o.options.Version
	}
	return response.Options{
		Signer:               o.options.Signer,
		Version:              v,
		Issuer:               firstNonEmpty(opts.Issuer, o.options.Issuer),
		Audience:             opts.Audience,
		IDTokenExpiresIn:     o.options.IDTokenExpiresIn,
		PresentationExchange: opts.PresentationExchange,
		PresentationVerifier: o.options.PresentationVerifier,
		ResponseMode:         opts.ResponseMode,
	}
}

// selectPresentations matches the credentials against the presentation definition of the request and presents the
// selected ones. It returns nil when the request has no presentation definition.
func (o *OP) selectPresentations(ctx context.Context, verified *request.VerifiedAuthorizationRequest, credentials []vc.VerifiableCredential) (*response.PresentationExchangeOptions, error) {
	switch len(verified.PresentationDefinitions) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: presenting for multiple presentation definitions is not supported", oauth.ErrMalformedInput)
	}
	if o.options.Signer == nil {
		return nil, fmt.Errorf("%w: OP requires a signer to create presentations", oauth.ErrMalformedInput)
	}
	holder, err := did.ParseDID(o.options.Signer.DID())
	if err != nil {
		return nil, fmt.Errorf("invalid holder DID: %w", err)
	}
	definition := verified.PresentationDefinitions[0].Definition
	builder := definition.PresentationSubmissionBuilder()
	builder.AddWallet(*holder, credentials)
	submission, signInstructions, err := builder.Build(vc.JWTPresentationProofFormat)
	if err != nil {
		return nil, err
	}
	if signInstructions.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingCredentials, definition.Id)
	}
	presentations := make([]vc.VerifiablePresentation, 0, len(signInstructions))
	for _, signInstruction := range signInstructions {
		presentation, err := o.createPresentation(ctx, verified, signInstruction.VerifiableCredentials)
		if err != nil {
			return nil, err
		}
		presentations = append(presentations, *presentation)
	}
	return &response.PresentationExchangeOptions{Presentations: presentations, Submission: &submission}, nil
}

// createPresentation creates a JWT presentation of the credentials, bound to the client_id and nonce of the request.
func (o *OP) createPresentation(ctx context.Context, verified *request.VerifiedAuthorizationRequest, credentials []vc.VerifiableCredential) (*vc.VerifiablePresentation, error) {
	holder := o.options.Signer.DID()
	validity := o.options.IDTokenExpiresIn
	if validity == 0 {
		validity = presentationValidity
	}
	now := time.Now()
	claims := map[string]interface{}{
		oauth.IssuerParam:     holder,
		oauth.SubjectParam:    holder,
		oauth.JWTIDParam:      holder + "#" + uuid.NewString(),
		oauth.NotBeforeParam:  now.Unix(),
		oauth.ExpirationParam: now.Add(validity).Unix(),
		"vp": vc.VerifiablePresentation{
			Context:              []ssi.URI{vc.VCContextV1URI()},
			Type:                 []ssi.URI{vc.VerifiablePresentationTypeV1URI()},
			VerifiableCredential: credentials,
		},
	}
	if audience := verified.Payload.Get(oauth.ClientIDParam); audience != "" {
		claims[oauth.AudienceParam] = audience
	}
	if nonce := verified.Payload.Get(oauth.NonceParam); nonce != "" {
		claims[oauth.NonceParam] = nonce
	}
	token, err := o.options.Signer.Sign(ctx, claims, map[string]interface{}{"typ": "JWT"})
	if err != nil {
		return nil, fmt.Errorf("unable to sign presentation: %w", err)
	}
	return vc.ParseVerifiablePresentation(token)
}

// SubmitAuthorizationResponse posts the response form-encoded to the redirect URI of the request, or to the aud
// of the ID token when there is none. It emits AuthResponseSent* events.
func (o *OP) SubmitAuthorizationResponse(ctx context.Context, created ResponseWithCorrelation) (*http.Response, error) {
	if created.CorrelationID == "" {
		return nil, fmt.Errorf("%w: no correlation id", oauth.ErrMalformedInput)
	}
	if created.Response == nil {
		return nil, fmt.Errorf("%w: no authorization response", oauth.ErrMalformedInput)
	}
	if options := created.Response.Options(); options != nil && options.ResponseMode != "" &&
		options.ResponseMode != oauth.ResponseModePost && options.ResponseMode != oauth.ResponseModeFormPost {
		return nil, fmt.Errorf("%w: can't submit response with response mode %s", oauth.ErrMalformedInput, options.ResponseMode)
	}
	result, err := o.submit(ctx, created)
	if err != nil {
		o.emit(ctx, events.AuthResponseSentFailed, created.CorrelationID, created.Response, err)
		return nil, err
	}
	o.emit(ctx, events.AuthResponseSentSuccess, created.CorrelationID, created.Response, nil)
	return result, nil
}

func (o *OP) submit(ctx context.Context, created ResponseWithCorrelation) (*http.Response, error) {
	redirectURI := created.RedirectURI
	if redirectURI == "" && created.Response.IDToken() != nil {
		redirectURI = created.Response.IDToken().Payload().Get(oauth.AudienceParam)
	}
	if redirectURI == "" || strings.HasPrefix(strings.ToLower(redirectURI), "did:") {
		return nil, ErrMissingRedirectURI
	}
	body, err := codec.EncodeJSONAsURI(created.Response.Payload())
	if err != nil {
		return nil, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, redirectURI, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redirect URI: %w", oauth.ErrMalformedInput, err)
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpRequest.Header.Set("Accept", "application/json")
	if err = core.UserAgentRequestEditor(ctx, httpRequest); err != nil {
		return nil, err
	}
	httpResponse, err := o.options.HTTPClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("unable to submit authorization response: %w", err)
	}
	if httpResponse.StatusCode >= 400 {
		defer httpResponse.Body.Close()
		return nil, core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger())
	}
	return httpResponse, nil
}

func (o *OP) emit(ctx context.Context, eventType events.Type, correlationID string, subject interface{}, cause error) {
	if err := o.sink.Handle(ctx, events.NewEvent(eventType, correlationID, subject, cause)); err != nil {
		log.Logger().
			WithContext(ctx).
			WithError(err).
			WithField(core.LogFieldCorrelationID, correlationID).
			WithField(core.LogFieldEventType, eventType).
			Warn("Unable to handle event")
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
