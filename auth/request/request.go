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

// Package request creates and verifies SIOPv2/OpenID4VP authorization requests: the OAuth2 envelope, the optional
// request object and their URI encoding.
package request

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// ErrMissingSignedRequestObject is returned when the request object must be passed by value, but there is none.
var ErrMissingSignedRequestObject = errors.New("request object must be passed by value, but there is no signed request object")

// ErrStateMismatch is returned when the state of the authorization request differs from the expected state.
var ErrStateMismatch = errors.New("state mismatch")

// ErrNonceMismatch is returned when the nonce of the authorization request differs from the expected nonce.
var ErrNonceMismatch = errors.New("nonce mismatch")

// ErrRequestConflict is returned when an authorization request would contain both request and request_uri.
var ErrRequestConflict = errors.New("request and request_uri can't be set at the same time")

// LinkedDomainValidator checks the domain linkage of the DID of a relying party.
type LinkedDomainValidator interface {
	Validate(ctx context.Context, subject string, mode linkeddomains.Mode) error
}

var _ LinkedDomainValidator = (*linkeddomains.Validator)(nil)

// Options configures the creation of an authorization request.
type Options struct {
	// Version is the protocol version the request is created for. It determines parameter names and the URI scheme.
	Version version.Version
	// Scheme overrides the URI scheme, e.g. openid-vc.
	Scheme string
	// Payload contains the OAuth2 parameters of the authorization request envelope.
	Payload oauth.Payload
	// RequestObject configures the request object and how it's passed. It's required, use oauth.PassByNone to omit it.
	RequestObject *requestobject.Options
	// Registration is the client metadata of the relying party. Its targets specify where it's placed.
	Registration *requestobject.Registration
	// Claims requests verifiable presentations through the claims parameter.
	Claims *pex.Claims
}

// Validate checks the options without performing any network or cryptographic operation.
func (o Options) Validate() error {
	if o.RequestObject == nil {
		return fmt.Errorf("%w: request object options are required", oauth.ErrMalformedInput)
	}
	if o.Payload == nil && o.RequestObject.Payload == nil {
		return fmt.Errorf("%w: authorization request or request object payload is required", oauth.ErrMalformedInput)
	}
	if o.Payload.Has(oauth.RequestURIParam) && o.RequestObject.Payload == nil {
		return fmt.Errorf("%w: request_uri requires a request object payload", oauth.ErrMalformedInput)
	}
	if err := o.validateRequestParams(); err != nil {
		return err
	}
	if err := o.validateRegistrationParams(); err != nil {
		return err
	}
	return o.requestObjectOptions().Validate()
}

// validateRequestParams rejects an envelope that would carry the request object both by value and by reference.
func (o Options) validateRequestParams() error {
	if o.Payload.Has(oauth.RequestParam) && o.Payload.Has(oauth.RequestURIParam) {
		return ErrRequestConflict
	}
	if !o.RequestObject.Targets.Includes(oauth.TargetAuthorizationRequest) {
		return nil
	}
	switch o.RequestObject.PassBy {
	case oauth.PassByValue:
		if o.Payload.Has(oauth.RequestURIParam) {
			return fmt.Errorf("%w: request object is passed by value, but the payload contains request_uri", ErrRequestConflict)
		}
	case oauth.PassByReference:
		if o.Payload.Has(oauth.RequestParam) {
			return fmt.Errorf("%w: request object is passed by reference, but the payload contains request", ErrRequestConflict)
		}
	}
	return nil
}

// validateRegistrationParams rejects an envelope that would carry the client metadata both by value and by reference.
func (o Options) validateRegistrationParams() error {
	for _, v := range []version.Version{version.ID1, version.D11} {
		byValue, byReference := requestobject.MetadataKeys(v)
		if o.Payload.Has(byValue) && o.Payload.Has(byReference) {
			return requestobject.ErrRegistrationConflict
		}
	}
	if o.Registration == nil {
		return nil
	}
	if err := o.Registration.Validate(); err != nil {
		return err
	}
	if !o.Registration.Targets.Includes(oauth.TargetAuthorizationRequest) {
		return nil
	}
	byValue, byReference := requestobject.MetadataKeys(o.Version)
	if o.Registration.PassBy == oauth.PassByReference && o.Payload.Has(byValue) {
		return fmt.Errorf("%w: client metadata is passed by reference, but the payload contains %s", requestobject.ErrRegistrationConflict, byValue)
	}
	if o.Registration.PassBy == oauth.PassByValue && o.Payload.Has(byReference) {
		return fmt.Errorf("%w: client metadata is passed by value, but the payload contains %s", requestobject.ErrRegistrationConflict, byReference)
	}
	return nil
}

// requestObjectOptions returns the request object options, completed with the version, registration and claims of the request.
func (o Options) requestObjectOptions() requestobject.Options {
	result := *o.RequestObject
	if result.Version == 0 {
		result.Version = o.Version
	}
	if result.Registration == nil && o.Registration != nil && o.Registration.Targets.Includes(oauth.TargetRequestObject) {
		result.Registration = o.Registration
	}
	if result.Claims == nil {
		result.Claims = o.Claims
	}
	return result
}

// AuthorizationRequest is an authorization request: the envelope payload and an optional request object.
// Values from the request object take precedence over the envelope.
type AuthorizationRequest struct {
	payload       oauth.Payload
	requestObject *requestobject.RequestObject
	options       *Options
	uri           *URI
}

// FromOptions creates an authorization request from the given options. When the request object is passed
// by value or by reference it's created and signed.
func FromOptions(ctx context.Context, opts Options) (*AuthorizationRequest, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	roOpts := opts.requestObjectOptions()
	var requestObject *requestobject.RequestObject
	var jwt string
	if roOpts.PassBy != oauth.PassByNone {
		var err error
		if requestObject, err = requestobject.New(ctx, roOpts); err != nil {
			return nil, err
		}
		if jwt, err = requestObject.Sign(ctx); err != nil {
			return nil, fmt.Errorf("unable to sign request object: %w", err)
		}
	}
	payload, err := createPayload(opts, jwt)
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{payload: payload, requestObject: requestObject, options: &opts}, nil
}

// createPayload creates the envelope: the caller's parameters (including nonce and state), the request object
// (reference), client metadata and claims.
func createPayload(opts Options, jwt string) (oauth.Payload, error) {
	payload := oauth.Payload{}
	if opts.Payload != nil {
		payload = opts.Payload.Clone()
	}
	ro := opts.RequestObject
	if ro.Targets.Includes(oauth.TargetAuthorizationRequest) {
		switch ro.PassBy {
		case oauth.PassByReference:
			payload[oauth.RequestURIParam] = ro.ReferenceURI
		case oauth.PassByValue:
			if jwt == "" {
				return nil, ErrMissingSignedRequestObject
			}
			payload[oauth.RequestParam] = jwt
		}
	}
	if opts.Registration != nil && opts.Registration.Targets.Includes(oauth.TargetAuthorizationRequest) {
		registration, err := opts.Registration.Payload(opts.Version)
		if err != nil {
			return nil, err
		}
		payload = payload.Merge(registration)
	}
	claims, err := pex.CreateClaimsProperties(opts.Claims)
	if err != nil {
		return nil, err
	}
	if claims != nil {
		payload[oauth.ClaimsParam] = map[string]interface{}(claims)
	}
	return payload.WithoutNil(), nil
}

// FromURIOrJWT creates an authorization request from a URI or a compact request object JWT (starting with 'ey').
func FromURIOrJWT(ctx context.Context, input string, fetcher codec.Fetcher) (*AuthorizationRequest, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: no authorization request", oauth.ErrMalformedInput)
	}
	if strings.HasPrefix(input, "ey") {
		return FromJWT(input)
	}
	return FromURI(ctx, input, fetcher)
}

// FromJWT creates an authorization request from a request object. The envelope consists of the request object's
// payload and the request object itself in the request parameter.
func FromJWT(jwt string) (*AuthorizationRequest, error) {
	if jwt == "" {
		return nil, fmt.Errorf("%w: no request object", oauth.ErrMalformedInput)
	}
	requestObject, err := requestobject.FromJWT(jwt)
	if err != nil {
		return nil, err
	}
	payload := requestObject.Payload()
	payload[oauth.RequestParam] = jwt
	return &AuthorizationRequest{payload: payload, requestObject: requestObject}, nil
}

// FromURI creates an authorization request from its URI, fetching the request object and client metadata when passed by reference.
func FromURI(ctx context.Context, uri string, fetcher codec.Fetcher) (*AuthorizationRequest, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: no authorization request URI", oauth.ErrMalformedInput)
	}
	parsed, err := ParseAndResolveURI(ctx, uri, fetcher)
	if err != nil {
		return nil, err
	}
	result := &AuthorizationRequest{payload: parsed.AuthorizationRequestPayload.Clone(), uri: parsed}
	if parsed.RequestObjectJWT != "" {
		if result.requestObject, err = requestobject.FromJWT(parsed.RequestObjectJWT); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// FromPayload creates an authorization request from envelope parameters, e.g. received as form post.
// The request object is taken from the request parameter or fetched from request_uri.
func FromPayload(ctx context.Context, payload oauth.Payload, fetcher codec.Fetcher) (*AuthorizationRequest, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: no authorization request", oauth.ErrMalformedInput)
	}
	jwt, err := codec.FetchByReferenceOrUseByValue[string](ctx, fetcher, payload.Get(oauth.RequestURIParam), payload[oauth.RequestParam])
	if err != nil {
		return nil, err
	}
	result := &AuthorizationRequest{payload: payload.WithoutNil()}
	if jwt != nil && *jwt != "" {
		if result.requestObject, err = requestobject.FromJWT(*jwt); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Payload returns a copy of the envelope payload.
func (r *AuthorizationRequest) Payload() oauth.Payload {
	return r.payload.Clone()
}

// RequestObject returns the request object, or nil if there is none.
func (r *AuthorizationRequest) RequestObject() *requestobject.RequestObject {
	return r.requestObject
}

// Options returns the options the request was created with, or nil if it was parsed.
func (r *AuthorizationRequest) Options() *Options {
	return r.options
}

// HasRequestObject returns true if the authorization request has a request object.
func (r *AuthorizationRequest) HasRequestObject() bool {
	return r.requestObject != nil
}

// RequestObjectJWT returns the compact request object, signing it if needed. It returns an empty string if there is no request object.
func (r *AuthorizationRequest) RequestObjectJWT(ctx context.Context) (string, error) {
	if r.requestObject == nil {
		return "", nil
	}
	return r.requestObject.Sign(ctx)
}

// MergedPayloads returns the envelope payload with the request object payload applied on top.
func (r *AuthorizationRequest) MergedPayloads() oauth.Payload {
	if r.requestObject == nil {
		return r.payload.Clone()
	}
	return merge(r.payload, r.requestObject.Payload())
}

// merge applies the request object on top of the envelope. Objects the request object passes by value or by reference
// replace the envelope's, however the envelope passes them.
func merge(envelope oauth.Payload, requestObject oauth.Payload) oauth.Payload {
	result := envelope
	for _, pair := range [][]string{
		{oauth.RegistrationParam, oauth.RegistrationURIParam},
		{oauth.ClientMetadataParam, oauth.ClientMetadataURIParam},
		{oauth.PresentationDefParam, oauth.PresentationDefUriParam},
	} {
		if requestObject.Has(pair[0]) || requestObject.Has(pair[1]) {
			result = result.Without(pair...)
		}
	}
	return result.Merge(requestObject)
}

// MergedProperty returns a parameter of the merged payloads.
func (r *AuthorizationRequest) MergedProperty(key string) interface{} {
	return r.MergedPayloads()[key]
}

// ContainsResponseType returns true if the response_type of the request contains the given type.
func (r *AuthorizationRequest) ContainsResponseType(responseType string) bool {
	return r.MergedPayloads().Contains(oauth.ResponseTypeParam, responseType)
}

// SupportedVersions returns the versions the merged payloads conform to.
func (r *AuthorizationRequest) SupportedVersions() (version.Versions, error) {
	return version.Discover(r.MergedPayloads())
}

// SupportedVersion returns the version of the request: the one it was created for, JWTVCPresentationProfileV1 when
// received through an openid-vc URI, or the lowest version the payloads conform to.
func (r *AuthorizationRequest) SupportedVersion() (version.Version, error) {
	if r.options != nil && r.options.Version != 0 {
		return r.options.Version, nil
	}
	if r.uri != nil && strings.HasPrefix(r.uri.Scheme, SchemeOpenIDVC) {
		return version.JWTVCPresentationProfileV1, nil
	}
	versions, err := r.SupportedVersions()
	if err != nil {
		return 0, err
	}
	return versions[0], nil
}

// URI returns the URI of the request, creating it when the request wasn't parsed from one.
func (r *AuthorizationRequest) URI(ctx context.Context) (*URI, error) {
	if r.uri == nil {
		uri, err := URIFromRequest(ctx, r)
		if err != nil {
			return nil, err
		}
		r.uri = uri
	}
	return r.uri, nil
}

// PresentationDefinitions returns the valid presentation definitions of the merged payloads.
func (r *AuthorizationRequest) PresentationDefinitions(ctx context.Context, v version.Version, fetcher codec.Fetcher) ([]pex.DefinitionWithLocation, error) {
	return pex.FindValidPresentationDefinitions(ctx, r.MergedPayloads(), v, fetcher)
}

// VerifyOptions configures the verification of an authorization request by the OpenID provider.
type VerifyOptions struct {
	// CorrelationID identifies the exchange in events and sessions.
	CorrelationID string
	// Verifier verifies the signature of the request object.
	Verifier crypto.JWTVerifier
	// Audience is the expected aud of the request object. It's not checked when empty.
	Audience string
	// State and Nonce are checked when set.
	State string
	Nonce string
	// SupportedVersions restricts the accepted versions. All versions are accepted when empty.
	SupportedVersions version.Versions
	// Fetcher fetches the client metadata and presentation definitions passed by reference.
	Fetcher codec.Fetcher
	// LinkedDomains checks the domain linkage of DID client_ids. It's skipped when nil.
	LinkedDomains    LinkedDomainValidator
	LinkedDomainMode linkeddomains.Mode
}

// Validate checks the options.
func (o VerifyOptions) Validate() error {
	if o.Verifier == nil {
		return fmt.Errorf("%w: verification options are required", oauth.ErrMalformedInput)
	}
	if o.CorrelationID == "" {
		return fmt.Errorf("%w: no correlation id", oauth.ErrMalformedInput)
	}
	return nil
}

// VerifiedAuthorizationRequest is the result of verifying an authorization request.
type VerifiedAuthorizationRequest struct {
	// VerifiedJWT is the verified request object, nil if the request had none.
	VerifiedJWT   *crypto.VerifiedJWT
	CorrelationID string
	RedirectURI   string
	// Request is the verified authorization request.
	Request       *AuthorizationRequest
	RequestObject *requestobject.RequestObject
	// RegistrationMetadata is the client metadata of the relying party, nil if the request had none.
	RegistrationMetadata    *oauth.RPRegistrationMetadata
	PresentationDefinitions []pex.DefinitionWithLocation
	// Payload is the merged (envelope and verified request object) payload.
	Payload oauth.Payload
	// AuthorizationRequestPayload is the envelope payload.
	AuthorizationRequestPayload oauth.Payload
	// Versions are the versions the request conforms to.
	Versions      version.Versions
	VerifyOptions VerifyOptions
}

// Verify verifies the authorization request: the request object signature, state and nonce, client metadata,
// domain linkage of the client and the presentation definitions.
func (r *AuthorizationRequest) Verify(ctx context.Context, opts VerifyOptions) (*VerifiedAuthorizationRequest, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	jwt, err := r.RequestObjectJWT(ctx)
	if err != nil {
		return nil, err
	}
	var verifiedJWT *crypto.VerifiedJWT
	var requestObjectPayload oauth.Payload
	if jwt != "" {
		if verifiedJWT, err = opts.Verifier.Verify(ctx, jwt, crypto.VerifyOptions{Audience: opts.Audience}); err != nil {
			return nil, fmt.Errorf("invalid request object: %w", err)
		}
		requestObjectPayload = verifiedJWT.Payload
		if !r.payload.Has(oauth.RequestURIParam) {
			// the request object isn't in the envelope when the request was created from options
			r.payload[oauth.RequestParam] = jwt
		}
	}
	merged := merge(r.payload, requestObjectPayload)
	if opts.State != "" && merged.Get(oauth.StateParam) != opts.State {
		return nil, fmt.Errorf("%w: payload: %s, supplied: %s", ErrStateMismatch, merged.Get(oauth.StateParam), opts.State)
	}
	if opts.Nonce != "" && merged.Get(oauth.NonceParam) != opts.Nonce {
		return nil, fmt.Errorf("%w: payload: %s, supplied: %s", ErrNonceMismatch, merged.Get(oauth.NonceParam), opts.Nonce)
	}

	metadata, err := resolveRegistration(ctx, merged, opts.Fetcher)
	if err != nil {
		return nil, err
	}

	clientID := merged.Get(oauth.ClientIDParam)
	if strings.HasPrefix(clientID, "did:") && opts.LinkedDomains != nil && opts.LinkedDomainMode != linkeddomains.ModeNever {
		if err = opts.LinkedDomains.Validate(ctx, clientID, opts.LinkedDomainMode); err != nil {
			return nil, err
		}
	}

	versions, err := version.CheckSupported(merged, opts.SupportedVersions)
	if err != nil {
		return nil, err
	}
	v, err := r.SupportedVersion()
	if err != nil {
		return nil, err
	}
	definitions, err := pex.FindValidPresentationDefinitions(ctx, merged, v, opts.Fetcher)
	if err != nil {
		return nil, err
	}
	log.Logger().
		WithField(core.LogFieldCorrelationID, opts.CorrelationID).
		WithField(core.LogFieldClientID, clientID).
		Debugf("Verified authorization request (version: %s)", v)
	return &VerifiedAuthorizationRequest{
		VerifiedJWT:                 verifiedJWT,
		CorrelationID:               opts.CorrelationID,
		RedirectURI:                 merged.Get(oauth.RedirectURIParam),
		Request:                     r,
		RequestObject:               r.requestObject,
		RegistrationMetadata:        metadata,
		PresentationDefinitions:     definitions,
		Payload:                     merged,
		AuthorizationRequestPayload: r.Payload(),
		Versions:                    versions,
		VerifyOptions:               opts,
	}, nil
}

// resolveRegistration returns the client metadata from registration[_uri], or client_metadata[_uri] when there's no registration.
func resolveRegistration(ctx context.Context, payload oauth.Payload, fetcher codec.Fetcher) (*oauth.RPRegistrationMetadata, error) {
	byValue, byReference := oauth.ClientMetadataParam, oauth.ClientMetadataURIParam
	if payload.Has(oauth.RegistrationParam) || payload.Has(oauth.RegistrationURIParam) {
		byValue, byReference = oauth.RegistrationParam, oauth.RegistrationURIParam
	}
	metadata, err := codec.FetchByReferenceOrUseByValue[oauth.RPRegistrationMetadata](ctx, fetcher, payload.Get(byReference), payload[byValue])
	if err != nil {
		return nil, fmt.Errorf("client metadata: %w", err)
	}
	if metadata == nil {
		return nil, nil
	}
	if err = oauth.AssertValidRPRegistrationMetadata(*metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
