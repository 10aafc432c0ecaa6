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

// Package rp is the relying party side of SIOPv2/OpenID4VP: it creates authorization requests and verifies the
// responses, emitting lifecycle events along the way.
package rp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events"
)

// ErrNoSessionManager is returned by operations that need a session manager when the RP has none.
var ErrNoSessionManager = errors.New("relying party has no session manager")

// ErrMissingRedirectURI is returned when a request has no redirect_uri.
var ErrMissingRedirectURI = fmt.Errorf("%w: a redirect URI is required", oauth.ErrMalformedInput)

// RP is a relying party, created by Builder.
type RP struct {
	options  request.Options
	verify   response.VerifyOptions
	sink     events.Sink
	sessions *session.Manager
}

// PropertyWithTargets is a request parameter and the payloads it's placed in.
type PropertyWithTargets struct {
	Value   string
	Targets oauth.PropertyTarget
}

// CreateRequestOptions are the per-request options, on top of the RP's configuration.
type CreateRequestOptions struct {
	// CorrelationID identifies the exchange in events and the session manager.
	CorrelationID string
	// Version overrides the RP's version.
	Version version.Version
	// Nonce and State are placed in the request object by default (the envelope without request object). When State is empty the request object gets
	// a random state, when Nonce is empty it's derived from the state.
	Nonce PropertyWithTargets
	State PropertyWithTargets
	// Claims are added to the claims parameter of the request object.
	Claims map[string]interface{}
	// RequestByReferenceURI passes the request object by reference, overriding the RP's configuration.
	RequestByReferenceURI string
	// RedirectURI overrides the RP's redirect_uri.
	RedirectURI string
}

// RequestOptions returns a copy of the options requests are created from.
func (r *RP) RequestOptions() request.Options {
	return r.options
}

// SessionManager returns the session manager, nil if the RP has none.
func (r *RP) SessionManager() *session.Manager {
	return r.sessions
}

// CreateAuthorizationRequest creates an authorization request and emits AuthRequestCreatedSuccess or AuthRequestCreatedFailed.
func (r *RP) CreateAuthorizationRequest(ctx context.Context, opts CreateRequestOptions) (*request.AuthorizationRequest, error) {
	result, err := r.createAuthorizationRequest(ctx, opts)
	if err != nil {
		r.emit(ctx, events.AuthRequestCreatedFailed, opts.CorrelationID, nil, err)
		return nil, err
	}
	r.emit(ctx, events.AuthRequestCreatedSuccess, opts.CorrelationID, result, nil)
	return result, nil
}

// CreateAuthorizationRequestURI creates an authorization request and encodes it as URI.
func (r *RP) CreateAuthorizationRequestURI(ctx context.Context, opts CreateRequestOptions) (*request.URI, error) {
	authRequest, err := r.createAuthorizationRequest(ctx, opts)
	var uri *request.URI
	if err == nil {
		uri, err = authRequest.URI(ctx)
	}
	if err != nil {
		r.emit(ctx, events.AuthRequestCreatedFailed, opts.CorrelationID, nil, err)
		return nil, err
	}
	r.emit(ctx, events.AuthRequestCreatedSuccess, opts.CorrelationID, authRequest, nil)
	return uri, nil
}

func (r *RP) createAuthorizationRequest(ctx context.Context, opts CreateRequestOptions) (*request.AuthorizationRequest, error) {
	requestOptions, err := r.newRequestOptions(opts)
	if err != nil {
		return nil, err
	}
	return request.FromOptions(ctx, requestOptions)
}

// newRequestOptions applies the per-request options to a copy of the RP's request options.
func (r *RP) newRequestOptions(opts CreateRequestOptions) (request.Options, error) {
	result := r.options
	result.Payload = r.options.Payload.Clone()
	requestObject := *r.options.RequestObject
	if requestObject.Payload != nil {
		requestObject.Payload = requestObject.Payload.Clone()
	} else {
		requestObject.Payload = oauth.Payload{}
	}
	result.RequestObject = &requestObject

	if opts.Version != 0 {
		result.Version = opts.Version
	}
	if result.Version == 0 {
		return result, fmt.Errorf("%w: no request version", oauth.ErrMalformedInput)
	}

	redirectURI := opts.RedirectURI
	if redirectURI == "" {
		redirectURI = requestObject.Payload.Get(oauth.RedirectURIParam)
	}
	if redirectURI == "" {
		redirectURI = result.Payload.Get(oauth.RedirectURIParam)
	}
	if redirectURI == "" {
		return result, ErrMissingRedirectURI
	}
	// without request object, per-request properties go into the envelope
	defaultTarget := oauth.TargetRequestObject
	if requestObject.PassBy == oauth.PassByNone {
		defaultTarget = oauth.TargetAuthorizationRequest
	}
	if defaultTarget == oauth.TargetRequestObject && (requestObject.Payload.Has(oauth.RedirectURIParam) || !result.Payload.Has(oauth.RedirectURIParam)) {
		requestObject.Payload[oauth.RedirectURIParam] = redirectURI
	}
	if result.Payload.Has(oauth.RedirectURIParam) || defaultTarget == oauth.TargetAuthorizationRequest {
		result.Payload[oauth.RedirectURIParam] = redirectURI
	}

	if opts.RequestByReferenceURI != "" {
		if requestObject.PassBy != oauth.PassByReference && requestObject.PassBy != oauth.PassByValue {
			return result, fmt.Errorf("%w: can't pass request object by reference with uri %s when mode is %s", oauth.ErrMalformedInput, opts.RequestByReferenceURI, requestObject.PassBy)
		}
		requestObject.PassBy = oauth.PassByReference
		requestObject.ReferenceURI = opts.RequestByReferenceURI
	}

	state := opts.State.Value
	if state != "" {
		place(result.Payload, requestObject.Payload, oauth.StateParam, state, opts.State.Targets, defaultTarget)
	}
	if opts.Nonce.Value != "" {
		place(result.Payload, requestObject.Payload, oauth.NonceParam, requestobject.GetNonce(state, opts.Nonce.Value), opts.Nonce.Targets, defaultTarget)
	}
	if len(opts.Claims) > 0 {
		target := requestObject.Payload
		if defaultTarget == oauth.TargetAuthorizationRequest {
			target = result.Payload
		}
		claims := oauth.Payload{}
		if existing, ok := target[oauth.ClaimsParam].(map[string]interface{}); ok {
			claims = oauth.Payload(existing).Clone()
		}
		target[oauth.ClaimsParam] = map[string]interface{}(claims.Merge(opts.Claims))
	}
	return result, nil
}

// place puts a per-request property in the envelope and/or request object, the defaultTarget when no targets are given.
func place(envelope oauth.Payload, requestObject oauth.Payload, key string, value string, targets oauth.PropertyTarget, defaultTarget oauth.PropertyTarget) {
	if targets == 0 {
		targets = defaultTarget
	}
	if targets.Includes(oauth.TargetAuthorizationRequest) {
		envelope[key] = value
	}
	if targets.Includes(oauth.TargetRequestObject) {
		requestObject[key] = value
	}
}

// SignalAuthRequestRetrieved emits AuthRequestSentSuccess (or AuthRequestSentFailed when err is set) for a request
// the OP retrieved, e.g. through its request_uri.
func (r *RP) SignalAuthRequestRetrieved(ctx context.Context, correlationID string, err error) error {
	if r.sessions == nil {
		return ErrNoSessionManager
	}
	record, lookupErr := r.sessions.GetRequestStateByCorrelationID(ctx, correlationID, true)
	if lookupErr != nil {
		return lookupErr
	}
	if err != nil {
		r.emit(ctx, events.AuthRequestSentFailed, correlationID, nil, err)
		return nil
	}
	r.emit(ctx, events.AuthRequestSentSuccess, correlationID, record.Request, nil)
	return nil
}

// VerifyResponseOptions are the per-response verification options, on top of the RP's configuration.
type VerifyResponseOptions struct {
	CorrelationID string
	State         string
	Nonce         string
	Audience      string
	// PresentationDefinitions override the RP's definitions.
	PresentationDefinitions []pex.DefinitionWithLocation
}

// VerifyAuthorizationResponse verifies a received authorization response payload. The correlation ID is taken from
// the options or looked up in the session manager by nonce or state. Only without a match the expected state is used. It emits
// AuthResponseReceived* and AuthResponseVerified* events.
func (r *RP) VerifyAuthorizationResponse(ctx context.Context, payload oauth.Payload, opts VerifyResponseOptions) (*response.VerifiedAuthorizationResponse, error) {
	authResponse, err := response.FromPayload(payload, nil)
	if err != nil {
		r.emit(ctx, events.AuthResponseReceivedFailed, r.fallbackCorrelationID(ctx, opts), payload, err)
		return nil, err
	}
	verifyOptions, err := r.newVerifyOptions(ctx, authResponse, opts)
	if err != nil {
		r.emit(ctx, events.AuthResponseReceivedFailed, r.fallbackCorrelationID(ctx, opts), authResponse, err)
		return nil, err
	}
	correlationID := verifyOptions.CorrelationID
	r.emit(ctx, events.AuthResponseReceivedSuccess, correlationID, authResponse, nil)

	verified, err := authResponse.Verify(ctx, verifyOptions)
	if err != nil {
		r.emit(ctx, events.AuthResponseVerifiedFailed, correlationID, authResponse, err)
		return nil, err
	}
	r.emit(ctx, events.AuthResponseVerifiedSuccess, correlationID, authResponse, nil)
	return verified, nil
}

// newVerifyOptions completes the RP's verification options. With a session manager, the correlation ID, nonce and
// state default to those of the request the response answers. The correlation ID is resolved in order: the option,
// the session of the response's nonce or state, the session of the expected state, the expected state itself.
func (r *RP) newVerifyOptions(ctx context.Context, authResponse *response.AuthorizationResponse, opts VerifyResponseOptions) (response.VerifyOptions, error) {
	correlationID := opts.CorrelationID
	result := r.verify
	result.State = opts.State
	result.Nonce = opts.Nonce
	result.Audience = firstNonEmpty(opts.Audience, r.verify.Audience, r.options.Payload.Get(oauth.ClientIDParam))
	if r.options.RequestObject != nil && result.Audience == "" {
		result.Audience = r.options.RequestObject.Payload.Get(oauth.ClientIDParam)
	}
	if opts.PresentationDefinitions != nil {
		result.PresentationDefinitions = opts.PresentationDefinitions
	}

	if r.sessions != nil {
		merged, err := authResponse.MergedPayloads(false)
		if err != nil {
			return result, err
		}
		if correlationID == "" {
			if nonce := merged.Get(oauth.NonceParam); nonce != "" {
				if correlationID, err = r.sessions.GetCorrelationIDByNonce(ctx, nonce, false); err != nil {
					return result, err
				}
			}
		}
		for _, state := range []string{merged.Get(oauth.StateParam), opts.State} {
			if correlationID != "" || state == "" {
				continue
			}
			if correlationID, err = r.sessions.GetCorrelationIDByState(ctx, state, false); err != nil {
				return result, err
			}
		}
		if correlationID != "" {
			record, err := r.sessions.GetRequestStateByCorrelationID(ctx, correlationID, false)
			if err != nil {
				return result, err
			}
			if record != nil {
				result.Nonce = firstNonEmpty(result.Nonce, record.Request.Get(oauth.NonceParam))
				result.State = firstNonEmpty(result.State, record.Request.Get(oauth.StateParam))
			}
		}
	}
	result.CorrelationID = firstNonEmpty(correlationID, opts.State, uuid.NewString())
	return result, nil
}

// fallbackCorrelationID returns the correlation ID for events about responses that couldn't be parsed.
func (r *RP) fallbackCorrelationID(ctx context.Context, opts VerifyResponseOptions) string {
	if opts.CorrelationID != "" {
		return opts.CorrelationID
	}
	if r.sessions != nil && opts.State != "" {
		if correlationID, err := r.sessions.GetCorrelationIDByState(ctx, opts.State, false); err == nil && correlationID != "" {
			return correlationID
		}
	}
	return firstNonEmpty(opts.State, uuid.NewString())
}

// emit passes an event to the sink. Sink errors are logged, they don't affect the operation.
func (r *RP) emit(ctx context.Context, eventType events.Type, correlationID string, subject interface{}, cause error) {
	if err := r.sink.Handle(ctx, events.NewEvent(eventType, correlationID, subject, cause)); err != nil {
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
