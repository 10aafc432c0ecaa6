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

// Package requestobject creates, signs and decodes request objects (RFC9101): the signed form of an authorization request.
package requestobject

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
)

// ErrMissingClientID is returned when the client_id can't be derived from the options, the client metadata or the signer.
var ErrMissingClientID = errors.New("no client_id for the relying party: provide a client_id, client metadata client_id or a signer DID")

// ErrRegistrationConflict is returned when a request object contains both registration and registration_uri.
var ErrRegistrationConflict = errors.New("registration and registration_uri can't be set at the same time")

// ErrMissingSigner is returned when an unsigned request object is signed without a signer.
var ErrMissingSigner = errors.New("request object can't be signed: no signer")

// ErrMissingIssuer is returned when a request object has no iss and the signer has no DID.
var ErrMissingIssuer = errors.New("request object can't be signed: no issuer")

// validity is how long a request object is valid after it was issued.
const validity = 120 * time.Second

// timeFunc is overridden in tests.
var timeFunc = time.Now

// Options configures the creation of a request object.
type Options struct {
	// ObjectBy specifies how the request object is passed: in the request parameter, by reference (request_uri) or not at all.
	oauth.ObjectBy
	// Payload contains the request object parameters set by the caller.
	Payload oauth.Payload
	// Signer signs the request object.
	Signer *crypto.Signer
	// Version determines the name of the client metadata parameters.
	Version version.Version
	// Registration is the client metadata of the relying party.
	Registration *Registration
	// Claims requests verifiable presentations through the claims parameter.
	Claims *pex.Claims
}

// Validate checks the options without performing any network or cryptographic operation.
func (o Options) Validate() error {
	if err := o.ObjectBy.Validate(); err != nil {
		return fmt.Errorf("request object: %w", err)
	}
	if o.PassBy != oauth.PassByNone && o.Payload == nil {
		return fmt.Errorf("%w: request object payload is required", oauth.ErrMalformedInput)
	}
	if o.Registration != nil {
		if err := o.Registration.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// State tells whether a request object has been signed.
type State int

const (
	// Unsigned request objects only have a payload.
	Unsigned State = iota + 1
	// Signed request objects have a compact JWT and its decoded payload.
	Signed
)

// RequestObject is either Unsigned (created from options, not yet signed) or Signed (created by signing or parsed from a JWT).
// Sign moves an Unsigned request object to Signed. A RequestObject is not safe for concurrent use while it's being signed.
type RequestObject struct {
	state   State
	payload oauth.Payload
	jwt     string
	signer  *crypto.Signer
}

// New creates an Unsigned request object from the given options.
func New(_ context.Context, opts Options) (*RequestObject, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	payload, err := CreatePayload(opts)
	if err != nil {
		return nil, err
	}
	return &RequestObject{state: Unsigned, payload: payload, signer: opts.Signer}, nil
}

// FromJWT creates a Signed request object from the given compact JWT. The signature is not verified.
func FromJWT(jwt string) (*RequestObject, error) {
	decoded, err := crypto.DecodeJWT(jwt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request object: %w", oauth.ErrMalformedInput, err)
	}
	payload := normalize(oauth.Payload(decoded.Payload).WithoutNil())
	if err = AssertValidPayload(payload); err != nil {
		return nil, err
	}
	return &RequestObject{state: Signed, payload: payload, jwt: jwt}, nil
}

// FromPayload creates an Unsigned request object from an existing payload, to be signed by the given signer.
func FromPayload(payload oauth.Payload, signer *crypto.Signer) (*RequestObject, error) {
	if err := AssertValidPayload(payload); err != nil {
		return nil, err
	}
	return &RequestObject{state: Unsigned, payload: payload.Clone(), signer: signer}, nil
}

// State returns whether the request object is signed.
func (r *RequestObject) State() State {
	return r.state
}

// JWT returns the compact JWT of a signed request object, or an empty string if it isn't signed yet.
func (r *RequestObject) JWT() string {
	return r.jwt
}

// Payload returns a copy of the request object payload.
func (r *RequestObject) Payload() oauth.Payload {
	return r.payload.Clone()
}

// Sign signs an Unsigned request object and returns its compact JWT. Signing a Signed request object returns the existing JWT.
func (r *RequestObject) Sign(ctx context.Context) (string, error) {
	if r.state == Signed {
		return r.jwt, nil
	}
	if r.signer == nil {
		return "", ErrMissingSigner
	}
	payload := r.payload.Without(oauth.RequestParam, oauth.RequestURIParam)
	if payload.Has(oauth.RegistrationURIParam) {
		payload = payload.Without(oauth.RegistrationParam)
	}
	if payload.Has(oauth.ClientMetadataURIParam) {
		payload = payload.Without(oauth.ClientMetadataParam)
	}
	if err := AssertValidPayload(payload); err != nil {
		return "", err
	}
	if payload.Get(oauth.IssuerParam) == "" {
		if r.signer.DID() == "" {
			return "", ErrMissingIssuer
		}
		payload[oauth.IssuerParam] = r.signer.DID()
	}
	jwt, err := r.signer.Sign(ctx, payload, nil)
	if err != nil {
		return "", err
	}
	r.payload = payload
	r.jwt = jwt
	r.state = Signed
	return jwt, nil
}

// CreatePayload creates the request object payload from the given options. Caller-supplied parameters are kept,
// defaults are applied for response_type, scope, response_mode, nonce, state and the time-based claims.
func CreatePayload(opts Options) (oauth.Payload, error) {
	if opts.Payload == nil {
		return nil, fmt.Errorf("%w: request object payload is required", oauth.ErrMalformedInput)
	}
	payload := opts.Payload.Clone()
	state := GetState(payload.Get(oauth.StateParam))

	var registration oauth.Payload
	if opts.Registration != nil {
		var err error
		if registration, err = opts.Registration.Payload(opts.Version); err != nil {
			return nil, err
		}
	}
	claims, err := pex.CreateClaimsProperties(opts.Claims)
	if err != nil {
		return nil, err
	}

	clientID := payload.Get(oauth.ClientIDParam)
	if clientID == "" && opts.Registration != nil {
		clientID = opts.Registration.Metadata.ClientID
	}
	if clientID == "" && opts.Signer != nil {
		clientID = opts.Signer.DID()
	}
	if clientID == "" {
		return nil, ErrMissingClientID
	}

	now := timeFunc().Unix()
	iat := numberOrDefault(payload[oauth.IssuedAtParam], now)
	nbf := numberOrDefault(payload[oauth.NotBeforeParam], iat)
	exp := numberOrDefault(payload[oauth.ExpirationParam], iat+int64(validity.Seconds()))
	jti := payload.Get(oauth.JWTIDParam)
	if jti == "" {
		jti = crypto.GenerateNonce()
	}

	result := payload.Merge(oauth.Payload{
		oauth.ResponseTypeParam: valueOrDefault(payload[oauth.ResponseTypeParam], oauth.IDTokenResponseType),
		oauth.ScopeParam:        valueOrDefault(payload[oauth.ScopeParam], oauth.OpenIDScope),
		oauth.ResponseModeParam: valueOrDefault(payload[oauth.ResponseModeParam], oauth.ResponseModePost),
		oauth.ClientIDParam:     clientID,
		oauth.NonceParam:        GetNonce(state, payload.Get(oauth.NonceParam)),
		oauth.StateParam:        state,
		oauth.IssuedAtParam:     iat,
		oauth.NotBeforeParam:    nbf,
		oauth.ExpirationParam:   exp,
		oauth.JWTIDParam:        jti,
	}).Merge(registration)
	if claims != nil {
		result[oauth.ClaimsParam] = map[string]interface{}(claims)
	}
	return result.WithoutNil(), nil
}

// AssertValidPayload checks that the payload doesn't contain request or request_uri (RFC9101 §4),
// and not both registration and registration_uri.
func AssertValidPayload(payload oauth.Payload) error {
	if payload.Has(oauth.RequestParam) || payload.Has(oauth.RequestURIParam) {
		return fmt.Errorf("%w: request object must not contain request or request_uri", oauth.ErrMalformedInput)
	}
	if payload.Has(oauth.RegistrationParam) && payload.Has(oauth.RegistrationURIParam) {
		return ErrRegistrationConflict
	}
	return nil
}

// GetState returns the given state, or a new random state if it's empty.
func GetState(state string) string {
	if state != "" {
		return state
	}
	return uuid.NewString()
}

// GetNonce returns the given nonce. If it's empty, the nonce is derived from the state: base64url(sha256(state)).
func GetNonce(state string, nonce string) string {
	if nonce != "" {
		return nonce
	}
	hash := sha256.Sum256([]byte(state))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// normalize removes the request parameters and keeps at most one of each by-value/by-reference metadata pair.
func normalize(payload oauth.Payload) oauth.Payload {
	result := payload.Without(oauth.RequestParam, oauth.RequestURIParam)
	if result.Has(oauth.RegistrationURIParam) {
		result = result.Without(oauth.RegistrationParam)
	}
	if result.Has(oauth.ClientMetadataURIParam) {
		result = result.Without(oauth.ClientMetadataParam)
	}
	return result
}

func valueOrDefault(value interface{}, defaultValue interface{}) interface{} {
	if value == nil {
		return defaultValue
	}
	if asString, ok := value.(string); ok && asString == "" {
		return defaultValue
	}
	return value
}

func numberOrDefault(value interface{}, defaultValue int64) int64 {
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	}
	return defaultValue
}
