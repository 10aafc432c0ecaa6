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

// Package idtoken creates and verifies self-issued ID tokens (SIOPv2).
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// ErrUnsupportedResponseVersion is returned when the requested response version isn't supported by the relying party.
var ErrUnsupportedResponseVersion = errors.New("response version not supported by the relying party")

// ErrMissingSigner is returned when an unsigned ID token is signed without a signer.
var ErrMissingSigner = errors.New("ID token can't be signed: no signer")

// ErrMissingSubject is returned when no subject can be derived for the ID token.
var ErrMissingSubject = errors.New("ID token has no subject: signer has no DID and the relying party doesn't support JWK thumbprint subjects")

// ErrInvalidIDToken is returned when an ID token doesn't pass verification for another reason than its signature.
var ErrInvalidIDToken = errors.New("invalid ID token")

// DefaultExpiresIn is the validity of ID tokens when not specified.
const DefaultExpiresIn = 600 * time.Second

// issuedAtSkew is subtracted from the current time for the iat claim to tolerate clocks that run behind.
const issuedAtSkew = 60 * time.Second

var timeFunc = time.Now

// Options configures the creation of an ID token.
type Options struct {
	Signer *crypto.Signer
	// Version is the response version, it must be one of the versions of the verified request. Defaults to the highest.
	Version version.Version
	// Issuer overrides the self-issued iss.
	Issuer string
	// Audience overrides the aud, which defaults to the client_id of the request.
	Audience  string
	ExpiresIn time.Duration
}

// State tells whether an ID token has been signed.
type State int

const (
	// Unsigned ID tokens only have a payload.
	Unsigned State = iota + 1
	// Signed ID tokens have a compact JWT, its header and its payload.
	Signed
)

// IDToken is either Unsigned (created for a response, not yet signed) or Signed (signed, or parsed from a JWT).
type IDToken struct {
	state   State
	payload oauth.Payload
	header  map[string]interface{}
	jwt     string
	signer  *crypto.Signer
}

// FromVerifiedRequest creates an Unsigned ID token answering the given verified authorization request.
func FromVerifiedRequest(ctx context.Context, verified *request.VerifiedAuthorizationRequest, opts Options) (*IDToken, error) {
	if opts.Signer == nil {
		return nil, ErrMissingSigner
	}
	payload, err := CreatePayload(ctx, verified, opts)
	if err != nil {
		return nil, err
	}
	return &IDToken{state: Unsigned, payload: payload, signer: opts.Signer}, nil
}

// FromPayload creates an Unsigned ID token from an existing payload.
func FromPayload(payload oauth.Payload, signer *crypto.Signer) (*IDToken, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: no ID token payload", oauth.ErrMalformedInput)
	}
	return &IDToken{state: Unsigned, payload: payload.Clone(), signer: signer}, nil
}

// FromJWT creates a Signed ID token from the given compact JWT. The signature is not verified.
func FromJWT(jwt string) (*IDToken, error) {
	decoded, err := crypto.DecodeJWT(jwt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ID token: %w", oauth.ErrMalformedInput, err)
	}
	return &IDToken{state: Signed, payload: decoded.Payload, header: decoded.Header, jwt: jwt}, nil
}

// CreatePayload creates the payload of an ID token answering the given verified authorization request.
func CreatePayload(_ context.Context, verified *request.VerifiedAuthorizationRequest, opts Options) (oauth.Payload, error) {
	if verified == nil {
		return nil, fmt.Errorf("%w: no verified authorization request", oauth.ErrMalformedInput)
	}
	requestPayload := verified.Payload
	if requestPayload == nil && verified.Request != nil {
		requestPayload = verified.Request.MergedPayloads()
	}
	v := opts.Version
	if v == 0 {
		v = verified.Versions.Max()
	} else if len(verified.Versions) > 0 && !verified.Versions.Contains(v) {
		return nil, fmt.Errorf("%w: %s (relying party: %s)", ErrUnsupportedResponseVersion, v, verified.Versions)
	}

	now := timeFunc()
	expiresIn := opts.ExpiresIn
	if expiresIn == 0 {
		expiresIn = DefaultExpiresIn
	}
	payload := oauth.Payload{
		oauth.IssuerParam:     issuer(opts.Issuer, v),
		oauth.AudienceParam:   opts.Audience,
		oauth.IssuedAtParam:   now.Add(-issuedAtSkew).Unix(),
		oauth.ExpirationParam: now.Add(expiresIn).Unix(),
		oauth.AuthTimeParam:   requestPayload[oauth.AuthTimeParam],
		oauth.NonceParam:      requestPayload[oauth.NonceParam],
		oauth.StateParam:      requestPayload[oauth.StateParam],
	}
	if opts.Audience == "" {
		payload[oauth.AudienceParam] = requestPayload.Get(oauth.ClientIDParam)
	}
	if err := setSubject(payload, opts.Signer, verified.RegistrationMetadata); err != nil {
		return nil, err
	}
	return payload.WithoutNil(), nil
}

func issuer(override string, v version.Version) string {
	switch {
	case override != "":
		return override
	case v == version.JWTVCPresentationProfileV1:
		return oauth.SelfIssuedJWTVCPresentationV1
	default:
		return oauth.SelfIssuedV2
	}
}

// setSubject sets sub to the signer's DID. Without DID, sub is the JWK thumbprint of the signing key and sub_jwk its
// public key, provided the relying party supports JWK thumbprint subjects.
func setSubject(payload oauth.Payload, signer *crypto.Signer, metadata *oauth.RPRegistrationMetadata) error {
	if signer == nil {
		return ErrMissingSigner
	}
	if signer.DID() != "" {
		payload[oauth.SubjectParam] = signer.DID()
		return nil
	}
	if metadata == nil || !containsString(metadata.SubjectSyntaxTypesSupported, oauth.SubjectSyntaxTypeJWKThumbprint) || signer.Key() == nil {
		return ErrMissingSubject
	}
	thumbprint, err := crypto.Thumbprint(signer.Key())
	if err != nil {
		return err
	}
	publicJWK, err := crypto.PublicJWK(signer.Key())
	if err != nil {
		return err
	}
	payload[oauth.SubjectParam] = thumbprint
	payload[oauth.SubjectJWKParam] = publicJWK
	return nil
}

// State returns whether the ID token is signed.
func (t *IDToken) State() State {
	return t.state
}

// JWT returns the compact JWT of a signed ID token, or an empty string if it isn't signed yet.
func (t *IDToken) JWT() string {
	return t.jwt
}

// Payload returns a copy of the ID token payload.
func (t *IDToken) Payload() oauth.Payload {
	return t.payload.Clone()
}

// Header returns the JWS header of a signed ID token.
func (t *IDToken) Header() map[string]interface{} {
	return t.header
}

// Sign signs an Unsigned ID token and returns its compact JWT. Signing a Signed ID token returns the existing JWT.
func (t *IDToken) Sign(ctx context.Context) (string, error) {
	if t.state == Signed {
		return t.jwt, nil
	}
	if t.signer == nil {
		return "", ErrMissingSigner
	}
	jwt, err := t.signer.Sign(ctx, t.payload, nil)
	if err != nil {
		return "", fmt.Errorf("unable to sign ID token: %w", err)
	}
	decoded, err := crypto.DecodeJWT(jwt)
	if err != nil {
		return "", err
	}
	t.jwt = jwt
	t.header = decoded.Header
	t.payload = decoded.Payload
	t.state = Signed
	return jwt, nil
}

// IsSelfIssued returns true if the ID token is self-issued: its iss is a self-issued issuer or equals its sub.
func (t *IDToken) IsSelfIssued() bool {
	iss := t.payload.Get(oauth.IssuerParam)
	return iss == oauth.SelfIssuedV2 || iss == oauth.SelfIssuedJWTVCPresentationV1 || iss == t.payload.Get(oauth.SubjectParam)
}

// VerifyOptions configures the verification of an ID token by the relying party.
type VerifyOptions struct {
	CorrelationID string
	Verifier      crypto.JWTVerifier
	// Audience is the expected aud, typically the client_id of the relying party.
	Audience string
	// Nonce is the nonce of the authorization request. The ID token must always contain a nonce.
	Nonce string
	// LinkedDomains checks the domain linkage of a DID subject. It's skipped when nil.
	LinkedDomains    request.LinkedDomainValidator
	LinkedDomainMode linkeddomains.Mode
}

// VerifiedIDToken is the result of verifying an ID token.
type VerifiedIDToken struct {
	VerifiedJWT *crypto.VerifiedJWT
	IDToken     *IDToken
	Payload     oauth.Payload
	Issuer      string
	Subject     string
}

// Verify verifies a signed ID token: its issuer, signature, nonce, audience and the domain linkage of its subject.
func (t *IDToken) Verify(ctx context.Context, opts VerifyOptions) (*VerifiedIDToken, error) {
	if opts.Verifier == nil {
		return nil, fmt.Errorf("%w: verification options are required", oauth.ErrMalformedInput)
	}
	if t.state != Signed || len(t.header) == 0 {
		return nil, fmt.Errorf("%w: no JWT header", ErrInvalidIDToken)
	}
	iss := t.payload.Get(oauth.IssuerParam)
	if !strings.Contains(iss, oauth.SelfIssuedV2) && !strings.HasPrefix(iss, "did:") {
		return nil, fmt.Errorf("%w: issuer must be self-issued or a DID: %s", ErrInvalidIDToken, iss)
	}
	verified, err := opts.Verifier.Verify(ctx, t.jwt, crypto.VerifyOptions{Audience: opts.Audience})
	if err != nil {
		return nil, err
	}
	payload := oauth.Payload(verified.Payload)
	nonce := payload.Get(oauth.NonceParam)
	if nonce == "" {
		return nil, fmt.Errorf("%w: no nonce", ErrInvalidIDToken)
	}
	if opts.Nonce != "" && nonce != opts.Nonce {
		return nil, fmt.Errorf("%w: payload: %s, supplied: %s", request.ErrNonceMismatch, nonce, opts.Nonce)
	}
	if opts.Audience != "" && !containsString(payload.Values(oauth.AudienceParam), opts.Audience) {
		return nil, fmt.Errorf("%w: audience %v doesn't contain %s", ErrInvalidIDToken, payload.Values(oauth.AudienceParam), opts.Audience)
	}
	sub := payload.Get(oauth.SubjectParam)
	if strings.HasPrefix(sub, "did:") && opts.LinkedDomains != nil && opts.LinkedDomainMode != linkeddomains.ModeNever {
		if err = opts.LinkedDomains.Validate(ctx, sub, opts.LinkedDomainMode); err != nil {
			return nil, err
		}
	}
	log.Logger().
		WithField(core.LogFieldCorrelationID, opts.CorrelationID).
		WithField(core.LogFieldDID, sub).
		Debug("Verified ID token")
	return &VerifiedIDToken{
		VerifiedJWT: verified,
		IDToken:     t,
		Payload:     payload,
		Issuer:      iss,
		Subject:     sub,
	}, nil
}

func containsString(values []string, value string) bool {
	for _, curr := range values {
		if curr == value {
			return true
		}
	}
	return false
}
