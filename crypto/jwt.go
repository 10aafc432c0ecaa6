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

package crypto

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto/log"
)

const selfIssuedV2 = "https://self-issued.me/v2"

// ErrSignatureVerification is returned when the signature of a JWT could not be verified.
var ErrSignatureVerification = errors.New("signature verification failed")

// ErrInvalidJWT is returned when a string could not be decoded as compact JWT.
var ErrInvalidJWT = errors.New("invalid JWT")

// DefaultJWTSkew is the default clock skew tolerated when validating time-based JWT claims.
const DefaultJWTSkew = 5 * time.Second

// DecodedJWT holds the header and payload of a compact JWT, decoded without verifying its signature.
type DecodedJWT struct {
	Header  map[string]interface{}
	Payload map[string]interface{}
}

// KeyID returns the 'kid' header, or an empty string.
func (d DecodedJWT) KeyID() string {
	kid, _ := d.Header[jws.KeyIDKey].(string)
	return kid
}

// Algorithm returns the 'alg' header.
func (d DecodedJWT) Algorithm() jwa.SignatureAlgorithm {
	alg, _ := d.Header[jws.AlgorithmKey].(string)
	return jwa.SignatureAlgorithm(alg)
}

// Claim returns the string value of the given claim, or an empty string.
func (d DecodedJWT) Claim(name string) string {
	value, _ := d.Payload[name].(string)
	return value
}

// DecodeJWT decodes a compact JWT into its header and payload. The signature is NOT verified.
func DecodeJWT(token string) (*DecodedJWT, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJWT, err)
	}
	if len(message.Signatures()) != 1 {
		return nil, fmt.Errorf("%w: incorrect amount of signatures in JWT", ErrInvalidJWT)
	}
	// decode the header ourselves, jws.Headers.AsMap() returns typed values for registered headers
	headerBytes, err := base64.RawURLEncoding.DecodeString(strings.SplitN(token, ".", 2)[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJWT, err)
	}
	header := make(map[string]interface{})
	if err = json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: header is not a JSON object: %w", ErrInvalidJWT, err)
	}
	payload := make(map[string]interface{})
	if err = json.Unmarshal(message.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %w", ErrInvalidJWT, err)
	}
	return &DecodedJWT{Header: header, Payload: payload}, nil
}

// PublicKeyResolver resolves the public key that signed a JWT.
type PublicKeyResolver interface {
	// ResolvePublicKey resolves the key identified by kid (absolute DID URL or fragment relative to signerDID).
	// If kid is empty, the first suitable key of signerDID is returned.
	ResolvePublicKey(ctx context.Context, kid string, signerDID string) (crypto.PublicKey, error)
}

// VerifyOptions contains the options for verifying a JWT.
type VerifyOptions struct {
	// Audience is the expected 'aud' claim. It is not checked when empty.
	Audience string
	// Skew is the tolerated clock skew. Defaults to DefaultJWTSkew.
	Skew time.Duration
}

// VerifiedJWT is the result of a successful JWT verification.
type VerifiedJWT struct {
	// JWT is the compact JWT that was verified.
	JWT     string
	Header  map[string]interface{}
	Payload map[string]interface{}
	// Signer is the DID (or JWK thumbprint for sub_jwk signed ID tokens) that signed the JWT.
	Signer string
	// KeyID is the ID of the key that signed the JWT, if known.
	KeyID string
}

// JWTVerifier verifies signed JWTs.
type JWTVerifier interface {
	// Verify verifies the signature and time-based claims of the given JWT.
	// It returns an error matching ErrSignatureVerification if the JWT can't be verified.
	Verify(ctx context.Context, token string, options VerifyOptions) (*VerifiedJWT, error)
}

var _ JWTVerifier = (*DIDJWTVerifier)(nil)

// DIDJWTVerifier verifies JWTs signed by a DID, resolving the signing key through a PublicKeyResolver.
// Self-issued ID tokens carrying a 'sub_jwk' claim are verified against that key, which must match the 'sub' thumbprint.
type DIDJWTVerifier struct {
	KeyResolver PublicKeyResolver
}

// NewDIDJWTVerifier creates a DIDJWTVerifier.
func NewDIDJWTVerifier(keyResolver PublicKeyResolver) *DIDJWTVerifier {
	return &DIDJWTVerifier{KeyResolver: keyResolver}
}

func (v DIDJWTVerifier) Verify(ctx context.Context, token string, options VerifyOptions) (*VerifiedJWT, error) {
	decoded, err := DecodeJWT(token)
	if err != nil {
		return nil, core.WrapError(ErrSignatureVerification, err)
	}
	alg := decoded.Algorithm()
	if !IsAlgorithmSupported(alg) {
		return nil, fmt.Errorf("%w: unsupported algorithm: %s", ErrSignatureVerification, alg)
	}
	signer, publicKey, err := v.resolveSigningKey(ctx, *decoded)
	if err != nil {
		return nil, core.WrapError(ErrSignatureVerification, err)
	}
	skew := options.Skew
	if skew == 0 {
		skew = DefaultJWTSkew
	}
	parseOptions := []jwt.ParseOption{
		jwt.WithKey(alg, publicKey),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(skew),
	}
	if options.Audience != "" {
		parseOptions = append(parseOptions, jwt.WithAudience(options.Audience))
	}
	if _, err = jwt.ParseString(token, parseOptions...); err != nil {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldKeyID, decoded.KeyID()).
			Debug("JWT verification failed")
		return nil, core.WrapError(ErrSignatureVerification, err)
	}
	return &VerifiedJWT{
		JWT:     token,
		Header:  decoded.Header,
		Payload: decoded.Payload,
		Signer:  signer,
		KeyID:   decoded.KeyID(),
	}, nil
}

func (v DIDJWTVerifier) resolveSigningKey(ctx context.Context, decoded DecodedJWT) (string, crypto.PublicKey, error) {
	kid := decoded.KeyID()
	iss := decoded.Claim(jwt.IssuerKey)
	sub := decoded.Claim(jwt.SubjectKey)
	if subJWK, ok := decoded.Payload["sub_jwk"]; ok && !strings.HasPrefix(sub, "did:") {
		key, err := subjectJWK(subJWK, sub)
		if err != nil {
			return "", nil, err
		}
		return sub, key, nil
	}
	signerDID := signerDIDFromClaims(iss, sub, kid)
	if signerDID == "" {
		return "", nil, errors.New("unable to determine signer DID from 'iss', 'sub' or 'kid'")
	}
	if strings.HasPrefix(kid, "did:") && strings.Split(kid, "#")[0] != signerDID {
		return "", nil, fmt.Errorf("key (kid=%s) does not belong to signer (did=%s)", kid, signerDID)
	}
	if v.KeyResolver == nil {
		return "", nil, errors.New("no key resolver configured")
	}
	publicKey, err := v.KeyResolver.ResolvePublicKey(ctx, kid, signerDID)
	if err != nil {
		return "", nil, fmt.Errorf("unable to resolve signing key (kid=%s, did=%s): %w", kid, signerDID, err)
	}
	return signerDID, publicKey, nil
}

// signerDIDFromClaims determines the DID that signed a JWT: a DID 'iss', the 'sub' of a self-issued JWT, or the 'kid' DID.
func signerDIDFromClaims(iss string, sub string, kid string) string {
	if strings.HasPrefix(iss, "did:") {
		return iss
	}
	if strings.HasPrefix(sub, "did:") {
		return sub
	}
	if strings.HasPrefix(kid, "did:") {
		return strings.Split(kid, "#")[0]
	}
	return ""
}

// subjectJWK parses a 'sub_jwk' claim and checks that its thumbprint equals the 'sub' claim.
func subjectJWK(claim interface{}, sub string) (crypto.PublicKey, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("invalid 'sub_jwk': %w", err)
	}
	if isPrivateKey(key) {
		return nil, errors.New("'sub_jwk' must not contain a private key")
	}
	thumbprint, err := Thumbprint(key)
	if err != nil {
		return nil, err
	}
	if thumbprint != sub {
		return nil, errors.New("'sub' does not match the thumbprint of 'sub_jwk'")
	}
	var rawKey interface{}
	if err = key.Raw(&rawKey); err != nil {
		return nil, err
	}
	return rawKey, nil
}
