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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto/log"
	"github.com/nuts-foundation/nuts-siop/http/client"
)

// ErrInvalidSigner is returned when a Signer is constructed with missing or invalid parameters.
var ErrInvalidSigner = errors.New("invalid signer")

// ErrSigningFailed is returned when a JWT could not be signed.
var ErrSigningFailed = errors.New("unable to sign JWT")

// SignerKind specifies how a Signer produces signatures.
type SignerKind int

const (
	// LocalSignerKind signs with a private key held in memory.
	LocalSignerKind SignerKind = iota + 1
	// RemoteSignerKind delegates signing to a remote HTTP signing endpoint.
	RemoteSignerKind
	// FuncSignerKind signs through a function supplied by the caller.
	FuncSignerKind
)

func (k SignerKind) String() string {
	switch k {
	case LocalSignerKind:
		return "local"
	case RemoteSignerKind:
		return "remote"
	case FuncSignerKind:
		return "func"
	default:
		return "unknown"
	}
}

// SignFunc produces the raw signature over the given JWS signing input (base64url(header) + "." + base64url(payload)).
type SignFunc func(ctx context.Context, signingInput []byte) ([]byte, error)

// Signer signs JWTs (request objects and ID tokens) on behalf of a DID.
// It is created through NewLocalSigner, NewRemoteSigner or NewFuncSigner, which determine its SignerKind.
type Signer struct {
	kind SignerKind
	did  string
	kid  string
	alg  jwa.SignatureAlgorithm
	// local
	key jwk.Key
	// remote
	endpoint  string
	authToken string
	client    core.HTTPRequestDoer
	// func
	fn SignFunc
}

// NewLocalSigner creates a Signer that signs with the given private key.
// If kid is empty, the key's own ID is used. The algorithm is derived from the key.
func NewLocalSigner(key jwk.Key, did string, kid string) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: missing private key", ErrInvalidSigner)
	}
	if !isPrivateKey(key) {
		return nil, fmt.Errorf("%w: key is not a private key", ErrInvalidSigner)
	}
	alg, err := SignatureAlgorithm(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSigner, err)
	}
	if kid == "" {
		kid = key.KeyID()
	}
	return &Signer{kind: LocalSignerKind, key: key, did: did, kid: kid, alg: alg}, nil
}

// NewRemoteSigner creates a Signer that posts the payload to the given signing endpoint, which returns the compact JWS.
// authToken is sent as bearer token when not empty.
func NewRemoteSigner(httpClient core.HTTPRequestDoer, endpoint string, authToken string, alg jwa.SignatureAlgorithm, did string, kid string) (*Signer, error) {
	if httpClient == nil || endpoint == "" {
		return nil, fmt.Errorf("%w: remote signer requires an HTTP client and endpoint", ErrInvalidSigner)
	}
	if alg == "" {
		return nil, fmt.Errorf("%w: remote signer requires an algorithm", ErrInvalidSigner)
	}
	return &Signer{kind: RemoteSignerKind, client: httpClient, endpoint: endpoint, authToken: authToken, alg: alg, did: did, kid: kid}, nil
}

// NewFuncSigner creates a Signer that delegates producing the signature to the given function.
func NewFuncSigner(fn SignFunc, alg jwa.SignatureAlgorithm, did string, kid string) (*Signer, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: missing sign function", ErrInvalidSigner)
	}
	if alg == "" {
		return nil, fmt.Errorf("%w: func signer requires an algorithm", ErrInvalidSigner)
	}
	return &Signer{kind: FuncSignerKind, fn: fn, alg: alg, did: did, kid: kid}, nil
}

// Kind returns how this signer produces signatures.
func (s Signer) Kind() SignerKind {
	return s.kind
}

// DID returns the DID the signer signs for, which may be empty.
func (s Signer) DID() string {
	return s.did
}

// KID returns the key ID put in the JWS 'kid' header.
func (s Signer) KID() string {
	return s.kid
}

// Alg returns the JWS algorithm.
func (s Signer) Alg() jwa.SignatureAlgorithm {
	return s.alg
}

// Key returns the private key of a local signer, nil for other kinds.
func (s Signer) Key() jwk.Key {
	return s.key
}

// Sign creates a compact JWT of the given claims. The headers are added to the protected header,
// next to 'typ', 'alg' and (if known) 'kid'.
func (s Signer) Sign(ctx context.Context, claims map[string]interface{}, headers map[string]interface{}) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	var token string
	switch s.kind {
	case LocalSignerKind:
		token, err = s.signLocal(payload, headers)
	case RemoteSignerKind:
		token, err = s.signRemote(ctx, claims)
	case FuncSignerKind:
		token, err = s.signFunc(ctx, payload, headers)
	default:
		err = ErrInvalidSigner
	}
	if err != nil {
		return "", core.WrapError(ErrSigningFailed, err)
	}
	log.Logger().
		WithField(core.LogFieldKeyID, s.kid).
		Tracef("Signed JWT (signer=%s)", s.kind)
	return token, nil
}

func (s Signer) signLocal(payload []byte, headers map[string]interface{}) (string, error) {
	hdrs, err := s.protectedHeaders(headers)
	if err != nil {
		return "", err
	}
	token, err := jws.Sign(payload, jws.WithKey(s.alg, s.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", err
	}
	return string(token), nil
}

func (s Signer) signFunc(ctx context.Context, payload []byte, headers map[string]interface{}) (string, error) {
	hdrs, err := s.protectedHeaders(headers)
	if err != nil {
		return "", err
	}
	if err = hdrs.Set(jws.AlgorithmKey, s.alg); err != nil {
		return "", err
	}
	headerMap, err := hdrs.AsMap(ctx)
	if err != nil {
		return "", err
	}
	headerJSON, err := json.Marshal(headerMap)
	if err != nil {
		return "", err
	}
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature, err := s.fn(ctx, []byte(signingInput))
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

type remoteSignRequest struct {
	Issuer     string                 `json:"issuer"`
	Payload    map[string]interface{} `json:"payload"`
	Alg        string                 `json:"alg"`
	KID        string                 `json:"kid,omitempty"`
	SelfIssued string                 `json:"selfIssued,omitempty"`
}

type remoteSignResponse struct {
	JWS string `json:"jws"`
}

func (s Signer) signRemote(ctx context.Context, claims map[string]interface{}) (string, error) {
	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	body := remoteSignRequest{
		Payload: claims,
		Alg:     s.alg.String(),
		KID:     s.kid,
		Issuer:  sub,
	}
	if strings.HasPrefix(iss, "did:") {
		body.Issuer = iss
	}
	if strings.Contains(iss, selfIssuedV2) {
		body.SelfIssued = iss
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	httpResponse, err := client.DoWithRetry(ctx, s.client, client.DefaultAttempts, func(ctx context.Context) (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Accept", "application/json")
		if s.authToken != "" {
			request.Header.Set("Authorization", "Bearer "+s.authToken)
		}
		return request, nil
	})
	if err != nil {
		return "", fmt.Errorf("remote signing request failed: %w", err)
	}
	defer httpResponse.Body.Close()
	if err = core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger()); err != nil {
		return "", err
	}
	var result remoteSignResponse
	if err = json.NewDecoder(httpResponse.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("invalid remote signing response: %w", err)
	}
	if result.JWS == "" {
		return "", errors.New("remote signing response does not contain a JWS")
	}
	return result.JWS, nil
}

func (s Signer) protectedHeaders(headers map[string]interface{}) (jws.Headers, error) {
	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.TypeKey, "JWT"); err != nil {
		return nil, err
	}
	if s.kid != "" {
		if err := hdrs.Set(jws.KeyIDKey, s.kid); err != nil {
			return nil, err
		}
	}
	for k, v := range headers {
		if err := hdrs.Set(k, v); err != nil {
			return nil, err
		}
	}
	return hdrs, nil
}

func isPrivateKey(key jwk.Key) bool {
	switch key.(type) {
	case jwk.ECDSAPrivateKey, jwk.RSAPrivateKey, jwk.OKPPrivateKey:
		return true
	}
	return false
}
