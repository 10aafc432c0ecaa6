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
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ErrUnsupportedSigningKey is returned when a key is used of which the signature algorithm can't be derived.
var ErrUnsupportedSigningKey = errors.New("signing key algorithm not supported")

// supportedAlgorithms lists the JWS algorithms accepted when verifying JWTs.
var supportedAlgorithms = []jwa.SignatureAlgorithm{
	jwa.PS256, jwa.PS384, jwa.PS512,
	jwa.ES256, jwa.ES384, jwa.ES512,
	jwa.EdDSA,
}

// curveAlgorithms maps EC curves to the JWS algorithm used for keys on that curve.
// secp256k1 is added when built with the jwx_es256k tag.
var curveAlgorithms = map[jwa.EllipticCurveAlgorithm]jwa.SignatureAlgorithm{
	jwa.P256: jwa.ES256,
	jwa.P384: jwa.ES384,
	jwa.P521: jwa.ES512,
}

// AddSupportedAlgorithm adds a JWS algorithm to the list of algorithms accepted during JWT verification.
// It returns false if the algorithm was already supported.
func AddSupportedAlgorithm(alg jwa.SignatureAlgorithm) bool {
	if IsAlgorithmSupported(alg) {
		return false
	}
	supportedAlgorithms = append(supportedAlgorithms, alg)
	return true
}

// IsAlgorithmSupported returns true if the given JWS algorithm is accepted during JWT verification.
func IsAlgorithmSupported(alg jwa.SignatureAlgorithm) bool {
	for _, curr := range supportedAlgorithms {
		if curr == alg {
			return true
		}
	}
	return false
}

// SupportedAlgorithms returns the names of the JWS algorithms accepted during JWT verification.
func SupportedAlgorithms() []string {
	result := make([]string, len(supportedAlgorithms))
	for i, alg := range supportedAlgorithms {
		result[i] = alg.String()
	}
	return result
}

// SignatureAlgorithm returns the JWS algorithm to use for the given key.
// If the key specifies an 'alg' it is returned as-is, otherwise it is derived from the key type and curve.
func SignatureAlgorithm(key jwk.Key) (jwa.SignatureAlgorithm, error) {
	if alg := key.Algorithm(); alg != nil && alg.String() != "" {
		return jwa.SignatureAlgorithm(alg.String()), nil
	}
	switch key.KeyType() {
	case jwa.RSA:
		return jwa.PS256, nil
	case jwa.EC:
		crv, ok := key.(interface{ Crv() jwa.EllipticCurveAlgorithm })
		if !ok {
			return "", ErrUnsupportedSigningKey
		}
		if alg, ok := curveAlgorithms[crv.Crv()]; ok {
			return alg, nil
		}
	case jwa.OKP:
		crv, ok := key.(interface{ Crv() jwa.EllipticCurveAlgorithm })
		if ok && crv.Crv() == jwa.Ed25519 {
			return jwa.EdDSA, nil
		}
	}
	return "", fmt.Errorf("%w (kty=%s)", ErrUnsupportedSigningKey, key.KeyType())
}

// Thumbprint returns the RFC 7638 SHA-256 JWK thumbprint of the public part of the given key, base64url encoded.
func Thumbprint(key jwk.Key) (string, error) {
	publicKey, err := key.PublicKey()
	if err != nil {
		return "", err
	}
	tp, err := publicKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	// trailing '=' not allowed in kid
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// PublicJWK returns the public part of the given key as a JWK in map form, e.g. to be used as 'sub_jwk' claim.
func PublicJWK(key jwk.Key) (map[string]interface{}, error) {
	publicKey, err := key.PublicKey()
	if err != nil {
		return nil, err
	}
	// marshal through JSON, since AsMap() returns raw byte slices and typed values
	data, err := json.Marshal(publicKey)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{})
	return result, json.Unmarshal(data, &result)
}
