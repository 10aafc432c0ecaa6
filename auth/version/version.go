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

// Package version determines which SIOPv2/OpenID4VP revisions an authorization request conforms to.
package version

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
)

// ErrUnsupportedVersion is returned when an authorization request doesn't conform to any (supported) version.
var ErrUnsupportedVersion = errors.New("SIOP version not supported")

// Version is a SIOPv2/OpenID4VP protocol revision. Versions are ordered by their value.
type Version int

const (
	// ID1 is SIOPv2 Implementer's Draft 1.
	ID1 Version = 70
	// JWTVCPresentationProfileV1 is the JWT VC Presentation Profile, based on ID1.
	JWTVCPresentationProfileV1 Version = 71
	// D11 is SIOPv2 draft 11 combined with OpenID4VP.
	D11 Version = 110
)

// All contains every known version, ascending.
var All = Versions{ID1, JWTVCPresentationProfileV1, D11}

func (v Version) String() string {
	switch v {
	case ID1:
		return "SIOPv2_ID1"
	case JWTVCPresentationProfileV1:
		return "JWT_VC_PRESENTATION_PROFILE_v1"
	case D11:
		return "SIOPv2_D11"
	}
	return strconv.Itoa(int(v))
}

// Parse parses a version from its name (e.g. SIOPv2_D11 or D11) or numeric value.
func Parse(value string) (Version, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, v := range All {
		name := strings.ToUpper(v.String())
		if normalized == name || normalized == strings.TrimPrefix(name, "SIOPV2_") || normalized == strconv.Itoa(int(v)) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedVersion, value)
}

// Versions is a list of versions, sorted ascending.
type Versions []Version

// Contains returns true if the list contains the given version.
func (v Versions) Contains(version Version) bool {
	for _, curr := range v {
		if curr == version {
			return true
		}
	}
	return false
}

// Max returns the highest version, or ID1 if the list is empty.
func (v Versions) Max() Version {
	result := ID1
	for _, curr := range v {
		if curr > result {
			result = curr
		}
	}
	return result
}

func (v Versions) String() string {
	var names []string
	for _, curr := range v {
		names = append(names, curr.String())
	}
	return strings.Join(names, ", ")
}

// Discover returns the versions the given (merged) authorization request payload conforms to, ascending.
// It returns ErrUnsupportedVersion when it conforms to none.
func Discover(payload oauth.Payload) (Versions, error) {
	var result Versions
	if conformsToD11(payload) {
		result = append(result, D11)
	}
	if conformsToJWTVCPresentationProfile(payload) {
		result = append(result, JWTVCPresentationProfileV1)
	}
	if conformsToID1(payload) {
		result = append(result, ID1)
	}
	if len(result) == 0 {
		return nil, ErrUnsupportedVersion
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result, nil
}

// CheckSupported discovers the versions of the payload and filters them by the supported versions.
// An empty supported list accepts every discovered version.
func CheckSupported(payload oauth.Payload, supported Versions) (Versions, error) {
	discovered, err := Discover(payload)
	if err != nil {
		return nil, err
	}
	if len(supported) == 0 {
		return discovered, nil
	}
	var result Versions
	for _, curr := range discovered {
		if supported.Contains(curr) {
			result = append(result, curr)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: request conforms to %s, supported are %s", ErrUnsupportedVersion, discovered, supported)
	}
	return result, nil
}

func conformsToD11(payload oauth.Payload) bool {
	if validate(payload, d11Schema) != nil {
		return false
	}
	return !payload.Has(oauth.RegistrationParam) &&
		!payload.Has(oauth.RegistrationURIParam) &&
		payload.Path(oauth.ClaimsParam, oauth.VpTokenParam) == nil
}

func conformsToJWTVCPresentationProfile(payload oauth.Payload) bool {
	if validate(payload, jwtVCSchema) != nil {
		return false
	}
	return payload.Contains(oauth.ScopeParam, oauth.OpenIDScope) &&
		payload.Contains(oauth.ResponseTypeParam, oauth.IDTokenResponseType) &&
		payload.Get(oauth.ResponseModeParam) == oauth.ResponseModePost &&
		strings.HasPrefix(payload.Get(oauth.ClientIDParam), "did:") &&
		payload.Has(oauth.RedirectURIParam) &&
		(payload.Has(oauth.RegistrationParam) || payload.Has(oauth.RegistrationURIParam)) &&
		payload.Path(oauth.ClaimsParam, oauth.VpTokenParam) != nil
}

func conformsToID1(payload oauth.Payload) bool {
	if validate(payload, id1Schema) != nil {
		return false
	}
	return !payload.Has(oauth.ClientMetadataParam) &&
		!payload.Has(oauth.ClientMetadataURIParam) &&
		!payload.Has(oauth.PresentationDefParam) &&
		!payload.Has(oauth.PresentationDefUriParam)
}
