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

package oauth

import (
	"fmt"
	"strings"
)

// PassBy specifies how an object (request object, client metadata, presentation definition) is transferred.
type PassBy string

const (
	// PassByNone means the object is not transferred at all.
	PassByNone PassBy = "NONE"
	// PassByReference means the object is transferred as URI the receiver has to fetch.
	PassByReference PassBy = "REFERENCE"
	// PassByValue means the object is embedded.
	PassByValue PassBy = "VALUE"
)

// ParsePassBy parses a PassBy, case-insensitive.
func ParsePassBy(value string) (PassBy, error) {
	switch PassBy(strings.ToUpper(value)) {
	case PassByNone:
		return PassByNone, nil
	case PassByReference:
		return PassByReference, nil
	case PassByValue:
		return PassByValue, nil
	}
	return "", fmt.Errorf("%w: invalid pass by: %s", ErrMalformedInput, value)
}

// ObjectBy describes how an object is passed, and where to find it when it's passed by reference.
type ObjectBy struct {
	PassBy PassBy `json:"passBy"`
	// ReferenceURI is the URI the object can be fetched from. It's required when passing by reference.
	ReferenceURI string `json:"reference_uri,omitempty"`
	// Targets specifies in which payloads the object (or its reference) is placed.
	Targets PropertyTarget `json:"targets,omitempty"`
}

// Validate checks that PassBy is set and a reference URI is present iff passing by reference.
func (o ObjectBy) Validate() error {
	switch o.PassBy {
	case PassByReference:
		if o.ReferenceURI == "" {
			return fmt.Errorf("%w: pass by reference requires a reference URI", ErrMalformedInput)
		}
	case PassByValue, PassByNone:
		if o.ReferenceURI != "" {
			return fmt.Errorf("%w: reference URI is only allowed when passing by reference", ErrMalformedInput)
		}
	default:
		return fmt.Errorf("%w: invalid pass by: '%s'", ErrMalformedInput, o.PassBy)
	}
	return nil
}

// PropertyTarget is a set of payloads a property is placed in.
type PropertyTarget int

const (
	// TargetAuthorizationRequest places the property in the authorization request envelope.
	TargetAuthorizationRequest PropertyTarget = 1 << iota
	// TargetRequestObject places the property in the (signed) request object.
	TargetRequestObject
)

// TargetBoth places the property in both the envelope and the request object.
const TargetBoth = TargetAuthorizationRequest | TargetRequestObject

// Includes returns true when the target set contains the given target. An empty set includes every target.
func (t PropertyTarget) Includes(target PropertyTarget) bool {
	return t == 0 || t&target == target
}
