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

package requestobject

import (
	"fmt"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/version"
)

// ErrMissingRegistration is returned when client metadata is required, but not configured.
var ErrMissingRegistration = fmt.Errorf("%w: client metadata (registration) is not set", oauth.ErrMalformedInput)

// Registration is the client metadata of a relying party and how it's passed in authorization requests.
type Registration struct {
	oauth.ObjectBy
	Metadata oauth.RPRegistrationMetadata
}

// Validate checks that the metadata is passed by value or by reference (with a reference URI).
func (r Registration) Validate() error {
	switch r.PassBy {
	case oauth.PassByValue, oauth.PassByReference:
	default:
		return fmt.Errorf("%w: client metadata must be passed by value or by reference", oauth.ErrMalformedInput)
	}
	if err := r.ObjectBy.Validate(); err != nil {
		return fmt.Errorf("client metadata: %w", err)
	}
	return oauth.AssertValidRPRegistrationMetadata(r.Metadata)
}

// MetadataPayload returns the client metadata as payload, defaulting the supported subject syntax types.
func (r Registration) MetadataPayload() oauth.Payload {
	metadata := r.Metadata
	if metadata.SubjectSyntaxTypesSupported == nil {
		metadata.SubjectSyntaxTypesSupported = oauth.DefaultSubjectSyntaxTypes
	}
	return metadata.Payload()
}

// Payload returns the parameters carrying the client metadata: client_metadata[_uri] from D11 on, registration[_uri] before.
func (r Registration) Payload(v version.Version) (oauth.Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	byValue, byReference := MetadataKeys(v)
	if r.PassBy == oauth.PassByReference {
		return oauth.Payload{byReference: r.ReferenceURI}, nil
	}
	return oauth.Payload{byValue: map[string]interface{}(r.MetadataPayload().WithoutNil())}, nil
}

// MetadataKeys returns the names of the by-value and by-reference client metadata parameters for the given version.
func MetadataKeys(v version.Version) (string, string) {
	if v >= version.D11 {
		return oauth.ClientMetadataParam, oauth.ClientMetadataURIParam
	}
	return oauth.RegistrationParam, oauth.RegistrationURIParam
}
