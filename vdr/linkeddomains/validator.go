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

package linkeddomains

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
)

// ErrLinkedDomainInvalid is returned when the domain linkage of a DID is required but could not be verified.
var ErrLinkedDomainInvalid = errors.New("linked domain is invalid")

// Mode specifies whether the domain linkage of a DID is checked.
type Mode string

const (
	// ModeNever disables the check.
	ModeNever Mode = "never"
	// ModeIfPresent checks DIDs that have a LinkedDomains service. Missing linkage data is tolerated.
	ModeIfPresent Mode = "if_present"
	// ModeAlways requires a valid domain linkage.
	ModeAlways Mode = "always"
)

// ParseMode parses a Mode, case-insensitive. An empty string yields ModeIfPresent.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(value)) {
	case "", ModeIfPresent:
		return ModeIfPresent, nil
	case ModeNever:
		return ModeNever, nil
	case ModeAlways:
		return ModeAlways, nil
	}
	return "", fmt.Errorf("invalid linked domain mode: %s", value)
}

// toleratedErrors are the verification failures accepted in ModeIfPresent: the DID simply doesn't publish linkage data.
var toleratedErrors = []error{ErrNoLinkedDomainsService, ErrNoLinkedDIDs, ErrNoDomainLinkageCredentials}

// Validator applies a Mode to the domain linkage verification of DIDs.
type Validator struct {
	Resolver resolver.DIDResolver
	Verifier Verifier
}

// NewValidator creates a Validator.
func NewValidator(didResolver resolver.DIDResolver, verifier Verifier) *Validator {
	return &Validator{Resolver: didResolver, Verifier: verifier}
}

// Validate checks the domain linkage of the given DID according to mode.
// It returns an error matching ErrLinkedDomainInvalid when the check fails.
func (v Validator) Validate(ctx context.Context, subject string, mode Mode) error {
	if mode == "" {
		mode = ModeIfPresent
	}
	if mode == ModeNever {
		return nil
	}
	id, err := did.ParseDID(subject)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLinkedDomainInvalid, err)
	}
	document, _, err := v.Resolver.Resolve(ctx, *id, nil)
	if err != nil {
		return fmt.Errorf("%w: could not resolve DID %s: %w", ErrLinkedDomainInvalid, subject, err)
	}
	if mode == ModeIfPresent && len(resolver.FindServices(*document, resolver.LinkedDomainsServiceType)) == 0 {
		return nil
	}
	status, err := v.Verifier.Verify(ctx, *document)
	if err == nil && status == StatusValid {
		return nil
	}
	if err == nil {
		err = errors.New("domain linkage could not be verified")
	}
	if mode == ModeIfPresent && isTolerated(err) {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldDID, subject).
			Debug("Domain linkage not verified, but tolerated")
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLinkedDomainInvalid, err)
}

func isTolerated(err error) bool {
	for _, tolerated := range toleratedErrors {
		if errors.Is(err, tolerated) {
			return true
		}
	}
	return false
}
