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

package revocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/vcr/log"
)

// VerifyRevocation checks the credentials of the given presentations according to the mode:
// ModeAlways checks every credential, ModeIfPresent only those with a credentialStatus and ModeNever none.
// A Checker is required unless the mode is ModeNever.
// It returns an error matching ErrRevocationCheckFailed when a credential is revoked, or its status couldn't be checked.
func VerifyRevocation(ctx context.Context, presentations []vc.VerifiablePresentation, checker Checker, mode Mode) error {
	if mode == "" {
		mode = ModeIfPresent
	}
	if mode == ModeNever {
		return nil
	}
	if checker == nil {
		return ErrMissingChecker
	}
	for _, presentation := range presentations {
		for _, credential := range presentation.VerifiableCredential {
			if mode == ModeIfPresent && len(credential.CredentialStatus) == 0 {
				continue
			}
			status, err := checker.Check(ctx, credential, CredentialFormat(credential))
			if status == StatusInvalid || err != nil {
				log.Logger().
					WithError(err).
					WithField(core.LogFieldCredentialID, credential.ID).
					Info("Credential failed revocation check")
				if err == nil {
					return fmt.Errorf("%w: credential %s", ErrRevocationCheckFailed, credentialID(credential))
				}
				return fmt.Errorf("%w: credential %s: %w", ErrRevocationCheckFailed, credentialID(credential), err)
			}
		}
	}
	return nil
}

// CredentialFormat returns jwt_vc for JWT credentials, and ldp_vc otherwise.
func CredentialFormat(credential vc.VerifiableCredential) string {
	if strings.Contains(strings.ToLower(credential.Format()), "jwt") {
		return vc.JWTCredentialProofFormat
	}
	return vc.JSONLDCredentialProofFormat
}

func credentialID(credential vc.VerifiableCredential) string {
	if credential.ID == nil {
		return "(no id)"
	}
	return credential.ID.String()
}
