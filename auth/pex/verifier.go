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

package pex

import (
	"context"
	"fmt"
	"strings"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/crypto"
)

// NewJWTPresentationVerifier returns a PresentationVerifier that verifies the signature of JWT presentations
// with the given verifier. The signer must be the holder of the presentation. Other formats are rejected.
func NewJWTPresentationVerifier(verifier crypto.JWTVerifier) PresentationVerifier {
	return func(ctx context.Context, presentation vc.VerifiablePresentation) error {
		if presentation.Format() != vc.JWTPresentationProofFormat {
			return fmt.Errorf("%w: unsupported presentation format %s", ErrPresentationSignatureInvalid, presentation.Format())
		}
		verified, err := verifier.Verify(ctx, presentation.Raw(), crypto.VerifyOptions{})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPresentationSignatureInvalid, err)
		}
		if presentation.Holder != nil && signerDID(verified.Signer) != signerDID(presentation.Holder.String()) {
			return fmt.Errorf("%w: signer %s is not the holder %s", ErrPresentationSignatureInvalid, verified.Signer, presentation.Holder)
		}
		return nil
	}
}

func signerDID(id string) string {
	result, _, _ := strings.Cut(id, "#")
	return result
}
