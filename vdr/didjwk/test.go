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

package didjwk

import (
	"github.com/nuts-foundation/nuts-siop/crypto"
)

// NewTestSigner creates a signer for a fresh did:jwk DID, to be used in tests. The DID resolves without network access.
func NewTestSigner() *crypto.Signer {
	key := crypto.NewTestKey("")
	id, err := New(key)
	if err != nil {
		panic(err)
	}
	kid := id.String() + "#0"
	_ = key.Set("kid", kid)
	signer, err := crypto.NewLocalSigner(key, id.String(), kid)
	if err != nil {
		panic(err)
	}
	return signer
}
