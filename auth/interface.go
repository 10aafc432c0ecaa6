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

package auth

import (
	"net/url"

	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/op"
	"github.com/nuts-foundation/nuts-siop/auth/rp"
	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
)

// SIOP is the interface of the Auth engine the HTTP APIs and CLI use.
type SIOP interface {
	// RelyingParty returns the relying party, or nil if it's disabled.
	RelyingParty() *rp.RP
	// RelyingPartyBuilder returns the builder of the relying party, or nil if it's disabled.
	RelyingPartyBuilder() *rp.Builder
	Provider() *op.OP
	Sessions() *session.Manager
	Definitions() *pe.DefinitionStore
	// PublicURL returns the public URL of the server, or nil if it isn't configured.
	PublicURL() *url.URL
	SupportedVersion() version.Version
	Fetcher() codec.Fetcher
}
