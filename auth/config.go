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
	"time"

	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/vcr/revocation"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// SessionStoreMemory and SessionStoreRedis are the supported auth.session.store values.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all the configuration params
type Config struct {
	// ClientID is the DID of the relying party. The relying party endpoints are disabled when empty.
	ClientID string `koanf:"clientid"`
	// ClientName is the client_name in the client metadata of created authorization requests.
	ClientName string `koanf:"clientname"`
	// RedirectURI is where wallets post responses, defaults to <url>/siop/rp/response.
	RedirectURI string `koanf:"redirecturi"`
	// Version is the SIOP version of created authorization requests.
	Version       string        `koanf:"version"`
	LinkedDomains string        `koanf:"linkeddomains"`
	Revocation    string        `koanf:"revocation"`
	// Definitions is a JSON file containing an array of presentation definitions the relying party can ask for.
	Definitions string        `koanf:"definitions"`
	Signer      SignerConfig  `koanf:"signer"`
	Session     SessionConfig `koanf:"session"`
	HTTP        HTTPConfig    `koanf:"http"`
}

// SignerConfig configures the signer of request objects and ID tokens: a local private key (KeyFile)
// or a remote signing service (Endpoint).
type SignerConfig struct {
	// DID defaults to auth.clientid.
	DID string `koanf:"did"`
	// KID defaults to the key ID of the JWK (local) or <did>#0 (remote).
	KID      string `koanf:"kid"`
	KeyFile  string `koanf:"keyfile"`
	Endpoint string `koanf:"endpoint"`
	Token    string `koanf:"token"`
	// Algorithm is the JWS algorithm of the remote signer.
	Algorithm string `koanf:"alg"`
}

// SessionConfig configures the correlation of requests and responses.
type SessionConfig struct {
	// MaxAge in seconds of correlation records. 0 keeps them forever.
	MaxAge int `koanf:"maxage"`
	// Store is either memory or redis (which requires storage.redis.address).
	Store string `koanf:"store"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns an instance of Config with the default values.
func DefaultConfig() Config {
	return Config{
		Version:       version.D11.String(),
		LinkedDomains: string(linkeddomains.ModeIfPresent),
		Revocation:    string(revocation.ModeIfPresent),
		Signer: SignerConfig{
			Algorithm: "ES256",
		},
		Session: SessionConfig{
			MaxAge: 300,
			Store:  SessionStoreMemory,
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
	}
}
