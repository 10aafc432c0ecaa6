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

package vdr

import "time"

// ModuleName is the name of the VDR engine.
const ModuleName = "VDR"

// Config holds the config for the VDR engine
type Config struct {
	// UniversalResolver is the base URL of a DIF Universal Resolver, used for DID methods that aren't resolved natively.
	UniversalResolver string `koanf:"universalresolver"`
	// CacheTTL is the time resolved DID documents are cached. A zero value disables caching.
	CacheTTL time.Duration `koanf:"cachettl"`
	// Timeout is the timeout for outbound HTTP requests (did:web, universal resolver, DID configuration resources).
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns a fresh Config filled with default values
func DefaultConfig() Config {
	return Config{
		CacheTTL: 5 * time.Minute,
		Timeout:  10 * time.Second,
	}
}
