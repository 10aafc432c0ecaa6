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

package cmd

import (
	"fmt"

	"github.com/nuts-foundation/nuts-siop/http"
	"github.com/spf13/pflag"
)

// FlagSet defines the set of flags that sets the engine configuration
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("http", pflag.ContinueOnError)

	defs := http.DefaultConfig()
	flags.String("http.log", string(defs.Log), fmt.Sprintf("What to log about HTTP requests. Options are '%s' (log request method, URI, IP and response code), and '%s' (log the request and response body, in addition to the metadata).", http.LogMetadataLevel, http.LogMetadataAndBodyLevel))
	flags.Int("http.ratelimit.perminute", defs.RateLimit.PerMinute, "Number of authorization requests and responses a single client IP can post per minute. 0 disables rate limiting, except in strict mode.")
	flags.Int("http.ratelimit.burst", defs.RateLimit.Burst, "Number of requests a single client IP can post in a burst.")
	return flags
}
