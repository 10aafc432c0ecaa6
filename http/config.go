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

package http

// DefaultConfig returns the default configuration for the HTTP engine.
func DefaultConfig() Config {
	return Config{
		Log: LogMetadataLevel,
		RateLimit: RateLimitConfig{
			PerMinute: 120,
			Burst:     30,
		},
	}
}

// Config contains the settings of the HTTP engine. The address and CORS settings are part of core.ServerConfig.
type Config struct {
	// Log specifies what should be logged of HTTP requests.
	Log LogLevel `koanf:"log"`
	// RateLimit limits the number of authorization requests and responses a single client can post.
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// RateLimitConfig specifies the rate limit per client IP. A PerMinute of 0 disables rate limiting, unless in strict mode.
type RateLimitConfig struct {
	PerMinute int `koanf:"perminute"`
	Burst     int `koanf:"burst"`
}

// LogLevel specifies what to log for incoming HTTP traffic.
type LogLevel string

const (
	// LogMetadataLevel indicates that only metadata (HTTP URI, method, response code, etc) will be logged.
	LogMetadataLevel LogLevel = "metadata"
	// LogMetadataAndBodyLevel indicates that the request and reply bodies will be logged in addition to the metadata.
	LogMetadataAndBodyLevel LogLevel = "metadata-and-body"
)
