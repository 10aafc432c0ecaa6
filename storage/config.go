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

package storage

import (
	"time"
)

// DefaultConfig returns the default configuration for the storage engine.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			Prefix: "siop",
		},
	}
}

// Config specifies config for the storage engine.
type Config struct {
	// Redis specifies config for the Redis server, used for the correlation session store and caches.
	Redis RedisConfig `koanf:"redis"`
	// Memcached specifies config for memcached, used for caches only.
	Memcached MemcachedConfig `koanf:"memcached"`
}

// RedisConfig specifies config for connecting to a Redis server.
type RedisConfig struct {
	// Address holds the host:port of the Redis server, or a redis:// URL. Redis is disabled if empty.
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// Database selects the Redis database number.
	Database int `koanf:"database"`
	// Prefix is prepended to all keys.
	Prefix string `koanf:"prefix"`
	// DialTimeout is the timeout for establishing a connection.
	DialTimeout time.Duration `koanf:"dialtimeout"`
}

// IsConfigured returns true if a Redis server is configured.
func (r RedisConfig) IsConfigured() bool {
	return r.Address != ""
}

// MemcachedConfig specifies config for connecting to memcached servers.
type MemcachedConfig struct {
	Address []string `koanf:"address"`
}

// IsConfigured returns true if at least one memcached server is configured.
func (m MemcachedConfig) IsConfigured() bool {
	return len(m.Address) > 0
}
