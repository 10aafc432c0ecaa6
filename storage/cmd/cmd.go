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
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/spf13/pflag"
)

// FlagSet contains flags relevant for the engine
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("storage", pflag.ContinueOnError)
	defs := storage.DefaultConfig()
	flagSet.String("storage.redis.address", defs.Redis.Address, "Redis database server address. This can be a simple 'host:port' or a Redis connection URL with scheme, auth and other options. "+
		"When set, Redis backs the caches and can be used as auth.session.store.")
	flagSet.String("storage.redis.username", defs.Redis.Username, "Redis database username. If set, it overrides the username in the connection URL.")
	flagSet.String("storage.redis.password", defs.Redis.Password, "Redis database password. If set, it overrides the password in the connection URL.")
	flagSet.Int("storage.redis.database", defs.Redis.Database, "Redis database number.")
	flagSet.String("storage.redis.prefix", defs.Redis.Prefix, "Prefix of every Redis key. Can be used to have multiple instances use the same Redis instance.")
	flagSet.Duration("storage.redis.dialtimeout", defs.Redis.DialTimeout, "Timeout for connecting to Redis.")
	flagSet.StringSlice("storage.memcached.address", defs.Memcached.Address, "Addresses of memcached servers, used for caches when Redis isn't configured.")
	return flagSet
}
