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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

var _ SessionDatabase = (*RedisSessionDatabase)(nil)

// RedisSessionDatabase is a SessionDatabase backed by Redis. The gocache Redis store returns string values.
type RedisSessionDatabase struct {
	prefix     string
	underlying *cache.Cache[string]
}

// NewRedisSessionDatabase creates a new RedisSessionDatabase using an initialized Redis client.
// All keys are prefixed with the given prefix.
func NewRedisSessionDatabase(client *redis.Client, prefix string) *RedisSessionDatabase {
	return &RedisSessionDatabase{
		prefix:     prefix,
		underlying: cache.New[string](redisstore.NewRedis(client)),
	}
}

// NewRedisClient creates a Redis client from the given config and checks the connection.
func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(config.Address, "redis://") || strings.HasPrefix(config.Address, "rediss://") {
		var err error
		opts, err = redis.ParseURL(config.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: config.Address}
	}
	if config.Username != "" {
		opts.Username = config.Username
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.Database != 0 {
		opts.DB = config.Database
	}
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to Redis (address=%s): %w", opts.Addr, err)
	}
	return client, nil
}

func (s *RedisSessionDatabase) GetStore(ttl time.Duration, keys ...string) SessionStore {
	prefixes := keys
	if s.prefix != "" {
		prefixes = append([]string{s.prefix}, keys...)
	}
	return SessionStoreImpl[string]{
		underlying: s.underlying,
		ttl:        ttl,
		prefixes:   prefixes,
	}
}

func (s *RedisSessionDatabase) Close() {
	// client is owned by the storage engine
}
