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
	"errors"
	"fmt"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/storage/log"
	"github.com/redis/go-redis/v9"
)

const engineName = "Storage"

// Engine provides access to the session databases and the Redis client.
type Engine struct {
	config          Config
	redisClient     *redis.Client
	sessionDatabase SessionDatabase
}

// New creates a new, unconfigured storage engine.
func New() *Engine {
	return &Engine{
		config: DefaultConfig(),
	}
}

func (e *Engine) Name() string {
	return engineName
}

func (e *Engine) Config() interface{} {
	return &e.config
}

// Configure sets up the session database: Redis when configured, memcached when configured, in-memory otherwise.
func (e *Engine) Configure(_ core.ServerConfig) error {
	if e.config.Redis.IsConfigured() && e.config.Memcached.IsConfigured() {
		return errors.New("storage.redis and storage.memcached are mutually exclusive")
	}
	if e.config.Redis.IsConfigured() {
		client, err := NewRedisClient(context.Background(), e.config.Redis)
		if err != nil {
			return err
		}
		e.redisClient = client
		e.sessionDatabase = NewRedisSessionDatabase(client, e.config.Redis.Prefix)
		log.Logger().Infof("Using Redis session database (address=%s)", client.Options().Addr)
		return nil
	}
	if e.config.Memcached.IsConfigured() {
		client, err := newMemcachedClient(e.config.Memcached)
		if err != nil {
			return fmt.Errorf("unable to connect to memcached: %w", err)
		}
		e.sessionDatabase = NewMemcachedSessionDatabase(client)
		log.Logger().Info("Using memcached session database")
		return nil
	}
	e.sessionDatabase = NewInMemorySessionDatabase()
	return nil
}

func (e *Engine) Start() error {
	return nil
}

func (e *Engine) Shutdown() error {
	if e.sessionDatabase != nil {
		e.sessionDatabase.Close()
	}
	if e.redisClient != nil {
		return e.redisClient.Close()
	}
	return nil
}

// GetSessionDatabase returns the configured SessionDatabase.
func (e *Engine) GetSessionDatabase() SessionDatabase {
	return e.sessionDatabase
}

// RedisClient returns the Redis client, or nil if Redis is not configured.
func (e *Engine) RedisClient() *redis.Client {
	return e.redisClient
}

// RedisPrefix returns the prefix of all Redis keys.
func (e *Engine) RedisPrefix() string {
	return e.config.Redis.Prefix
}
