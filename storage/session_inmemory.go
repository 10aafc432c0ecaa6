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

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/store/go_cache/v4"
	gocacheclient "github.com/patrickmn/go-cache"
)

var _ SessionDatabase = (*InMemorySessionDatabase)(nil)

// memoryPruneInterval is how often expired request objects, definitions and correlation records are evicted.
var memoryPruneInterval = 10 * time.Minute

// InMemorySessionDatabase keeps all stores in process memory. Entries are lost on restart,
// so it can't be used when multiple instances serve the same relying party.
type InMemorySessionDatabase struct {
	client     *gocacheclient.Cache
	underlying *cache.Cache[[]byte]
}

func NewInMemorySessionDatabase() *InMemorySessionDatabase {
	client := gocacheclient.New(gocacheclient.NoExpiration, memoryPruneInterval)
	return &InMemorySessionDatabase{
		client:     client,
		underlying: cache.New[[]byte](go_cache.NewGoCache(client)),
	}
}

func (s *InMemorySessionDatabase) GetStore(ttl time.Duration, keys ...string) SessionStore {
	return SessionStoreImpl[[]byte]{
		underlying: s.underlying,
		ttl:        ttl,
		prefixes:   keys,
	}
}

// Close drops all entries.
func (s *InMemorySessionDatabase) Close() {
	s.client.Flush()
}
