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

package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix of the Redis session store.
const DefaultRedisPrefix = "siop:session"

var _ Store = (*redisStore)(nil)

// redisStore keeps records as JSON in one Redis hash per Kind, and the index in one hash per Index.
type redisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Store backed by Redis. All keys are prefixed with the given prefix.
func NewRedisStore(client redis.Cmdable, prefix string) Store {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &redisStore{client: client, prefix: prefix}
}

func (r redisStore) recordsKey(kind Kind) string {
	return r.prefix + ":" + string(kind)
}

func (r redisStore) indexKey(index Index) string {
	return r.prefix + ":" + string(index)
}

func (r redisStore) GetRecord(ctx context.Context, kind Kind, correlationID string) (*Record, error) {
	data, err := r.client.HGet(ctx, r.recordsKey(kind), correlationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record Record
	if err = json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r redisStore) PutRecord(ctx context.Context, kind Kind, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.recordsKey(kind), record.CorrelationID, data).Err()
}

func (r redisStore) Records(ctx context.Context, kind Kind) ([]Record, error) {
	values, err := r.client.HVals(ctx, r.recordsKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]Record, 0, len(values))
	for _, value := range values {
		var record Record
		if err = json.Unmarshal([]byte(value), &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

func (r redisStore) GetIndex(ctx context.Context, index Index, hash int32) (string, error) {
	correlationID, err := r.client.HGet(ctx, r.indexKey(index), hashField(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return correlationID, err
}

func (r redisStore) SetIndex(ctx context.Context, index Index, hash int32, correlationID string) error {
	set, err := r.client.HSetNX(ctx, r.indexKey(index), hashField(hash), correlationID).Result()
	if err != nil {
		return err
	}
	if set {
		return nil
	}
	existing, err := r.GetIndex(ctx, index, hash)
	if err != nil {
		return err
	}
	if existing != correlationID {
		return conflict(index, existing, correlationID)
	}
	return nil
}

func (r redisStore) Delete(ctx context.Context, correlationID string) error {
	for _, kind := range []Kind{KindRequest, KindResponse} {
		if err := r.client.HDel(ctx, r.recordsKey(kind), correlationID).Err(); err != nil {
			return err
		}
	}
	for _, index := range []Index{IndexNonce, IndexState} {
		entries, err := r.client.HGetAll(ctx, r.indexKey(index)).Result()
		if err != nil {
			return err
		}
		for field, curr := range entries {
			if curr != correlationID {
				continue
			}
			if err = r.client.HDel(ctx, r.indexKey(index), field).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func hashField(hash int32) string {
	return strconv.FormatInt(int64(hash), 10)
}
