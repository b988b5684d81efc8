package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/mafzaal/letstalk-index/pkg/errors"
)

// RedisStore backs a "remote" vector collection with a Redis hash per
// chunk, keyed by collection/source/ordinal so RemoveBySource can SCAN a
// stable prefix.
type RedisStore struct {
	client     *redis.Client
	collection string
}

// NewRedisStore returns a RedisStore bound to collection.
func NewRedisStore(client *redis.Client, collection string) *RedisStore {
	return &RedisStore{client: client, collection: collection}
}

func (s *RedisStore) key(source string, ordinal int) string {
	return fmt.Sprintf("letstalk:%s:chunk:%s:%d", s.collection, source, ordinal)
}

func (s *RedisStore) prefix(source string) string {
	return fmt.Sprintf("letstalk:%s:chunk:%s:*", s.collection, source)
}

// Add upserts each entry as a Redis hash.
func (s *RedisStore) Add(ctx context.Context, entries []Entry) error {
	pipe := s.client.Pipeline()
	for _, e := range entries {
		vec, err := json.Marshal(e.Embedding)
		if err != nil {
			return errors.Store("marshal embedding", err)
		}
		meta, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return errors.Store("marshal chunk metadata", err)
		}
		pipe.HSet(ctx, s.key(e.Chunk.Source, e.Chunk.Ordinal), map[string]interface{}{
			"content":   e.Chunk.Content,
			"source":    e.Chunk.Source,
			"ordinal":   e.Chunk.Ordinal,
			"embedding": vec,
			"metadata":  meta,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Store("execute redis pipeline add", err)
	}
	return nil
}

// RemoveBySource scans for every key under the source's prefix and deletes
// them in a single pipelined call.
func (s *RedisStore) RemoveBySource(ctx context.Context, source string) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix(source), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Store("scan redis keys for source", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Store("execute redis pipeline delete", err)
	}
	return len(keys), nil
}

// Clear removes every key belonging to the collection, used to implement
// force_recreate against a remote backend.
func (s *RedisStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("letstalk:%s:chunk:*", s.collection), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Store("scan redis keys for collection", err)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Store("execute redis pipeline clear", err)
	}
	return nil
}

// ValidateHealth pings the Redis server.
func (s *RedisStore) ValidateHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Store("redis ping failed", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
