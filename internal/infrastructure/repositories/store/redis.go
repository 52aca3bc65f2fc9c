package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/config"
)

// RedisClient is the subset of *redis.Client used by RedisStore
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HLen(ctx context.Context, key string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore guarda cada tabla como un hash: campo = cache key, valor = registro msgpack
type RedisStore struct {
	client RedisClient
	prefix string
}

var _ interfaces.Store = (*RedisStore)(nil)

// NewRedisStore creates the store; the connection is checked on Init
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(rdb, cfg.KeyPrefix)
}

func NewRedisStoreWithClient(client RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) hashKey(table string) string {
	return r.prefix + table
}

func (r *RedisStore) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, table, key string) (entities.PersistentRecord, bool, error) {
	val, err := r.client.HGet(ctx, r.hashKey(table), key).Result()
	if errors.Is(err, redis.Nil) {
		return entities.PersistentRecord{}, false, nil
	}
	if err != nil {
		return entities.PersistentRecord{}, false, err
	}
	rec, err := decodeRecord([]byte(val))
	if err != nil {
		return entities.PersistentRecord{}, false, err
	}
	return rec, true, nil
}

func (r *RedisStore) BulkGet(ctx context.Context, table string, keys []string) (map[string]entities.PersistentRecord, error) {
	out := make(map[string]entities.PersistentRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.client.HMGet(ctx, r.hashKey(table), keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if i >= len(keys) {
			break
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			// un registro corrupto cuenta como ausente
			continue
		}
		out[keys[i]] = rec
	}
	return out, nil
}

func (r *RedisStore) Upsert(ctx context.Context, table, key string, record entities.PersistentRecord) error {
	b, err := encodeRecord(record)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.hashKey(table), key, b).Err()
}

func (r *RedisStore) DeleteWhere(ctx context.Context, table string, predicate interfaces.RecordPredicate) (int, error) {
	all, err := r.client.HGetAll(ctx, r.hashKey(table)).Result()
	if err != nil {
		return 0, err
	}

	var doomed []string
	for k, raw := range all {
		rec, err := decodeRecord([]byte(raw))
		if err != nil || predicate(k, rec) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	n, err := r.client.HDel(ctx, r.hashKey(table), doomed...).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RedisStore) Count(ctx context.Context, table string) (int, error) {
	n, err := r.client.HLen(ctx, r.hashKey(table)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RedisStore) Scan(ctx context.Context, table string, fn func(key string, record entities.PersistentRecord) bool) error {
	all, err := r.client.HGetAll(ctx, r.hashKey(table)).Result()
	if err != nil {
		return err
	}
	for k, raw := range all {
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			continue
		}
		if !fn(k, rec) {
			return nil
		}
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
