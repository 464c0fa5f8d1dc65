package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/estaterec/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore。
// 生产环境使用，交互日志与推荐快照在多实例间共享。
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore 连接 Redis 并做一次 Ping。
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.Unavailable(core.ModuleStore, err, "redis ping")
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient 复用外部创建的客户端（集群/哨兵/测试）。
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, r.wrap(err, "redis get")
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}
	return r.wrap(r.client.Set(ctx, key, value, expiration).Err(), "redis set")
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.wrap(r.client.Del(ctx, key).Err(), "redis del")
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, r.wrap(err, "redis mget")
	}

	result := make(map[string][]byte, len(keys))
	for i, k := range keys {
		if s, ok := vals[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}

	pipe := r.client.Pipeline()
	for k, v := range kvs {
		pipe.Set(ctx, k, v, expiration)
	}
	_, err := pipe.Exec(ctx)
	return r.wrap(err, "redis pipeline set")
}

func (r *RedisStore) SAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, r.wrap(err, "redis sadd")
	}
	return n == 1, nil
}

func (r *RedisStore) SRem(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, r.wrap(err, "redis srem")
	}
	return n == 1, nil
}

func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, r.wrap(err, "redis smembers")
	}
	return members, nil
}

func (r *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := r.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, r.wrap(err, "redis scard")
	}
	return n, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) wrap(err error, op string) error {
	return core.Unavailable(core.ModuleStore, err, op)
}

// 确保 RedisStore 实现了 core.Store 和 core.KeyValueStore 接口
var _ core.Store = (*RedisStore)(nil)
var _ core.KeyValueStore = (*RedisStore)(nil)
