package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

const (
	productKeyPrefix     = "product:"
	productGenKeyPrefix  = "product-gen:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyPending   = "pending"

	defaultProductTTL     = 5 * time.Minute
	defaultIdempotencyTTL = 24 * time.Hour
)

// Deletes the key only while it still holds the pending marker, so a
// completed reservation is never dropped.
var releaseIdempotencyScript = redis.NewScript(`
local key = KEYS[1]
local pending = ARGV[1]

if redis.call('GET', key) == pending then
	return redis.call('DEL', key)
end

return 0
`)

// Sets the product only while the generation key still holds the value
// read before the database load. A missing generation counts as 0.
var setProductScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then
	current = '0'
end

if current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end

return 0
`)

type RedisAdapter struct {
	client         *redis.Client
	productTTL     time.Duration
	idempotencyTTL time.Duration
}

type RedisOption func(*RedisAdapter)

func WithProductTTL(d time.Duration) RedisOption {
	return func(r *RedisAdapter) { r.productTTL = d }
}

func WithIdempotencyTTL(d time.Duration) RedisOption {
	return func(r *RedisAdapter) { r.idempotencyTTL = d }
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{
		client:         client,
		productTTL:     defaultProductTTL,
		idempotencyTTL: defaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) CompleteIdempotency(ctx context.Context, key, orderID string) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, orderID, r.idempotencyTTL).Err()
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return releaseIdempotencyScript.Run(ctx, r.client, []string{idempotencyKeyPrefix + key}, idempotencyPending).Err()
}

func (r *RedisAdapter) IdempotencyResult(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if v == idempotencyPending {
		return "", nil
	}
	return v, nil
}

func (r *RedisAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, productKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached product %s: %w", id, err)
	}
	return &p, nil
}

func (r *RedisAdapter) ProductGeneration(ctx context.Context, id string) (int64, error) {
	gen, err := r.client.Get(ctx, productGenKeyPrefix+id).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisAdapter) SetProduct(ctx context.Context, p domain.Product, generation int64) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	stored, err := setProductScript.Run(ctx, r.client,
		[]string{productKeyPrefix + p.ID, productGenKeyPrefix + p.ID},
		strconv.FormatInt(generation, 10), data, r.productTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateProducts drops the cached products and bumps their generations
// in one MULTI/EXEC.
func (r *RedisAdapter) InvalidateProducts(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, productKeyPrefix+id)
			pipe.Incr(ctx, productGenKeyPrefix+id)
		}
		return nil
	})
	return err
}
