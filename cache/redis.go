package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-svc/config"
	"shop-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned when a product is not cached or caching is disabled.
var ErrMiss = errors.New("cache miss")

// fillGuardTTL is how long after an invalidation fills for that product are refused. A read
// that loaded the product before a stock change must not put it back once DeleteProduct ran.
const fillGuardTTL = 5 * time.Second

// ProductCache is a read-through cache for single products. A nil *ProductCache is valid
// and behaves as an always-empty cache.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func InitRedis(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb, nil
}

func NewProductCache(rdb *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func (pc *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if pc == nil {
		return nil, ErrMiss
	}

	data, err := pc.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to decode cached product: %w", err)
	}
	return &product, nil
}

// SetProduct caches product unless it was invalidated within fillGuardTTL. The guard key is
// watched so an invalidation landing between the check and the write aborts the fill.
func (pc *ProductCache) SetProduct(ctx context.Context, product *models.Product) error {
	if pc == nil {
		return nil
	}

	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	id := product.ID.Hex()
	guard := guardKey(id)
	err = pc.rdb.Watch(ctx, func(tx *redis.Tx) error {
		invalidated, err := tx.Exists(ctx, guard).Result()
		if err != nil {
			return err
		}
		if invalidated > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, pc.ttl)
			return nil
		})
		return err
	}, guard)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// DeleteProduct drops the cached entries and blocks refills for fillGuardTTL.
func (pc *ProductCache) DeleteProduct(ctx context.Context, ids ...string) error {
	if pc == nil || len(ids) == 0 {
		return nil
	}

	_, err := pc.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, key(id))
			pipe.Set(ctx, guardKey(id), 1, fillGuardTTL)
		}
		return nil
	})
	return err
}

func (pc *ProductCache) Close() error {
	if pc == nil {
		return nil
	}
	return pc.rdb.Close()
}

func key(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func guardKey(id string) string {
	return fmt.Sprintf("product:%s:invalidated", id)
}
