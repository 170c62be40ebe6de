// Package redis implementa cache.Client sobre go-redis. Para deploys
// con más de una instancia del engine: el veredicto de lockout se
// comparte en lugar de recomputarse por nodo.
package redis

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authcore/internal/cache"
)

type Cache struct{ c *rdb.Client }

// New crea el cliente. addr es host:port; db el índice lógico.
func New(addr, password string, db int) cache.Client {
	return &Cache{c: rdb.NewClient(&rdb.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return "", cache.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *Cache) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

func (r *Cache) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Cache) Close() error { return r.c.Close() }
