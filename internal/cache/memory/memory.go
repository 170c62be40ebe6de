// Package memory implementa cache.Client in-process sobre go-cache.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/authcore/internal/cache"
)

type Mem struct{ c *gocache.Cache }

// New crea un cache en memoria con el TTL default dado.
func New(defaultTTL time.Duration) cache.Client {
	return &Mem{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Mem) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", cache.ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *Mem) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Mem) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Mem) Ping(context.Context) error { return nil }

func (m *Mem) Close() error {
	m.c.Flush()
	return nil
}
