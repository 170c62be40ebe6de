// Package cache provee un cache chico multi-backend para estado
// derivado barato de recomputar: hoy, el veredicto de lockout por
// email. Perder el cache nunca es incorrecto, solo más lento.
//
// Backends:
//   - Memory (in-process, desarrollo y tests)
//   - Redis (compartido entre instancias)
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indica que la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}
