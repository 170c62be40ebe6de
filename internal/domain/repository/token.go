package repository

import (
	"context"
	"time"
)

// RefreshToken representa un refresh token persistido.
// TokenHash es el digest SHA-256 del valor emitido; el valor crudo
// nunca se guarda.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked indica si el token fue revocado.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// TokenRepository define el vault de refresh tokens.
type TokenRepository interface {
	// Store persiste el digest de un refresh token emitido.
	// Retorna el ID de la fila creada.
	Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)

	// GetByHash busca un token vivo por su digest. Un token revocado o
	// vencido retorna ErrNotFound, igual que uno inexistente.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke marca el token como revocado. No borra la fila: la purga
	// física la hace el sweep de mantenimiento.
	Revoke(ctx context.Context, tokenID string) error

	// Consume es la transición Active→Revoked en un único UPDATE
	// condicional (revoked_at IS NULL AND expires_at > now). De dos
	// callers concurrentes con el mismo token, exactamente uno gana;
	// el perdedor recibe ErrTokenRevoked (o ErrTokenExpired /
	// ErrNotFound según corresponda).
	Consume(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeAllByUser revoca en un solo statement todos los tokens
	// activos del usuario. Retorna cuántos revocó.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired purga tokens expirados o revocados. Acotado por la
	// ventana de retención; retorna cuántos borró.
	DeleteExpired(ctx context.Context, retainRevoked time.Duration) (int, error)
}
