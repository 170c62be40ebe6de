package repository

import (
	"context"
	"time"
)

// LoginAttempt es una entrada append-only del ledger de intentos.
// Nunca se actualiza; solo la purga el sweep de retención.
type LoginAttempt struct {
	ID          string
	Email       string
	Success     bool
	IPAddress   string
	UserAgent   string
	AttemptedAt time.Time
}

// AttemptRepository define el ledger de intentos de login.
//
// El lockout es estado derivado, no almacenado: se calcula contando
// fallos dentro de la ventana al momento de leer. No existe un write
// de "unlock"; la cuenta se abre sola cuando el fallo más viejo sale
// de la ventana.
type AttemptRepository interface {
	// Record agrega un intento incondicionalmente.
	Record(ctx context.Context, a *LoginAttempt) error

	// CountRecentFailures cuenta fallos para el email dentro de la
	// ventana trailing. Con sinceLastSuccess, solo cuenta fallos
	// posteriores al último login exitoso (política ResetOnSuccess).
	CountRecentFailures(ctx context.Context, email string, window time.Duration, sinceLastSuccess bool) (int, error)

	// DeleteOlderThan purga intentos anteriores al cutoff de retención.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
