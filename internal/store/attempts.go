package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// attemptRepo implementa el ledger append-only de intentos de login.
// El lockout nunca se escribe: es un COUNT sobre la ventana trailing.
type attemptRepo struct {
	s *Store
}

func (r *attemptRepo) Record(ctx context.Context, a *repository.LoginAttempt) error {
	if a == nil {
		return repository.Validationf("attempt", "nil attempt")
	}
	email := validation.NormalizeEmail(a.Email)
	if email == "" {
		return repository.Validationf("email", "empty email")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}
	db := r.s.db
	q := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?)",
		db.QuoteIdent(r.s.tables.LoginAttempts),
		db.QuoteIdent("id"), db.QuoteIdent("email"), db.QuoteIdent("success"),
		db.QuoteIdent("ip_address"), db.QuoteIdent("user_agent"), db.QuoteIdent("attempted_at"))
	if _, err := db.Exec(ctx, q, a.ID, email, a.Success, a.IPAddress, a.UserAgent, a.AttemptedAt.UTC()); err != nil {
		return fmt.Errorf("store: record attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) CountRecentFailures(ctx context.Context, email string, window time.Duration, sinceLastSuccess bool) (int, error) {
	email = validation.NormalizeEmail(email)
	db := r.s.db
	cutoff := time.Now().UTC().Add(-window)

	if sinceLastSuccess {
		// Política ResetOnSuccess: un login exitoso limpia el contador.
		// Dos queries en lugar de una subquery correlacionada: más simple
		// de razonar y el plan es idéntico con el índice (email, attempted_at).
		var last *time.Time
		q := fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s = ? AND %s = ?",
			db.QuoteIdent("attempted_at"),
			db.QuoteIdent(r.s.tables.LoginAttempts),
			db.QuoteIdent("email"),
			db.QuoteIdent("success"))
		if err := db.QueryRow(ctx, q, email, true).Scan(&last); err != nil && !db.IsNoRows(err) {
			return 0, fmt.Errorf("store: last success: %w", err)
		}
		if last != nil && last.After(cutoff) {
			cutoff = *last
		}
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND %s = ? AND %s > ?",
		db.QuoteIdent(r.s.tables.LoginAttempts),
		db.QuoteIdent("email"),
		db.QuoteIdent("success"),
		db.QuoteIdent("attempted_at"))
	var n int
	if err := db.QueryRow(ctx, q, email, false, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count failures: %w", err)
	}
	return n, nil
}

func (r *attemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	db := r.s.db
	q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?",
		db.QuoteIdent(r.s.tables.LoginAttempts),
		db.QuoteIdent("attempted_at"))
	n, err := db.Exec(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: delete old attempts: %w", err)
	}
	return int(n), nil
}
