package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
)

// tokenRepo implementa el vault de refresh tokens. Solo se persisten
// digests SHA-256: una fuga de la tabla no compromete sesiones vivas.
type tokenRepo struct {
	s *Store
}

func (r *tokenRepo) quotedTokenCols() string {
	db := r.s.db
	return db.QuoteIdent("id") + ", " + db.QuoteIdent("user_id") + ", " +
		db.QuoteIdent("token_hash") + ", " + db.QuoteIdent("issued_at") + ", " +
		db.QuoteIdent("expires_at") + ", " + db.QuoteIdent("revoked_at")
}

func (r *tokenRepo) scanToken(row dialect.Row) (*repository.RefreshToken, error) {
	t := &repository.RefreshToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.RevokedAt)
	if err != nil {
		if r.s.db.IsNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error) {
	if userID == "" || tokenHash == "" {
		return "", repository.Validationf("token", "empty user id or token hash")
	}
	id := uuid.NewString()
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, NULL)",
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens), r.quotedTokenCols())
	if _, err := r.s.db.Exec(ctx, q, id, userID, tokenHash, time.Now().UTC(), expiresAt.UTC()); err != nil {
		if r.s.db.IsUniqueViolation(err) {
			// colisión de digest: probabilísticamente imposible salvo reuso
			// del mismo token crudo.
			return "", repository.ErrConflict
		}
		return "", fmt.Errorf("store: store token: %w", err)
	}
	return id, nil
}

// GetByHash retorna solo tokens vivos: uno revocado o vencido es
// indistinguible de uno inexistente para quien consulta.
func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s IS NULL AND %s > ?",
		r.quotedTokenCols(),
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("token_hash"),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("expires_at"))
	return r.scanToken(r.s.db.QueryRow(ctx, q, tokenHash, time.Now().UTC()))
}

// getByHashAny lee la fila sin filtrar estado. Lo necesita Consume,
// tanto para releer la fila que acaba de marcar como para clasificar
// por qué perdió la condición.
func (r *tokenRepo) getByHashAny(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		r.quotedTokenCols(),
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("token_hash"))
	return r.scanToken(r.s.db.QueryRow(ctx, q, tokenHash))
}

func (r *tokenRepo) Revoke(ctx context.Context, tokenID string) error {
	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s IS NULL",
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("id"),
		r.s.db.QuoteIdent("revoked_at"))
	n, err := r.s.db.Exec(ctx, q, time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("store: revoke token: %w", err)
	}
	if n == 0 {
		// ya revocado o inexistente; distinguir requiere una lectura.
		t, gerr := r.getByID(ctx, tokenID)
		if gerr != nil {
			return repository.ErrNotFound
		}
		if t.Revoked() {
			return repository.ErrTokenRevoked
		}
		return repository.ErrNotFound
	}
	return nil
}

func (r *tokenRepo) getByID(ctx context.Context, tokenID string) (*repository.RefreshToken, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		r.quotedTokenCols(),
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("id"))
	return r.scanToken(r.s.db.QueryRow(ctx, q, tokenID))
}

// Consume es el decisor de la carrera de rotación: un único UPDATE
// condicional. De N callers concurrentes con el mismo digest, el motor
// garantiza que exactamente uno ve RowsAffected=1. El perdedor paga una
// lectura extra solo para clasificar su error.
func (r *tokenRepo) Consume(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	now := time.Now().UTC()
	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s IS NULL AND %s > ?",
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("token_hash"),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("expires_at"))
	n, err := r.s.db.Exec(ctx, q, now, tokenHash, now)
	if err != nil {
		return nil, fmt.Errorf("store: consume token: %w", err)
	}
	if n == 1 {
		// la fila recién marcada ya no pasa el filtro de vivos
		t, gerr := r.getByHashAny(ctx, tokenHash)
		if gerr != nil {
			return nil, gerr
		}
		return t, nil
	}

	// Perdimos la condición: clasificar por qué.
	t, gerr := r.getByHashAny(ctx, tokenHash)
	if gerr != nil {
		return nil, repository.ErrNotFound
	}
	switch {
	case t.Revoked():
		return nil, repository.ErrTokenRevoked
	case !t.ExpiresAt.After(now):
		return nil, repository.ErrTokenExpired
	default:
		return nil, repository.ErrTokenInvalid
	}
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s IS NULL",
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("user_id"),
		r.s.db.QuoteIdent("revoked_at"))
	n, err := r.s.db.Exec(ctx, q, time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("store: revoke all by user: %w", err)
	}
	return int(n), nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, retainRevoked time.Duration) (int, error) {
	now := time.Now().UTC()
	q := fmt.Sprintf("DELETE FROM %s WHERE %s <= ? OR (%s IS NOT NULL AND %s <= ?)",
		r.s.db.QuoteIdent(r.s.tables.RefreshTokens),
		r.s.db.QuoteIdent("expires_at"),
		r.s.db.QuoteIdent("revoked_at"),
		r.s.db.QuoteIdent("revoked_at"))
	n, err := r.s.db.Exec(ctx, q, now, now.Add(-retainRevoked))
	if err != nil {
		return 0, fmt.Errorf("store: delete expired tokens: %w", err)
	}
	return int(n), nil
}
