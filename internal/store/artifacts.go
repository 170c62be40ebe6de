package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// artifactRepo implementa el store de artefactos efímeros (tokens de
// verificación/reset y códigos numéricos). Invariante: a lo sumo un
// artefacto vivo por (user, purpose); emitir reemplaza al anterior.
type artifactRepo struct {
	s *Store
}

func validPurpose(p repository.ArtifactPurpose) bool {
	return p == repository.PurposeVerifyEmail || p == repository.PurposeResetPassword
}

func validKind(k repository.ArtifactKind) bool {
	return k == repository.KindToken || k == repository.KindCode
}

func (r *artifactRepo) Issue(ctx context.Context, a *repository.EmailArtifact) error {
	if a == nil {
		return repository.Validationf("artifact", "nil artifact")
	}
	if a.UserID == "" || a.SecretHash == "" {
		return repository.Validationf("artifact", "empty user id or secret hash")
	}
	if !validPurpose(a.Purpose) {
		return repository.Validationf("purpose", "unknown purpose %q", a.Purpose)
	}
	if !validKind(a.Kind) {
		return repository.Validationf("kind", "unknown kind %q", a.Kind)
	}
	if a.ExpiresAt.IsZero() {
		return repository.Validationf("expires_at", "zero expiry")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Email = validation.NormalizeEmail(a.Email)

	db := r.s.db
	// delete + insert en la misma transacción: el reemplazo del
	// artefacto anterior es atómico frente a un Consume concurrente.
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("store: issue artifact: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?",
		db.QuoteIdent(r.s.tables.EmailArtifacts),
		db.QuoteIdent("user_id"),
		db.QuoteIdent("purpose"))
	if _, err := tx.Exec(ctx, del, a.UserID, string(a.Purpose)); err != nil {
		return fmt.Errorf("store: issue artifact: delete prior: %w", err)
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		db.QuoteIdent(r.s.tables.EmailArtifacts),
		db.QuoteIdent("id"), db.QuoteIdent("user_id"), db.QuoteIdent("email"),
		db.QuoteIdent("purpose"), db.QuoteIdent("kind"), db.QuoteIdent("secret_hash"),
		db.QuoteIdent("expires_at"), db.QuoteIdent("created_at"))
	if _, err := tx.Exec(ctx, ins,
		a.ID, a.UserID, a.Email, string(a.Purpose), string(a.Kind),
		a.SecretHash, a.ExpiresAt.UTC(), a.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("store: issue artifact: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: issue artifact: commit: %w", err)
	}
	return nil
}

// Consume resuelve el single-use con un DELETE condicional: la lectura
// solo recupera la fila candidata, el DELETE por id + no-expirado es el
// decisor de la carrera. Expirado e inexistente responden igual.
func (r *artifactRepo) Consume(ctx context.Context, purpose repository.ArtifactPurpose, secretHash string) (*repository.EmailArtifact, error) {
	if !validPurpose(purpose) {
		return nil, repository.Validationf("purpose", "unknown purpose %q", purpose)
	}
	if secretHash == "" {
		return nil, repository.ErrNotFound
	}
	db := r.s.db
	now := time.Now().UTC()

	sel := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? AND %s = ?",
		db.QuoteIdent("id"), db.QuoteIdent("user_id"), db.QuoteIdent("email"),
		db.QuoteIdent("purpose"), db.QuoteIdent("kind"), db.QuoteIdent("secret_hash"),
		db.QuoteIdent("expires_at"), db.QuoteIdent("created_at"),
		db.QuoteIdent(r.s.tables.EmailArtifacts),
		db.QuoteIdent("purpose"), db.QuoteIdent("secret_hash"))

	a := &repository.EmailArtifact{}
	var purposeRaw, kindRaw string
	err := db.QueryRow(ctx, sel, string(purpose), secretHash).Scan(
		&a.ID, &a.UserID, &a.Email, &purposeRaw, &kindRaw,
		&a.SecretHash, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("store: consume artifact: %w", err)
	}
	a.Purpose = repository.ArtifactPurpose(purposeRaw)
	a.Kind = repository.ArtifactKind(kindRaw)

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s > ?",
		db.QuoteIdent(r.s.tables.EmailArtifacts),
		db.QuoteIdent("id"),
		db.QuoteIdent("expires_at"))
	n, err := db.Exec(ctx, del, a.ID, now)
	if err != nil {
		return nil, fmt.Errorf("store: consume artifact: delete: %w", err)
	}
	if n == 0 {
		// expiró entre lectura y borrado, o un consumidor concurrente
		// ganó. Para el caller ambos casos son "no existe".
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (r *artifactRepo) DeleteExpired(ctx context.Context) (int, error) {
	db := r.s.db
	q := fmt.Sprintf("DELETE FROM %s WHERE %s <= ?",
		db.QuoteIdent(r.s.tables.EmailArtifacts),
		db.QuoteIdent("expires_at"))
	n, err := db.Exec(ctx, q, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: delete expired artifacts: %w", err)
	}
	return int(n), nil
}
