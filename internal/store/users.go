package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// userRepo implementa repository.UserRepository con SQL canónico.
// Las columnas custom salen de los descriptors declarados en Options:
// el shape de cada SELECT/INSERT es determinístico por construcción.
type userRepo struct {
	s *Store
}

// columnas del sistema en orden de scan. Las custom se agregan al final
// en el orden de declaración.
var userSystemCols = []string{
	"id", "email", "password_hash", "first_name", "last_name",
	"email_verified", "is_active", "created_at", "updated_at",
}

func (r *userRepo) selectCols() []string {
	cols := make([]string, 0, len(userSystemCols)+len(r.s.fields))
	cols = append(cols, userSystemCols...)
	for _, f := range r.s.fields {
		cols = append(cols, strings.ToLower(f.Name))
	}
	return cols
}

func (r *userRepo) quotedCols(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.s.db.QuoteIdent(c)
	}
	return strings.Join(out, ", ")
}

// scanUser arma los destinos de scan para una fila completa. Las custom
// van a punteros `any` porque su tipo Go depende del descriptor.
func (r *userRepo) scanUser(row dialect.Row) (*repository.User, error) {
	u := &repository.User{}
	dests := []any{
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	}
	customVals := make([]any, len(r.s.fields))
	for i := range r.s.fields {
		dests = append(dests, &customVals[i])
	}
	if err := row.Scan(dests...); err != nil {
		if r.s.db.IsNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	if len(r.s.fields) > 0 {
		u.CustomFields = make(map[string]any, len(r.s.fields))
		for i, f := range r.s.fields {
			u.CustomFields[strings.ToLower(f.Name)] = normalizeScanned(customVals[i])
		}
	}
	return u, nil
}

// normalizeScanned aplana los tipos crudos del driver a algo usable:
// MySQL entrega []byte para strings.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	email := validation.NormalizeEmail(input.Email)
	if email == "" {
		return nil, repository.Validationf("email", "empty email")
	}
	if input.PasswordHash == "" {
		return nil, repository.Validationf("password_hash", "empty password hash")
	}

	// Las custom desconocidas se rechazan: el shape del INSERT lo fijan
	// los descriptors, no el input.
	declared := make(map[string]repository.FieldDescriptor, len(r.s.fields))
	for _, f := range r.s.fields {
		declared[strings.ToLower(f.Name)] = f
	}
	for k := range input.CustomFields {
		if _, ok := declared[strings.ToLower(k)]; !ok {
			return nil, repository.Validationf(k, "unknown custom field")
		}
	}

	now := time.Now().UTC()
	u := &repository.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  input.PasswordHash,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		EmailVerified: input.EmailVerified,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	cols := []string{"id", "email", "password_hash", "first_name", "last_name", "email_verified", "is_active", "created_at", "updated_at"}
	args := []any{u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.EmailVerified, u.IsActive, u.CreatedAt, u.UpdatedAt}

	for _, f := range r.s.fields {
		name := strings.ToLower(f.Name)
		v, ok := lookupFold(input.CustomFields, name)
		if !ok {
			continue
		}
		cols = append(cols, name)
		args = append(args, v)
		if u.CustomFields == nil {
			u.CustomFields = make(map[string]any)
		}
		u.CustomFields[name] = v
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.s.db.QuoteIdent(r.s.tables.Users), r.quotedCols(cols), placeholders)

	if _, err := r.s.db.Exec(ctx, q, args...); err != nil {
		if r.s.db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("store: email %s: %w", u.Email, repository.ErrConflict)
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

func lookupFold(m map[string]any, lowerKey string) (any, bool) {
	for k, v := range m {
		if strings.ToLower(k) == lowerKey {
			return v, true
		}
	}
	return nil, false
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		r.quotedCols(r.selectCols()),
		r.s.db.QuoteIdent(r.s.tables.Users),
		r.s.db.QuoteIdent("email"))
	return r.scanUser(r.s.db.QueryRow(ctx, q, validation.NormalizeEmail(email)))
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		r.quotedCols(r.selectCols()),
		r.s.db.QuoteIdent(r.s.tables.Users),
		r.s.db.QuoteIdent("id"))
	return r.scanUser(r.s.db.QueryRow(ctx, q, userID))
}

// protectedCols no se tocan vía Update: cada una tiene su propio flujo.
// email se rechaza explícitamente en vez de descartarse, para que el
// caller aprenda que el cambio de email pasa por su flujo verificado.
var protectedCols = map[string]struct{}{
	"id": {}, "created_at": {}, "password_hash": {},
}

func (r *userRepo) Update(ctx context.Context, userID string, updates map[string]any) error {
	if userID == "" {
		return repository.Validationf("id", "empty user id")
	}

	declared := make(map[string]struct{}, len(r.s.fields))
	for _, f := range r.s.fields {
		declared[strings.ToLower(f.Name)] = struct{}{}
	}

	// Orden determinístico para que el statement sea estable entre
	// llamadas con el mismo patch.
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		if k == "email" {
			return repository.Validationf("email", "email changes go through the verified-change flow")
		}
		if _, prot := protectedCols[k]; prot {
			continue
		}
		_, isCustom := declared[k]
		if !isCustom && !isUpdatableSystem(k) {
			return repository.Validationf(k, "unknown column")
		}
		v, _ := lookupFold(updates, k)
		sets = append(sets, r.s.db.QuoteIdent(k)+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return repository.Validationf("", "no updatable columns in patch")
	}

	sets = append(sets, r.s.db.QuoteIdent("updated_at")+" = ?")
	args = append(args, time.Now().UTC())
	args = append(args, userID)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		r.s.db.QuoteIdent(r.s.tables.Users),
		strings.Join(sets, ", "),
		r.s.db.QuoteIdent("id"))

	n, err := r.s.db.Exec(ctx, q, args...)
	if err != nil {
		if r.s.db.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("store: update user: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUpdatableSystem(col string) bool {
	switch col {
	case "first_name", "last_name", "email_verified", "is_active":
		return true
	}
	return false
}

func (r *userRepo) setBool(ctx context.Context, userID, col string, v bool) error {
	q := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ?",
		r.s.db.QuoteIdent(r.s.tables.Users),
		r.s.db.QuoteIdent(col),
		r.s.db.QuoteIdent("updated_at"),
		r.s.db.QuoteIdent("id"))
	n, err := r.s.db.Exec(ctx, q, v, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", col, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	return r.setBool(ctx, userID, "email_verified", verified)
}

func (r *userRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return r.setBool(ctx, userID, "is_active", active)
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	if newHash == "" {
		return repository.Validationf("password_hash", "empty password hash")
	}
	q := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ?",
		r.s.db.QuoteIdent(r.s.tables.Users),
		r.s.db.QuoteIdent("password_hash"),
		r.s.db.QuoteIdent("updated_at"),
		r.s.db.QuoteIdent("id"))
	n, err := r.s.db.Exec(ctx, q, newHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("store: update password hash: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) CountRows(ctx context.Context) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.s.db.QuoteIdent(r.s.tables.Users))
	var n int64
	if err := r.s.db.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
