package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: email duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")

	// ErrTokenExpired indica que el token ya expiró.
	// El caller debería pedir un refresh (access) o re-autenticar (refresh).
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indica un token malformado o con firma inválida.
	// El caller debe forzar re-autenticación.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenRevoked indica que el refresh token fue revocado o consumido
	// por otra llamada concurrente.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrAccountLocked indica que la cuenta está bloqueada por intentos fallidos.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountDisabled indica que la cuenta fue deshabilitada.
	ErrAccountDisabled = errors.New("account disabled")
)

// ValidationError describe una entrada inválida antes de construir SQL:
// nombre de campo fuera de gramática, demasiados campos, código malformado.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// Validationf construye un ValidationError con formato.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MigrationError describe una migración rechazada o fallida.
// Applied lista las columnas ya aplicadas cuando el backend no soporta
// DDL transaccional y la migración quedó a medias.
type MigrationError struct {
	Reason  string
	Applied []string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("migration: %s: %v", e.Reason, e.Err)
	}
	return "migration: " + e.Reason
}

func (e *MigrationError) Unwrap() error { return e.Err }

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation verifica si el error es un ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsMigration verifica si el error es un MigrationError.
func IsMigration(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}
