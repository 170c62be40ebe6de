package repository

import (
	"context"
	"time"
)

// User representa un usuario del sistema.
// PasswordHash nunca sale de la capa de persistencia en claro ni se loguea.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	IsActive      bool
	CustomFields  map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	CustomFields  map[string]any
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un nuevo usuario. El email se normaliza a minúsculas y la
	// unicidad la garantiza el constraint de la tabla, no la aplicación.
	// Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByEmail busca un usuario por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID busca un usuario por ID.
	GetByID(ctx context.Context, userID string) (*User, error)

	// Update aplica un patch de columnas sobre el usuario. id, created_at
	// y password_hash se descartan antes de construir el statement (la
	// password va por UpdatePasswordHash); una clave email rechaza el
	// patch con error de validación: el cambio de email tiene su propio
	// flujo verificado.
	Update(ctx context.Context, userID string, updates map[string]any) error

	// SetEmailVerified marca el email como verificado o no.
	SetEmailVerified(ctx context.Context, userID string, verified bool) error

	// SetActive habilita o deshabilita la cuenta.
	SetActive(ctx context.Context, userID string, active bool) error

	// UpdatePasswordHash reemplaza el hash de password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// CountRows retorna la cantidad de filas de la tabla de usuarios.
	// Lo usa el motor de migraciones para el chequeo NOT NULL sin default.
	CountRows(ctx context.Context) (int64, error)
}
