// Package dialect traduce un esquema lógico (tablas + field descriptors)
// y queries parametrizadas al SQL concreto de cada motor soportado.
//
// Hay un adapter por motor: PostgreSQL (pgx/pgxpool) y MySQL
// (database/sql + go-sql-driver). El adapter es dueño del ciclo de vida
// del pool: se construye con Open y se libera con Close; nunca es un
// singleton a nivel módulo, así pueden coexistir varias instancias
// configuradas en tests.
//
// Los repositorios escriben SQL canónico una sola vez: placeholders `?`
// que Rebind traduce al estilo nativo, e identificadores siempre
// quoteados vía QuoteIdent. Ningún identificador provisto por el caller
// llega a un statement sin pasar la gramática de validation.ValidFieldName.
package dialect

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// TableNames son los nombres lógicos de las tablas del engine.
type TableNames struct {
	Users          string
	RefreshTokens  string
	LoginAttempts  string
	EmailArtifacts string
}

// DefaultTableNames retorna los nombres por defecto.
func DefaultTableNames() TableNames {
	return TableNames{
		Users:          "users",
		RefreshTokens:  "refresh_tokens",
		LoginAttempts:  "login_attempts",
		EmailArtifacts: "email_artifacts",
	}
}

// Rows es el subconjunto de resultset que ambos drivers satisfacen.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Row es una fila única.
type Row interface {
	Scan(dest ...any) error
}

// Tx es una transacción mínima para los casos que la necesitan
// (emisión de artefactos, DDL transaccional en Postgres).
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Adapter es el contrato del dialecto.
type Adapter interface {
	// Name retorna "postgres" o "mysql".
	Name() string

	// Rebind traduce placeholders canónicos `?` al estilo nativo.
	Rebind(query string) string

	// QuoteIdent quotea un identificador para este motor.
	QuoteIdent(name string) string

	// ColumnType mapea un tipo lógico al tipo concreto del motor.
	// note queda no-vacío cuando hubo fallback (ej: ENUM→VARCHAR) y el
	// caller debe validar los valores a nivel aplicación.
	ColumnType(logical string) (sqlType, note string, err error)

	// CreateTables crea el esquema completo. Idempotente: correrlo
	// contra un esquema ya inicializado no falla ni duplica columnas.
	CreateTables(ctx context.Context, tables TableNames, fields []repository.FieldDescriptor) error

	// CreateIndexes crea los índices secundarios. Idempotente.
	CreateIndexes(ctx context.Context, tables TableNames) error

	// Exec ejecuta un statement canónico y retorna filas afectadas.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query / QueryRow ejecutan una consulta canónica.
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	// BeginTx abre una transacción.
	BeginTx(ctx context.Context) (Tx, error)

	// SupportsTransactionalDDL indica si el motor puede correr DDL
	// dentro de una transacción con rollback (Postgres sí, MySQL no).
	SupportsTransactionalDDL() bool

	// ColumnExists consulta information_schema por una columna.
	ColumnExists(ctx context.Context, table, column string) (bool, error)

	// IntrospectColumns lista las columnas de una tabla.
	IntrospectColumns(ctx context.Context, table string) ([]repository.ColumnInfo, error)

	// IsUniqueViolation clasifica errores de constraint único del driver.
	IsUniqueViolation(err error) bool

	// IsNoRows clasifica el "no rows" de cada driver.
	IsNoRows(err error) bool

	// Ping verifica conectividad.
	Ping(ctx context.Context) error

	// Close libera el pool. Idempotente.
	Close()
}

// Config configura la conexión de un adapter.
type Config struct {
	// Driver: "postgres" | "mysql"
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open construye el adapter según el driver configurado.
func Open(ctx context.Context, cfg Config) (Adapter, error) {
	switch cfg.Driver {
	case "postgres", "pg", "postgresql":
		return openPostgres(ctx, cfg)
	case "mysql":
		return openMySQL(ctx, cfg)
	case "":
		return nil, fmt.Errorf("dialect: %w: empty driver", repository.ErrNoDatabase)
	default:
		return nil, fmt.Errorf("dialect: unsupported driver %q", cfg.Driver)
	}
}
