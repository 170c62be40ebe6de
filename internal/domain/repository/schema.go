package repository

import "context"

// FieldDescriptor describe una columna custom declarada por el caller
// antes de la inicialización. Es metadata de esquema, no datos de fila:
// un pequeño DSL tipado que se compila determinísticamente a DDL.
//
// Name debe cumplir la gramática [A-Za-z_][A-Za-z0-9_]* y se valida
// antes de generar cualquier SQL; jamás se interpola un identificador
// provisto por el caller sin quotear.
type FieldDescriptor struct {
	Name     string
	Type     string // vocabulario lógico: STRING, TEXT, INTEGER, BIGINT, FLOAT, DOUBLE, BOOLEAN, DATE, DATETIME, ENUM(...), JSON
	Required bool
	Unique   bool
	Default  any
}

// ColumnInfo es metadata de una columna existente (introspección).
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    string
}

// AddColumnOptions controla una operación addColumn.
type AddColumnOptions struct {
	// Confirmed debe ser true explícitamente; sin confirmación la
	// operación falla cerrada antes de tocar el esquema.
	Confirmed bool
}

// MigrateOptions controla una migración multi-columna.
type MigrateOptions struct {
	Confirmed bool
	// UseTransaction pide DDL transaccional. Solo PostgreSQL lo soporta;
	// en MySQL las columnas se aplican secuencialmente sin rollback y el
	// resultado lo refleja con Atomic=false.
	UseTransaction bool
}

// MigrationResult describe qué se aplicó y con qué garantía.
type MigrationResult struct {
	Applied []string // columnas agregadas, en orden
	Skipped []string // columnas que ya existían
	Atomic  bool     // true si todo corrió dentro de una transacción DDL
}

// SchemaRepository define la evolución guardada del esquema en runtime.
type SchemaRepository interface {
	// AddColumn agrega una columna custom a la tabla de usuarios.
	// Rechaza con MigrationError: falta de confirmación, nombre fuera de
	// gramática o reservado, y NOT NULL sin default sobre tabla no vacía
	// — todo antes de emitir el primer ALTER.
	AddColumn(ctx context.Context, field FieldDescriptor, opts AddColumnOptions) error

	// MigrateSchema aplica varias columnas. Con UseTransaction en un
	// backend con DDL transaccional, o todo o nada; en caso contrario la
	// asimetría se expone en MigrationResult / MigrationError.Applied.
	MigrateSchema(ctx context.Context, fields []FieldDescriptor, opts MigrateOptions) (*MigrationResult, error)

	// IntrospectColumns retorna las columnas actuales de una tabla.
	IntrospectColumns(ctx context.Context, table string) ([]ColumnInfo, error)
}

// MaintenanceReport resume un barrido de mantenimiento.
type MaintenanceReport struct {
	// Counts por categoría: refresh_tokens, email_artifacts, login_attempts.
	Counts     map[string]int
	DurationMs int64
}
