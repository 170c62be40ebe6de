package dialect

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// Validate chequea que todos los nombres de tabla cumplan la gramática
// de identificadores. Los nombres vienen de configuración y terminan
// interpolados (quoteados) en DDL, así que la barrera es la misma que
// para field names.
func (t TableNames) Validate() error {
	for _, name := range []string{t.Users, t.RefreshTokens, t.LoginAttempts, t.EmailArtifacts} {
		if !validation.ValidFieldName(name) {
			return repository.Validationf(name, "table name must match [A-Za-z_][A-Za-z0-9_]*")
		}
	}
	return nil
}

func quoteFor(engine string) func(string) string {
	if engine == "mysql" {
		return func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		}
	}
	return func(s string) string {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
}

// buildColumnDef compila un descriptor a un fragmento de definición de
// columna para el motor dado. Asume el descriptor ya validado.
func buildColumnDef(engine string, f repository.FieldDescriptor) (def, note string, err error) {
	sqlType, note, err := resolveColumnType(engine, f.Type)
	if err != nil {
		return "", "", err
	}
	q := quoteFor(engine)

	var b strings.Builder
	b.WriteString(q(f.Name))
	b.WriteByte(' ')
	b.WriteString(sqlType)
	if f.Required {
		b.WriteString(" NOT NULL")
	}
	if f.Default != nil {
		lit, derr := renderDefault(f.Default)
		if derr != nil {
			return "", "", repository.Validationf(f.Name, "bad default value: %v", derr)
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	if f.Unique {
		b.WriteString(" UNIQUE")
	}
	return b.String(), note, nil
}

// BuildAddColumn compila el ALTER para agregar un campo custom.
// En Postgres el statement es idempotente (IF NOT EXISTS); en MySQL el
// adapter chequea information_schema antes de ejecutarlo.
func BuildAddColumn(engine, table string, f repository.FieldDescriptor) (stmt, note string, err error) {
	def, note, err := buildColumnDef(engine, f)
	if err != nil {
		return "", "", err
	}
	q := quoteFor(engine)
	if engine == "mysql" {
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", q(table), def), note, nil
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", q(table), def), note, nil
}

// buildCreateTables retorna los statements DDL del esquema fijo, en
// orden de dependencia. Los campos custom no van acá: se aseguran
// columna por columna con BuildAddColumn para que una segunda corrida
// sobre un esquema ya inicializado no falle ni duplique nada.
func buildCreateTables(engine string, t TableNames) []string {
	q := quoteFor(engine)
	users, refresh, attempts, artifacts := q(t.Users), q(t.RefreshTokens), q(t.LoginAttempts), q(t.EmailArtifacts)

	if engine == "mysql" {
		const suffix = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  `+"`id`"+` CHAR(36) PRIMARY KEY,
  `+"`email`"+` VARCHAR(255) NOT NULL UNIQUE,
  `+"`password_hash`"+` TEXT NOT NULL,
  `+"`first_name`"+` VARCHAR(255),
  `+"`last_name`"+` VARCHAR(255),
  `+"`email_verified`"+` TINYINT(1) NOT NULL DEFAULT 0,
  `+"`is_active`"+` TINYINT(1) NOT NULL DEFAULT 1,
  `+"`created_at`"+` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  `+"`updated_at`"+` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)%s`, users, suffix),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  `+"`id`"+` CHAR(36) PRIMARY KEY,
  `+"`user_id`"+` CHAR(36) NOT NULL,
  `+"`token_hash`"+` VARCHAR(64) NOT NULL UNIQUE,
  `+"`issued_at`"+` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  `+"`expires_at`"+` DATETIME NOT NULL,
  `+"`revoked_at`"+` DATETIME NULL,
  FOREIGN KEY (`+"`user_id`"+`) REFERENCES %s(`+"`id`"+`) ON DELETE CASCADE
)%s`, refresh, users, suffix),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  `+"`id`"+` CHAR(36) PRIMARY KEY,
  `+"`email`"+` VARCHAR(255) NOT NULL,
  `+"`success`"+` TINYINT(1) NOT NULL,
  `+"`ip_address`"+` VARCHAR(45),
  `+"`user_agent`"+` TEXT,
  `+"`attempted_at`"+` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)%s`, attempts, suffix),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  `+"`id`"+` CHAR(36) PRIMARY KEY,
  `+"`user_id`"+` CHAR(36) NOT NULL,
  `+"`email`"+` VARCHAR(255) NOT NULL,
  `+"`purpose`"+` VARCHAR(32) NOT NULL,
  `+"`kind`"+` VARCHAR(8) NOT NULL,
  `+"`secret_hash`"+` VARCHAR(64) NOT NULL,
  `+"`expires_at`"+` DATETIME NOT NULL,
  `+"`created_at`"+` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY (`+"`user_id`"+`) REFERENCES %s(`+"`id`"+`) ON DELETE CASCADE
)%s`, artifacts, users, suffix),
		}
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" UUID PRIMARY KEY,
  "email" VARCHAR(255) NOT NULL UNIQUE,
  "password_hash" TEXT NOT NULL,
  "first_name" VARCHAR(255),
  "last_name" VARCHAR(255),
  "email_verified" BOOLEAN NOT NULL DEFAULT FALSE,
  "is_active" BOOLEAN NOT NULL DEFAULT TRUE,
  "created_at" TIMESTAMPTZ NOT NULL DEFAULT now(),
  "updated_at" TIMESTAMPTZ NOT NULL DEFAULT now()
)`, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" UUID PRIMARY KEY,
  "user_id" UUID NOT NULL REFERENCES %s("id") ON DELETE CASCADE,
  "token_hash" VARCHAR(64) NOT NULL UNIQUE,
  "issued_at" TIMESTAMPTZ NOT NULL DEFAULT now(),
  "expires_at" TIMESTAMPTZ NOT NULL,
  "revoked_at" TIMESTAMPTZ
)`, refresh, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" UUID PRIMARY KEY,
  "email" VARCHAR(255) NOT NULL,
  "success" BOOLEAN NOT NULL,
  "ip_address" VARCHAR(45),
  "user_agent" TEXT,
  "attempted_at" TIMESTAMPTZ NOT NULL DEFAULT now()
)`, attempts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" UUID PRIMARY KEY,
  "user_id" UUID NOT NULL REFERENCES %s("id") ON DELETE CASCADE,
  "email" VARCHAR(255) NOT NULL,
  "purpose" VARCHAR(32) NOT NULL,
  "kind" VARCHAR(8) NOT NULL,
  "secret_hash" VARCHAR(64) NOT NULL,
  "expires_at" TIMESTAMPTZ NOT NULL,
  "created_at" TIMESTAMPTZ NOT NULL DEFAULT now()
)`, artifacts, users),
	}

	// MySQL actualiza updated_at con ON UPDATE CURRENT_TIMESTAMP;
	// Postgres no tiene equivalente y se emula con un trigger
	// create-or-replace que tolera correr sobre un esquema ya creado.
	stmts = append(stmts, buildUpdatedAtTrigger(t.Users)...)
	return stmts
}

// buildUpdatedAtTrigger genera la emulación idempotente del timestamp
// on-row-update para Postgres.
func buildUpdatedAtTrigger(usersTable string) []string {
	q := quoteFor("postgres")
	fn := usersTable + "_set_updated_at"
	trg := "trg_" + usersTable + "_updated_at"
	return []string{
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
BEGIN
  NEW.updated_at = now();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql`, q(fn)),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, q(trg), q(usersTable)),
		fmt.Sprintf(`CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s()`,
			q(trg), q(usersTable), q(fn)),
	}
}

// indexDef describe un índice secundario del esquema.
type indexDef struct {
	name    string
	table   string
	columns []string
}

func indexDefs(t TableNames) []indexDef {
	return []indexDef{
		{"idx_" + t.RefreshTokens + "_user_id", t.RefreshTokens, []string{"user_id"}},
		{"idx_" + t.RefreshTokens + "_expires_at", t.RefreshTokens, []string{"expires_at"}},
		{"idx_" + t.LoginAttempts + "_email_at", t.LoginAttempts, []string{"email", "attempted_at"}},
		{"idx_" + t.EmailArtifacts + "_user_purpose", t.EmailArtifacts, []string{"user_id", "purpose"}},
		{"idx_" + t.EmailArtifacts + "_expires_at", t.EmailArtifacts, []string{"expires_at"}},
	}
}

func (d indexDef) createStmt(engine string, ifNotExists bool) string {
	q := quoteFor(engine)
	cols := make([]string, len(d.columns))
	for i, c := range d.columns {
		cols[i] = q(c)
	}
	ine := ""
	if ifNotExists {
		ine = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)", ine, q(d.name), q(d.table), strings.Join(cols, ", "))
}
