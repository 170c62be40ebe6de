package dialect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

func TestBuildColumnDef(t *testing.T) {
	def, note, err := buildColumnDef("postgres", repository.FieldDescriptor{
		Name: "age", Type: "INT", Required: true, Default: 0,
	})
	require.NoError(t, err)
	assert.Empty(t, note)
	assert.Equal(t, `"age" INTEGER NOT NULL DEFAULT 0`, def)

	def, _, err = buildColumnDef("mysql", repository.FieldDescriptor{
		Name: "nickname", Type: "STRING", Unique: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "`nickname` VARCHAR(255) UNIQUE", def)
}

func TestBuildAddColumn(t *testing.T) {
	tab := DefaultTableNames()

	stmt, _, err := BuildAddColumn("postgres", tab.Users, repository.FieldDescriptor{
		Name: "age", Type: "INT",
	})
	require.NoError(t, err)
	assert.Contains(t, stmt, "ADD COLUMN IF NOT EXISTS")
	assert.Contains(t, stmt, `"age"`)

	// MySQL no soporta IF NOT EXISTS en ADD COLUMN: la idempotencia se
	// resuelve consultando information_schema antes de ejecutar.
	stmt, _, err = BuildAddColumn("mysql", tab.Users, repository.FieldDescriptor{
		Name: "age", Type: "INT",
	})
	require.NoError(t, err)
	assert.NotContains(t, stmt, "IF NOT EXISTS")
	assert.Contains(t, stmt, "`age`")
}

func TestBuildCreateTables_Shape(t *testing.T) {
	tab := DefaultTableNames()

	pg := buildCreateTables("postgres", tab)
	require.NotEmpty(t, pg)
	joined := strings.Join(pg, "\n")
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "users"`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "refresh_tokens"`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "login_attempts"`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "email_artifacts"`)
	assert.Contains(t, joined, "TIMESTAMPTZ")
	assert.NotContains(t, joined, "ENGINE=InnoDB")

	my := buildCreateTables("mysql", tab)
	joined = strings.Join(my, "\n")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS `users`")
	assert.Contains(t, joined, "ENGINE=InnoDB")
	assert.Contains(t, joined, "ON UPDATE CURRENT_TIMESTAMP")
	assert.NotContains(t, joined, "TIMESTAMPTZ")
}

func TestTableNamesValidate(t *testing.T) {
	tab := DefaultTableNames()
	require.NoError(t, tab.Validate())

	tab.Users = `users"; DROP TABLE x;--`
	require.Error(t, tab.Validate())

	tab = DefaultTableNames()
	tab.RefreshTokens = ""
	require.Error(t, tab.Validate())
}

func TestIndexDefs_CoverHotPaths(t *testing.T) {
	tab := DefaultTableNames()
	defs := indexDefs(tab)
	require.NotEmpty(t, defs)

	var cols []string
	for _, d := range defs {
		cols = append(cols, d.table+"."+strings.Join(d.columns, ","))
	}
	joined := strings.Join(cols, " ")
	assert.Contains(t, joined, tab.RefreshTokens+".user_id")
	assert.Contains(t, joined, tab.LoginAttempts+".email,attempted_at")
	assert.Contains(t, joined, tab.EmailArtifacts+".user_id,purpose")
}

func TestValidateFields(t *testing.T) {
	ok := []repository.FieldDescriptor{
		{Name: "age", Type: "INT"},
		{Name: "bio", Type: "TEXT"},
	}
	require.NoError(t, ValidateFields(ok))

	// Reservados: columnas del sistema nunca se redeclaran.
	err := ValidateFields([]repository.FieldDescriptor{{Name: "email", Type: "STRING"}})
	require.Error(t, err)
	assert.True(t, repository.IsValidation(err))

	err = ValidateFields([]repository.FieldDescriptor{{Name: "id", Type: "UUID"}})
	require.Error(t, err)

	// Gramática de identificadores.
	for _, bad := range []string{"", "1age", "a-b", "a b", "x;drop", strings.Repeat("a", 64)} {
		err = ValidateFields([]repository.FieldDescriptor{{Name: bad, Type: "INT"}})
		require.Error(t, err, "name %q", bad)
	}

	// Duplicados dentro del mismo lote.
	err = ValidateFields([]repository.FieldDescriptor{
		{Name: "age", Type: "INT"},
		{Name: "AGE", Type: "INT"},
	})
	require.Error(t, err)

	// Tipo desconocido.
	err = ValidateFields([]repository.FieldDescriptor{{Name: "shape", Type: "GEOMETRY"}})
	require.Error(t, err)
}

func TestIsSystemColumn(t *testing.T) {
	assert.True(t, IsSystemColumn("id"))
	assert.True(t, IsSystemColumn("Password_Hash"))
	assert.False(t, IsSystemColumn("age"))
}
