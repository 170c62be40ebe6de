package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  dsn: "postgres://localhost/authcore"
jwt:
  signing_key: "c2VlZA=="
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9090", cfg.Ops.Addr)
	assert.Equal(t, 10, cfg.Storage.MaxOpenConns)
	assert.Equal(t, "15m", cfg.JWT.AccessTTL)
	assert.Equal(t, "720h", cfg.JWT.RefreshTTL)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Equal(t, "15m", cfg.Lockout.Window)
	assert.False(t, cfg.Lockout.ResetOnSuccess)
	assert.Equal(t, "48h", cfg.Artifacts.VerifyTTL)
	assert.Equal(t, "memory", cfg.Cache.Kind)
	assert.Equal(t, 8, cfg.Security.PasswordPolicy.MinLength)
}

func TestLoad_FieldsParsed(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/authcore"
jwt:
  signing_key: "c2VlZA=="
fields:
  - name: age
    type: INTEGER
    default: 0
  - name: role
    type: ENUM(admin,member)
    required: true
    default: member
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Fields, 2)
	assert.Equal(t, "age", cfg.Fields[0].Name)
	assert.Equal(t, "INTEGER", cfg.Fields[0].Type)
	assert.Equal(t, 0, cfg.Fields[0].Default)
	assert.True(t, cfg.Fields[1].Required)
	assert.Equal(t, "member", cfg.Fields[1].Default)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTHCORE_DB_DRIVER", "mysql")
	t.Setenv("AUTHCORE_LOCKOUT_THRESHOLD", "10")
	t.Setenv("AUTHCORE_LOCKOUT_RESET_ON_SUCCESS", "true")

	path := writeConfig(t, `
storage:
  driver: postgres
  dsn: "postgres://localhost/authcore"
jwt:
  signing_key: "c2VlZA=="
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Lockout.Threshold)
	assert.True(t, cfg.Lockout.ResetOnSuccess)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, `
storage:
  driver: postgres
  dsn: "postgres://localhost/authcore"
jwt:
  signing_key: "c2VlZA=="
`))
		require.NoError(t, err)
		return cfg
	}

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})
	t.Run("missing dsn", func(t *testing.T) {
		cfg := base()
		cfg.Storage.DSN = ""
		require.Error(t, cfg.Validate())
	})
	t.Run("unsupported driver", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "sqlite"
		require.Error(t, cfg.Validate())
	})
	t.Run("missing signing key", func(t *testing.T) {
		cfg := base()
		cfg.JWT.SigningKey = ""
		require.Error(t, cfg.Validate())
	})
	t.Run("bad duration", func(t *testing.T) {
		cfg := base()
		cfg.Lockout.Window = "quince minutos"
		require.Error(t, cfg.Validate())
	})
	t.Run("bad cache kind", func(t *testing.T) {
		cfg := base()
		cfg.Cache.Kind = "memcached"
		require.Error(t, cfg.Validate())
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
