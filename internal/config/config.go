// Package config carga la configuración del engine desde YAML con
// overrides por variables de entorno. Las envs pisan al archivo: son
// el mecanismo de deploy, el YAML el de desarrollo.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Ops struct {
		Addr string `yaml:"addr"`
	} `yaml:"ops"`

	Storage struct {
		// postgres | mysql
		Driver          string `yaml:"driver"`
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`

		Tables struct {
			Users          string `yaml:"users"`
			RefreshTokens  string `yaml:"refresh_tokens"`
			LoginAttempts  string `yaml:"login_attempts"`
			EmailArtifacts string `yaml:"email_artifacts"`
		} `yaml:"tables"`
	} `yaml:"storage"`

	// Fields son las columnas custom de la tabla de usuarios. Se
	// declaran acá y se materializan en el init / migrate.
	Fields []FieldConfig `yaml:"fields"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		SigningKey string `yaml:"signing_key"` // base64(seed ed25519)
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Lockout struct {
		Threshold      int    `yaml:"threshold"`
		Window         string `yaml:"window"`
		ResetOnSuccess bool   `yaml:"reset_on_success"`
	} `yaml:"lockout"`

	Artifacts struct {
		VerifyTTL string `yaml:"verify_ttl"`
		ResetTTL  string `yaml:"reset_ttl"`
		CodeTTL   string `yaml:"code_ttl"`
	} `yaml:"artifacts"`

	Retention struct {
		RevokedTokens string `yaml:"revoked_tokens"`
		LoginAttempts string `yaml:"login_attempts"`
	} `yaml:"retention"`

	Cache struct {
		// memory | redis | off
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Email struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"email"`

	Security struct {
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
	} `yaml:"security"`
}

// FieldConfig es la forma YAML de un field descriptor.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Unique   bool   `yaml:"unique"`
	Default  any    `yaml:"default"`
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides
// de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9090"
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Storage.MaxIdleConns == 0 {
		c.Storage.MaxIdleConns = 2
	}
	if c.Storage.ConnMaxLifetime == "" {
		c.Storage.ConnMaxLifetime = "30m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "authcore"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = 5
	}
	if c.Lockout.Window == "" {
		c.Lockout.Window = "15m"
	}
	if c.Artifacts.VerifyTTL == "" {
		c.Artifacts.VerifyTTL = "48h"
	}
	if c.Artifacts.ResetTTL == "" {
		c.Artifacts.ResetTTL = "1h"
	}
	if c.Artifacts.CodeTTL == "" {
		c.Artifacts.CodeTTL = "10m"
	}
	if c.Retention.RevokedTokens == "" {
		c.Retention.RevokedTokens = "720h"
	}
	if c.Retention.LoginAttempts == "" {
		c.Retention.LoginAttempts = "720h"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}

	c.applyEnvOverrides()
	return &c, nil
}

// Duration parsea un campo duración ya validado por Validate.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getEnvBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("AUTHCORE_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("AUTHCORE_OPS_ADDR"); ok {
		c.Ops.Addr = v
	}
	if v, ok := getEnvStr("AUTHCORE_DB_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("AUTHCORE_DB_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("AUTHCORE_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("AUTHCORE_JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvInt("AUTHCORE_LOCKOUT_THRESHOLD"); ok {
		c.Lockout.Threshold = v
	}
	if v, ok := getEnvStr("AUTHCORE_LOCKOUT_WINDOW"); ok {
		c.Lockout.Window = v
	}
	if v, ok := getEnvBool("AUTHCORE_LOCKOUT_RESET_ON_SUCCESS"); ok {
		c.Lockout.ResetOnSuccess = v
	}
	if v, ok := getEnvStr("AUTHCORE_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("AUTHCORE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("AUTHCORE_SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("AUTHCORE_SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("AUTHCORE_SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("AUTHCORE_SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("AUTHCORE_SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("AUTHCORE_EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
}

// Validate chequea lo que no puede tener default razonable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "pg", "postgresql", "mysql":
	case "":
		return fmt.Errorf("config: storage.driver is required")
	default:
		return fmt.Errorf("config: unsupported storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required")
	}
	if c.JWT.SigningKey == "" {
		return fmt.Errorf("config: jwt.signing_key is required")
	}
	for _, field := range []struct{ name, val string }{
		{"storage.conn_max_lifetime", c.Storage.ConnMaxLifetime},
		{"jwt.access_ttl", c.JWT.AccessTTL},
		{"jwt.refresh_ttl", c.JWT.RefreshTTL},
		{"lockout.window", c.Lockout.Window},
		{"artifacts.verify_ttl", c.Artifacts.VerifyTTL},
		{"artifacts.reset_ttl", c.Artifacts.ResetTTL},
		{"artifacts.code_ttl", c.Artifacts.CodeTTL},
		{"retention.revoked_tokens", c.Retention.RevokedTokens},
		{"retention.login_attempts", c.Retention.LoginAttempts},
	} {
		if _, err := time.ParseDuration(field.val); err != nil {
			return fmt.Errorf("config: %s: invalid duration %q", field.name, field.val)
		}
	}
	switch strings.ToLower(c.Cache.Kind) {
	case "memory", "redis", "off":
	default:
		return fmt.Errorf("config: unsupported cache.kind %q", c.Cache.Kind)
	}
	return nil
}
