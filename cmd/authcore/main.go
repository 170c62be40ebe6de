package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/auth"
	"github.com/dropDatabas3/authcore/internal/cache"
	cachememory "github.com/dropDatabas3/authcore/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/authcore/internal/cache/redis"
	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/ops"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/store"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
)

func main() {
	_ = godotenv.Load(".env")     // base
	_ = godotenv.Load(".env.dev") // dev overrides

	var configPath string

	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Engine de identidad y sesiones sobre PostgreSQL/MySQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path al YAML de configuración")

	// init: crea tablas e índices, idempotente.
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Crea el esquema base (tablas e índices) si no existe",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cleanup, err := openStore(ctx, configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := st.Init(ctx); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
			fmt.Println("schema ok")
			return nil
		},
	}

	// migrate: aplica las columnas custom declaradas en fields.
	var confirm, useTx bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica los fields declarados como columnas de la tabla de usuarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			st, cleanup, err := openStoreWith(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			fields := fieldDescriptors(cfg.Fields)
			if len(fields) == 0 {
				fmt.Println("no fields declared, nothing to migrate")
				return nil
			}
			res, err := st.Schema().MigrateSchema(ctx, fields, repository.MigrateOptions{
				Confirmed:      confirm,
				UseTransaction: useTx,
			})
			if err != nil {
				return err
			}
			fmt.Printf("applied=%v skipped=%v atomic=%v\n", res.Applied, res.Skipped, res.Atomic)
			return nil
		},
	}
	migrateCmd.Flags().BoolVar(&confirm, "confirm", false, "Confirma la migración; sin esto no se toca el esquema")
	migrateCmd.Flags().BoolVar(&useTx, "tx", true, "Usa DDL transaccional si el backend lo soporta")

	// columns: introspección de la tabla de usuarios.
	columnsCmd := &cobra.Command{
		Use:   "columns",
		Short: "Lista las columnas actuales de la tabla de usuarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			st, cleanup, err := openStoreWith(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			cols, err := st.Schema().IntrospectColumns(ctx, tableNames(cfg).Users)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(cols, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	// maintenance: barrido de purga.
	maintenanceCmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Purga tokens vencidos, artefactos expirados e intentos viejos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cleanup, err := openStore(ctx, configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := st.Maintenance(ctx)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	// serve: servidor de operación (healthz + metrics) y barrido periódico.
	var sweepEvery time.Duration
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor de operación y el barrido periódico",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, cleanup, err := openStoreWith(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := buildService(cfg, st)
			if err != nil {
				return err
			}

			if sweepEvery > 0 {
				go sweepLoop(ctx, svc, sweepEvery)
			}

			router, err := ops.NewRouter(st)
			if err != nil {
				return err
			}
			return ops.Serve(ctx, cfg.Ops.Addr, router)
		},
	}
	serveCmd.Flags().DurationVar(&sweepEvery, "sweep-every", time.Hour, "Intervalo del barrido de purga (0 lo apaga)")

	// keys generate: seed ed25519 para jwt.signing_key.
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manejo de claves de firma",
	}
	keysGenerateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera un seed ed25519 nuevo (base64) para jwt.signing_key",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, seed, err := jwt.GenerateSigningKey()
			if err != nil {
				return err
			}
			fmt.Println(seed)
			return nil
		},
	}
	keysCmd.AddCommand(keysGenerateCmd)

	root.AddCommand(initCmd, migrateCmd, columnsCmd, maintenanceCmd, serveCmd, keysCmd)

	ctx := context.Background()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info"})
	return cfg, nil
}

func tableNames(cfg *config.Config) dialect.TableNames {
	t := dialect.DefaultTableNames()
	if v := cfg.Storage.Tables.Users; v != "" {
		t.Users = v
	}
	if v := cfg.Storage.Tables.RefreshTokens; v != "" {
		t.RefreshTokens = v
	}
	if v := cfg.Storage.Tables.LoginAttempts; v != "" {
		t.LoginAttempts = v
	}
	if v := cfg.Storage.Tables.EmailArtifacts; v != "" {
		t.EmailArtifacts = v
	}
	return t
}

func fieldDescriptors(fields []config.FieldConfig) []repository.FieldDescriptor {
	out := make([]repository.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		out = append(out, repository.FieldDescriptor{
			Name:     f.Name,
			Type:     f.Type,
			Required: f.Required,
			Unique:   f.Unique,
			Default:  f.Default,
		})
	}
	return out
}

func openStore(ctx context.Context, configPath string) (*store.Store, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return openStoreWith(ctx, cfg)
}

func openStoreWith(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	db, err := dialect.Open(ctx, dialect.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: config.Duration(cfg.Storage.ConnMaxLifetime),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Storage.Driver, err)
	}
	st, err := store.New(db, store.Options{
		Tables:           tableNames(cfg),
		Fields:           fieldDescriptors(cfg.Fields),
		RetainRevoked:    config.Duration(cfg.Retention.RevokedTokens),
		AttemptRetention: config.Duration(cfg.Retention.LoginAttempts),
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db.Close, nil
}

func buildService(cfg *config.Config, st *store.Store) (*auth.Service, error) {
	priv, err := jwt.LoadSigningKey(cfg.JWT.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("jwt signing key: %w", err)
	}
	issuer := jwt.NewIssuer(cfg.JWT.Issuer, priv,
		config.Duration(cfg.JWT.AccessTTL), config.Duration(cfg.JWT.RefreshTTL))

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender, err = email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			FromEmail:          cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp sender: %w", err)
		}
	}

	var verdictCache cache.Client
	switch strings.ToLower(cfg.Cache.Kind) {
	case "redis":
		verdictCache = cacheredis.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	case "memory":
		verdictCache = cachememory.New(time.Minute)
	case "off":
		// sin cache: el veredicto se deriva siempre del ledger
	}

	policy := password.Policy{
		MinLength:     cfg.Security.PasswordPolicy.MinLength,
		RequireUpper:  cfg.Security.PasswordPolicy.RequireUpper,
		RequireLower:  cfg.Security.PasswordPolicy.RequireLower,
		RequireDigit:  cfg.Security.PasswordPolicy.RequireDigit,
		RequireSymbol: cfg.Security.PasswordPolicy.RequireSymbol,
	}

	return auth.New(auth.Deps{
		Users:     st.Users(),
		Tokens:    st.Tokens(),
		Attempts:  st.Attempts(),
		Artifacts: st.Artifacts(),
		Maint:     st,
		Issuer:    issuer,
		Sender:    sender,
		Cache:     verdictCache,
	}, auth.Config{
		Lockout: auth.LockoutConfig{
			Threshold:      cfg.Lockout.Threshold,
			Window:         config.Duration(cfg.Lockout.Window),
			ResetOnSuccess: cfg.Lockout.ResetOnSuccess,
		},
		VerifyTTL:      config.Duration(cfg.Artifacts.VerifyTTL),
		ResetTTL:       config.Duration(cfg.Artifacts.ResetTTL),
		CodeTTL:        config.Duration(cfg.Artifacts.CodeTTL),
		BaseURL:        cfg.Email.BaseURL,
		PasswordPolicy: policy,
	})
}

func sweepLoop(ctx context.Context, svc *auth.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.PerformMaintenance(ctx); err != nil {
				logger.Named("sweep").Warn("maintenance sweep failed", logger.Err(err))
			}
		}
	}
}
