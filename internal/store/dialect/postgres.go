package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

type pgAdapter struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func openPostgres(ctx context.Context, cfg Config) (Adapter, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dialect: parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// MaxIdleConns se mapea a MinConns (pgxpool).
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	a := &pgAdapter{pool: pool, log: logger.Named("dialect.pg")}

	// Startup no bloqueante: la app puede arrancar con la DB caída.
	if err := pool.Ping(ctx); err != nil {
		a.log.Warn("startup ping failed", zap.Error(err))
	} else {
		a.log.Info("pool ready", zap.Int32("max_conns", pcfg.MaxConns))
	}
	return a, nil
}

func (a *pgAdapter) Name() string { return "postgres" }

func (a *pgAdapter) Rebind(query string) string { return rebindDollar(query) }

func (a *pgAdapter) QuoteIdent(name string) string { return quoteFor("postgres")(name) }

func (a *pgAdapter) ColumnType(logical string) (string, string, error) {
	return resolveColumnType("postgres", logical)
}

func (a *pgAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := a.pool.Exec(ctx, a.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a *pgAdapter) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := a.pool.Query(ctx, a.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *pgAdapter) QueryRow(ctx context.Context, query string, args ...any) Row {
	return a.pool.QueryRow(ctx, a.Rebind(query), args...)
}

type pgTx struct {
	tx pgx.Tx
	a  *pgAdapter
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, t.a.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (a *pgAdapter) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, a: a}, nil
}

func (a *pgAdapter) SupportsTransactionalDDL() bool { return true }

func (a *pgAdapter) CreateTables(ctx context.Context, tables TableNames, fields []repository.FieldDescriptor) error {
	if err := tables.Validate(); err != nil {
		return err
	}
	if err := ValidateFields(fields); err != nil {
		return err
	}
	for _, stmt := range buildCreateTables("postgres", tables) {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg: create tables: %w", err)
		}
	}
	// Campos custom: ADD COLUMN IF NOT EXISTS es idempotente por sí solo.
	for _, f := range fields {
		stmt, note, err := BuildAddColumn("postgres", tables.Users, f)
		if err != nil {
			return err
		}
		if note != "" {
			a.log.Warn("type fallback", zap.String("field", f.Name), zap.String("note", note))
		}
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg: ensure column %s: %w", f.Name, err)
		}
	}
	return nil
}

func (a *pgAdapter) CreateIndexes(ctx context.Context, tables TableNames) error {
	if err := tables.Validate(); err != nil {
		return err
	}
	for _, d := range indexDefs(tables) {
		if _, err := a.pool.Exec(ctx, d.createStmt("postgres", true)); err != nil {
			return fmt.Errorf("pg: create index %s: %w", d.name, err)
		}
	}
	return nil
}

func (a *pgAdapter) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	const q = `SELECT EXISTS (
  SELECT 1 FROM information_schema.columns
  WHERE table_name = $1 AND column_name = $2
)`
	var exists bool
	if err := a.pool.QueryRow(ctx, q, table, column).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (a *pgAdapter) IntrospectColumns(ctx context.Context, table string) ([]repository.ColumnInfo, error) {
	const q = `SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_name = $1
ORDER BY ordinal_position`
	rows, err := a.pool.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("pg: introspect columns: %w", err)
	}
	defer rows.Close()

	var cols []repository.ColumnInfo
	for rows.Next() {
		var col repository.ColumnInfo
		var nullable string
		var def *string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def); err != nil {
			return nil, err
		}
		col.IsNullable = nullable == "YES"
		if def != nil {
			col.Default = *def
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (a *pgAdapter) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (a *pgAdapter) IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func (a *pgAdapter) Ping(ctx context.Context) error { return a.pool.Ping(ctx) }

func (a *pgAdapter) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
