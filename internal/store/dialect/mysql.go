package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// myAdapter implementa Adapter sobre database/sql + go-sql-driver.
//
// El DSN debe incluir parseTime=true para que DATETIME escanee a
// time.Time. Ejemplo: user:pass@tcp(localhost:3306)/authcore?parseTime=true
type myAdapter struct {
	db  *sql.DB
	log *zap.Logger
}

func openMySQL(ctx context.Context, cfg Config) (Adapter, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dialect: mysql open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	a := &myAdapter{db: db, log: logger.Named("dialect.mysql")}
	if err := db.PingContext(ctx); err != nil {
		a.log.Warn("startup ping failed", zap.Error(err))
	}
	return a, nil
}

func (a *myAdapter) Name() string { return "mysql" }

// Rebind es identidad: `?` ya es el placeholder nativo de MySQL.
func (a *myAdapter) Rebind(query string) string { return query }

func (a *myAdapter) QuoteIdent(name string) string { return quoteFor("mysql")(name) }

func (a *myAdapter) ColumnType(logical string) (string, string, error) {
	return resolveColumnType("mysql", logical)
}

func (a *myAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// sqlRows adapta *sql.Rows al contrato Rows (Close sin retorno).
type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

func (a *myAdapter) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (a *myAdapter) QueryRow(ctx context.Context, query string, args ...any) Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

type myTx struct{ tx *sql.Tx }

func (t *myTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *myTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *myTx) Rollback(context.Context) error { return t.tx.Rollback() }

func (a *myAdapter) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &myTx{tx: tx}, nil
}

// MySQL commitea implícitamente cada DDL; no hay rollback posible.
func (a *myAdapter) SupportsTransactionalDDL() bool { return false }

func (a *myAdapter) CreateTables(ctx context.Context, tables TableNames, fields []repository.FieldDescriptor) error {
	if err := tables.Validate(); err != nil {
		return err
	}
	if err := ValidateFields(fields); err != nil {
		return err
	}
	for _, stmt := range buildCreateTables("mysql", tables) {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: create tables: %w", err)
		}
	}
	// MySQL no tiene ADD COLUMN IF NOT EXISTS: la idempotencia se
	// resuelve consultando information_schema antes de cada ALTER.
	for _, f := range fields {
		exists, err := a.ColumnExists(ctx, tables.Users, f.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt, note, err := BuildAddColumn("mysql", tables.Users, f)
		if err != nil {
			return err
		}
		if note != "" {
			a.log.Warn("type fallback", zap.String("field", f.Name), zap.String("note", note))
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: ensure column %s: %w", f.Name, err)
		}
	}
	return nil
}

func (a *myAdapter) CreateIndexes(ctx context.Context, tables TableNames) error {
	if err := tables.Validate(); err != nil {
		return err
	}
	for _, d := range indexDefs(tables) {
		exists, err := a.indexExists(ctx, d.table, d.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := a.db.ExecContext(ctx, d.createStmt("mysql", false)); err != nil {
			return fmt.Errorf("mysql: create index %s: %w", d.name, err)
		}
	}
	return nil
}

func (a *myAdapter) indexExists(ctx context.Context, table, index string) (bool, error) {
	const q = `SELECT COUNT(*) FROM information_schema.statistics
WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`
	var n int
	if err := a.db.QueryRowContext(ctx, q, table, index).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *myAdapter) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	const q = `SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	var n int
	if err := a.db.QueryRowContext(ctx, q, table, column).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *myAdapter) IntrospectColumns(ctx context.Context, table string) ([]repository.ColumnInfo, error) {
	const q = `SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`
	rows, err := a.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("mysql: introspect columns: %w", err)
	}
	defer rows.Close()

	var cols []repository.ColumnInfo
	for rows.Next() {
		var col repository.ColumnInfo
		var nullable string
		var def sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def); err != nil {
			return nil, err
		}
		col.IsNullable = nullable == "YES"
		col.Default = def.String
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (a *myAdapter) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func (a *myAdapter) IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (a *myAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *myAdapter) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
