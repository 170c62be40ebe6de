package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// schemaRepo implementa la evolución de esquema en runtime sobre la
// tabla de usuarios. Toda validación corre antes del primer ALTER:
// confirmación explícita, gramática de nombres, reservados, y el
// chequeo NOT NULL sin default contra tabla no vacía.
type schemaRepo struct {
	s *Store
}

func (r *schemaRepo) AddColumn(ctx context.Context, field repository.FieldDescriptor, opts repository.AddColumnOptions) error {
	res, err := r.migrate(ctx, []repository.FieldDescriptor{field}, opts.Confirmed, false)
	if err != nil {
		return err
	}
	if len(res.Applied) == 1 {
		logger.Named("schema").Info("column added",
			logger.String("column", res.Applied[0]),
			logger.String("type", field.Type))
	}
	return nil
}

func (r *schemaRepo) MigrateSchema(ctx context.Context, fields []repository.FieldDescriptor, opts repository.MigrateOptions) (*repository.MigrationResult, error) {
	return r.migrate(ctx, fields, opts.Confirmed, opts.UseTransaction)
}

func (r *schemaRepo) migrate(ctx context.Context, fields []repository.FieldDescriptor, confirmed, useTx bool) (*repository.MigrationResult, error) {
	// fail closed: sin confirmación explícita no se toca el esquema.
	if !confirmed {
		return nil, &repository.MigrationError{Reason: "schema change not confirmed"}
	}
	if len(fields) == 0 {
		return nil, &repository.MigrationError{Reason: "no fields to migrate"}
	}
	if err := dialect.ValidateFields(fields); err != nil {
		return nil, &repository.MigrationError{Reason: "invalid field descriptors", Err: err}
	}

	// NOT NULL sin default contra tabla con filas rompería el ALTER a
	// mitad de camino; se rechaza antes de emitir DDL.
	needsRows := false
	for _, f := range fields {
		if f.Required && f.Default == nil {
			needsRows = true
			break
		}
	}
	if needsRows {
		n, err := r.s.users.CountRows(ctx)
		if err != nil {
			return nil, &repository.MigrationError{Reason: "row count check failed", Err: err}
		}
		if n > 0 {
			return nil, &repository.MigrationError{
				Reason: fmt.Sprintf("required column without default on non-empty table (%d rows)", n),
			}
		}
	}

	// Particionar en pendientes vs ya existentes antes de ejecutar.
	var pending []repository.FieldDescriptor
	var skipped []string
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		exists, err := r.s.db.ColumnExists(ctx, r.s.tables.Users, name)
		if err != nil {
			return nil, &repository.MigrationError{Reason: "column introspection failed", Err: err}
		}
		if exists {
			skipped = append(skipped, name)
			continue
		}
		pending = append(pending, f)
	}

	res := &repository.MigrationResult{Skipped: skipped}
	if len(pending) == 0 {
		res.Atomic = true // vacuamente: no se ejecutó DDL
		return res, nil
	}

	if useTx && r.s.db.SupportsTransactionalDDL() {
		applied, err := r.applyTx(ctx, pending)
		if err != nil {
			return nil, &repository.MigrationError{Reason: "transactional migration failed", Err: err}
		}
		res.Applied = applied
		res.Atomic = true
		return res, nil
	}

	// Camino secuencial (MySQL, o tx no pedida): cada ALTER es
	// auto-commit. Un fallo a mitad deja las anteriores aplicadas y el
	// error lo dice explícitamente.
	applied, err := r.applySequential(ctx, pending)
	res.Applied = applied
	if err != nil {
		return nil, &repository.MigrationError{
			Reason:  "partial migration: DDL is not transactional on this backend",
			Applied: applied,
			Err:     err,
		}
	}
	return res, nil
}

func (r *schemaRepo) applyTx(ctx context.Context, fields []repository.FieldDescriptor) ([]string, error) {
	tx, err := r.s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	applied := make([]string, 0, len(fields))
	for _, f := range fields {
		stmt, note, err := r.addColumnStmt(f)
		if err != nil {
			return nil, err
		}
		r.warnNote(f, note)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("alter %s: %w", f.Name, err)
		}
		applied = append(applied, strings.ToLower(f.Name))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *schemaRepo) applySequential(ctx context.Context, fields []repository.FieldDescriptor) ([]string, error) {
	applied := make([]string, 0, len(fields))
	for _, f := range fields {
		stmt, note, err := r.addColumnStmt(f)
		if err != nil {
			return applied, err
		}
		r.warnNote(f, note)
		if _, err := r.s.db.Exec(ctx, stmt); err != nil {
			return applied, fmt.Errorf("alter %s: %w", f.Name, err)
		}
		applied = append(applied, strings.ToLower(f.Name))
	}
	return applied, nil
}

func (r *schemaRepo) addColumnStmt(f repository.FieldDescriptor) (stmt, note string, err error) {
	return dialect.BuildAddColumn(r.s.db.Name(), r.s.tables.Users, f)
}

func (r *schemaRepo) warnNote(f repository.FieldDescriptor, note string) {
	if note != "" {
		logger.Named("schema").Warn("type fallback",
			logger.String("column", strings.ToLower(f.Name)),
			logger.String("note", note))
	}
}

func (r *schemaRepo) IntrospectColumns(ctx context.Context, table string) ([]repository.ColumnInfo, error) {
	if !validation.ValidFieldName(table) {
		return nil, repository.Validationf("table", "invalid table name %q", table)
	}
	return r.s.db.IntrospectColumns(ctx, table)
}
