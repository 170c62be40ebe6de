// Package store implementa los repositorios del dominio sobre el
// contrato dialect.Adapter. El SQL se escribe una sola vez en forma
// canónica (placeholders `?`, identificadores quoteados) y el adapter
// lo traduce al motor concreto; acá no hay ramas por motor salvo las
// que el contrato expone explícitamente (DDL transaccional).
package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
)

// Options configura un Store.
type Options struct {
	Tables dialect.TableNames

	// Fields son las columnas custom declaradas para la tabla de
	// usuarios. Se validan en New: fallar acá es fallar antes de tocar
	// la base.
	Fields []repository.FieldDescriptor

	// RetainRevoked acota cuánto tiempo se conservan refresh tokens
	// revocados antes de que la purga los borre.
	RetainRevoked time.Duration

	// AttemptRetention acota la retención del ledger de intentos.
	AttemptRetention time.Duration
}

const (
	defaultRetainRevoked    = 720 * time.Hour
	defaultAttemptRetention = 30 * 24 * time.Hour
)

// Store agrupa los repositorios sobre un mismo adapter.
type Store struct {
	db     dialect.Adapter
	tables dialect.TableNames
	fields []repository.FieldDescriptor

	retainRevoked    time.Duration
	attemptRetention time.Duration

	users     *userRepo
	tokens    *tokenRepo
	attempts  *attemptRepo
	artifacts *artifactRepo
	schema    *schemaRepo
}

// New construye el Store validando tablas y field descriptors.
// No toca la base: la creación de esquema es Init.
func New(db dialect.Adapter, opts Options) (*Store, error) {
	if db == nil {
		return nil, repository.ErrNoDatabase
	}
	tables := opts.Tables
	if tables == (dialect.TableNames{}) {
		tables = dialect.DefaultTableNames()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if err := dialect.ValidateFields(opts.Fields); err != nil {
		return nil, err
	}

	s := &Store{
		db:               db,
		tables:           tables,
		fields:           opts.Fields,
		retainRevoked:    opts.RetainRevoked,
		attemptRetention: opts.AttemptRetention,
	}
	if s.retainRevoked <= 0 {
		s.retainRevoked = defaultRetainRevoked
	}
	if s.attemptRetention <= 0 {
		s.attemptRetention = defaultAttemptRetention
	}

	s.users = &userRepo{s: s}
	s.tokens = &tokenRepo{s: s}
	s.attempts = &attemptRepo{s: s}
	s.artifacts = &artifactRepo{s: s}
	s.schema = &schemaRepo{s: s}
	return s, nil
}

// Init crea tablas e índices. Idempotente: puede correrse en cada
// arranque contra un esquema ya inicializado.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.CreateTables(ctx, s.tables, s.fields); err != nil {
		return fmt.Errorf("store: create tables: %w", err)
	}
	if err := s.db.CreateIndexes(ctx, s.tables); err != nil {
		return fmt.Errorf("store: create indexes: %w", err)
	}
	logger.Named("store").Info("schema ready", logger.String("engine", s.db.Name()))
	return nil
}

// Users retorna el repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return s.users }

// Tokens retorna el vault de refresh tokens.
func (s *Store) Tokens() repository.TokenRepository { return s.tokens }

// Attempts retorna el ledger de intentos.
func (s *Store) Attempts() repository.AttemptRepository { return s.attempts }

// Artifacts retorna el store de artefactos efímeros.
func (s *Store) Artifacts() repository.ArtifactRepository { return s.artifacts }

// Schema retorna el repositorio de evolución de esquema.
func (s *Store) Schema() repository.SchemaRepository { return s.schema }

// Ping verifica conectividad con la base.
func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// Close libera el pool subyacente.
func (s *Store) Close() { s.db.Close() }

// Maintenance corre las tres purgas en paralelo y retorna el reporte
// agregado. Cada categoría es independiente: el primer error cancela a
// las demás vía errgroup, pero las borradas ya ejecutadas quedan.
func (s *Store) Maintenance(ctx context.Context) (*repository.MaintenanceReport, error) {
	start := time.Now()
	var tokensN, artifactsN, attemptsN int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.tokens.DeleteExpired(gctx, s.retainRevoked)
		tokensN = n
		return err
	})
	g.Go(func() error {
		n, err := s.artifacts.DeleteExpired(gctx)
		artifactsN = n
		return err
	})
	g.Go(func() error {
		n, err := s.attempts.DeleteOlderThan(gctx, time.Now().UTC().Add(-s.attemptRetention))
		attemptsN = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("store: maintenance: %w", err)
	}

	report := &repository.MaintenanceReport{
		Counts: map[string]int{
			"refresh_tokens":  tokensN,
			"email_artifacts": artifactsN,
			"login_attempts":  attemptsN,
		},
		DurationMs: time.Since(start).Milliseconds(),
	}
	logger.Named("store").Info("maintenance sweep done",
		logger.Int("refresh_tokens", tokensN),
		logger.Int("email_artifacts", artifactsN),
		logger.Int("login_attempts", attemptsN),
		logger.Int64("duration_ms", report.DurationMs))
	return report, nil
}
