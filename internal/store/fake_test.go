package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
)

// fakeAdapter es un dialect.Adapter programable para tests del paquete:
// registra los statements ejecutados y responde con hooks. Quotea y
// rebindea como Postgres para que los asserts sobre SQL sean estables.
type fakeAdapter struct {
	mu      sync.Mutex
	execs   []execCall
	queries []execCall

	execFn       func(query string, args []any) (int64, error)
	queryRowFn   func(query string, args []any) dialect.Row
	colExistsFn  func(table, column string) (bool, error)
	beginErr     error
	txExecFn     func(query string, args []any) (int64, error)
	txCommits    int
	txRollbacks  int
	supportsDDLT bool
}

type execCall struct {
	query string
	args  []any
}

var errFakeUnique = errors.New("fake unique violation")
var errFakeNoRows = errors.New("fake no rows")

func (f *fakeAdapter) Name() string { return "postgres" }

func (f *fakeAdapter) Rebind(q string) string { return q }

func (f *fakeAdapter) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (f *fakeAdapter) ColumnType(logical string) (string, string, error) {
	return logical, "", nil
}

func (f *fakeAdapter) CreateTables(ctx context.Context, t dialect.TableNames, fields []repository.FieldDescriptor) error {
	return nil
}

func (f *fakeAdapter) CreateIndexes(ctx context.Context, t dialect.TableNames) error { return nil }

func (f *fakeAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	f.mu.Lock()
	f.execs = append(f.execs, execCall{query, args})
	f.mu.Unlock()
	if f.execFn != nil {
		return f.execFn(query, args)
	}
	return 1, nil
}

func (f *fakeAdapter) Query(ctx context.Context, query string, args ...any) (dialect.Rows, error) {
	f.queries = append(f.queries, execCall{query, args})
	return nil, errors.New("fake: Query not programmed")
}

func (f *fakeAdapter) QueryRow(ctx context.Context, query string, args ...any) dialect.Row {
	f.mu.Lock()
	f.queries = append(f.queries, execCall{query, args})
	f.mu.Unlock()
	if f.queryRowFn != nil {
		return f.queryRowFn(query, args)
	}
	return fakeRow{err: errFakeNoRows}
}

type fakeTx struct{ f *fakeAdapter }

func (t fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	t.f.mu.Lock()
	t.f.execs = append(t.f.execs, execCall{query, args})
	t.f.mu.Unlock()
	if t.f.txExecFn != nil {
		return t.f.txExecFn(query, args)
	}
	return 1, nil
}

func (t fakeTx) Commit(ctx context.Context) error {
	t.f.txCommits++
	return nil
}

func (t fakeTx) Rollback(ctx context.Context) error {
	t.f.txRollbacks++
	return nil
}

func (f *fakeAdapter) BeginTx(ctx context.Context) (dialect.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return fakeTx{f: f}, nil
}

func (f *fakeAdapter) SupportsTransactionalDDL() bool { return f.supportsDDLT }

func (f *fakeAdapter) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	if f.colExistsFn != nil {
		return f.colExistsFn(table, column)
	}
	return false, nil
}

func (f *fakeAdapter) IntrospectColumns(ctx context.Context, table string) ([]repository.ColumnInfo, error) {
	return nil, nil
}

func (f *fakeAdapter) IsUniqueViolation(err error) bool { return errors.Is(err, errFakeUnique) }

func (f *fakeAdapter) IsNoRows(err error) bool { return errors.Is(err, errFakeNoRows) }

func (f *fakeAdapter) Ping(ctx context.Context) error { return nil }

func (f *fakeAdapter) Close() {}

// fakeRow responde un Scan programado.
type fakeRow struct {
	err  error
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

func newTestStore(t interface{ Fatalf(string, ...any) }, db dialect.Adapter, fields ...repository.FieldDescriptor) *Store {
	s, err := New(db, Options{Fields: fields})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}
