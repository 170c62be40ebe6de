package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/dialect"
)

func tokenRowAt(expiresAt time.Time, revokedAt *time.Time) fakeRow {
	return fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "tok-1"
		*(dest[1].(*string)) = "user-1"
		*(dest[2].(*string)) = "digest"
		*(dest[3].(*time.Time)) = time.Now().UTC().Add(-time.Hour)
		*(dest[4].(*time.Time)) = expiresAt
		*(dest[5].(**time.Time)) = revokedAt
		return nil
	}}
}

// liveFilter simula el WHERE del motor: si la consulta pide solo
// tokens vivos, una fila revocada no vuelve.
func liveFilter(row dialect.Row) func(string, []any) dialect.Row {
	return func(query string, _ []any) dialect.Row {
		if strings.Contains(query, `"revoked_at" IS NULL`) {
			return fakeRow{err: errFakeNoRows}
		}
		return row
	}
}

func TestTokenGetByHash_RevokedBehavesAsAbsent(t *testing.T) {
	past := time.Now().UTC().Add(-time.Minute)
	fake := &fakeAdapter{
		queryRowFn: liveFilter(tokenRowAt(time.Now().UTC().Add(time.Hour), &past)),
	}
	s := newTestStore(t, fake)

	_, err := s.Tokens().GetByHash(context.Background(), "digest")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.Len(t, fake.queries, 1)
	q := fake.queries[0]
	assert.Contains(t, q.query, `"token_hash" = ?`)
	assert.Contains(t, q.query, `"revoked_at" IS NULL`)
	assert.Contains(t, q.query, `"expires_at" > ?`)
	require.Len(t, q.args, 2)
	assert.Equal(t, "digest", q.args[0])
}

func TestTokenRevokeThenGetByHash_NotFound(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeAdapter{
		execFn:     func(string, []any) (int64, error) { return 1, nil },
		queryRowFn: liveFilter(tokenRowAt(now.Add(time.Hour), &now)),
	}
	s := newTestStore(t, fake)
	ctx := context.Background()

	require.NoError(t, s.Tokens().Revoke(ctx, "tok-1"))
	_, err := s.Tokens().GetByHash(ctx, "digest")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenConsume_WinnerGetsToken(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	fake := &fakeAdapter{
		execFn: func(string, []any) (int64, error) { return 1, nil },
		queryRowFn: func(string, []any) dialect.Row {
			now := time.Now().UTC()
			return tokenRowAt(future, &now)
		},
	}
	s := newTestStore(t, fake)

	tok, err := s.Tokens().Consume(context.Background(), "digest")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.UserID)
	require.Len(t, fake.execs, 1)
	assert.Contains(t, fake.execs[0].query, `"revoked_at" IS NULL`)
	assert.Contains(t, fake.execs[0].query, `"expires_at" > ?`)
}

func TestTokenConsume_LoserClassification(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name string
		row  dialect.Row
		want error
	}{
		{"revoked", tokenRowAt(now.Add(time.Hour), &now), repository.ErrTokenRevoked},
		{"expired", tokenRowAt(now.Add(-time.Minute), nil), repository.ErrTokenExpired},
		{"absent", fakeRow{err: errFakeNoRows}, repository.ErrNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fake := &fakeAdapter{
				execFn:     func(string, []any) (int64, error) { return 0, nil },
				queryRowFn: func(string, []any) dialect.Row { return c.row },
			}
			s := newTestStore(t, fake)

			_, err := s.Tokens().Consume(context.Background(), "digest")
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestTokenRevokeAllByUser(t *testing.T) {
	fake := &fakeAdapter{
		execFn: func(string, []any) (int64, error) { return 3, nil },
	}
	s := newTestStore(t, fake)

	n, err := s.Tokens().RevokeAllByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, fake.execs[0].query, `"user_id" = ?`)
	assert.Contains(t, fake.execs[0].query, `"revoked_at" IS NULL`)
}

func TestTokenStore_Validation(t *testing.T) {
	s := newTestStore(t, &fakeAdapter{})

	_, err := s.Tokens().Store(context.Background(), "", "h", time.Now().Add(time.Hour))
	assert.True(t, repository.IsValidation(err))

	_, err = s.Tokens().Store(context.Background(), "u", "", time.Now().Add(time.Hour))
	assert.True(t, repository.IsValidation(err))
}

func TestTokenDeleteExpired_CoversRevokedRetention(t *testing.T) {
	fake := &fakeAdapter{
		execFn: func(string, []any) (int64, error) { return 7, nil },
	}
	s := newTestStore(t, fake)

	n, err := s.Tokens().DeleteExpired(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	q := fake.execs[0].query
	assert.Contains(t, q, `"expires_at" <= ?`)
	assert.Contains(t, q, `"revoked_at" IS NOT NULL`)
}
