package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, repository.ErrNoDatabase)

	_, err = New(&fakeAdapter{}, Options{
		Fields: []repository.FieldDescriptor{{Name: "email", Type: "STRING"}},
	})
	require.Error(t, err)
	assert.True(t, repository.IsValidation(err))
}

func TestMaintenance_AggregatesCounts(t *testing.T) {
	fake := &fakeAdapter{
		execFn: func(q string, args []any) (int64, error) {
			switch {
			case strings.Contains(q, `"refresh_tokens"`):
				return 2, nil
			case strings.Contains(q, `"email_artifacts"`):
				return 3, nil
			case strings.Contains(q, `"login_attempts"`):
				return 5, nil
			}
			return 0, nil
		},
	}
	s := newTestStore(t, fake)

	rep, err := s.Maintenance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Counts["refresh_tokens"])
	assert.Equal(t, 3, rep.Counts["email_artifacts"])
	assert.Equal(t, 5, rep.Counts["login_attempts"])
	assert.GreaterOrEqual(t, rep.DurationMs, int64(0))
}

func TestMaintenance_PropagatesError(t *testing.T) {
	boom := errors.New("connection reset")
	fake := &fakeAdapter{
		execFn: func(q string, args []any) (int64, error) {
			if strings.Contains(q, `"login_attempts"`) {
				return 0, boom
			}
			return 1, nil
		},
	}
	s := newTestStore(t, fake)

	_, err := s.Maintenance(context.Background())
	assert.ErrorIs(t, err, boom)
}
