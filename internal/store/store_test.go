package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfg-report-go/internal/record"
)

type backend interface {
	Store
	Settings
}

func backends(t *testing.T, dateFields ...string) map[string]backend {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "mfg.db"), nil, dateFields...)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]backend{
		"memory": NewMemory(dateFields...),
		"sqlite": sq,
	}
}

func values(t *testing.T, recs []record.Record, key string) []any {
	t.Helper()
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get(key)
		out = append(out, v)
	}
	return out
}

func TestStore_ReplaceAllKeepsOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			recs := []record.Record{
				record.New("품번", "A1", "생산수량", 10.0, "비고", nil),
				record.New("품번", "B2", "생산수량", "1,200"),
			}
			require.NoError(t, s.ReplaceAll(ctx, Production, recs))

			got, err := s.GetAll(ctx, Production)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, []string{"품번", "생산수량", "비고"}, got[0].Keys())
			assert.Equal(t, []any{10.0, "1,200"}, values(t, got, "생산수량"))

			require.NoError(t, s.ReplaceAll(ctx, Production, recs[1:]))
			got, err = s.GetAll(ctx, Production)
			require.NoError(t, err)
			assert.Len(t, got, 1)

			empty, err := s.GetAll(ctx, Mold)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_ReplaceMonths(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.ReplaceAll(ctx, Availability, []record.Record{
				record.New("일자", "2024-02-01", "id", "feb"),
				record.New("일자", "2024-03-01", "id", "mar-old"),
			}))
			require.NoError(t, s.ReplaceMonths(ctx, Availability, []record.Record{
				record.New("일자", "2024-03-05", "id", "mar-new"),
			}))
			got, err := s.GetAll(ctx, Availability)
			require.NoError(t, err)
			assert.Equal(t, []any{"feb", "mar-new"}, values(t, got, "id"))
		})
	}
}

func TestStore_ReplaceMonthsUsesConfiguredDateColumns(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, "반영일") {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.ReplaceAll(ctx, Production, []record.Record{
				record.New("반영일", "2024-02-01", "id", "feb"),
				record.New("반영일", "2024-03-01", "id", "mar-old"),
			}))
			require.NoError(t, s.ReplaceMonths(ctx, Production, []record.Record{
				record.New("반영일", "2024-03-05", "id", "mar-new"),
			}))
			got, err := s.GetAll(ctx, Production)
			require.NoError(t, err)
			assert.Equal(t, []any{"feb", "mar-new"}, values(t, got, "id"))
		})
	}
}

func TestStore_UnknownDataset(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetAll(ctx, "payroll")
			assert.ErrorIs(t, err, ErrUnknownDataset)
			assert.ErrorIs(t, s.ReplaceAll(ctx, "payroll", nil), ErrUnknownDataset)
		})
	}
}

func TestStore_Settings(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadSetting(ctx, "session")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SaveSetting(ctx, "session", []byte(`{"version":1}`)))
			require.NoError(t, s.SaveSetting(ctx, "session", []byte(`{"version":2}`)))
			v, err := s.LoadSetting(ctx, "session")
			require.NoError(t, err)
			assert.JSONEq(t, `{"version":2}`, string(v))
		})
	}
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isBusy(errors.Join(errors.New("wrapped"), sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isBusy(errors.New("plain")))
}

func TestDatasets(t *testing.T) {
	assert.Len(t, Datasets(), 7)
	assert.NoError(t, CheckDataset(PriceList))
	assert.ErrorIs(t, CheckDataset(""), ErrUnknownDataset)
}
