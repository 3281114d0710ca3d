package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"mfg-report-go/internal/logger"
	"mfg-report-go/internal/period"
	"mfg-report-go/internal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	dataset TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	data    TEXT NOT NULL,
	PRIMARY KEY (dataset, seq)
);
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists datasets in a single SQLite file.
type SQLiteStore struct {
	db         *sql.DB
	log        *logrus.Entry
	dateFields []string
	maxElapsed time.Duration
}

// OpenSQLite opens (creating if needed) the database at path. dateFields
// behave as in NewMemory.
func OpenSQLite(path string, log *logrus.Entry, dateFields ...string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if log == nil {
		log = logger.Discard().Entry
	}
	return &SQLiteStore{
		db:         db,
		log:        log.WithField("component", "store.sqlite"),
		dateFields: dateFieldsOr(dateFields),
		maxElapsed: 10 * time.Second,
	}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func isBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// retry runs op until it succeeds, fails with a non-busy error or ctx ends.
func (s *SQLiteStore) retry(ctx context.Context, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.maxElapsed
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if isBusy(err) {
			s.log.WithError(err).WithField("op", name).WithField("attempt", attempt).Warn("database busy, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func (s *SQLiteStore) GetAll(ctx context.Context, dataset string) ([]record.Record, error) {
	if err := CheckDataset(dataset); err != nil {
		return nil, err
	}
	var out []record.Record
	err := s.retry(ctx, "get", func() error {
		out = nil
		recs, err := readAll(ctx, s.db, dataset)
		if err != nil {
			return err
		}
		out = recs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dataset, err)
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readAll(ctx context.Context, q querier, dataset string) ([]record.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT data FROM records WHERE dataset = ? ORDER BY seq`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []record.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, dataset string, records []record.Record) error {
	if err := CheckDataset(dataset); err != nil {
		return err
	}
	return s.replace(ctx, dataset, func(*sql.Tx) ([]record.Record, error) {
		return records, nil
	})
}

func (s *SQLiteStore) ReplaceMonths(ctx context.Context, dataset string, records []record.Record) error {
	if err := CheckDataset(dataset); err != nil {
		return err
	}
	return s.replace(ctx, dataset, func(tx *sql.Tx) ([]record.Record, error) {
		existing, err := readAll(ctx, tx, dataset)
		if err != nil {
			return nil, err
		}
		return period.MergeByMonth(existing, records, nil, s.dateFields), nil
	})
}

// replace rewrites a dataset inside one transaction. next computes the
// final contents from within that transaction.
func (s *SQLiteStore) replace(ctx context.Context, dataset string, next func(*sql.Tx) ([]record.Record, error)) error {
	err := s.retry(ctx, "replace", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		recs, err := next(tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, dataset); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (dataset, seq, data) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, dataset, i, string(data)); err != nil {
				return err
			}
		}
		s.log.WithField("dataset", dataset).WithField("rows", len(recs)).Debug("dataset replaced")
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", dataset, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.retry(ctx, "load setting", func() error {
		return s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SaveSetting(ctx context.Context, key string, value []byte) error {
	err := s.retry(ctx, "save setting", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}
