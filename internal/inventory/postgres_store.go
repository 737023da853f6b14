package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps one row per key and commits with a version check.
type PostgresStore struct {
	db         rowQuerier
	maxRetries int

	selectSQL string
	insertSQL string
	updateSQL string
	upsertSQL string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore uses the given table, created by the calendar migrations.
func NewPostgresStore(pool *pgxpool.Pool, table string, maxRetries int) *PostgresStore {
	if pool == nil {
		panic("inventory: pgx pool required")
	}
	return newPostgresStoreWithExec(pool, table, maxRetries)
}

func newPostgresStoreWithExec(db rowQuerier, table string, maxRetries int) *PostgresStore {
	if db == nil {
		panic("inventory: exec required")
	}
	if table == "" {
		table = "calendar_days"
	}
	t := pq.QuoteIdentifier(table)
	return &PostgresStore{
		db:         db,
		maxRetries: maxRetries,
		selectSQL:  fmt.Sprintf(`SELECT slots, version FROM %s WHERE day_key = $1`, t),
		insertSQL: fmt.Sprintf(`
			INSERT INTO %s (day_key, slots, version, updated_at)
			VALUES ($1, $2::jsonb, 1, now())
			ON CONFLICT (day_key) DO NOTHING
		`, t),
		updateSQL: fmt.Sprintf(`
			UPDATE %s SET slots = $2::jsonb, version = version + 1, updated_at = now()
			WHERE day_key = $1 AND version = $3
		`, t),
		upsertSQL: fmt.Sprintf(`
			INSERT INTO %[1]s (day_key, slots, version, updated_at)
			VALUES ($1, $2::jsonb, 1, now())
			ON CONFLICT (day_key) DO UPDATE SET slots = EXCLUDED.slots, version = %[1]s.version + 1, updated_at = now()
		`, t),
	}
}

func (s *PostgresStore) read(ctx context.Context, key string) ([]byte, int64, bool, error) {
	var (
		raw     []byte
		version int64
	)
	if err := s.db.QueryRow(ctx, s.selectSQL, key).Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	return raw, version, true, nil
}

func (s *PostgresStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	raw, _, found, err := s.read(ctx, key)
	if err != nil {
		return nil, false, wrapStoreErr("read", key, err)
	}
	return raw, found, nil
}

func (s *PostgresStore) Write(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, s.upsertSQL, key, string(value)); err != nil {
		return wrapStoreErr("write", key, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := retryOptimistic(ctx, s.maxRetries, func() error {
		current, version, found, err := s.read(ctx, key)
		if err != nil {
			return err
		}
		next, err := fn(current, found)
		if err != nil {
			return err
		}

		var tag pgconn.CommandTag
		if found {
			tag, err = s.db.Exec(ctx, s.updateSQL, key, string(next), version)
		} else {
			tag, err = s.db.Exec(ctx, s.insertSQL, key, string(next))
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errConflict
		}
		return nil
	})
	return wrapStoreErr("update", key, err)
}
