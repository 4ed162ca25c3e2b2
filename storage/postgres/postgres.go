package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/balancednetwork/xcall-tracker/db"
	"github.com/balancednetwork/xcall-tracker/storage"
)

// Store persists blobs in a single Postgres key-value table.
type Store struct {
	table string
	db    *db.DB
}

func NewStore(table string, dbConn *db.DB) *Store {
	return &Store{
		table: table,
		db:    dbConn,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	q, args, err := sq.Select("value").
		From(s.table).
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var value []byte
	err = s.db.GetContext(ctx, &value, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("can't get value: %w", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	q, args, err := sq.Insert(s.table).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't upsert value: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	q, args, err := sq.Delete(s.table).
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't delete value: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
