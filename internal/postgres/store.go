package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/undeadops/slugger/internal/store"
)

const table = "redirects"

var _ store.Store = (*Store)(nil)

// Store keeps one row per slug in the redirects table.
type Store struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.sb.
		Select("value").
		From(table).
		Where(squirrel.Eq{"slug": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	if err := s.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get row from %s table: %w", table, err)
	}

	return []byte(value), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	query, args, err := s.sb.
		Insert(table).
		Columns("slug", "value").
		Values(key, string(value)).
		Suffix("ON CONFLICT (slug) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert into %s table: %w", table, err)
	}

	return nil
}

// Delete ignores the affected row count; removing a missing slug succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := s.sb.
		Delete(table).
		Where(squirrel.Eq{"slug": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s table: %w", table, err)
	}

	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.
		Select("slug").
		From(table).
		OrderBy("slug").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	keys := []string{}
	if err := s.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select from %s table: %w", table, err)
	}

	return keys, nil
}
