package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// DuckDBStore persists the credential in the profile database, so it
// survives restarts of the console but not a different profile directory.
type DuckDBStore struct {
	db *sql.DB
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore creates a store over an opened profile database (see db.Open)
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Get returns the stored credential and whether one is present
func (s *DuckDBStore) Get(ctx context.Context) (string, bool, error) {
	query, args, err := sq.Select("value").
		From("credentials").
		Where(sq.Eq{"name": Key}).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var value string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read credential: %w", err)
	}
	return value, true, nil
}

// Set replaces the stored credential
func (s *DuckDBStore) Set(ctx context.Context, credential string) error {
	query, args, err := sq.Insert("credentials").
		Columns("name", "value", "updated_at").
		Values(Key, credential, sq.Expr("current_timestamp")).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential
func (s *DuckDBStore) Clear(ctx context.Context) error {
	query, args, err := sq.Delete("credentials").
		Where(sq.Eq{"name": Key}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
