package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"techfeed/viewer"
)

const stateTable = "user_state"

// Store persists reader state as key/value rows
type Store struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

// NewStore opens database, an SQLite file path or a postgres:// url.
// Migrations must have been applied.
func NewStore(database string) (*Store, error) {
	db, flavor, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Store{db: db, flavor: flavor}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("state_value").From(stateTable).Where(sb.Equal("state_key", key))
	query, args := sb.Build()

	var value string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query error: %w", err)
	}
	return value, true, nil
}

// Set inserts or replaces the value of key
func (s *Store) Set(ctx context.Context, key string, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto(stateTable).
		Cols("state_key", "state_value", "updated_at").
		Values(key, value, time.Now().Unix())
	ib.SQL("ON CONFLICT (state_key) DO UPDATE SET state_value = excluded.state_value, updated_at = excluded.updated_at")
	query, args := ib.Build()

	log.WithFields(log.Fields{
		"key":   key,
		"bytes": len(value),
	}).Debug("Saving user state")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert error: %w", err)
	}
	return nil
}

// KeysWithSuffix lists the keys ending in suffix, e.g. every reader's read set
func (s *Store) KeysWithSuffix(ctx context.Context, suffix string) ([]string, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("state_key").From(stateTable).Where(sb.Like("state_key", "%"+suffix))
	sb.OrderBy("state_key").Asc()
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		// LIKE treats "_" as a wildcard
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

var _ viewer.Store = (*Store)(nil)
