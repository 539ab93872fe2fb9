// Package postgres implements ports.Store on a single JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"talkbridge/internal/ports"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS talkbridge_records (
	seq        BIGSERIAL PRIMARY KEY,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (collection, id)
)`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, collection string, record ports.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO talkbridge_records (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
	`, collection, record.ID, string(record.Data))
	if isUniqueViolation(err) {
		return ports.ErrDuplicateRecord
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]ports.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data
		FROM talkbridge_records
		WHERE collection = $1
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []ports.Record
	for rows.Next() {
		var rec ports.Record
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (s *Store) Remove(ctx context.Context, collection string, id string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM talkbridge_records
		WHERE collection = $1 AND id = $2
	`, collection, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// RemoveMany deletes every listed id in one statement.
func (s *Store) RemoveMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM talkbridge_records
		WHERE collection = $1 AND id = ANY($2)
	`, collection, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
