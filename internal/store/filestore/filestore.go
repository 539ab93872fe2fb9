// Package filestore keeps each collection as a JSON file in a directory.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"talkbridge/internal/ports"
)

var (
	ErrInvalidCollection = errors.New("invalid collection name")

	collectionName = regexp.MustCompile(`^[a-z0-9_]+$`)
)

type fileRecord struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Store implements ports.Store. It is safe for concurrent use within one
// process.
type Store struct {
	dir string

	mu sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Append(ctx context.Context, collection string, record ports.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(collection)
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.ID == record.ID {
			return ports.ErrDuplicateRecord
		}
	}
	return s.save(collection, append(records, fileRecord{ID: record.ID, Data: record.Data}))
}

func (s *Store) List(ctx context.Context, collection string) ([]ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Record, 0, len(records))
	for _, record := range records {
		out = append(out, ports.Record{ID: record.ID, Data: []byte(record.Data)})
	}
	return out, nil
}

// Remove deletes the record with id. Removing a missing id is not an error.
func (s *Store) Remove(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(collection)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.save(collection, kept)
}

func (s *Store) path(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return filepath.Join(s.dir, collection+".json"), nil
}

func (s *Store) load(collection string) ([]fileRecord, error) {
	path, err := s.path(collection)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return records, nil
}

// save replaces the collection file atomically.
func (s *Store) save(collection string, records []fileRecord) error {
	path, err := s.path(collection)
	if err != nil {
		return err
	}
	if records == nil {
		records = []fileRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", collection, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}
