package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/filex"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
)

// FileStore keeps all records in memory and mirrors them to a single JSON
// file of the form {"user:<name>": record}. The file is read once by
// NewFileStore and rewritten in full on every Put.
type FileStore struct {
	path    string
	logger  logging.Logger
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

// NewFileStore loads path, which may not exist yet. A file that exists but is
// not a JSON object is an error.
func NewFileStore(path string, logger logging.Logger) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		logger:  logger,
		records: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(context.Background(), "data file not found, starting empty", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read data file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("parse data file %s: %w", path, err)
		}
	}
	logger.Info(context.Background(), "data file loaded", "path", path, "records", len(s.records))
	return s, nil
}

func (s *FileStore) Name() string { return config.BackendFile }

func (s *FileStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	s.mu.RLock()
	raw, ok := s.records[RecordKey(username)]
	s.mu.RUnlock()
	if !ok {
		return nil, common.ErrorNotFound
	}

	rec := &models.UserRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Put updates the in-memory map and rewrites the file. Failing to write the
// file is logged and not returned.
func (s *FileStore) Put(ctx context.Context, record *models.UserRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := RecordKey(record.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = raw
	if err := s.flush(); err != nil {
		s.logger.Error(ctx, "failed to persist data file", "path", s.path, "key", key, "error", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// flush rewrites the data file with the whole map. Callers hold mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path, data, 0o600)
}
