// Package storage persists one UserRecord per user behind the Store
// interface. The backend is chosen once at startup from configuration.
//
// Every backend keys records by RecordKey, so usernames that differ only in
// case or Unicode composition address the same record.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"golang.org/x/text/unicode/norm"
)

// Store is a key-value store of user records.
//
// Get returns common.ErrorNotFound when no record exists. Remote backends also
// report read failures as not found. Put fails with a *common.StoreWriteError
// on remote backends; the file backend only logs write failures.
type Store interface {
	Get(ctx context.Context, username string) (*models.UserRecord, error)
	Put(ctx context.Context, record *models.UserRecord) error
	Name() string
	Close() error
}

// NormalizeUsername trims, NFC-normalizes and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(username)))
}

// RecordKey is the storage key for username.
func RecordKey(username string) string {
	return "user:" + NormalizeUsername(username)
}

// New opens the backend selected by cfg.StoreBackend.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (Store, error) {
	logger = logger.With("module", "storage", "backend", cfg.StoreBackend)

	switch cfg.StoreBackend {
	case config.BackendFile:
		return NewFileStore(cfg.StoreFilePath, logger)
	case config.BackendKV:
		return NewKVStore(cfg.KVRestURL, cfg.KVRestToken, nil, logger), nil
	case config.BackendS3:
		return NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Prefix:       cfg.S3Prefix,
		}, logger)
	case config.BackendPostgres:
		return OpenPostgresStore(ctx, cfg.DatabaseDSN, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
