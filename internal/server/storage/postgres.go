package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/migrations"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
)

// PostgresStore keeps records as JSONB rows in user_records.
type PostgresStore struct {
	db     dbx.DBTX
	closer func() error
	logger logging.Logger
}

// OpenPostgresStore connects with pgx, applies pending migrations and
// returns the store.
func OpenPostgresStore(ctx context.Context, dsn string, logger logging.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	s := NewPostgresStore(db, logger)
	s.closer = db.Close
	return s, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func NewPostgresStore(db dbx.DBTX, logger logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Name() string { return config.BackendPostgres }

// Get reads the record row. Query failures are logged and reported as not
// found.
func (s *PostgresStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	key := RecordKey(username)
	query :=
		`SELECT record FROM user_records
		 WHERE key = $1
		 `

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn(ctx, "db read failed, treating as missing", "key", key, "error", err)
		}
		return nil, common.ErrorNotFound
	}

	rec := &models.UserRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("db get %s: decode record: %w", key, err)
	}
	return rec, nil
}

// Put upserts the record row. Any failure is a *common.StoreWriteError.
func (s *PostgresStore) Put(ctx context.Context, record *models.UserRecord) error {
	key := RecordKey(record.Username)

	raw, err := json.Marshal(record)
	if err != nil {
		return &common.StoreWriteError{Backend: config.BackendPostgres, Key: key, Err: err}
	}

	query :=
		`INSERT INTO user_records (key, record, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET record = EXCLUDED.record, updated_at = now()
		 `

	if _, err := s.db.ExecContext(ctx, query, key, string(raw)); err != nil {
		return &common.StoreWriteError{Backend: config.BackendPostgres, Key: key, Err: fmt.Errorf("db error: %w", err)}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
