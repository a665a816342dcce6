// Package services contains server-side business logic. This file implements
// UserService, which handles registration and login against the record store.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"github.com/dmitrijs2005/lexisync/internal/server/storage"
)

// UserService provides account operations:
// - Register: create a user record
// - Login: check a credential and return the stored bundle
type UserService struct {
	store  storage.Store
	logger logging.Logger
}

// NewUserService constructs a UserService over store.
func NewUserService(store storage.Store, logger logging.Logger) *UserService {
	return &UserService{store: store, logger: logger.With("module", "users")}
}

func requireCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return common.NewValidationError("username", "is required")
	}
	if password == "" {
		return common.NewValidationError("password", "is required")
	}
	return nil
}

// Register creates a record for username. Usernames are compared after
// normalization, so "Alice" and "alice" conflict with ErrorAlreadyExists.
// The new record has no data until the first sync-merge.
//
// The existence check and the write are not atomic. Two registrations of the
// same name that both pass the check both succeed, and the later Put replaces
// the earlier record, credential included.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.UserRecord, error) {
	if err := requireCredentials(username, password); err != nil {
		return nil, err
	}

	_, err := s.store.Get(ctx, username)
	switch {
	case err == nil:
		return nil, fmt.Errorf("user %q: %w", username, common.ErrorAlreadyExists)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	rec := &models.UserRecord{
		Username: strings.TrimSpace(username),
		Password: password,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user", storage.NormalizeUsername(username))
	return rec, nil
}

// Login returns the stored record when password matches. A missing user and
// a wrong password both yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.UserRecord, error) {
	if err := requireCredentials(username, password); err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(rec.Password), []byte(password)) != 1 {
		s.logger.Warn(ctx, "login rejected", "user", storage.NormalizeUsername(username))
		return nil, common.ErrorUnauthorized
	}

	return rec, nil
}
