package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/merge"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"github.com/dmitrijs2005/lexisync/internal/server/storage"
)

// Merge outcomes reported to MergeRecorder.
const (
	MergeOK       = "ok"
	MergeNotFound = "not_found"
	MergeInvalid  = "invalid"
	MergeError    = "error"
)

// MergeRecorder receives sync statistics.
type MergeRecorder interface {
	RecordMerge(outcome string)
	RecordConflicts(collection string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordMerge(string)          {}
func (nopRecorder) RecordConflicts(string, int) {}

// SyncService loads and merges users' data bundles.
//
// Merge is a plain read-merge-write against the store. Two merges for the
// same user that overlap will both read the same record and the later Put
// replaces the earlier one in full.
type SyncService struct {
	store    storage.Store
	recorder MergeRecorder
	logger   logging.Logger
}

// NewSyncService constructs a SyncService. recorder may be nil.
func NewSyncService(store storage.Store, recorder MergeRecorder, logger logging.Logger) *SyncService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SyncService{store: store, recorder: recorder, logger: logger.With("module", "sync")}
}

// Load returns the stored bundle for username, or nil when the user is
// unknown or has never merged.
func (s *SyncService) Load(ctx context.Context, username string) (*models.DataBundle, error) {
	if strings.TrimSpace(username) == "" {
		return nil, common.NewValidationError("username", "is required")
	}

	rec, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if rec.Data == nil {
		return nil, nil
	}
	return rec.Data.Normalize(), nil
}

// Merge folds client into the stored bundle for username, persists the
// result and returns it. It fails with ErrorNotFound for an unknown user and
// never creates one.
func (s *SyncService) Merge(ctx context.Context, username string, client *models.DataBundle) (*models.DataBundle, merge.Report, error) {
	merged, report, err := s.merge(ctx, username, client)

	switch {
	case err == nil:
		s.recorder.RecordMerge(MergeOK)
		for collection, n := range report.Conflicts() {
			s.recorder.RecordConflicts(collection, n)
		}
	case errors.Is(err, common.ErrorNotFound):
		s.recorder.RecordMerge(MergeNotFound)
	case errors.Is(err, common.ErrorValidation):
		s.recorder.RecordMerge(MergeInvalid)
	default:
		s.recorder.RecordMerge(MergeError)
	}
	return merged, report, err
}

func (s *SyncService) merge(ctx context.Context, username string, client *models.DataBundle) (*models.DataBundle, merge.Report, error) {
	if strings.TrimSpace(username) == "" {
		return nil, merge.Report{}, common.NewValidationError("username", "is required")
	}
	if client == nil {
		return nil, merge.Report{}, common.NewValidationError("data", "is required")
	}
	if err := client.Validate(); err != nil {
		return nil, merge.Report{}, err
	}

	rec, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, merge.Report{}, fmt.Errorf("user %q: %w", username, common.ErrorNotFound)
		}
		return nil, merge.Report{}, fmt.Errorf("load user: %w", err)
	}

	merged, report := merge.Bundle(rec.Data, client)
	rec.Data = merged

	if err := s.store.Put(ctx, rec); err != nil {
		return nil, merge.Report{}, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info(ctx, "sync merged",
		"user", storage.NormalizeUsername(username),
		"decks", report.Decks.Merged,
		"cards", report.Cards.Merged,
		"achievements", report.Achievements.Merged,
		"study_history", report.StudyHistory.Merged,
		"conflicts", report.Decks.Conflicts+report.Cards.Conflicts+report.Achievements.Conflicts,
	)
	return merged, report, nil
}
