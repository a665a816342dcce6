package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"github.com/dmitrijs2005/lexisync/internal/server/storage"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(filepath.Join(t.TempDir(), "data.json"), logging.Nop())
	require.NoError(t, err)
	return s
}

func bundle(t *testing.T, s string) *models.DataBundle {
	t.Helper()
	b := &models.DataBundle{}
	require.NoError(t, json.Unmarshal([]byte(s), b))
	return b
}

func encode(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// failingStore wraps a Store and lets tests inject errors.
type failingStore struct {
	storage.Store
	getErr error
	putErr error
	puts   int
}

func (f *failingStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, username)
}

func (f *failingStore) Put(ctx context.Context, rec *models.UserRecord) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, rec)
}

// barrierStore holds every Get until n of them have arrived, so that n
// concurrent merges all read the same snapshot before any of them writes.
type barrierStore struct {
	storage.Store
	arrived sync.WaitGroup
}

func newBarrierStore(inner storage.Store, n int) *barrierStore {
	b := &barrierStore{Store: inner}
	b.arrived.Add(n)
	return b
}

func (b *barrierStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	rec, err := b.Store.Get(ctx, username)
	b.arrived.Done()
	b.arrived.Wait()
	return rec, err
}

type recordedMerges struct {
	mu        sync.Mutex
	outcomes  []string
	conflicts map[string]int
}

func (r *recordedMerges) RecordMerge(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordedMerges) RecordConflicts(collection string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts == nil {
		r.conflicts = map[string]int{}
	}
	r.conflicts[collection] += n
}
