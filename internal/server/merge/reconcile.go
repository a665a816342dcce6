// Package merge implements the offline-first merge rules for a user's data
// bundle: last-writer-wins reconciliation of identified entities, composite
// key deduplication of the study log and client precedence for the profile.
package merge

import (
	"encoding/json"

	"github.com/dmitrijs2005/lexisync/internal/server/models"
)

// Entity is the shape shared by every reconcilable collection element.
// Everything other than id, updatedAt and isDeleted is opaque here.
type Entity[T any] interface {
	Key() (string, bool)
	UpdatedAtRaw() json.RawMessage
	Deleted() bool
	WithDeleted(bool) T
}

// Stats describes one reconciliation.
type Stats struct {
	Server    int `json:"server"`
	Client    int `json:"client"`
	Merged    int `json:"merged"`
	Conflicts int `json:"conflicts"`
}

// Reconcile merges server and client into one list with each id exactly once.
//
// The server list seeds the result in order. A client entity with an unseen id
// is appended; otherwise the newer of the two versions replaces the stored one
// in place, the client winning ties, with isDeleted set to the OR of both
// flags. Deleted entities are kept.
func Reconcile[T Entity[T]](server, client []T) []T {
	out, _ := ReconcileStats(server, client)
	return out
}

// ReconcileStats is Reconcile that also reports how many ids were present on
// both sides.
func ReconcileStats[T Entity[T]](server, client []T) ([]T, Stats) {
	stats := Stats{Server: len(server), Client: len(client)}
	out := make([]T, 0, len(server)+len(client))
	index := make(map[string]int, len(server)+len(client))

	put := func(item T) (existing int, seen bool) {
		key, ok := item.Key()
		if !ok {
			// Entities without an id cannot be matched; keep them as they are.
			out = append(out, item)
			return 0, false
		}
		if i, found := index[key]; found {
			return i, true
		}
		index[key] = len(out)
		out = append(out, item)
		return 0, false
	}

	for _, s := range server {
		if i, seen := put(s); seen {
			out[i] = s
		}
	}

	for _, c := range client {
		i, seen := put(c)
		if !seen {
			continue
		}
		stats.Conflicts++
		stored := out[i]
		deleted := stored.Deleted() || c.Deleted()

		winner := stored
		if !ParseTimestamp(c.UpdatedAtRaw()).Before(ParseTimestamp(stored.UpdatedAtRaw())) {
			winner = c
		}
		out[i] = winner.WithDeleted(deleted)
	}

	stats.Merged = len(out)
	return out, stats
}

// MergeLogs concatenates server then client entries and keeps the first
// occurrence of each (cardId, date, rating).
func MergeLogs(server, client []models.StudyLogEntry) []models.StudyLogEntry {
	out := make([]models.StudyLogEntry, 0, len(server)+len(client))
	seen := make(map[models.LogKey]struct{}, len(server)+len(client))

	for _, list := range [][]models.StudyLogEntry{server, client} {
		for _, e := range list {
			k := e.DedupKey()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// ResolveProfile returns client when it is present, otherwise server.
func ResolveProfile(server, client *models.Profile) *models.Profile {
	if client != nil {
		return client
	}
	return server
}
