package merge

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func encode(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func keys[T Entity[T]](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		k, _ := it.Key()
		out = append(out, k)
	}
	return out
}

func TestReconcile_ClientWinsTie(t *testing.T) {
	server := decode[[]models.Deck](t, `[{"id":1,"updatedAt":"2024-05-01T10:00:00Z","field":"S"}]`)
	client := decode[[]models.Deck](t, `[{"id":1,"updatedAt":"2024-05-01T10:00:00Z","field":"X"}]`)

	got := Reconcile(server, client)

	require.Len(t, got, 1)
	assert.Equal(t, `"X"`, string(got[0].Field("field")))
	assert.False(t, got[0].Deleted())
}

func TestReconcile_NewerSideWins(t *testing.T) {
	tests := []struct {
		name      string
		server    string
		client    string
		wantField string
	}{
		{
			name:      "server newer",
			server:    `[{"id":"a","updatedAt":"2024-05-02","v":"server"}]`,
			client:    `[{"id":"a","updatedAt":"2024-05-01","v":"client"}]`,
			wantField: `"server"`,
		},
		{
			name:      "client newer",
			server:    `[{"id":"a","updatedAt":1714521600000,"v":"server"}]`,
			client:    `[{"id":"a","updatedAt":"2024-05-01T00:00:01Z","v":"client"}]`,
			wantField: `"client"`,
		},
		{
			name:      "missing timestamps tie to client",
			server:    `[{"id":"a","v":"server"}]`,
			client:    `[{"id":"a","v":"client"}]`,
			wantField: `"client"`,
		},
		{
			name:      "garbage client timestamp is epoch",
			server:    `[{"id":"a","updatedAt":"2020-01-01","v":"server"}]`,
			client:    `[{"id":"a","updatedAt":"yesterday","v":"client"}]`,
			wantField: `"server"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(decode[[]models.Card](t, tt.server), decode[[]models.Card](t, tt.client))
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantField, string(got[0].Field("v")))
		})
	}
}

func TestReconcile_DeleteIsSticky(t *testing.T) {
	tests := []struct {
		name   string
		server string
		client string
	}{
		{"server deleted, client newer", `[{"id":"a","updatedAt":1,"isDeleted":true}]`, `[{"id":"a","updatedAt":2,"title":"edited"}]`},
		{"client deleted, server newer", `[{"id":"a","updatedAt":2}]`, `[{"id":"a","updatedAt":1,"isDeleted":true}]`},
		{"both deleted", `[{"id":"a","isDeleted":true}]`, `[{"id":"a","isDeleted":true}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(decode[[]models.Achievement](t, tt.server), decode[[]models.Achievement](t, tt.client))
			require.Len(t, got, 1)
			assert.True(t, got[0].Deleted())
		})
	}
}

func TestReconcile_WinnerFieldsKeptVerbatim(t *testing.T) {
	server := decode[[]models.Deck](t, `[{"id":"a","updatedAt":1,"isDeleted":true,"name":"old"}]`)
	client := decode[[]models.Deck](t, `[{"id":"a","updatedAt":2,"name":"new","nested":{"k":[1,2,3]}}]`)

	got := Reconcile(server, client)

	assert.JSONEq(t, `[{"id":"a","updatedAt":2,"name":"new","nested":{"k":[1,2,3]},"isDeleted":true}]`, encode(t, got))
}

func TestReconcile_OrderIsServerThenNewClient(t *testing.T) {
	server := decode[[]models.Deck](t, `[{"id":"s1"},{"id":"shared"},{"id":"s2"}]`)
	client := decode[[]models.Deck](t, `[{"id":"c1"},{"id":"shared","x":1},{"id":"c2"}]`)

	got := Reconcile(server, client)

	assert.Equal(t, []string{`"s1"`, `"shared"`, `"s2"`, `"c1"`, `"c2"`}, keys(got))
	assert.Equal(t, "1", string(got[1].Field("x")))
}

func TestReconcile_DeletedEntitiesAreNotDropped(t *testing.T) {
	server := decode[[]models.Card](t, `[{"id":"a","isDeleted":true}]`)
	client := decode[[]models.Card](t, `[{"id":"b","isDeleted":true}]`)

	assert.Len(t, Reconcile(server, client), 2)
}

func TestReconcile_LaterServerDuplicateOverwrites(t *testing.T) {
	server := decode[[]models.Card](t, `[{"id":"a","v":1},{"id":"a","v":2}]`)

	got := Reconcile(server, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "2", string(got[0].Field("v")))
}

func TestReconcile_EmptyInputs(t *testing.T) {
	got := Reconcile[models.Deck](nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReconcileStats(t *testing.T) {
	server := decode[[]models.Deck](t, `[{"id":"a"},{"id":"b"}]`)
	client := decode[[]models.Deck](t, `[{"id":"b"},{"id":"c"},{"id":"d"}]`)

	_, stats := ReconcileStats(server, client)

	assert.Equal(t, Stats{Server: 2, Client: 3, Merged: 4, Conflicts: 1}, stats)
}

func randomDecks(r *rand.Rand, n int) []models.Deck {
	out := make([]models.Deck, 0, n)
	used := map[int]bool{}
	for len(out) < n {
		id := r.Intn(3 * n)
		if used[id] {
			continue
		}
		used[id] = true
		out = append(out, models.Deck{Record: models.NewRecord(map[string]json.RawMessage{
			"id":        json.RawMessage(fmt.Sprintf("%d", id)),
			"updatedAt": json.RawMessage(fmt.Sprintf("%d", r.Intn(5))),
			"isDeleted": json.RawMessage(fmt.Sprintf("%t", r.Intn(4) == 0)),
		})})
	}
	return out
}

func TestReconcile_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		server := randomDecks(r, r.Intn(10))
		client := randomDecks(r, r.Intn(10))

		got := Reconcile(server, client)

		want := map[string]bool{}
		for _, d := range append(append([]models.Deck{}, server...), client...) {
			k, _ := d.Key()
			want[k] = want[k] || d.Deleted()
		}

		counts := map[string]int{}
		for _, d := range got {
			k, _ := d.Key()
			counts[k]++
			if want[k] {
				assert.True(t, d.Deleted(), "id %s lost its delete flag", k)
			}
		}
		assert.Len(t, counts, len(want))
		for k, n := range counts {
			assert.Equal(t, 1, n, "id %s", k)
		}

		again := Reconcile(got, client)
		assert.Equal(t, encode(t, got), encode(t, again), "re-merging the same client list changed the result")
	}
}

func TestMergeLogs_Dedup(t *testing.T) {
	server := decode[[]models.StudyLogEntry](t, `[{"cardId":"a","date":"d1","rating":3}]`)
	client := decode[[]models.StudyLogEntry](t, `[{"cardId":"a","date":"d1","rating":3},{"cardId":"b","date":"d2","rating":5}]`)

	got := MergeLogs(server, client)

	assert.JSONEq(t, `[{"cardId":"a","date":"d1","rating":3},{"cardId":"b","date":"d2","rating":5}]`, encode(t, got))
}

func TestMergeLogs_KeepsFirstOccurrence(t *testing.T) {
	server := decode[[]models.StudyLogEntry](t, `[{"cardId":"a","date":"d1","rating":3,"src":"server"}]`)
	client := decode[[]models.StudyLogEntry](t, `[{"cardId":"a","date":"d1","rating":3,"src":"client"},{"cardId":"a","date":"d1","rating":4}]`)

	got := MergeLogs(server, client)

	require.Len(t, got, 2)
	assert.Equal(t, `"server"`, string(got[0].Field("src")))
}

func TestMergeLogs_Idempotent(t *testing.T) {
	client := decode[[]models.StudyLogEntry](t, `[{"cardId":"a","date":"d1","rating":3},{"cardId":"b","date":"d2","rating":5}]`)

	once := MergeLogs(nil, client)
	twice := MergeLogs(once, client)

	assert.Equal(t, encode(t, once), encode(t, twice))
}

func TestResolveProfile(t *testing.T) {
	dark := decode[*models.Profile](t, `{"theme":"dark"}`)
	light := decode[*models.Profile](t, `{"theme":"light","updatedAt":0}`)

	assert.Equal(t, dark, ResolveProfile(dark, nil))
	assert.Equal(t, light, ResolveProfile(dark, light))
	assert.Nil(t, ResolveProfile(nil, nil))
}
