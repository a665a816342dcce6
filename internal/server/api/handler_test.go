package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/services"
	"github.com/dmitrijs2005/lexisync/internal/server/storage"
	"github.com/dmitrijs2005/lexisync/internal/server/upstream"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLLM struct{ err error }

func (f fakeLLM) Generate(ctx context.Context, in upstream.GenerateRequest) (*upstream.GenerateResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.GenerateResponse{Text: "echo: " + in.Prompt, Model: "m", Usage: json.RawMessage(`{"total_tokens":3}`)}, nil
}

type fakeDictionary struct{}

func (fakeDictionary) Lookup(ctx context.Context, word, lang string) (json.RawMessage, error) {
	if word == "zzz" {
		return nil, &common.UpstreamError{Service: "dictionary", Status: http.StatusNotFound, Detail: "No Definitions Found"}
	}
	return json.RawMessage(`[{"word":"` + word + `"}]`), nil
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, from, to string) (*upstream.Translation, error) {
	return &upstream.Translation{Text: "hola", Source: from, Target: to, Alternatives: []string{}}, nil
}

type fakeAudio struct{}

func (fakeAudio) Fetch(ctx context.Context, rawURL string) (*upstream.Audio, error) {
	if strings.HasSuffix(rawURL, "missing.mp3") {
		return nil, &common.UpstreamError{Service: "audio", Status: http.StatusNotFound, Detail: "gone"}
	}
	return &upstream.Audio{Body: io.NopCloser(strings.NewReader("ID3-bytes")), ContentType: "audio/mpeg", ContentLength: 9}, nil
}

type recordedRequest struct {
	action string
	status int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeRecorder) RecordRequest(action string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{action, status})
}

type fixture struct {
	router   *gin.Engine
	store    storage.Store
	recorder *fakeRecorder
}

func newFixture(t *testing.T, llm Generator) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "data.json"), logging.Nop())
	require.NoError(t, err)

	h := NewHandler(
		services.NewUserService(store, logging.Nop()),
		services.NewSyncService(store, nil, logging.Nop()),
		llm, fakeDictionary{}, fakeTranslator{}, fakeAudio{},
		logging.Nop(),
	)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	rec := &fakeRecorder{}
	r := NewRouter(h, RouterOptions{Logger: logging.Nop(), Recorder: rec, Backend: "file"})
	return &fixture{router: r, store: store, recorder: rec}
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	w := f.post(t, `{"action":"ping"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","time":"2024-05-01T10:00:00Z"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestDispatch_BadRequests(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown action", `{"action":"explode"}`, `action: unknown action "explode"`},
		{"missing action", `{}`, `action: unknown action ""`},
		{"not json", `hello`, "body: must be a JSON object"},
		{"wrong type", `{"action":"auth-login","username":5,"password":"x"}`, "username: has the wrong type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.post(t, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Error)
		})
	}

	assert.Equal(t, recordedRequest{unknownAction, http.StatusBadRequest}, f.recorder.seen[0])
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	w := f.post(t, `{"action":"auth-register","username":"Alice","password":"pw"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"username":"Alice"}`, w.Body.String())

	w = f.post(t, `{"action":"auth-register","username":"ALICE","password":"other"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"username already exists"}`, w.Body.String())

	w = f.post(t, `{"action":"auth-register","username":"bob"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"password: is required"}`, w.Body.String())

	w = f.post(t, `{"action":"auth-login","username":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post(t, `{"action":"auth-login","username":"nobody","password":"pw"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post(t, `{"action":"auth-login","username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"username":"Alice","data":null}`, w.Body.String())
}

func TestSyncFlow(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	w := f.post(t, `{"action":"sync-merge","username":"ghost","data":{"decks":[{"id":"d1"}]}}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	_, err := f.store.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.Equal(t, http.StatusCreated, f.post(t, `{"action":"auth-register","username":"alice","password":"pw"}`).Code)

	w = f.post(t, `{"action":"sync-load","username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":null}`, w.Body.String())

	merge := `{"action":"sync-merge","username":"Alice","data":{
		"decks":[{"id":"d1","name":"Verbs","updatedAt":"2024-05-01T10:00:00Z"}],
		"studyHistory":[{"cardId":"c1","date":"2024-05-01","rating":3}],
		"userProfile":{"theme":"dark"}
	}}`
	want := `{"data":{
		"decks":[{"id":"d1","name":"Verbs","updatedAt":"2024-05-01T10:00:00Z"}],
		"cards":[],
		"studyHistory":[{"cardId":"c1","date":"2024-05-01","rating":3}],
		"userProfile":{"theme":"dark"},
		"userAchievements":[]
	}}`

	w = f.post(t, merge)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, want, w.Body.String())

	w = f.post(t, merge)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, want, w.Body.String())

	w = f.post(t, `{"action":"sync-load","username":"ALICE"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, want, w.Body.String())

	w = f.post(t, `{"action":"auth-login","username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Contains(t, string(login.Data), `"Verbs"`)
}

func TestSyncMerge_Validation(t *testing.T) {
	f := newFixture(t, fakeLLM{})
	require.Equal(t, http.StatusCreated, f.post(t, `{"action":"auth-register","username":"alice","password":"pw"}`).Code)

	w := f.post(t, `{"action":"sync-merge","username":"alice"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"data: is required"}`, w.Body.String())

	w = f.post(t, `{"action":"sync-merge","username":"alice","data":{"cards":[{"front":"x"}]}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"cards[0].id: is required"}`, w.Body.String())

	w = f.post(t, `{"action":"sync-load"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpstreamActions(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	w := f.post(t, `{"action":"generate","prompt":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"echo: hi","model":"m","usage":{"total_tokens":3}}`, w.Body.String())

	w = f.post(t, `{"action":"dictionary-lookup","word":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"word":"hello","entries":[{"word":"hello"}]}`, w.Body.String())

	w = f.post(t, `{"action":"dictionary-lookup","word":"zzz"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"dictionary request failed","detail":"No Definitions Found"}`, w.Body.String())

	w = f.post(t, `{"action":"dictionary-lookup"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post(t, `{"action":"translate-lookup","text":"hello","from":"en","to":"es"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"hola","match":0,"source":"en","target":"es","reliable":false,"alternatives":[]}`, w.Body.String())
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "status relayed",
			err:        &common.UpstreamError{Service: "llm", Status: http.StatusTooManyRequests, Detail: "rate limited"},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"llm request failed","detail":"rate limited"}`,
		},
		{
			name:       "transport failure",
			err:        &common.UpstreamError{Service: "llm", Err: errors.New("dial tcp: refused")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"llm request failed","detail":"dial tcp: refused"}`,
		},
		{
			name:       "unexpected error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal server error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeLLM{err: tt.err})
			w := f.post(t, `{"action":"generate","prompt":"hi"}`)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestFetchAudio(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	w := f.post(t, `{"action":"fetch-audio","url":"https://cdn.example/hello.mp3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ID3-bytes", w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	w = f.post(t, `{"action":"fetch-audio","url":"https://cdn.example/missing.mp3"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordsActionLabel(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	f.post(t, `{"action":"ping"}`)
	f.post(t, `{"action":"sync-merge","username":"ghost","data":{}}`)

	assert.Equal(t, []recordedRequest{
		{"ping", http.StatusOK},
		{"sync-merge", http.StatusNotFound},
	}, f.recorder.seen)
}

func TestRecoversFromPanic(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post(t, `{"action":"generate","prompt":"hi"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestRouter_HealthAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	h := NewHandler(nil, nil, nil, nil, nil, nil, logging.Nop())
	r := NewRouter(h, RouterOptions{
		Logger:         logging.Nop(),
		Backend:        "kv",
		StaticDir:      dir,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"kv"}`, w.Body.String())

	w = get("/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/missing.js").Code)
	assert.Equal(t, "# metrics", get("/metrics").Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newFixture(t, fakeLLM{})

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestFetchAudio_SlowStreamArrivesWhole(t *testing.T) {
	audioSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("first-chunk"))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("second-chunk"))
	}))
	defer audioSrv.Close()

	audio := upstream.NewAudioFetcher(upstream.NewHTTPClient(100*time.Millisecond), nil)
	h := NewHandler(nil, nil, nil, nil, nil, audio, logging.Nop())
	r := NewRouter(h, RouterOptions{Logger: logging.Nop(), Backend: "file"})

	body := `{"action":"fetch-audio","url":"` + audioSrv.URL + `/word.mp3"}`
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "first-chunksecond-chunk", w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
}
