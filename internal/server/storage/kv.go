package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
)

// KVStore talks to a REST key-value service with an Upstash-style API:
//
//	GET  {base}/get/{key}  -> {"result": "<value>" | null}
//	POST {base}/set/{key}  body is the value
//
// Requests carry the token as a bearer credential.
type KVStore struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logging.Logger
}

type kvResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// NewKVStore returns a store for baseURL. A nil client means
// http.DefaultClient.
func NewKVStore(baseURL, token string, client *http.Client, logger logging.Logger) *KVStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &KVStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  logger,
	}
}

func (s *KVStore) Name() string { return config.BackendKV }

func (s *KVStore) endpoint(op, key string) string {
	return s.baseURL + "/" + op + "/" + url.PathEscape(key)
}

func (s *KVStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

// Get reads the record for username. A non-2xx response is reported as not
// found; a transport failure is returned as an error.
func (s *KVStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	key := RecordKey(username)

	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint("get", key), nil)
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn(ctx, "kv read failed, treating as missing", "key", key, "status", resp.StatusCode)
		return nil, common.ErrorNotFound
	}

	var body kvResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("kv get %s: decode response: %w", key, err)
	}

	value := bytes.TrimSpace(body.Result)
	if len(value) == 0 || string(value) == "null" {
		return nil, common.ErrorNotFound
	}

	// The service stores strings; tolerate an already-decoded object too.
	if value[0] == '"' {
		var str string
		if err := json.Unmarshal(value, &str); err != nil {
			return nil, fmt.Errorf("kv get %s: %w", key, err)
		}
		value = []byte(str)
	}

	rec := &models.UserRecord{}
	if err := json.Unmarshal(value, rec); err != nil {
		return nil, fmt.Errorf("kv get %s: decode record: %w", key, err)
	}
	return rec, nil
}

// Put writes the record. Any failure is a *common.StoreWriteError.
func (s *KVStore) Put(ctx context.Context, record *models.UserRecord) error {
	key := RecordKey(record.Username)
	fail := func(err error) error {
		return &common.StoreWriteError{Backend: config.BackendKV, Key: key, Err: err}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fail(err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint("set", key), bytes.NewReader(raw))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}
	return nil
}

func (s *KVStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
