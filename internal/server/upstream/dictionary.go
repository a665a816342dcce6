package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

// DictionaryClient looks words up in a dictionaryapi.dev-compatible API:
// GET {base}/{lang}/{word}.
type DictionaryClient struct {
	caller
	baseURL string
}

func NewDictionaryClient(baseURL string, client *http.Client, recorder Recorder) *DictionaryClient {
	return &DictionaryClient{
		caller:  newCaller("dictionary", client, recorder),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Lookup returns the upstream entries unchanged. lang defaults to "en".
func (c *DictionaryClient) Lookup(ctx context.Context, word, lang string) (json.RawMessage, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, common.NewValidationError("word", "is required")
	}
	if lang == "" {
		lang = "en"
	}

	target := c.baseURL + "/" + url.PathEscape(lang) + "/" + url.PathEscape(word)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, c.invalid("malformed dictionary response")
	}
	return entries, nil
}
