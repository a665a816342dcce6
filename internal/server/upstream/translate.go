package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

// Translation is the normalized result of a translate-lookup.
type Translation struct {
	Text         string   `json:"text"`
	Match        float64  `json:"match"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	Reliable     bool     `json:"reliable"`
	Alternatives []string `json:"alternatives"`
}

// reliableMatch is the match score from which a translation is marked
// reliable.
const reliableMatch = 0.8

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string  `json:"translatedText"`
		Match          float64 `json:"match"`
	} `json:"responseData"`
	ResponseStatus  flexInt `json:"responseStatus"`
	ResponseDetails string  `json:"responseDetails"`
	Matches         []struct {
		Translation string `json:"translation"`
	} `json:"matches"`
}

// TranslateClient queries a MyMemory-compatible API:
// GET {base}/get?q=...&langpair=from|to.
type TranslateClient struct {
	caller
	baseURL string
}

func NewTranslateClient(baseURL string, client *http.Client, recorder Recorder) *TranslateClient {
	return &TranslateClient{
		caller:  newCaller("translate", client, recorder),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Translate translates text from one language to another. from and to
// default to "en" and "ru".
func (c *TranslateClient) Translate(ctx context.Context, text, from, to string) (*Translation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, common.NewValidationError("text", "is required")
	}
	if from == "" {
		from = "en"
	}
	if to == "" {
		to = "ru"
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", from+"|"+to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, c.invalid("malformed translation response")
	}

	// The service reports quota and language errors in the body with a 200.
	if status := int(data.ResponseStatus); status != 0 && status != http.StatusOK {
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return nil, &common.UpstreamError{Service: c.service, Status: status, Detail: data.ResponseDetails}
	}

	alternatives := []string{}
	for _, m := range data.Matches {
		if m.Translation != "" && m.Translation != data.ResponseData.TranslatedText {
			alternatives = append(alternatives, m.Translation)
		}
	}

	return &Translation{
		Text:         data.ResponseData.TranslatedText,
		Match:        data.ResponseData.Match,
		Source:       from,
		Target:       to,
		Reliable:     data.ResponseData.Match >= reliableMatch,
		Alternatives: alternatives,
	}, nil
}
