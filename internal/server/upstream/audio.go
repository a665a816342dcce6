package upstream

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

const defaultAudioType = "audio/mpeg"

// Audio is an open upstream audio stream. The caller closes Body.
type Audio struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// AudioFetcher downloads pronunciation audio from absolute http(s) URLs.
type AudioFetcher struct {
	caller
}

func NewAudioFetcher(client *http.Client, recorder Recorder) *AudioFetcher {
	return &AudioFetcher{caller: newCaller("audio", client, recorder)}
}

// Fetch opens rawURL. Missing content types default to audio/mpeg.
func (f *AudioFetcher) Fetch(ctx context.Context, rawURL string) (*Audio, error) {
	if rawURL == "" {
		return nil, common.NewValidationError("url", "is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, common.NewValidationError("url", "must be an absolute http(s) URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.do(req)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultAudioType
	}
	return &Audio{Body: resp.Body, ContentType: contentType, ContentLength: resp.ContentLength}, nil
}
