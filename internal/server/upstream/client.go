// Package upstream contains the HTTP clients for the external services the
// API proxies: an OpenAI-compatible chat completion endpoint, a dictionary
// API, a translation memory API and arbitrary audio URLs.
//
// Calls are made once. Non-2xx responses and transport failures are returned
// as *common.UpstreamError.
package upstream

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

// Call outcomes reported to Recorder.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

const maxErrorDetail = 2048

// Recorder receives one outcome per upstream call.
type Recorder interface {
	RecordUpstream(service, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpstream(string, string) {}

// NewHTTPClient returns the client shared by the upstream callers. It sets no
// overall timeout, so a long audio stream is never cut off mid-body; calls
// end with the request context. A positive headerTimeout limits only the wait
// for response headers.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if headerTimeout > 0 {
		transport.ResponseHeaderTimeout = headerTimeout
	}
	return &http.Client{Transport: transport}
}

type caller struct {
	service  string
	client   *http.Client
	recorder Recorder
}

func newCaller(service string, client *http.Client, recorder Recorder) caller {
	if client == nil {
		client = http.DefaultClient
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return caller{service: service, client: client, recorder: recorder}
}

// do sends req and returns the response when the status is 2xx. Otherwise
// the body is drained into the error detail and closed.
func (c caller) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		c.recorder.RecordUpstream(c.service, OutcomeTransportError)
		return nil, &common.UpstreamError{Service: c.service, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		c.recorder.RecordUpstream(c.service, OutcomeHTTPError)
		return nil, &common.UpstreamError{
			Service: c.service,
			Status:  resp.StatusCode,
			Detail:  strings.TrimSpace(string(detail)),
		}
	}

	c.recorder.RecordUpstream(c.service, OutcomeOK)
	return resp, nil
}

// invalid reports a well-formed response the client cannot use.
func (c caller) invalid(detail string) error {
	return &common.UpstreamError{Service: c.service, Status: http.StatusBadGateway, Detail: detail}
}
