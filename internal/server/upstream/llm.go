package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

// GenerateRequest is the payload of the generate action.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	JSON        bool     `json:"json,omitempty"`
}

// GenerateResponse is the text produced by the model.
type GenerateResponse struct {
	Text  string          `json:"text"`
	Model string          `json:"model"`
	Usage json.RawMessage `json:"usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

// LLMClient calls an OpenAI-compatible /chat/completions endpoint.
type LLMClient struct {
	caller
	baseURL string
	apiKey  string
	model   string
}

// NewLLMClient returns a client for baseURL. model is used when a request
// does not name one.
func NewLLMClient(baseURL, apiKey, model string, client *http.Client, recorder Recorder) *LLMClient {
	return &LLMClient{
		caller:  newCaller("llm", client, recorder),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

// Generate sends the prompt as a single user message, preceded by the
// optional system message.
func (c *LLMClient) Generate(ctx context.Context, in GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, common.NewValidationError("prompt", "is required")
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	}
	if in.Model != "" {
		body.Model = in.Model
	}
	if in.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: in.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: in.Prompt})
	if in.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.invalid("malformed completion response")
	}
	if len(out.Choices) == 0 {
		return nil, c.invalid("completion has no choices")
	}

	model := out.Model
	if model == "" {
		model = body.Model
	}
	usage := out.Usage
	if len(usage) == 0 {
		usage = json.RawMessage("null")
	}

	return &GenerateResponse{
		Text:  out.Choices[0].Message.Content,
		Model: model,
		Usage: usage,
	}, nil
}
