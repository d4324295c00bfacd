// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adjudicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/trial-enricher/internal/httputil"
)

// systemPrompt frames every query. The adjudicator must pick labels from the
// offered set and answer in strict JSON.
const systemPrompt = "You annotate clinical-trial registry records. Choose labels only from the list offered in each question. Respond with strict JSON only."

// Caller sends one constrained query to the external service and returns
// the raw response text. Implementations must not retry; the Client owns
// the retry policy.
type Caller interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicMessager is the subset of the Anthropic SDK the caller needs.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCaller implements Caller with the Anthropic Messages API.
type AnthropicCaller struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
}

// NewAnthropicCaller creates a caller for model. The SDK's own retries are
// disabled and timeout bounds each request.
func NewAnthropicCaller(apiKey, model string, timeout time.Duration) *AnthropicCaller {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicCaller{messages: &c.Messages, model: model, maxTokens: 1024}
}

// Complete sends the query with temperature 0.
func (a *AnthropicCaller) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// HTTPCaller implements Caller against a generic JSON endpoint. It posts
// {"model", "temperature", "system", "prompt"} and expects either
// {"output": "<text>"} or the decision object itself.
type HTTPCaller struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPCaller creates a caller posting to baseURL.
func NewHTTPCaller(baseURL, apiKey, model string, timeout time.Duration) *HTTPCaller {
	return &HTTPCaller{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type httpRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
}

// Complete posts the query once. A non-2xx answer becomes a StatusError
// carrying any Retry-After, which the Client honors between attempts.
func (h *HTTPCaller) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(httpRequest{Model: h.model, System: system, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating adjudication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading adjudication response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(data)),
			Wait: httputil.RetryAfter(resp.Header),
		}
	}

	var wrapped struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Output != nil {
		return *wrapped.Output, nil
	}
	return string(data), nil
}
