// Package generate turns a participant's prompt into game content. The
// completer produces text or an image URL; the service wraps the result in a
// Generation message and appends it to the room's log, where the host picks
// it up like any other client submission.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kmorel/fibbit/internal/game/variant"
)

// Completion is what a completer produced for one request.
type Completion struct {
	Text string
	URL  string
}

// Completer fulfills a single generation request.
type Completer interface {
	Complete(ctx context.Context, req variant.GenerationRequest) (Completion, error)
}

// HTTPCompleter calls an external generation API over HTTP.
type HTTPCompleter struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewHTTPCompleter builds a completer against baseURL.
func NewHTTPCompleter(baseURL string) *HTTPCompleter {
	return &HTTPCompleter{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

// SetHeader adds a header to every outgoing request, typically authorization.
func (c *HTTPCompleter) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout overrides the per-request timeout.
func (c *HTTPCompleter) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

type completionRequest struct {
	Kind       string `json:"kind"`
	Prompt     string `json:"prompt"`
	ListPrefix string `json:"list_prefix,omitempty"`
}

type completionResponse struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func (c *HTTPCompleter) Complete(ctx context.Context, req variant.GenerationRequest) (Completion, error) {
	body, err := json.Marshal(completionRequest{
		Kind:       string(req.Kind),
		Prompt:     req.Prompt,
		ListPrefix: req.ListPrefix,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return Completion{}, fmt.Errorf("generation API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, fmt.Errorf("decode completion response: %w", err)
	}
	return Completion{Text: out.Text, URL: out.URL}, nil
}

var _ Completer = (*HTTPCompleter)(nil)
