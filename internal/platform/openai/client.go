package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kotobalab/kotoba-backend/internal/pkg/httpx"
	"github.com/kotobalab/kotoba-backend/internal/platform/envutil"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// Usage describes what a single completed call consumed. The job layer
// aggregates these per model id.
type Usage struct {
	Model     string
	RequestID string
	TokensIn  int
	TokensOut int
	Latency   time.Duration
}

// Client is the provider surface the rest of the backend depends on: prompts
// in, structured JSON (or text) plus usage out.
type Client interface {
	// GenerateJSON requests a response constrained by a json_schema and
	// decodes it into a map.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, Usage, error)
	GenerateText(ctx context.Context, system, user string) (string, Usage, error)
	Model() string
}

// WithModel returns a client pinned to the given model for generation calls.
// Empty model or nil base returns base unchanged.
func WithModel(base Client, model string) Client {
	model = strings.TrimSpace(model)
	if base == nil || model == "" {
		return base
	}
	if c, ok := base.(*client); ok {
		clone := *c
		clone.model = model
		return &clone
	}
	return base
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.Str("OPENAI_MODEL", "gpt-4o-mini")
	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 120)

	return &client{
		log:        log.With("client", "OpenAI"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: envutil.Int("OPENAI_MAX_RETRIES", 3),
	}, nil
}

func (c *client) Model() string { return c.model }

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}
func (e *openAIHTTPError) HTTPStatusCode() int { return e.StatusCode }

type responsesResult struct {
	ID     string `json:"id"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r *responsesResult) outputText() string {
	var b strings.Builder
	for _, out := range r.Output {
		if out.Type != "message" {
			continue
		}
		for _, part := range out.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, Usage, error) {
	body := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
	}

	text, usage, err := c.generate(ctx, body)
	if err != nil {
		return nil, usage, err
	}

	var out map[string]any
	if uErr := json.Unmarshal([]byte(text), &out); uErr != nil {
		return nil, usage, fmt.Errorf("openai malformed structured output: %w; raw=%s", uErr, truncate(text, 400))
	}
	return out, usage, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, Usage, error) {
	body := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	return c.generate(ctx, body)
}

func (c *client) generate(ctx context.Context, body map[string]any) (string, Usage, error) {
	start := time.Now()
	var res responsesResult
	if err := c.do(ctx, http.MethodPost, "/v1/responses", body, &res); err != nil {
		return "", Usage{Model: c.model, Latency: time.Since(start)}, err
	}
	usage := Usage{
		Model:     c.model,
		RequestID: res.ID,
		TokensIn:  res.Usage.InputTokens,
		TokensOut: res.Usage.OutputTokens,
		Latency:   time.Since(start),
	}
	return res.outputText(), usage, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 2000)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, truncate(string(raw), 400))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
