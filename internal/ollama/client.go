package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/schema"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3"

	bodySnippetLimit = 512
)

type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

type Client struct {
	host   string
	model  string
	client *http.Client
}

// TransportError reports that the model server could not be reached or
// answered with a non-2xx status.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: model server returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = DefaultHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return nil, fmt.Errorf("ollama host must be an http(s) URL, got %q", cfg.Host)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		host:   host,
		model:  model,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Generate posts the prompt to /api/generate and returns the whole response
// body. The document variant asks the server for JSON output and a single
// envelope; the relational variant lets the server stream newline-delimited
// fragments, which are buffered here and reassembled by the extractor.
func (c *Client) Generate(ctx context.Context, prompt string, variant schema.Variant) ([]byte, error) {
	payload := generateRequest{Model: c.model, Prompt: prompt}
	switch variant {
	case schema.VariantMongo:
		payload.Stream = false
		payload.Format = "json"
	case schema.VariantSQL:
		payload.Stream = true
	default:
		return nil, fmt.Errorf("unknown dataset variant %q", variant)
	}

	start := time.Now()
	body, err := c.post(ctx, "/api/generate", payload)
	observability.ObserveInference(string(variant), time.Since(start), err)
	return body, err
}

// Ping checks that the server is up by listing local models.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "ping model server", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: "ping model server", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request generate", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read generate response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         "request generate",
			StatusCode: resp.StatusCode,
			Body:       snippet(raw),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return raw, nil
}

func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > bodySnippetLimit {
		return text[:bodySnippetLimit] + "..."
	}
	return text
}
