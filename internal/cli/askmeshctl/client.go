package askmeshctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sessionHeader = "X-Session-ID"

type client struct {
	baseURL   string
	apiKey    string
	sessionID string
	http      *http.Client
}

// requestError is a failure talking to the API, as opposed to a usage error.
type requestError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *requestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	if message := errorMessage(e.Body); message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *requestError) Unwrap() error {
	return e.Err
}

type response struct {
	StatusCode int
	SessionID  string
	Body       []byte
}

func (c *client) do(ctx context.Context, method, path string, payload any) (response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return response{}, &requestError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if id := strings.TrimSpace(c.sessionID); id != "" {
		req.Header.Set(sessionHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, &requestError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, &requestError{Err: err}
	}
	out := response{StatusCode: resp.StatusCode, SessionID: resp.Header.Get(sessionHeader), Body: raw}
	if resp.StatusCode >= 400 {
		return out, &requestError{StatusCode: resp.StatusCode, Body: raw}
	}
	return out, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func errorMessage(raw []byte) string {
	var envelope struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.ErrorCode == "" {
		return ""
	}
	return envelope.ErrorCode + ": " + envelope.Message
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}
