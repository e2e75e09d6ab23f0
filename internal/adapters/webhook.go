package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// WebhookClient invokes an n8n-style automation endpoint by path, the way
// the teacher's provider clients wrap a single http.Client with a fixed
// timeout.
type WebhookClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWebhookClient builds a client. An empty baseURL means the webhook
// adapter is disabled (Configured() returns false).
func NewWebhookClient(baseURL, apiKey string) *WebhookClient {
	return &WebhookClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a base URL was provided.
func (w *WebhookClient) Configured() bool {
	return w.baseURL != ""
}

// Invoke POSTs payload to baseURL/<sanitized path>. Every path segment
// must be non-empty and match [A-Za-z0-9_-]; a malformed path is rejected
// before any request is built.
func (w *WebhookClient) Invoke(ctx context.Context, requestPath string, payload map[string]any) (Result, error) {
	if !w.Configured() {
		return Result{OK: false, Error: "webhook not configured"}, nil
	}

	clean, err := sanitizeWebhookPath(requestPath)
	if err != nil {
		return Result{OK: false, Error: err.Error()}, nil
	}
	url := w.baseURL + "/" + clean

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{OK: false, Error: "invalid payload"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{OK: false, Error: redact(err.Error(), w.apiKey)}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{OK: false, Error: redact(err.Error(), w.apiKey)}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: redact(fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, respBody), w.apiKey)}, nil
	}

	text := string(respBody)
	var data any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return Result{OK: true, Body: text}, nil
	}
	return Result{OK: true, Body: text, Data: data}, nil
}

var webhookSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// sanitizeWebhookPath validates every "/"-separated segment against
// [A-Za-z0-9_-]; a segment that is empty, ".", "..", or contains any other
// character (including "\") is rejected before any request is built.
func sanitizeWebhookPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", fmt.Errorf("empty webhook path")
	}
	segments := strings.Split(p, "/")
	for _, seg := range segments {
		if !webhookSegmentPattern.MatchString(seg) {
			return "", fmt.Errorf("invalid webhook path segment %q", seg)
		}
	}
	return strings.Join(segments, "/"), nil
}

// redact removes a known secret value from an error string before it can
// reach a log line or chat reply.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[redacted]")
}
