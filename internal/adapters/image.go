package adapters

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

const maxImagePromptChars = 2000

// ImageClient generates images from text prompts against a single
// provider key and model.
type ImageClient struct {
	apiKey string
	model  string
	client *http.Client
}

// NewImageClient builds a client. An empty apiKey disables generation.
func NewImageClient(apiKey, model string) *ImageClient {
	return &ImageClient{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether an API key was provided.
func (c *ImageClient) Configured() bool {
	return c.apiKey != ""
}

// Generate produces image bytes for prompt, rejecting prompts over
// maxImagePromptChars before making any network call, and classifying
// provider safety/rate-limit rejections distinctly from other failures.
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("image generation not configured")
	}
	if len(prompt) > maxImagePromptChars {
		return nil, fmt.Errorf("prompt exceeds %d characters", maxImagePromptChars)
	}

	payload, _ := json.Marshal(map[string]string{"prompt": prompt, "model": c.model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.image.example/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, redactErr(err, c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, redactErr(err, c.apiKey)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("image provider rate limited this request")
	}
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "safety") {
		return nil, fmt.Errorf("image provider rejected this prompt on safety grounds")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("image generation failed: %s", redact(string(body), c.apiKey))
	}
	return body, nil
}
