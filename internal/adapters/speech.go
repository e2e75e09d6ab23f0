package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// maxSynthesizeChars is the text length ceiling applied before a
// synthesis request is sent.
const maxSynthesizeChars = 5000

// SpeechClient implements both SpeechToText and TextToSpeech against a
// single provider key, the way the teacher's provider clients each wrap
// one http.Client with a fixed timeout.
type SpeechClient struct {
	apiKey  string
	voiceID string
	client  *http.Client
}

// NewSpeechClient builds a client. An empty apiKey disables both
// directions.
func NewSpeechClient(apiKey, voiceID string) *SpeechClient {
	return &SpeechClient{
		apiKey:  apiKey,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key was provided.
func (s *SpeechClient) Configured() bool {
	return s.apiKey != ""
}

// Transcribe uploads audio and returns the transcript text.
func (s *SpeechClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("speech-to-text not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "voice.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.speech.example/v1/transcribe", &buf)
	if err != nil {
		return "", redactErr(err, s.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", redactErr(err, s.apiKey)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("transcription failed: %s", redact(string(body), s.apiKey))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}
	return parsed.Text, nil
}

// Synthesize turns text into audio bytes using the configured voice. Text
// longer than maxSynthesizeChars is truncated before the request is sent.
func (s *SpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("text-to-speech not configured")
	}
	if len(text) > maxSynthesizeChars {
		text = text[:maxSynthesizeChars]
	}

	payload, _ := json.Marshal(map[string]string{"text": text, "voice_id": s.voiceID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.speech.example/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, redactErr(err, s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, redactErr(err, s.apiKey)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("synthesis failed: %s", redact(string(body), s.apiKey))
	}
	return body, nil
}

func redactErr(err error, secret string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", redact(err.Error(), secret))
}
