// Package adapters defines the small external-service contracts the
// orchestrator talks to, and thin HTTP-backed implementations of each:
// transport, speech-to-text, text-to-speech, webhook invocation, and
// image generation. Every implementation applies a uniform timeout and
// redacts credentials from error messages before they can reach a log
// line or a chat reply.
package adapters

import "context"

// Transport is the one chat channel contract the orchestrator drives.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte) error
	SendPhoto(ctx context.Context, chatID int64, image []byte) error
	SetTyping(ctx context.Context, chatID int64) error
}

// SpeechToText transcribes a voice message into text.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Configured() bool
}

// TextToSpeech synthesizes a reply into audio bytes.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Configured() bool
}

// WebhookInvoker calls an external automation endpoint by path.
type WebhookInvoker interface {
	Invoke(ctx context.Context, path string, payload map[string]any) (Result, error)
	Configured() bool
}

// ImageGenerator produces an image from a text prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	Configured() bool
}

// Result is the uniform {ok, data, error?} record every webhook call
// returns; it never propagates as a Go error into the turn pipeline. Body
// is the response text, always populated on success. Data holds the
// parsed JSON value when the body happens to be JSON; it is nil when the
// body is plain text, in which case Body is what the reply shows.
type Result struct {
	OK    bool
	Body  string
	Data  any
	Error string
}
