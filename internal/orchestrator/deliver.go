package orchestrator

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	interChunkDelay    = 300 * time.Millisecond
	defaultRetryDelay  = 5 * time.Second
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry after (\d+)`)

// deliverText sends text to chatID, splitting into MaxMessageLength chunks
// and pacing sends by interChunkDelay. A rate-limit response is retried
// once after the advertised (or default) delay; a chunk that still fails is
// logged and skipped so the remaining chunks still go out.
func (o *Orchestrator) deliverText(ctx context.Context, chatID int64, text string) {
	for _, chunk := range splitMessage(text) {
		if err := o.transport.SendText(ctx, chatID, chunk); err != nil {
			if delay, ok := retryAfterDelay(err); ok {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
				if err2 := o.transport.SendText(ctx, chatID, chunk); err2 != nil {
					o.log.Warn("reply chunk dropped after retry", "chat_id", chatID, "error", err2)
				}
			} else {
				o.log.Warn("reply chunk failed", "chat_id", chatID, "error", err)
			}
		}
		select {
		case <-time.After(interChunkDelay):
		case <-ctx.Done():
			return
		}
	}
}

// deliverVoice synthesizes text to audio and sends it as a voice message,
// falling back to the plain-text delivery path on synthesis or send
// failure.
func (o *Orchestrator) deliverVoice(ctx context.Context, chatID int64, text string) {
	audio, err := o.tts.Synthesize(ctx, text)
	if err != nil {
		o.log.Warn("tts synthesis failed, falling back to text", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, text)
		return
	}
	if err := o.transport.SendVoice(ctx, chatID, audio); err != nil {
		o.log.Warn("voice send failed, falling back to text", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, text)
	}
}

// retryAfterDelay extracts a "retry after N" seconds hint from an error
// message, defaulting to defaultRetryDelay when the error looks like a
// rate-limit response but carries no explicit hint.
func retryAfterDelay(err error) (time.Duration, bool) {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "too many requests") && !strings.Contains(lower, "rate limit") && !strings.Contains(lower, "retry after") {
		return 0, false
	}
	if m := retryAfterPattern.FindStringSubmatch(msg); m != nil {
		if secs, convErr := strconv.Atoi(m[1]); convErr == nil {
			return time.Duration(secs) * time.Second, true
		}
	}
	return defaultRetryDelay, true
}
