package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/scalytics/telegramd/internal/bus"
)

// Run consumes inbound updates from b until ctx is cancelled, admitting,
// rate-limiting and dispatching each one. It is meant to be run as the
// main loop goroutine for the lifetime of the process.
func (o *Orchestrator) Run(ctx context.Context, b *bus.MessageBus) {
	for {
		msg, err := b.ConsumeInbound(ctx)
		if err != nil {
			return
		}
		o.handleInbound(ctx, msg)
	}
}

func (o *Orchestrator) handleInbound(ctx context.Context, msg *bus.InboundMessage) {
	if !o.IsAllowed(msg.ChatID) {
		o.log.Warn("rejected message from chat not on the allow-list", "chat_id", msg.ChatID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		if !o.rate.Probe(msg.ChatID, nowFunc()) {
			o.deliverText(ctx, msg.ChatID, "Too many messages, slow down a little.")
			return
		}
		o.HandleCommand(ctx, msg.ChatID, text)
		return
	}

	if !o.rate.Allow(msg.ChatID, nowFunc()) {
		o.deliverText(ctx, msg.ChatID, "Too many messages, slow down a little.")
		return
	}

	forceVoice := false
	switch msg.Kind {
	case bus.KindVoice:
		transcript, err := o.transcribeVoice(ctx, msg)
		if err != nil {
			o.log.Warn("voice transcription failed", "chat_id", msg.ChatID, "error", err)
			o.deliverText(ctx, msg.ChatID, "Could not transcribe that voice message.")
			return
		}
		text = "[Voice transcribed]: " + transcript
		forceVoice = wantsVoiceReply(transcript)
	case bus.KindPhoto:
		text = fmt.Sprintf("The user uploaded a photo, saved at %s. %s", msg.FilePath, msg.Text)
	case bus.KindDocument:
		text = fmt.Sprintf("The user uploaded a document named %q, saved at %s. %s", msg.FileName, msg.FilePath, msg.Text)
	}

	if text == "" {
		return
	}

	go o.RunTurn(ctx, msg.ChatID, text, turnOptions{forceVoice: forceVoice})
}

func (o *Orchestrator) transcribeVoice(ctx context.Context, msg *bus.InboundMessage) (string, error) {
	if o.stt == nil || !o.stt.Configured() {
		return "", fmt.Errorf("speech-to-text not configured")
	}
	audio, err := readFile(msg.FilePath)
	if err != nil {
		return "", err
	}
	return o.stt.Transcribe(ctx, audio)
}
