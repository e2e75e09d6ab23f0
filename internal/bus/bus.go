// Package bus decouples the Telegram channel from the chat orchestrator:
// the channel publishes inbound updates and the orchestrator consumes them
// without either side importing the other. Outbound replies go the other
// way, straight from the orchestrator to adapters.Transport, since the
// reply pipeline needs a synchronous result per chunk (retry-after,
// splitting, voice fallback) that a publish/subscribe hop would just have
// to thread back through anyway.
package bus

import (
	"context"
	"time"
)

// Kind identifies the shape of an inbound update.
type Kind string

const (
	KindText     Kind = "text"
	KindVoice    Kind = "voice"
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

// InboundMessage represents one update from the Telegram channel to the
// orchestrator.
type InboundMessage struct {
	ChatID    int64
	Kind      Kind
	Text      string
	FilePath  string
	FileName  string
	Timestamp time.Time
}

// MessageBus decouples the channel from the orchestrator core.
type MessageBus struct {
	inbound chan *InboundMessage
}

// NewMessageBus creates a new message bus with a bounded backlog.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound: make(chan *InboundMessage, 100),
	}
}

// PublishInbound sends an update from the channel to the orchestrator.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until an update is available or ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InboundSize returns the number of pending inbound updates.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}
