package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scalytics/telegramd/internal/agentrunner"
	"github.com/scalytics/telegramd/internal/memory"
	"github.com/scalytics/telegramd/internal/queue"
	"github.com/scalytics/telegramd/internal/store"
)

// turnOptions controls the two respects in which a turn's handling differs:
// a respin turn skips memory ingest, and forceVoice asks for a voice reply
// for this turn even when the chat's voice toggle is off.
type turnOptions struct {
	isRespin   bool
	forceVoice bool
}

// RunTurn enqueues one agent turn for chatID through the per-chat serial
// queue and the global concurrency cap, delivers the reply, and records
// usage. It never returns an error to the caller: every failure path is
// logged and still produces a reply or a graceful no-op.
func (o *Orchestrator) RunTurn(ctx context.Context, chatID int64, userMessage string, opts turnOptions) {
	turnCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelFuncs[chatID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		if o.cancelFuncs[chatID] != nil {
			delete(o.cancelFuncs, chatID)
		}
		o.mu.Unlock()
		cancel()
	}()

	stopTyping := o.startTypingIndicator(turnCtx, chatID)
	defer stopTyping()

	memCtx, err := memory.BuildContext(o.store, chatID, userMessage)
	if err != nil {
		o.log.Warn("memory context build failed", "chat_id", chatID, "error", err)
	}
	fullMessage := userMessage
	if memCtx != "" {
		fullMessage = memCtx + "\n\n" + userMessage
	}

	sessionID, err := o.store.GetSession(chatID)
	if err != nil {
		o.log.Warn("session lookup failed", "chat_id", chatID, "error", err)
	}

	chatKey := strconv.FormatInt(chatID, 10)
	result, err := queue.Enqueue(turnCtx, o.queue, chatKey, func(runCtx context.Context) (agentrunner.RunResult, error) {
		return o.runner.Run(runCtx, agentrunner.RunInput{
			Message:   fullMessage,
			SessionID: sessionID,
			OnProgress: func(agentrunner.EventType) {
				_ = o.transport.SetTyping(runCtx, chatID)
			},
		})
	})
	if err != nil {
		o.log.Warn("turn execution failed", "chat_id", chatID, "error", err)
		if isContextExhaustionError(err) {
			o.deliverText(ctx, chatID, o.contextExhaustionReply(sessionID))
			return
		}
		o.deliverText(ctx, chatID, "Sorry, something went wrong processing that.")
		return
	}
	// The runner reports a failed subprocess through result.Error, not err.
	if result.Error != "" && isContextExhaustionError(fmt.Errorf("%s", result.Error)) {
		o.deliverText(ctx, chatID, o.contextExhaustionReply(sessionID))
		return
	}

	if result.SessionID != "" {
		if err := o.store.SetSession(chatID, result.SessionID); err != nil {
			o.log.Warn("session upsert failed", "chat_id", chatID, "error", err)
		}
	}

	if !opts.isRespin {
		if err := memory.Save(o.store, chatID, result.SessionID, userMessage, result.Text); err != nil {
			o.log.Warn("memory ingest failed", "chat_id", chatID, "error", err)
		}
	}

	reply := result.Text
	if result.DidCompact {
		note := "\n\n_Note: the conversation was auto-compacted to stay within context limits."
		if result.PreCompactTokens > 0 {
			note += fmt.Sprintf(" It had grown to about %d tokens first.", result.PreCompactTokens)
		}
		reply += note + "_"
	} else if result.LastCacheRead > ContextWarnThreshold {
		pct := result.LastCacheRead * 100 / ContextWindowTokens
		reply += fmt.Sprintf("\n\n_Note: context usage is around %d%% of the window. Consider /newchat and /respin if replies degrade._", pct)
	}

	o.sendReply(ctx, chatID, reply, result.Error == "", opts.forceVoice)

	if result.Usage != nil {
		entry := store.UsageEntry{
			ChatID:      chatID,
			SessionID:   result.SessionID,
			InputTokens: result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			CacheRead:   result.Usage.CacheReadInputTokens,
			CostUSD:     result.Usage.TotalCostUSD,
			DidCompact:  result.DidCompact,
		}
		if err := o.store.RecordUsage(entry); err != nil {
			o.log.Warn("usage ledger write failed", "chat_id", chatID, "error", err)
		}
	}
}

// isContextExhaustionError reports whether err is the "exited with code 1
// after long sessions" signature §7 calls out as a context-window
// exhaustion indicator, rather than some other subprocess failure.
func isContextExhaustionError(err error) bool {
	return strings.Contains(err.Error(), "exit status 1")
}

// contextExhaustionReply surfaces the last-known cache-read size for
// sessionID plus /newchat + /respin guidance, per §7.
func (o *Orchestrator) contextExhaustionReply(sessionID string) string {
	cacheRead, err := o.store.LastCacheRead(sessionID)
	if err != nil {
		o.log.Warn("last cache read lookup failed", "session_id", sessionID, "error", err)
	}
	return fmt.Sprintf("That session may have run out of context window (last known cache read: %d tokens). Try /newchat to start fresh, or /respin to replay recent context into a new session.", cacheRead)
}

// sendReply routes a finished turn's text to voice or plain delivery.
func (o *Orchestrator) sendReply(ctx context.Context, chatID int64, text string, ok bool, forceVoice bool) {
	wantVoice := ok && o.tts != nil && o.tts.Configured() && (forceVoice || o.voiceModeFor(chatID))
	if wantVoice {
		o.deliverVoice(ctx, chatID, text)
		return
	}
	o.deliverText(ctx, chatID, text)
}

func (o *Orchestrator) voiceModeFor(chatID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voiceMode[chatID]
}

// startTypingIndicator sends an initial typing action and repeats it every
// TypingRefreshMS until the returned stop function is called or ctx ends.
func (o *Orchestrator) startTypingIndicator(ctx context.Context, chatID int64) func() {
	_ = o.transport.SetTyping(ctx, chatID)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(TypingRefreshMS * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = o.transport.SetTyping(ctx, chatID)
			}
		}
	}()
	return func() { close(done) }
}

// Cancel trips the in-flight turn's cancellation handle for chatID, if any.
// It reports whether a request was actually cancelled.
func (o *Orchestrator) Cancel(chatID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.cancelFuncs[chatID]
	if !ok {
		return false
	}
	cancel()
	delete(o.cancelFuncs, chatID)
	return true
}
