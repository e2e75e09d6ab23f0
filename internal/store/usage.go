package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UsageEntry is a single turn's token-usage row.
type UsageEntry struct {
	ChatID       int64
	SessionID    string
	InputTokens  int
	OutputTokens int
	CacheRead    int
	CostUSD      float64
	DidCompact   bool
	CreatedAt    time.Time
}

// RecordUsage writes one per-turn usage row.
func (s *Store) RecordUsage(e UsageEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO usage_ledger (chat_id, session_id, input_tokens, output_tokens, cache_read, cost_usd, did_compact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ChatID, nullableString(e.SessionID), e.InputTokens, e.OutputTokens, e.CacheRead, e.CostUSD, boolToInt(e.DidCompact), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("recording usage for chat %d: %w", e.ChatID, err)
	}
	return nil
}

// LastCacheRead returns the most recent cache_read value recorded for a
// session, or 0 if the session has no usage rows.
func (s *Store) LastCacheRead(sessionID string) (int, error) {
	var cacheRead int
	err := s.db.QueryRow(`
		SELECT cache_read FROM usage_ledger WHERE session_id = ? ORDER BY created_at DESC LIMIT 1
	`, sessionID).Scan(&cacheRead)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting last cache read for session %s: %w", sessionID, err)
	}
	return cacheRead, nil
}

// UsageSummary aggregates usage over a time window.
type UsageSummary struct {
	Turns        int
	SumInput     int
	SumOutput    int
	SumCostUSD   float64
}

// SummarizeUsage aggregates a chat's usage rows created since the given
// instant.
func (s *Store) SummarizeUsage(chatID int64, since time.Time) (UsageSummary, error) {
	var summary UsageSummary
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_ledger
		WHERE chat_id = ? AND created_at >= ?
	`, chatID, since.Unix()).Scan(&summary.Turns, &summary.SumInput, &summary.SumOutput, &summary.SumCostUSD)
	if err != nil {
		return UsageSummary{}, fmt.Errorf("summarizing usage for chat %d: %w", chatID, err)
	}
	return summary, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
