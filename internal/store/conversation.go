package store

import (
	"fmt"
	"time"
)

// ConversationRole distinguishes the two sides of a logged turn.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ConversationEntry is one logged turn side.
type ConversationEntry struct {
	ID        int64
	ChatID    int64
	SessionID string
	Role      ConversationRole
	Content   string
	CreatedAt time.Time
}

// AppendConversation appends one side of a turn to the log.
func (s *Store) AppendConversation(chatID int64, sessionID string, role ConversationRole, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO conversation_log (chat_id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, chatID, nullableString(sessionID), string(role), content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("appending conversation for chat %d: %w", chatID, err)
	}
	return nil
}

// RecentConversation returns the most recent n log entries for a chat, in
// chronological order (oldest first).
func (s *Store) RecentConversation(chatID int64, n int) ([]ConversationEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, session_id, role, content, created_at
		FROM conversation_log
		WHERE chat_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, chatID, n)
	if err != nil {
		return nil, fmt.Errorf("listing recent conversation for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var out []ConversationEntry
	for rows.Next() {
		var (
			e         ConversationEntry
			sessionID *string
			createdAt int64
			role      string
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &sessionID, &role, &e.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		if sessionID != nil {
			e.SessionID = *sessionID
		}
		e.Role = ConversationRole(role)
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneConversation keeps only the most recent keep rows per chat id,
// deleting the rest. Used by the hourly decay sweep (keep=500).
func (s *Store) PruneConversation(keep int) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM conversation_log
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY chat_id ORDER BY created_at DESC) AS rn
				FROM conversation_log
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning conversation log: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
