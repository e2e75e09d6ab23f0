package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SetSession upserts the chat's session binding. A second call for the
// same chat overwrites the row rather than creating a duplicate.
func (s *Store) SetSession(chatID int64, sessionID string) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (chat_id, session_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET session_id = excluded.session_id, updated_at = excluded.updated_at
	`, chatID, sessionID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("setting session for chat %d: %w", chatID, err)
	}
	return nil
}

// GetSession returns the chat's bound session id, or "" if none is set.
func (s *Store) GetSession(chatID int64) (string, error) {
	var sessionID string
	err := s.db.QueryRow(`SELECT session_id FROM sessions WHERE chat_id = ?`, chatID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting session for chat %d: %w", chatID, err)
	}
	return sessionID, nil
}

// ClearSession removes the chat's session binding, used by the "new chat"
// command.
func (s *Store) ClearSession(chatID int64) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clearing session for chat %d: %w", chatID, err)
	}
	return nil
}
