package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InteractionType enumerates the kinds of logged contact interactions.
type InteractionType string

const (
	InteractionEmail   InteractionType = "email"
	InteractionMeeting InteractionType = "meeting"
	InteractionCall    InteractionType = "call"
	InteractionNote    InteractionType = "note"
	InteractionOther   InteractionType = "other"
)

// InteractionSource distinguishes manually logged interactions from ones
// inferred automatically from webhook replies.
type InteractionSource string

const (
	SourceManual InteractionSource = "manual"
	SourceAuto   InteractionSource = "auto"
)

// Contact is a single person record, scoped to a chat.
type Contact struct {
	ID               string
	ChatID           int64
	Name             string
	Email            string
	Phone            string
	Company          string
	Role             string
	Notes            string
	PhotoPath        string
	Source           string
	FirstSeen        time.Time
	LastContact      time.Time
	InteractionCount int
	UpdatedAt        time.Time
}

// UpsertContact inserts or updates a contact, keyed by (chat_id, email)
// when email is present, otherwise by (chat_id, lower(name)).
func (s *Store) UpsertContact(c Contact) (string, error) {
	existingID, err := s.findContactID(c.ChatID, c.Email, c.Name)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if existingID == "" {
		c.ID = uuid.NewString()
		c.FirstSeen = now
		c.LastContact = now
		c.UpdatedAt = now
		_, err := s.db.Exec(`
			INSERT INTO contacts (id, chat_id, name, email, phone, company, role, notes, photo_path, source, first_seen, last_contact, interaction_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		`, c.ID, c.ChatID, c.Name, nullableString(c.Email), nullableString(c.Phone), nullableString(c.Company),
			nullableString(c.Role), nullableString(c.Notes), nullableString(c.PhotoPath), c.Source,
			now.Unix(), now.Unix(), now.Unix())
		if err != nil {
			return "", fmt.Errorf("inserting contact for chat %d: %w", c.ChatID, err)
		}
		return c.ID, nil
	}

	_, err = s.db.Exec(`
		UPDATE contacts SET name = ?, phone = COALESCE(?, phone), company = COALESCE(?, company),
			role = COALESCE(?, role), notes = COALESCE(?, notes), photo_path = COALESCE(?, photo_path),
			last_contact = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, nullableString(c.Phone), nullableString(c.Company), nullableString(c.Role),
		nullableString(c.Notes), nullableString(c.PhotoPath), now.Unix(), now.Unix(), existingID)
	if err != nil {
		return "", fmt.Errorf("updating contact %s: %w", existingID, err)
	}
	return existingID, nil
}

func (s *Store) findContactID(chatID int64, email, name string) (string, error) {
	var id string
	var err error
	if email != "" {
		err = s.db.QueryRow(`SELECT id FROM contacts WHERE chat_id = ? AND email = ?`, chatID, email).Scan(&id)
	} else {
		err = s.db.QueryRow(`SELECT id FROM contacts WHERE chat_id = ? AND lower(name) = lower(?)`, chatID, name).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up contact for chat %d: %w", chatID, err)
	}
	return id, nil
}

// SearchContacts runs a full-text search over name/email/company/role/notes.
func (s *Store) SearchContacts(chatID int64, query string, limit int) ([]Contact, error) {
	normalized := normalizeFTSQuery(query)
	if normalized == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.chat_id, c.name, c.email, c.phone, c.company, c.role, c.notes, c.photo_path,
			c.source, c.first_seen, c.last_contact, c.interaction_count, c.updated_at
		FROM contacts_fts f
		JOIN contacts c ON c.rowid = f.rowid
		WHERE f MATCH ? AND c.chat_id = ?
		ORDER BY f.rank
		LIMIT ?
	`, normalized, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching contacts for chat %d: %w", chatID, err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func scanContacts(rows *sql.Rows) ([]Contact, error) {
	var out []Contact
	for rows.Next() {
		var (
			c                                          Contact
			email, phone, company, role, notes, photo *string
			firstSeen, lastContact, updatedAt          int64
		)
		err := rows.Scan(&c.ID, &c.ChatID, &c.Name, &email, &phone, &company, &role, &notes, &photo,
			&c.Source, &firstSeen, &lastContact, &c.InteractionCount, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		c.Email = deref(email)
		c.Phone = deref(phone)
		c.Company = deref(company)
		c.Role = deref(role)
		c.Notes = deref(notes)
		c.PhotoPath = deref(photo)
		c.FirstSeen = time.Unix(firstSeen, 0)
		c.LastContact = time.Unix(lastContact, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RecordInteraction logs an interaction against a contact and bumps its
// interaction_count/last_contact. The interaction row is removed by cascade
// when the contact itself is deleted.
func (s *Store) RecordInteraction(contactID string, chatID int64, kind InteractionType, source InteractionSource, summary string, date time.Time) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning interaction transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO interactions (id, chat_id, contact_id, type, source, summary, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, chatID, contactID, string(kind), string(source), nullableString(summary), date.Unix(), now.Unix())
	if err != nil {
		return "", fmt.Errorf("inserting interaction for contact %s: %w", contactID, err)
	}

	_, err = tx.Exec(`
		UPDATE contacts SET interaction_count = interaction_count + 1, last_contact = ?, updated_at = ? WHERE id = ?
	`, now.Unix(), now.Unix(), contactID)
	if err != nil {
		return "", fmt.Errorf("updating contact %s after interaction: %w", contactID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing interaction transaction: %w", err)
	}
	return id, nil
}

// DeleteContact removes a contact and, via ON DELETE CASCADE, every
// interaction attached to it.
func (s *Store) DeleteContact(id string) error {
	if _, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting contact %s: %w", id, err)
	}
	return nil
}

// ParseContactBlock extracts "key: value" lines of the form name:/email:/
// company: from a webhook reply body, used to opportunistically upsert
// contacts surfaced by automation replies.
func ParseContactBlock(body string) (name, email, company string) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "name:"):
			name = strings.TrimSpace(line[len("name:"):])
		case strings.HasPrefix(lower, "email:"):
			email = strings.TrimSpace(line[len("email:"):])
		case strings.HasPrefix(lower, "company:"):
			company = strings.TrimSpace(line[len("company:"):])
		}
	}
	return name, email, company
}
