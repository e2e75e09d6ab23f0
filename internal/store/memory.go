package store

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// MinSalience is the floor below which a memory row is deleted on decay.
	MinSalience = 0.1
	// DecayFactor is the per-hour multiplicative decay applied to salience.
	DecayFactor = 0.98
	// DefaultTouchDelta is the salience bump applied when a memory surfaces
	// in a built context.
	DefaultTouchDelta = 0.1
	// MaxSalience is the ceiling touch never exceeds.
	MaxSalience = 5.0
)

// MemorySector distinguishes episodic (raw turn) from semantic (extracted
// fact) memory rows.
type MemorySector string

const (
	SectorSemantic MemorySector = "semantic"
	SectorEpisodic MemorySector = "episodic"
)

// MemoryEntry is a single persisted memory row.
type MemoryEntry struct {
	ID         string
	ChatID     int64
	TopicKey   string
	Content    string
	Sector     MemorySector
	Salience   float64
	CreatedAt  time.Time
	AccessedAt time.Time
}

// InsertMemory inserts a new memory row with the given sector and default
// salience 1.0, returning the generated id.
func (s *Store) InsertMemory(chatID int64, content string, sector MemorySector) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO memory_entries (id, chat_id, content, sector, salience, created_at, accessed_at)
		VALUES (?, ?, ?, ?, 1.0, ?, ?)
	`, id, chatID, content, string(sector), now.Unix(), now.Unix())
	if err != nil {
		return "", fmt.Errorf("inserting memory for chat %d: %w", chatID, err)
	}
	return id, nil
}

// DeleteMemory removes a memory row by id; the FTS index is kept in sync
// atomically by the schema's delete trigger.
func (s *Store) DeleteMemory(id string) error {
	if _, err := s.db.Exec(`DELETE FROM memory_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	return nil
}

// TouchMemory bumps a memory's salience by delta (capped at MaxSalience)
// and refreshes accessed_at. delta <= 0 uses DefaultTouchDelta.
func (s *Store) TouchMemory(id string, delta float64) error {
	if delta <= 0 {
		delta = DefaultTouchDelta
	}
	_, err := s.db.Exec(`
		UPDATE memory_entries
		SET salience = MIN(salience + ?, ?), accessed_at = ?
		WHERE id = ?
	`, delta, MaxSalience, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("touching memory %s: %w", id, err)
	}
	return nil
}

// SearchMemory runs a full-text search over content for chatID, ordered by
// FTS rank, capped at limit rows. An empty or fully-filtered query yields
// an empty result without touching the index.
func (s *Store) SearchMemory(chatID int64, query string, limit int) ([]MemoryEntry, error) {
	normalized := normalizeFTSQuery(query)
	if normalized == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT m.id, m.chat_id, m.topic_key, m.content, m.sector, m.salience, m.created_at, m.accessed_at
		FROM memory_entries_fts f
		JOIN memory_entries m ON m.rowid = f.rowid
		WHERE f.content MATCH ? AND m.chat_id = ?
		ORDER BY f.rank
		LIMIT ?
	`, normalized, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching memory for chat %d: %w", chatID, err)
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

// RecentMemory returns the chatID's memories ordered by accessed_at DESC,
// capped at limit rows.
func (s *Store) RecentMemory(chatID int64, limit int) ([]MemoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, topic_key, content, sector, salience, created_at, accessed_at
		FROM memory_entries
		WHERE chat_id = ?
		ORDER BY accessed_at DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent memory for chat %d: %w", chatID, err)
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

// CountMemory returns the total number of memory rows for a chat.
func (s *Store) CountMemory(chatID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_entries WHERE chat_id = ?`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting memory for chat %d: %w", chatID, err)
	}
	return count, nil
}

// PruneExcessMemory deletes the least salient, oldest-accessed rows for a
// chat until the count is at most maxCount, returning the number deleted.
func (s *Store) PruneExcessMemory(chatID int64, maxCount int) (int, error) {
	count, err := s.CountMemory(chatID)
	if err != nil {
		return 0, err
	}
	excess := count - maxCount
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.db.Exec(`
		DELETE FROM memory_entries
		WHERE id IN (
			SELECT id FROM memory_entries
			WHERE chat_id = ?
			ORDER BY salience ASC, accessed_at ASC
			LIMIT ?
		)
	`, chatID, excess)
	if err != nil {
		return 0, fmt.Errorf("pruning excess memory for chat %d: %w", chatID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DecayResult reports the outcome of a decay sweep.
type DecayResult struct {
	Decayed int
	Deleted int
}

// Decay applies the exponential salience decay to every memory row older
// than 24h, in one transaction: new_salience = salience * DecayFactor ^
// hours_since_last_access. Rows that fall below MinSalience are deleted;
// rows whose salience materially changes are updated; everything else is
// left untouched.
func (s *Store) Decay(now time.Time) (DecayResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return DecayResult{}, fmt.Errorf("beginning decay transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := now.Add(-24 * time.Hour).Unix()
	rows, err := tx.Query(`
		SELECT id, salience, accessed_at FROM memory_entries WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return DecayResult{}, fmt.Errorf("querying decay candidates: %w", err)
	}

	type row struct {
		id         string
		salience   float64
		accessedAt int64
	}
	var candidates []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.salience, &r.accessedAt); err != nil {
			rows.Close()
			return DecayResult{}, fmt.Errorf("scanning decay candidate: %w", err)
		}
		candidates = append(candidates, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DecayResult{}, fmt.Errorf("iterating decay candidates: %w", err)
	}

	var result DecayResult
	for _, r := range candidates {
		hoursSinceAccess := now.Sub(time.Unix(r.accessedAt, 0)).Hours()
		if hoursSinceAccess < 0 {
			hoursSinceAccess = 0
		}
		newSalience := r.salience * math.Pow(DecayFactor, hoursSinceAccess)

		if newSalience < MinSalience {
			if _, err := tx.Exec(`DELETE FROM memory_entries WHERE id = ?`, r.id); err != nil {
				return DecayResult{}, fmt.Errorf("deleting decayed memory %s: %w", r.id, err)
			}
			result.Deleted++
			continue
		}
		if newSalience < r.salience-0.001 {
			if _, err := tx.Exec(`UPDATE memory_entries SET salience = ? WHERE id = ?`, newSalience, r.id); err != nil {
				return DecayResult{}, fmt.Errorf("updating decayed memory %s: %w", r.id, err)
			}
			result.Decayed++
		}
	}

	if err := tx.Commit(); err != nil {
		return DecayResult{}, fmt.Errorf("committing decay transaction: %w", err)
	}
	return result, nil
}

func scanMemoryRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]MemoryEntry, error) {
	var out []MemoryEntry
	for rows.Next() {
		var (
			m          MemoryEntry
			topicKey   *string
			createdAt  int64
			accessedAt int64
			sector     string
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &topicKey, &m.Content, &sector, &m.Salience, &createdAt, &accessedAt); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		if topicKey != nil {
			m.TopicKey = *topicKey
		}
		m.Sector = MemorySector(sector)
		m.CreatedAt = time.Unix(createdAt, 0)
		m.AccessedAt = time.Unix(accessedAt, 0)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memory rows: %w", err)
	}
	return out, nil
}
