// Package store is the embedded persistence layer: one SQLite database
// file holding session bindings, memory entries, scheduled tasks, the
// conversation log, the token-usage ledger, and contacts/interactions.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is a process-wide handle over the embedded database. Callers never
// retain pointers into rows; every operation reads or writes through the
// handle directly.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if necessary) the database file at path, enables
// WAL journaling, foreign keys and a 5s busy timeout, applies the schema
// idempotently, and runs an integrity check whose failure is logged but
// never prevents startup.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{db: db, log: log}
	s.checkIntegrity()
	return s, nil
}

func (s *Store) checkIntegrity() {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		s.log.Error("store integrity check failed to run", "error", err)
		return
	}
	if result != "ok" {
		s.log.Error("store integrity check reported problems", "result", result)
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers (like the status command) that need
// to run their own queries outside this package's methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

var ftsAllowed = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// normalizeFTSQuery keeps letters/digits/whitespace, splits on whitespace,
// drops tokens shorter than 2 characters, appends a prefix-match suffix to
// each remaining token, and rejoins with spaces. An empty or fully
// filtered query yields "".
func normalizeFTSQuery(raw string) string {
	cleaned := ftsAllowed.ReplaceAllString(raw, " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens = append(tokens, f+"*")
	}
	return strings.Join(tokens, " ")
}
