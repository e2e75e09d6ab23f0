// Package memory builds per-turn context from persisted memory, ingests
// new turns into it, and runs the periodic decay sweep.
package memory

import (
	"fmt"
	"strings"

	"github.com/scalytics/telegramd/internal/store"
)

const (
	searchTopN = 3
	recentTopN = 5
)

// BuildContext assembles the <memory-context> block for a turn: the top
// search hits for userMsg, plus the most recently touched memories not
// already surfaced by search. Touching a search hit is the block's only
// observed mutation. An empty result yields "".
func BuildContext(s *store.Store, chatID int64, userMsg string) (string, error) {
	hits, err := s.SearchMemory(chatID, userMsg, searchTopN)
	if err != nil {
		return "", fmt.Errorf("searching memory for context: %w", err)
	}
	recent, err := s.RecentMemory(chatID, recentTopN)
	if err != nil {
		return "", fmt.Errorf("listing recent memory for context: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		seen[h.ID] = true
	}
	filteredRecent := recent[:0:0]
	for _, r := range recent {
		if !seen[r.ID] {
			filteredRecent = append(filteredRecent, r)
		}
	}

	for _, h := range hits {
		if err := s.TouchMemory(h.ID, store.DefaultTouchDelta); err != nil {
			return "", fmt.Errorf("touching memory %s: %w", h.ID, err)
		}
	}

	if len(hits) == 0 && len(filteredRecent) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("<memory-context>\n")
	if len(hits) > 0 {
		b.WriteString("## Relevant Memories\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- [%s] %s\n", h.Sector, h.Content)
		}
	}
	if len(filteredRecent) > 0 {
		b.WriteString("## Recent Memories\n")
		for _, r := range filteredRecent {
			fmt.Fprintf(&b, "- [%s] %s\n", r.Sector, r.Content)
		}
	}
	b.WriteString("</memory-context>")
	return b.String(), nil
}
