package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scalytics/telegramd/internal/store"
)

const (
	// MaxMemoriesPerChat is the excess-pruning ceiling per chat.
	MaxMemoriesPerChat = 200

	episodicMinLen    = 20
	episodicMaxChars  = 500
	semanticMaxChars  = 300
	factLineMinLen    = 10
	factLineMaxLen    = 500
)

// factPatterns are tried in order against each reply line; the first match
// captures group 1 as the extracted fact.
var factPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:remember|note|important|fyi):\s*(.+)`),
	regexp.MustCompile(`(?i)(?:your|the)\s+(?:name|email|phone|address|birthday|preference)\s+(?:is|are)\s+(.+)`),
	regexp.MustCompile(`(?i)I\s+(?:always|prefer|like|use|want|need)\s+(.+)`),
	regexp.MustCompile(`(?i)(?:don't forget|keep in mind|worth noting):\s*(.+)`),
}

// Save is the ingest algorithm: log both sides of the turn, opportunistically
// store the user message as episodic memory, extract semantic facts from
// the reply, and prune any resulting excess.
func Save(s *store.Store, chatID int64, sessionID, userMsg, agentReply string) error {
	if err := s.AppendConversation(chatID, sessionID, store.RoleUser, userMsg); err != nil {
		return fmt.Errorf("logging user turn: %w", err)
	}
	if err := s.AppendConversation(chatID, sessionID, store.RoleAssistant, agentReply); err != nil {
		return fmt.Errorf("logging assistant turn: %w", err)
	}

	if len(userMsg) > episodicMinLen && !strings.HasPrefix(userMsg, "/") {
		content := truncate(userMsg, episodicMaxChars)
		if _, err := s.InsertMemory(chatID, content, store.SectorEpisodic); err != nil {
			return fmt.Errorf("inserting episodic memory: %w", err)
		}
	}

	for _, line := range strings.Split(agentReply, "\n") {
		if len(line) < factLineMinLen || len(line) > factLineMaxLen {
			continue
		}
		for _, pattern := range factPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			fact := truncate(strings.TrimSpace(m[1]), semanticMaxChars)
			if fact == "" {
				break
			}
			if _, err := s.InsertMemory(chatID, fact, store.SectorSemantic); err != nil {
				return fmt.Errorf("inserting semantic memory: %w", err)
			}
			break
		}
	}

	if _, err := s.PruneExcessMemory(chatID, MaxMemoriesPerChat); err != nil {
		return fmt.Errorf("pruning excess memory: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
