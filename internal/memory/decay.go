package memory

import (
	"log/slog"
	"time"

	"github.com/scalytics/telegramd/internal/store"
)

const (
	// ConversationLogKeep is the per-chat cap the hourly sweep prunes the
	// conversation log down to.
	ConversationLogKeep = 500
)

// DecayManager runs the hourly maintenance sweep: salience decay over
// memory entries, then conversation-log pruning.
type DecayManager struct {
	store *store.Store
	log   *slog.Logger
}

// NewDecayManager builds a manager over store.
func NewDecayManager(s *store.Store, log *slog.Logger) *DecayManager {
	if log == nil {
		log = slog.Default()
	}
	return &DecayManager{store: s, log: log}
}

// RunHourly runs one sweep: decay, then log pruning. Errors are logged,
// not returned, matching the maintenance-timer disposition for store
// failures (logged, never fatal).
func (m *DecayManager) RunHourly() {
	result, err := m.store.Decay(time.Now())
	if err != nil {
		m.log.Error("memory: decay sweep failed", "error", err)
	} else if result.Decayed > 0 || result.Deleted > 0 {
		m.log.Info("memory: decay sweep complete", "decayed", result.Decayed, "deleted", result.Deleted)
	}

	pruned, err := m.store.PruneConversation(ConversationLogKeep)
	if err != nil {
		m.log.Error("memory: conversation log prune failed", "error", err)
	} else if pruned > 0 {
		m.log.Info("memory: conversation log pruned", "deleted", pruned)
	}
}
