package memory

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scalytics/telegramd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := store.Open(path, slog.Default())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var _ = sql.ErrNoRows

func TestBuildContextEmptyWhenNoMemories(t *testing.T) {
	s := openTestStore(t)
	got, err := BuildContext(s, 1, "hello there")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestBuildContextDedupsSearchFromRecent(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertMemory(1, "the user likes turtles", store.SectorSemantic)
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	got, err := BuildContext(s, 1, "turtles")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(got, "<memory-context>") || !strings.Contains(got, "</memory-context>") {
		t.Fatalf("got %q, want framed block", got)
	}
	if !strings.Contains(got, "Relevant Memories") {
		t.Errorf("expected Relevant Memories heading, got %q", got)
	}
	if strings.Contains(got, "Recent Memories") {
		t.Errorf("recent heading should not appear when recent == search, got %q", got)
	}

	var salience float64
	if err := s.DB().QueryRow(`SELECT salience FROM memory_entries WHERE id = ?`, id).Scan(&salience); err != nil {
		t.Fatalf("reading salience: %v", err)
	}
	if salience <= 1.0 {
		t.Errorf("expected search hit to be touched (salience > 1.0), got %f", salience)
	}
}

func TestSaveInsertsEpisodicMemoryForLongNonCommandMessages(t *testing.T) {
	s := openTestStore(t)
	longMsg := "this is a sufficiently long user message that should be remembered"

	if err := Save(s, 1, "", longMsg, "sure, got it"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	count, err := s.CountMemory(1)
	if err != nil {
		t.Fatalf("CountMemory: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d memories, want 1 episodic insert", count)
	}
}

func TestSaveSkipsShortAndSlashMessages(t *testing.T) {
	s := openTestStore(t)

	if err := Save(s, 1, "", "hi", "hello"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(s, 1, "", "/status please give me a very long status report today", "ok"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	count, err := s.CountMemory(1)
	if err != nil {
		t.Fatalf("CountMemory: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d memories, want 0", count)
	}
}

func TestSaveExtractsSemanticFactFromReply(t *testing.T) {
	s := openTestStore(t)

	reply := "Sure thing. Remember: the meeting is at 5pm on Friday.\nAnything else?"
	if err := Save(s, 1, "", "hi", reply); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := s.SearchMemory(1, "meeting Friday", 5)
	if err != nil {
		t.Fatalf("SearchMemory: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d semantic facts, want 1", len(results))
	}
	if results[0].Sector != store.SectorSemantic {
		t.Errorf("got sector %s, want semantic", results[0].Sector)
	}
}

func TestSavePrunesExcessAfter201stInsert(t *testing.T) {
	s := openTestStore(t)

	lowestID, err := s.InsertMemory(1, "will be pruned", store.SectorEpisodic)
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}
	if _, err := s.DB().Exec(`UPDATE memory_entries SET salience = 0.05 WHERE id = ?`, lowestID); err != nil {
		t.Fatalf("lowering salience: %v", err)
	}

	for i := 0; i < MaxMemoriesPerChat-1; i++ {
		if _, err := s.InsertMemory(1, "filler content", store.SectorEpisodic); err != nil {
			t.Fatalf("InsertMemory filler: %v", err)
		}
	}

	longMsg := "this user message is long enough to become episodic memory on save"
	if err := Save(s, 1, "", longMsg, "ok"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	count, err := s.CountMemory(1)
	if err != nil {
		t.Fatalf("CountMemory: %v", err)
	}
	if count != MaxMemoriesPerChat {
		t.Fatalf("got %d memories, want %d", count, MaxMemoriesPerChat)
	}

	var stillExists int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM memory_entries WHERE id = ?`, lowestID).Scan(&stillExists); err != nil {
		t.Fatalf("checking pruned row: %v", err)
	}
	if stillExists != 0 {
		t.Errorf("lowest-salience row should have been pruned")
	}
}

func TestRunHourlyDecaysAndPrunesLog(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.AppendConversation(1, "", store.RoleUser, "hi"); err != nil {
			t.Fatalf("AppendConversation: %v", err)
		}
	}

	mgr := NewDecayManager(s, slog.Default())
	mgr.RunHourly()

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM conversation_log`).Scan(&count); err != nil {
		t.Fatalf("counting log: %v", err)
	}
	if count != 5 {
		t.Errorf("got %d log rows, want 5 (below the keep threshold)", count)
	}
}
