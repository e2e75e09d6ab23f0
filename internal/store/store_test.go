// Run with -tags sqlite_fts5; mattn/go-sqlite3 only compiles in FTS5
// support under that tag.
package store

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// openTestStore builds a Store backed by the cgo driver under its own
// "sqlite3" name, applying the schema directly instead of going through
// Open, pointed at a temp file so WAL mode and FTS5 both behave as they
// would in production.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	s := &Store{db: db, log: slog.New(slog.NewTextHandler(os.Stderr, nil))}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetSessionThenGetSessionRoundTrips(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetSession(1, "abc"); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	got, err := s.GetSession(1)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != "abc" {
		t.Errorf("got %q, want abc", got)
	}

	if err := s.SetSession(1, "def"); err != nil {
		t.Fatalf("second SetSession: %v", err)
	}
	got, err = s.GetSession(1)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != "def" {
		t.Errorf("got %q, want def (overwrite, not duplicate)", got)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE chat_id = 1`).Scan(&count); err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d session rows, want 1", count)
	}
}

func TestSearchMemoryEmptyQueryReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.InsertMemory(1, "some memorable content", SectorEpisodic); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	got, err := s.SearchMemory(1, "", 5)
	if err != nil {
		t.Fatalf("SearchMemory: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result for empty query, got %v", got)
	}

	got, err = s.SearchMemory(1, "a", 5)
	if err != nil {
		t.Fatalf("SearchMemory: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result for length-1 token, got %v", got)
	}
}

func TestSearchMemoryFindsMatchingContent(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.InsertMemory(1, "the user prefers dark mode interfaces", SectorSemantic); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}
	if _, err := s.InsertMemory(1, "completely unrelated content about weather", SectorSemantic); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	got, err := s.SearchMemory(1, "dark mode", 5)
	if err != nil {
		t.Fatalf("SearchMemory: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
}

func TestDeleteMemoryRemovesFromFTS(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertMemory(1, "a searchable fact about turtles", SectorSemantic)
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	if got, err := s.SearchMemory(1, "turtles", 5); err != nil || len(got) != 1 {
		t.Fatalf("expected to find turtles before delete, got %v err %v", got, err)
	}

	if err := s.DeleteMemory(id); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	got, err := s.SearchMemory(1, "turtles", 5)
	if err != nil {
		t.Fatalf("SearchMemory after delete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results after delete, got %v", got)
	}
}

func TestTouchMemoryCapsAtMaxSalience(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertMemory(1, "content", SectorSemantic)
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	for i := 0; i < 100; i++ {
		if err := s.TouchMemory(id, DefaultTouchDelta); err != nil {
			t.Fatalf("TouchMemory: %v", err)
		}
	}

	var salience float64
	if err := s.db.QueryRow(`SELECT salience FROM memory_entries WHERE id = ?`, id).Scan(&salience); err != nil {
		t.Fatalf("reading salience: %v", err)
	}
	if salience > MaxSalience {
		t.Errorf("salience %f exceeds ceiling %f", salience, MaxSalience)
	}
}

func TestDecayDeletesRowsBelowMinSalience(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertMemory(1, "will decay away", SectorEpisodic)
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	old := time.Now().Add(-200 * time.Hour)
	if _, err := s.db.Exec(`UPDATE memory_entries SET created_at = ?, accessed_at = ?, salience = 0.2 WHERE id = ?`,
		old.Unix(), old.Unix(), id); err != nil {
		t.Fatalf("backdating row: %v", err)
	}

	result, err := s.Decay(time.Now())
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("got %d deleted, want 1", result.Deleted)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_entries WHERE id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 0 {
		t.Errorf("row should have been deleted by decay")
	}
}

func TestPruneExcessMemoryKeepsMostSalient(t *testing.T) {
	s := openTestStore(t)

	var lowID string
	for i := 0; i < 5; i++ {
		id, err := s.InsertMemory(1, "content", SectorEpisodic)
		if err != nil {
			t.Fatalf("InsertMemory: %v", err)
		}
		if i == 0 {
			lowID = id
			if _, err := s.db.Exec(`UPDATE memory_entries SET salience = 0.05 WHERE id = ?`, id); err != nil {
				t.Fatalf("lowering salience: %v", err)
			}
		}
	}

	deleted, err := s.PruneExcessMemory(1, 4)
	if err != nil {
		t.Fatalf("PruneExcessMemory: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("got %d deleted, want 1", deleted)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_entries WHERE id = ?`, lowID).Scan(&count); err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 0 {
		t.Errorf("lowest-salience row should have been pruned")
	}
}

func TestDueTasksOnlyReturnsActivePastDue(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateTask(1, "do the thing", "* * * * *", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.CreateTask(1, "future thing", "* * * * *", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateTask future: %v", err)
	}
	pausedID, err := s.CreateTask(1, "paused thing", "* * * * *", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateTask paused: %v", err)
	}
	if err := s.PauseTask(pausedID); err != nil {
		t.Fatalf("PauseTask: %v", err)
	}

	due, err := s.DueTasks(time.Now())
	if err != nil {
		t.Fatalf("DueTasks: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("got %v, want only %s", due, id)
	}
}

func TestPauseThenResumeRestoresActiveAndAdvancesNextRun(t *testing.T) {
	s := openTestStore(t)
	id, err := s.CreateTask(1, "prompt", "* * * * *", time.Now())
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := s.PauseTask(id); err != nil {
		t.Fatalf("PauseTask: %v", err)
	}
	task, err := s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != TaskPaused {
		t.Fatalf("got status %s, want paused", task.Status)
	}

	newNextRun := time.Now().Add(time.Hour)
	if err := s.ResumeTask(id, newNextRun); err != nil {
		t.Fatalf("ResumeTask: %v", err)
	}
	task, err = s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != TaskActive {
		t.Errorf("got status %s, want active", task.Status)
	}
	if task.NextRun.Unix() != newNextRun.Unix() {
		t.Errorf("next_run not advanced: got %v, want %v", task.NextRun, newNextRun)
	}
}

func TestRecordTaskRunAdvancesNextRunPastCompletion(t *testing.T) {
	s := openTestStore(t)
	id, err := s.CreateTask(1, "prompt", "* * * * *", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	completion := time.Now()
	nextRun := completion.Add(time.Minute)
	if err := s.RecordTaskRun(id, completion, "ok", nextRun); err != nil {
		t.Fatalf("RecordTaskRun: %v", err)
	}

	task, err := s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if !task.NextRun.After(completion) {
		t.Errorf("next_run %v should be after completion %v", task.NextRun, completion)
	}
}

func TestRecordInteractionBumpsContactCount(t *testing.T) {
	s := openTestStore(t)
	id, err := s.UpsertContact(Contact{ChatID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Source: "manual"})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	if _, err := s.RecordInteraction(id, 1, InteractionNote, SourceManual, "said hello", time.Now()); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT interaction_count FROM contacts WHERE id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("reading interaction count: %v", err)
	}
	if count != 1 {
		t.Errorf("got interaction_count %d, want 1", count)
	}
}

func TestDeleteContactCascadesInteractions(t *testing.T) {
	s := openTestStore(t)
	id, err := s.UpsertContact(Contact{ChatID: 1, Name: "Grace Hopper", Source: "manual"})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if _, err := s.RecordInteraction(id, 1, InteractionCall, SourceManual, "", time.Now()); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	if err := s.DeleteContact(id); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM interactions WHERE contact_id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("counting interactions: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade delete of interactions, found %d", count)
	}
}

func TestUpsertContactByEmailAvoidsDuplicate(t *testing.T) {
	s := openTestStore(t)
	id1, err := s.UpsertContact(Contact{ChatID: 1, Name: "Ada", Email: "ada@example.com", Source: "manual"})
	if err != nil {
		t.Fatalf("first UpsertContact: %v", err)
	}
	id2, err := s.UpsertContact(Contact{ChatID: 1, Name: "Ada L.", Email: "ada@example.com", Source: "manual"})
	if err != nil {
		t.Fatalf("second UpsertContact: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same contact id, got %s and %s", id1, id2)
	}
}

func TestPruneConversationKeepsMostRecentPerChat(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 10; i++ {
		if err := s.AppendConversation(1, "", RoleUser, "hello"); err != nil {
			t.Fatalf("AppendConversation: %v", err)
		}
	}

	if _, err := s.PruneConversation(3); err != nil {
		t.Fatalf("PruneConversation: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversation_log WHERE chat_id = 1`).Scan(&count); err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d rows, want 3", count)
	}
}
