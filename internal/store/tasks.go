package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the scheduled-task state machine's two states.
type TaskStatus string

const (
	TaskActive TaskStatus = "active"
	TaskPaused TaskStatus = "paused"

	// MaxLastResultChars bounds the persisted last_result field.
	MaxLastResultChars = 10000
)

// ScheduledTask is a single cron-driven prompt.
type ScheduledTask struct {
	ID         string
	ChatID     int64
	Prompt     string
	Schedule   string
	NextRun    time.Time
	LastRun    *time.Time
	LastResult string
	Status     TaskStatus
	CreatedAt  time.Time
}

// CreateTask inserts a new active task, returning its generated id.
func (s *Store) CreateTask(chatID int64, prompt, schedule string, nextRun time.Time) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO scheduled_tasks (id, chat_id, prompt, schedule, next_run, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'active', ?)
	`, id, chatID, prompt, schedule, nextRun.Unix(), now.Unix())
	if err != nil {
		return "", fmt.Errorf("creating task for chat %d: %w", chatID, err)
	}
	return id, nil
}

// DueTasks returns every active task whose next_run has passed, in
// whatever order the store returns them.
func (s *Store) DueTasks(now time.Time) ([]ScheduledTask, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, prompt, schedule, next_run, last_run, last_result, status, created_at
		FROM scheduled_tasks
		WHERE status = 'active' AND next_run <= ?
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TasksForChat lists every task belonging to a chat, most recently created
// first.
func (s *Store) TasksForChat(chatID int64) ([]ScheduledTask, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, prompt, schedule, next_run, last_run, last_result, status, created_at
		FROM scheduled_tasks
		WHERE chat_id = ?
		ORDER BY created_at DESC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for chat %d: %w", chatID, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetTask fetches a single task by id.
func (s *Store) GetTask(id string) (ScheduledTask, error) {
	row := s.db.QueryRow(`
		SELECT id, chat_id, prompt, schedule, next_run, last_run, last_result, status, created_at
		FROM scheduled_tasks WHERE id = ?
	`, id)

	var (
		t          ScheduledTask
		nextRun    int64
		lastRun    sql.NullInt64
		lastResult sql.NullString
		status     string
		createdAt  int64
	)
	err := row.Scan(&t.ID, &t.ChatID, &t.Prompt, &t.Schedule, &nextRun, &lastRun, &lastResult, &status, &createdAt)
	if err == sql.ErrNoRows {
		return ScheduledTask{}, ErrNotFound
	}
	if err != nil {
		return ScheduledTask{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	t.NextRun = time.Unix(nextRun, 0)
	if lastRun.Valid {
		tm := time.Unix(lastRun.Int64, 0)
		t.LastRun = &tm
	}
	t.LastResult = lastResult.String
	t.Status = TaskStatus(status)
	t.CreatedAt = time.Unix(createdAt, 0)
	return t, nil
}

// RecordTaskRun writes a post-run update: last_run, a truncated
// last_result (error results are prefixed by the caller), and the
// computed next_run.
func (s *Store) RecordTaskRun(id string, lastRun time.Time, result string, nextRun time.Time) error {
	if len(result) > MaxLastResultChars {
		result = result[:MaxLastResultChars]
	}
	_, err := s.db.Exec(`
		UPDATE scheduled_tasks SET last_run = ?, last_result = ?, next_run = ? WHERE id = ?
	`, lastRun.Unix(), result, nextRun.Unix(), id)
	if err != nil {
		return fmt.Errorf("recording run for task %s: %w", id, err)
	}
	return nil
}

// PauseTask transitions a task to paused.
func (s *Store) PauseTask(id string) error {
	if _, err := s.db.Exec(`UPDATE scheduled_tasks SET status = 'paused' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("pausing task %s: %w", id, err)
	}
	return nil
}

// ResumeTask transitions a task to active and recomputes next_run via the
// caller-supplied value (the scheduler owns the cron math).
func (s *Store) ResumeTask(id string, nextRun time.Time) error {
	_, err := s.db.Exec(`UPDATE scheduled_tasks SET status = 'active', next_run = ? WHERE id = ?`, nextRun.Unix(), id)
	if err != nil {
		return fmt.Errorf("resuming task %s: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task row outright.
func (s *Store) DeleteTask(id string) error {
	if _, err := s.db.Exec(`DELETE FROM scheduled_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]ScheduledTask, error) {
	var out []ScheduledTask
	for rows.Next() {
		var (
			t          ScheduledTask
			nextRun    int64
			lastRun    sql.NullInt64
			lastResult sql.NullString
			status     string
			createdAt  int64
		)
		err := rows.Scan(&t.ID, &t.ChatID, &t.Prompt, &t.Schedule, &nextRun, &lastRun, &lastResult, &status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.NextRun = time.Unix(nextRun, 0)
		if lastRun.Valid {
			tm := time.Unix(lastRun.Int64, 0)
			t.LastRun = &tm
		}
		t.LastResult = lastResult.String
		t.Status = TaskStatus(status)
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}
