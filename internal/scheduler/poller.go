package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PollInterval is how often the poller sweeps for due tasks.
const PollInterval = 60 * time.Second

// overdueLogThreshold is how far past next_run a task must be before the
// poller logs the "missed during sleep" case.
const overdueLogThreshold = 300 * time.Second

// TaskStore is the subset of the store a poller needs.
type TaskStore interface {
	DueTasks(now time.Time) ([]DueTask, error)
	RecordTaskRun(id string, lastRun time.Time, result string, nextRun time.Time) error
}

// DueTask is the minimal shape the poller needs per due task.
type DueTask struct {
	ID       string
	ChatID   int64
	Prompt   string
	Schedule string
	NextRun  time.Time
}

// Executor runs a scheduled task's prompt and returns its result text, or
// an error.
type Executor func(ctx context.Context, task DueTask) (string, error)

// Poller drives the due-task sweep loop.
type Poller struct {
	store    TaskStore
	execute  Executor
	log      *slog.Logger
}

// NewPoller builds a poller over store, invoking execute for each due task.
func NewPoller(store TaskStore, execute Executor, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{store: store, execute: execute, log: log}
}

// Run sweeps immediately, then every PollInterval, until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.sweep(ctx)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	now := time.Now()
	due, err := p.store.DueTasks(now)
	if err != nil {
		p.log.Error("scheduler: querying due tasks failed", "error", err)
		return
	}

	for _, task := range due {
		overdueBy := now.Sub(task.NextRun)
		if overdueBy > overdueLogThreshold {
			p.log.Info("scheduler: task overdue", "task_id", task.ID, "overdue_seconds", int(overdueBy.Seconds()))
		}

		result, execErr := p.execute(ctx, task)

		completion := time.Now()
		nextRun, cronErr := ComputeNextRun(task.Schedule, completion)
		if cronErr != nil {
			p.log.Error("scheduler: recomputing next_run failed", "task_id", task.ID, "error", cronErr)
			continue
		}

		lastResult := result
		if execErr != nil {
			lastResult = fmt.Sprintf("ERROR: %s", execErr.Error())
		}

		if err := p.store.RecordTaskRun(task.ID, completion, lastResult, nextRun); err != nil {
			p.log.Error("scheduler: recording task run failed", "task_id", task.ID, "error", err)
			continue
		}
	}
}

// TaskQueueKey returns the distinct queue namespace a scheduled execution
// for chatID must enqueue under, so it shares the global concurrency cap
// without blocking the chat's own interactive queue.
func TaskQueueKey(chatID int64) string {
	return fmt.Sprintf("__task__%d", chatID)
}
