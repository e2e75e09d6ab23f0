package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scalytics/telegramd/internal/adapters"
	"github.com/scalytics/telegramd/internal/agentrunner"
	"github.com/scalytics/telegramd/internal/bus"
	"github.com/scalytics/telegramd/internal/channels/telegram"
	"github.com/scalytics/telegramd/internal/config"
	"github.com/scalytics/telegramd/internal/memory"
	"github.com/scalytics/telegramd/internal/orchestrator"
	"github.com/scalytics/telegramd/internal/queue"
	"github.com/scalytics/telegramd/internal/scheduler"
	"github.com/scalytics/telegramd/internal/service"
	"github.com/scalytics/telegramd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway: Telegram in, the agent subprocess out",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fmt.Println(color.CyanString(logo))

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	allowedIDs := cfg.Transport.AllowedChatIDs()
	if len(allowedIDs) == 0 {
		return fmt.Errorf("no allowed chat ids configured, refusing to start open")
	}

	storeDir := filepath.Join(cfg.Paths.ProjectDir, "store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	uploadsDir := filepath.Join(cfg.Paths.ProjectDir, "workspace", "uploads")

	lock := service.NewPIDLock(filepath.Join(storeDir, "telegramd.pid"))
	if err := lock.Acquire(); err != nil {
		return fmt.Errorf("acquiring process lock: %w", err)
	}

	s, err := store.Open(filepath.Join(storeDir, "telegramd.db"), log)
	if err != nil {
		_ = lock.Release()
		return fmt.Errorf("opening store: %w", err)
	}

	runner := agentrunner.New(agentrunner.Config{
		Timeout: time.Duration(cfg.Agent.TimeoutMS) * time.Millisecond,
		Secrets: agentrunner.Secrets{
			OAuthToken: cfg.Agent.OAuthToken,
			APIKey:     cfg.Agent.APIKey,
		},
		SystemPromptAppend: cfg.Agent.SystemPromptAppend,
	})

	speech := adapters.NewSpeechClient(cfg.Speech.APIKey, cfg.Speech.VoiceID)
	webhook := adapters.NewWebhookClient(cfg.Webhook.BaseURL, cfg.Webhook.APIKey)
	image := adapters.NewImageClient(cfg.Image.APIKey, cfg.Image.Model)

	msgBus := bus.NewMessageBus()

	channel, err := telegram.New(cfg.Transport.BotToken, msgBus, uploadsDir, log)
	if err != nil {
		_ = s.Close()
		_ = lock.Release()
		return fmt.Errorf("starting telegram channel: %w", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Store:      s,
		Queue:      queue.NewQueue(),
		RateLimit:  queue.NewRateLimiter(),
		Runner:     runner,
		Transport:  channel,
		STT:        speech,
		TTS:        speech,
		Webhook:    webhook,
		Image:      image,
		AllowedIDs: allowedIDs,
		Log:        log,
		RepoDir:    cfg.Paths.RepoDir,
	})

	ctx, cancelAll := context.WithCancel(context.Background())
	defer cancelAll()

	shell := service.NewShell(lock, channel, s, log)

	decayMgr := memory.NewDecayManager(s, log)
	decayCtx, cancelDecay := context.WithCancel(ctx)
	shell.Manage(cancelDecay)
	go service.RunDecayTimer(decayCtx, decayMgr)

	uploadCtx, cancelUpload := context.WithCancel(ctx)
	shell.Manage(cancelUpload)
	go service.RunUploadCleanupTimer(uploadCtx, uploadsDir, log)

	poller := scheduler.NewPoller(taskStoreAdapter{s}, schedulerExecutor(orch, runner, s), log)
	pollCtx, cancelPoll := context.WithCancel(ctx)
	shell.Manage(cancelPoll)
	go poller.Run(pollCtx)

	if err := channel.Start(ctx); err != nil {
		_ = s.Close()
		_ = lock.Release()
		return fmt.Errorf("starting telegram updates: %w", err)
	}

	go orch.Run(ctx, msgBus)

	log.Info("telegramd started", "allowed_chats", len(allowedIDs))
	shell.WaitForSignal(ctx)
	return nil
}

// taskStoreAdapter narrows *store.Store down to scheduler.TaskStore and
// converts between store.ScheduledTask and scheduler.DueTask, the two
// packages' independent views of the same row (scheduler does not import
// store, to avoid a dependency cycle with the poller's test fakes).
type taskStoreAdapter struct {
	s *store.Store
}

func (a taskStoreAdapter) DueTasks(now time.Time) ([]scheduler.DueTask, error) {
	rows, err := a.s.DueTasks(now)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.DueTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, scheduler.DueTask{
			ID:       r.ID,
			ChatID:   r.ChatID,
			Prompt:   r.Prompt,
			Schedule: r.Schedule,
			NextRun:  r.NextRun,
		})
	}
	return out, nil
}

func (a taskStoreAdapter) RecordTaskRun(id string, lastRun time.Time, result string, nextRun time.Time) error {
	return a.s.RecordTaskRun(id, lastRun, result, nextRun)
}

// schedulerExecutor drives a scheduled task's prompt through the same
// queue and agent runner the interactive path uses, under the task
// namespace key so a slow scheduled run cannot starve a chat's own queue.
func schedulerExecutor(orch *orchestrator.Orchestrator, runner *agentrunner.Runner, s *store.Store) scheduler.Executor {
	return func(ctx context.Context, task scheduler.DueTask) (string, error) {
		chatKey := fmt.Sprintf("__task__%d", task.ChatID)
		sessionID, _ := s.GetSession(task.ChatID)
		result, err := queue.Enqueue(ctx, orch.TaskQueue(), chatKey, func(runCtx context.Context) (agentrunner.RunResult, error) {
			return runner.Run(runCtx, agentrunner.RunInput{Message: task.Prompt, SessionID: sessionID})
		})
		if err != nil {
			return "", err
		}
		if result.SessionID != "" {
			_ = s.SetSession(task.ChatID, result.SessionID)
		}
		if result.Error != "" {
			return "", fmt.Errorf("%s", result.Error)
		}
		return result.Text, nil
	}
}
