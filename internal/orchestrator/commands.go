package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scalytics/telegramd/internal/scheduler"
	"github.com/scalytics/telegramd/internal/store"
)

// HandleCommand dispatches a single "/word ..." line. Every command is
// synchronous and scoped to chatID; none of them enqueue an agent turn
// except /respin, which frames a replay and runs it through the normal
// pipeline.
func (o *Orchestrator) HandleCommand(ctx context.Context, chatID int64, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/start", "/chatid":
		o.deliverText(ctx, chatID, fmt.Sprintf("Chat id: %d", chatID))
	case "/newchat":
		o.cmdNewChat(ctx, chatID)
	case "/respin":
		o.cmdRespin(ctx, chatID)
	case "/cancel":
		o.cmdCancel(ctx, chatID)
	case "/voice":
		o.cmdToggleVoice(ctx, chatID)
	case "/status":
		o.cmdStatus(ctx, chatID)
	case "/memory":
		o.cmdMemory(ctx, chatID)
	case "/cost":
		o.cmdCost(ctx, chatID)
	case "/forget":
		o.cmdForget(ctx, chatID)
	case "/schedule":
		o.cmdSchedule(ctx, chatID, rest)
	case "/tasks":
		o.cmdTasks(ctx, chatID)
	case "/deltask":
		o.cmdTaskAction(ctx, chatID, rest, "delete")
	case "/pausetask":
		o.cmdTaskAction(ctx, chatID, rest, "pause")
	case "/resumetask":
		o.cmdTaskAction(ctx, chatID, rest, "resume")
	case "/gmail", "/cal", "/todo":
		o.cmdWebhook(ctx, chatID, strings.TrimPrefix(cmd, "/"), rest)
	case "/n8n":
		o.cmdN8N(ctx, chatID, rest)
	case "/contacts":
		o.cmdContacts(ctx, chatID, rest)
	case "/delcontact":
		o.cmdDeleteContact(ctx, chatID, rest)
	case "/image":
		o.cmdImage(ctx, chatID, rest)
	case "/restart":
		o.cmdRestart(ctx, chatID)
	case "/rebuild":
		o.cmdRebuild(ctx, chatID)
	default:
		o.deliverText(ctx, chatID, "Unknown command: "+cmd)
	}
}

func (o *Orchestrator) cmdNewChat(ctx context.Context, chatID int64) {
	if err := o.store.ClearSession(chatID); err != nil {
		o.log.Warn("clear session failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Could not start a new chat.")
		return
	}
	o.deliverText(ctx, chatID, "Started a new chat session.")
}

func (o *Orchestrator) cmdRespin(ctx context.Context, chatID int64) {
	entries, err := o.store.RecentConversation(chatID, RespinLogCount)
	if err != nil {
		o.log.Warn("respin log fetch failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Could not assemble a respin context.")
		return
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.Role, e.Content)
	}
	if err := o.store.ClearSession(chatID); err != nil {
		o.log.Warn("respin session clear failed", "chat_id", chatID, "error", err)
	}
	framed := fmt.Sprintf(respinFraming, b.String())
	go o.RunTurn(ctx, chatID, framed, turnOptions{isRespin: true})
}

func (o *Orchestrator) cmdCancel(ctx context.Context, chatID int64) {
	if o.Cancel(chatID) {
		o.deliverText(ctx, chatID, "Cancelled the current request.")
		return
	}
	o.deliverText(ctx, chatID, "No active request.")
}

func (o *Orchestrator) cmdToggleVoice(ctx context.Context, chatID int64) {
	if o.tts == nil || !o.tts.Configured() {
		o.deliverText(ctx, chatID, "Voice replies are not configured.")
		return
	}
	o.mu.Lock()
	o.voiceMode[chatID] = !o.voiceMode[chatID]
	on := o.voiceMode[chatID]
	o.mu.Unlock()
	if on {
		o.deliverText(ctx, chatID, "Voice replies enabled.")
	} else {
		o.deliverText(ctx, chatID, "Voice replies disabled.")
	}
}

func (o *Orchestrator) cmdStatus(ctx context.Context, chatID int64) {
	sessionID, _ := o.store.GetSession(chatID)
	avail := o.queue.Available()
	status := fmt.Sprintf("Session: %s\nFree agent slots: %d", emptyOr(sessionID, "none"), avail)
	o.deliverText(ctx, chatID, status)
}

func (o *Orchestrator) cmdMemory(ctx context.Context, chatID int64) {
	count, err := o.store.CountMemory(chatID)
	if err != nil {
		o.log.Warn("memory count failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Could not read memory state.")
		return
	}
	o.deliverText(ctx, chatID, fmt.Sprintf("%d memories stored for this chat.", count))
}

func (o *Orchestrator) cmdCost(ctx context.Context, chatID int64) {
	now := nowFunc()
	windows := []struct {
		label string
		since time.Time
	}{
		{"1d", now.Add(-24 * time.Hour)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"30d", now.Add(-30 * 24 * time.Hour)},
	}
	var b strings.Builder
	for _, w := range windows {
		summary, err := o.store.SummarizeUsage(chatID, w.since)
		if err != nil {
			o.log.Warn("usage summary failed", "chat_id", chatID, "window", w.label, "error", err)
			continue
		}
		fmt.Fprintf(&b, "%s: %d turns, %d in / %d out tokens, $%.4f\n", w.label, summary.Turns, summary.SumInput, summary.SumOutput, summary.SumCostUSD)
	}
	o.deliverText(ctx, chatID, b.String())
}

func (o *Orchestrator) cmdForget(ctx context.Context, chatID int64) {
	if err := o.store.ClearSession(chatID); err != nil {
		o.log.Warn("forget session clear failed", "chat_id", chatID, "error", err)
	}
	o.deliverText(ctx, chatID, "Session cleared for this chat; stored memories are kept.")
}

func (o *Orchestrator) cmdSchedule(ctx context.Context, chatID int64, rest string) {
	fields := strings.Fields(rest)
	if len(fields) < 6 {
		o.deliverText(ctx, chatID, "Usage: /schedule <min> <hour> <dom> <mon> <dow> <prompt>")
		return
	}
	cronExpr := strings.Join(fields[:5], " ")
	prompt := strings.Join(fields[5:], " ")
	if !scheduler.ValidateCron(cronExpr) {
		o.deliverText(ctx, chatID, "Invalid cron expression: "+cronExpr)
		return
	}
	next, err := scheduler.ComputeNextRun(cronExpr, nowFunc())
	if err != nil {
		o.deliverText(ctx, chatID, "Invalid cron expression: "+cronExpr)
		return
	}
	id, err := o.store.CreateTask(chatID, prompt, cronExpr, next)
	if err != nil {
		o.log.Warn("create task failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Could not create the scheduled task.")
		return
	}
	o.deliverText(ctx, chatID, fmt.Sprintf("Scheduled task %s, next run %s.", id, next.Local().Format(time.RFC3339)))
}

func (o *Orchestrator) cmdTasks(ctx context.Context, chatID int64) {
	tasks, err := o.store.TasksForChat(chatID)
	if err != nil {
		o.log.Warn("list tasks failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Could not list scheduled tasks.")
		return
	}
	if len(tasks) == 0 {
		o.deliverText(ctx, chatID, "No scheduled tasks.")
		return
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s [%s] %s — next %s\n", t.ID, t.Status, t.Schedule, t.NextRun.Local().Format(time.RFC3339))
	}
	o.deliverText(ctx, chatID, b.String())
}

func (o *Orchestrator) cmdTaskAction(ctx context.Context, chatID int64, rest, action string) {
	id := strings.TrimSpace(rest)
	if id == "" {
		o.deliverText(ctx, chatID, "Usage: /"+action+"task <id>")
		return
	}
	task, err := o.store.GetTask(id)
	if err != nil || task.ChatID != chatID {
		o.deliverText(ctx, chatID, "No such task.")
		return
	}
	switch action {
	case "delete":
		err = o.store.DeleteTask(id)
	case "pause":
		err = o.store.PauseTask(id)
	case "resume":
		var next time.Time
		next, err = scheduler.ComputeNextRun(task.Schedule, nowFunc())
		if err == nil {
			err = o.store.ResumeTask(id, next)
		}
	}
	if err != nil {
		o.log.Warn("task action failed", "action", action, "id", id, "error", err)
		o.deliverText(ctx, chatID, "Could not "+action+" that task.")
		return
	}
	o.deliverText(ctx, chatID, "Task "+id+" "+action+"d.")
}

func (o *Orchestrator) cmdWebhook(ctx context.Context, chatID int64, path, args string) {
	o.invokeWebhook(ctx, chatID, path, map[string]any{"chat_id": chatID, "args": args})
}

func (o *Orchestrator) cmdN8N(ctx context.Context, chatID int64, rest string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		o.deliverText(ctx, chatID, "Usage: /n8n <path> [json]")
		return
	}
	path := fields[0]
	payload := map[string]any{"chat_id": chatID}
	if len(fields) > 1 {
		payload["args"] = strings.Join(fields[1:], " ")
	}
	o.invokeWebhook(ctx, chatID, path, payload)
}

func (o *Orchestrator) invokeWebhook(ctx context.Context, chatID int64, path string, payload map[string]any) {
	if o.webhook == nil || !o.webhook.Configured() {
		o.deliverText(ctx, chatID, "Webhooks are not configured.")
		return
	}
	res, err := o.webhook.Invoke(ctx, path, payload)
	if err != nil {
		o.log.Warn("webhook invocation error", "chat_id", chatID, "path", path, "error", err)
		o.deliverText(ctx, chatID, "Webhook call failed.")
		return
	}
	if !res.OK {
		o.deliverText(ctx, chatID, "Webhook error: "+res.Error)
		return
	}
	o.ingestContactFromWebhook(chatID, res.Body)
	o.deliverText(ctx, chatID, res.Body)
}

// ingestContactFromWebhook best-effort-parses a structured contact block
// out of a webhook reply body and upserts it, logging and continuing on
// any failure. Webhook replies are not guaranteed to carry a contact block.
// A successful upsert is also recorded as an interaction so /contacts
// history reflects webhook-sourced touches, not just manual ones.
func (o *Orchestrator) ingestContactFromWebhook(chatID int64, body string) {
	name, email, company := store.ParseContactBlock(body)
	if name == "" {
		return
	}
	c := store.Contact{ChatID: chatID, Name: name, Email: email, Company: company, Source: "auto"}
	id, err := o.store.UpsertContact(c)
	if err != nil {
		o.log.Warn("contact ingest failed", "chat_id", chatID, "error", err)
		return
	}
	if _, err := o.store.RecordInteraction(id, chatID, store.InteractionOther, store.SourceAuto, "webhook contact sync", nowFunc()); err != nil {
		o.log.Warn("interaction record failed", "chat_id", chatID, "contact_id", id, "error", err)
	}
}

func (o *Orchestrator) cmdDeleteContact(ctx context.Context, chatID int64, rest string) {
	id := strings.TrimSpace(rest)
	if id == "" {
		o.deliverText(ctx, chatID, "Usage: /delcontact <id>")
		return
	}
	if err := o.store.DeleteContact(id); err != nil {
		o.log.Warn("contact delete failed", "chat_id", chatID, "id", id, "error", err)
		o.deliverText(ctx, chatID, "Could not delete that contact.")
		return
	}
	o.deliverText(ctx, chatID, "Contact "+id+" deleted.")
}

// cmdImage generates an image from prompt via the configured image
// adapter and sends it back as a photo. Adapter failures (including the
// prompt-length rejection) are surfaced as the reply, never as an error
// that escapes into the turn pipeline.
func (o *Orchestrator) cmdImage(ctx context.Context, chatID int64, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		o.deliverText(ctx, chatID, "Usage: /image <prompt>")
		return
	}
	if o.image == nil || !o.image.Configured() {
		o.deliverText(ctx, chatID, "Image generation is not configured.")
		return
	}
	data, err := o.image.Generate(ctx, prompt)
	if err != nil {
		o.deliverText(ctx, chatID, "Image generation failed: "+err.Error())
		return
	}
	if err := o.transport.SendPhoto(ctx, chatID, data); err != nil {
		o.log.Warn("send photo failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Generated the image but could not send it.")
	}
}

func (o *Orchestrator) cmdContacts(ctx context.Context, chatID int64, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		o.deliverText(ctx, chatID, "Usage: /contacts <query>")
		return
	}
	contacts, err := o.store.SearchContacts(chatID, query, 10)
	if err != nil {
		o.log.Warn("contact search failed", "chat_id", chatID, "error", err)
		o.deliverText(ctx, chatID, "Contact search failed.")
		return
	}
	if len(contacts) == 0 {
		o.deliverText(ctx, chatID, "No matching contacts.")
		return
	}
	var b strings.Builder
	for _, c := range contacts {
		fmt.Fprintf(&b, "%s %s %s\n", c.Name, c.Email, c.Company)
	}
	o.deliverText(ctx, chatID, b.String())
}

func emptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
