package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPopulatesConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "TELEGRAM_BOT_TOKEN=abc\n" +
		"TELEGRAM_ALLOWED_CHAT_IDS=1,2,3\n" +
		"AGENT_TIMEOUT_MS=15000\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.BotToken != "abc" {
		t.Errorf("got bot token %q", cfg.Transport.BotToken)
	}
	if cfg.Agent.TimeoutMS != 15000 {
		t.Errorf("got timeout %d", cfg.Agent.TimeoutMS)
	}
	if len(cfg.Transport.AllowedChatIDs()) != 3 {
		t.Errorf("got allow list %v", cfg.Transport.AllowedChatIDs())
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TELEGRAM_ALLOWED_CHAT_IDS=1\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("expected error for missing bot token")
	}
}

func TestLoadRejectsEmptyAllowList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TELEGRAM_BOT_TOKEN=abc\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("expected error for empty allow list")
	}
}

func TestLoadDefaultAgentTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "TELEGRAM_BOT_TOKEN=abc\nTELEGRAM_ALLOWED_CHAT_IDS=1\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.TimeoutMS != 300000 {
		t.Errorf("got default timeout %d, want 300000", cfg.Agent.TimeoutMS)
	}
}
