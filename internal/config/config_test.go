package config

import (
	"os"
	"testing"
)

func TestAllowedChatIDsFiltersNonMatchingEntries(t *testing.T) {
	tc := TransportConfig{AllowList: "123, -456,abc, 7x8, 90"}
	got := tc.AllowedChatIDs()
	want := []int64{123, -456, 90}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAllowedChatIDsEmpty(t *testing.T) {
	tc := TransportConfig{AllowList: ""}
	if got := tc.AllowedChatIDs(); len(got) != 0 {
		t.Errorf("expected no ids, got %v", got)
	}
}

func TestBuildFromMapRestoresProcessEnvironment(t *testing.T) {
	m := map[string]string{
		"TELEGRAM_BOT_TOKEN":        "tok-123",
		"TELEGRAM_ALLOWED_CHAT_IDS": "42",
	}

	cfg, err := buildFromMap(m)
	if err != nil {
		t.Fatalf("buildFromMap: %v", err)
	}
	if cfg.Transport.BotToken != "tok-123" {
		t.Errorf("got bot token %q", cfg.Transport.BotToken)
	}
	if len(cfg.Transport.AllowedChatIDs()) != 1 {
		t.Errorf("got allow list %v", cfg.Transport.AllowedChatIDs())
	}

	if v, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
		t.Errorf("expected TELEGRAM_BOT_TOKEN unset after buildFromMap, got %q", v)
	}
}
