package agentrunner

import (
	"context"
	"strings"
	"testing"
)

func TestRunReturnsCancelledImmediatelyWhenAlreadyTripped(t *testing.T) {
	cancel := make(chan struct{})
	close(cancel)

	r := New(Config{})
	result, err := r.Run(context.Background(), RunInput{Message: "hi", Cancel: cancel})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Error != "cancelled" {
		t.Errorf("got error %q, want cancelled", result.Error)
	}
}

func TestConsumeSuccessResult(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-1"}`,
		`{"type":"assistant","usage":{"cache_read_input_tokens":42}}`,
		`{"type":"result","subtype":"success","result":"all done","cost_usd":0.05,"num_turns":3,"duration_ms":1200}`,
	}, "\n")

	r := New(Config{})
	var events []EventType
	outcome, err := r.consume(strings.NewReader(stream), func(e EventType) { events = append(events, e) })
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !outcome.terminal {
		t.Fatalf("expected terminal result")
	}
	if outcome.Text != "all done" {
		t.Errorf("got text %q", outcome.Text)
	}
	if outcome.SessionID != "sess-1" {
		t.Errorf("got session %q, want sess-1", outcome.SessionID)
	}
	if outcome.LastCacheRead != 42 {
		t.Errorf("got cache read %d, want 42", outcome.LastCacheRead)
	}
	if outcome.NumTurns != 3 {
		t.Errorf("got num turns %d, want 3", outcome.NumTurns)
	}
	if len(events) != 3 {
		t.Errorf("got %d progress callbacks, want 3", len(events))
	}
}

func TestConsumeCompactBoundarySetsDidCompact(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-1"}`,
		`{"type":"system","subtype":"compact_boundary","pre_compact_tokens":1000}`,
		`{"type":"result","subtype":"success","result":"ok"}`,
	}, "\n")

	r := New(Config{})
	outcome, err := r.consume(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !outcome.DidCompact {
		t.Errorf("expected DidCompact to be true")
	}
}

func TestConsumeTerminalErrorKindStopsImmediately(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-1"}`,
		`{"type":"assistant","error":{"kind":"authentication_failed","message":"bad token"}}`,
		`{"type":"result","subtype":"success","result":"should not be reached"}`,
	}, "\n")

	r := New(Config{})
	outcome, err := r.consume(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !outcome.terminal {
		t.Fatalf("expected terminal result")
	}
	if outcome.Error != "authentication_failed: bad token" {
		t.Errorf("got error %q", outcome.Error)
	}
}

func TestConsumeNonTerminalErrorKindContinues(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"assistant","error":{"kind":"rate_limit","message":"slow down"}}`,
		`{"type":"result","subtype":"success","result":"finished anyway"}`,
	}, "\n")

	r := New(Config{})
	outcome, err := r.consume(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if outcome.Text != "finished anyway" {
		t.Errorf("got text %q, want the run to continue past a non-terminal error", outcome.Text)
	}
}

func TestConsumeMaxTurnsResultUsesFixedMessage(t *testing.T) {
	stream := `{"type":"result","subtype":"error_max_turns"}`

	r := New(Config{})
	outcome, err := r.consume(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if outcome.Error != "error_max_turns" {
		t.Errorf("got error %q", outcome.Error)
	}
	if outcome.Text == "" {
		t.Errorf("expected a human message for error_max_turns")
	}
}

func TestBuildEnvMergesWithoutMutatingProcessEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	secrets := Secrets{OAuthToken: "tok", APIKey: "key"}
	extra := map[string]string{"FOO": "bar"}

	merged := buildEnv(base, secrets, extra)

	found := map[string]bool{}
	for _, kv := range merged {
		found[kv] = true
	}
	if !found["CLAUDE_CODE_OAUTH_TOKEN=tok"] {
		t.Errorf("missing oauth token in merged env: %v", merged)
	}
	if !found["ANTHROPIC_API_KEY=key"] {
		t.Errorf("missing api key in merged env: %v", merged)
	}
	if !found["FOO=bar"] {
		t.Errorf("missing extra env in merged env: %v", merged)
	}
	if !found["PATH=/usr/bin"] {
		t.Errorf("base env dropped: %v", merged)
	}
}
