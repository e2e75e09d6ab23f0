package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type noopTransport struct{}

func (noopTransport) SendText(context.Context, int64, string) error  { return nil }
func (noopTransport) SendVoice(context.Context, int64, []byte) error { return nil }
func (noopTransport) SendPhoto(context.Context, int64, []byte) error { return nil }
func (noopTransport) SetTyping(context.Context, int64) error         { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTailOutputPassesThroughShortOutput(t *testing.T) {
	got := tailOutput("short output")
	if got != "short output" {
		t.Fatalf("got %q", got)
	}
}

func TestTailOutputTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", rebuildTailChars*2)
	got := tailOutput(long)
	if !strings.HasPrefix(got, "...\n") {
		t.Fatalf("expected a truncation marker, got %q", got[:20])
	}
	if len(got) > rebuildTailChars+4 {
		t.Fatalf("tail exceeds the bound: %d bytes", len(got))
	}
}

func TestCmdRestartCallsExitFunc(t *testing.T) {
	orig := exitFunc
	defer func() { exitFunc = orig }()

	var gotCode int
	called := false
	exitFunc = func(code int) {
		called = true
		gotCode = code
	}

	o := &Orchestrator{transport: noopTransport{}, log: testLogger()}
	o.cmdRestart(context.Background(), 1)

	if !called {
		t.Fatalf("expected exitFunc to be called")
	}
	if gotCode != 0 {
		t.Fatalf("got exit code %d, want 0", gotCode)
	}
}
