package adapters

import "testing"

func TestSanitizeWebhookPathAcceptsPlainSegments(t *testing.T) {
	cases := map[string]string{
		"gmail":       "gmail",
		"/gmail":      "gmail",
		"cal/weekly":  "cal/weekly",
		"a-b_c":       "a-b_c",
	}
	for in, want := range cases {
		got, err := sanitizeWebhookPath(in)
		if err != nil {
			t.Errorf("sanitizeWebhookPath(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("sanitizeWebhookPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeWebhookPathRejectsTraversalAndPunctuation(t *testing.T) {
	cases := []string{
		"",
		"..",
		".",
		"../../etc/passwd",
		"a/../b",
		`a\b`,
		"a//b",
		"a b",
		"a.b",
	}
	for _, in := range cases {
		if _, err := sanitizeWebhookPath(in); err == nil {
			t.Errorf("sanitizeWebhookPath(%q) expected an error, got none", in)
		}
	}
}

func TestRedactRemovesSecretFromMessage(t *testing.T) {
	got := redact("request failed with token abc123 rejected", "abc123")
	if got != "request failed with token [redacted] rejected" {
		t.Errorf("got %q", got)
	}
}

func TestRedactNoopWhenSecretEmpty(t *testing.T) {
	got := redact("no secret here", "")
	if got != "no secret here" {
		t.Errorf("got %q", got)
	}
}

func TestWebhookClientNotConfiguredReturnsResultNotError(t *testing.T) {
	c := NewWebhookClient("", "")
	if c.Configured() {
		t.Fatalf("expected not configured")
	}
	res, err := c.Invoke(nil, "gmail", nil)
	if err != nil {
		t.Fatalf("Invoke should never return a Go error for missing config: %v", err)
	}
	if res.OK {
		t.Errorf("expected OK=false when not configured")
	}
}
