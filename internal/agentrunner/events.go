// Package agentrunner drives a Claude Code subprocess in streaming mode
// and interprets its tagged event sequence into a single turn result.
package agentrunner

import "encoding/json"

// EventType is the tag on a line of the streaming event sequence.
type EventType string

const (
	EventSystemInit      EventType = "system"
	EventAssistant       EventType = "assistant"
	EventAuthStatus      EventType = "auth_status"
	EventResult          EventType = "result"
)

// SystemSubtype distinguishes the two "system" events the runner observes.
const (
	SystemSubtypeInit            = "init"
	SystemSubtypeCompactBoundary = "compact_boundary"
)

// ResultSubtype enumerates terminal result outcomes.
const (
	ResultSuccess                          = "success"
	ResultErrorMaxTurns                    = "error_max_turns"
	ResultErrorMaxBudgetUSD                = "error_max_budget_usd"
	ResultErrorDuringExecution             = "error_during_execution"
	ResultErrorMaxStructuredOutputRetries  = "error_max_structured_output_retries"
)

// rawEvent is the wire shape of one NDJSON line from the subprocess.
type rawEvent struct {
	Type    EventType `json:"type"`
	Subtype string    `json:"subtype,omitempty"`

	// system.init / system.compact_boundary
	SessionID         string `json:"session_id,omitempty"`
	PreCompactTokens  int    `json:"pre_compact_tokens,omitempty"`

	// assistant
	Usage *usagePayload `json:"usage,omitempty"`
	Error *errorPayload `json:"error,omitempty"`

	// result
	Result     string   `json:"result,omitempty"`
	CostUSD    float64  `json:"cost_usd,omitempty"`
	NumTurns   int      `json:"num_turns,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
}

type usagePayload struct {
	InputTokens          int     `json:"input_tokens"`
	OutputTokens         int     `json:"output_tokens"`
	CacheReadInputTokens int     `json:"cache_read_input_tokens"`
	TotalCostUSD         float64 `json:"total_cost_usd"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorKind classifications carried on an assistant event's error field.
const (
	ErrorAuthenticationFailed = "authentication_failed"
	ErrorBillingError         = "billing_error"
	ErrorRateLimit            = "rate_limit"
	ErrorServerError          = "server_error"
	ErrorMaxOutputTokens      = "max_output_tokens"
)

func parseEventLine(line []byte) (rawEvent, error) {
	var e rawEvent
	if err := json.Unmarshal(line, &e); err != nil {
		return rawEvent{}, err
	}
	return e, nil
}

// resultText renders the human-facing text for a non-success result
// subtype, per the fixed mapping the runner must use.
func resultText(subtype string, errs []string) string {
	switch subtype {
	case ResultErrorMaxTurns:
		return "The agent reached its maximum turn limit before finishing."
	case ResultErrorMaxBudgetUSD:
		return "The agent reached its maximum budget limit before finishing."
	case ResultErrorDuringExecution:
		msg := "The agent encountered an error while executing."
		if len(errs) > 0 {
			msg = msg + "\n" + joinLines(errs)
		}
		return msg
	case ResultErrorMaxStructuredOutputRetries:
		return "The agent could not produce a valid structured output after repeated retries."
	default:
		return "The agent run did not complete successfully."
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
