package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
)

// Config is the fully resolved process configuration, populated from a
// merged .env-file mapping via envconfig struct tags.
type Config struct {
	Transport TransportConfig
	Agent     AgentConfig
	Speech    SpeechConfig
	Webhook   WebhookConfig
	Image     ImageConfig
	Paths     PathsConfig
}

// TransportConfig carries the Telegram bot token and the allow-listed chats.
type TransportConfig struct {
	BotToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	AllowList string `envconfig:"TELEGRAM_ALLOWED_CHAT_IDS"`
}

// AgentConfig carries the agent runtime's credentials and tunables.
type AgentConfig struct {
	OAuthToken        string `envconfig:"CLAUDE_CODE_OAUTH_TOKEN"`
	APIKey            string `envconfig:"ANTHROPIC_API_KEY"`
	SystemPromptAppend string `envconfig:"AGENT_SYSTEM_PROMPT_APPEND"`
	TimeoutMS         int    `envconfig:"AGENT_TIMEOUT_MS" default:"300000"`
}

// SpeechConfig carries STT/TTS provider credentials.
type SpeechConfig struct {
	APIKey  string `envconfig:"SPEECH_API_KEY"`
	VoiceID string `envconfig:"SPEECH_VOICE_ID"`
}

// WebhookConfig carries the external automation endpoint used by commands
// like /gmail, /cal, /todo and /n8n.
type WebhookConfig struct {
	BaseURL string `envconfig:"WEBHOOK_BASE_URL"`
	APIKey  string `envconfig:"WEBHOOK_API_KEY"`
}

// ImageConfig carries the image-generation provider credentials.
type ImageConfig struct {
	APIKey string `envconfig:"IMAGE_API_KEY"`
	Model  string `envconfig:"IMAGE_MODEL"`
}

// PathsConfig carries the persisted-state layout root and the source
// checkout /rebuild operates on.
type PathsConfig struct {
	ProjectDir string `envconfig:"PROJECT_DIR" default:"."`
	RepoDir    string `envconfig:"REPO_DIR" default:"."`
}

var envconfigMu sync.Mutex

// chatIDPattern matches an individual allow-list entry per §6: "-?\d+".
var chatIDPattern = regexp.MustCompile(`^-?\d+$`)

// AllowedChatIDs parses the comma-separated allow-list, keeping only entries
// that match the chat-id shape and discarding the rest silently.
func (t TransportConfig) AllowedChatIDs() []int64 {
	var ids []int64
	for _, raw := range strings.Split(t.AllowList, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" || !chatIDPattern.MatchString(entry) {
			continue
		}
		id, err := strconv.ParseInt(entry, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// buildFromMap populates a Config from a merged key/value mapping using
// envconfig, without leaving any trace in the real process environment:
// the keys the mapping carries are staged into the environment only for
// the duration of envconfig.Process, under a package mutex, and restored
// to their prior values (or unset) immediately afterward.
func buildFromMap(m map[string]string) (Config, error) {
	envconfigMu.Lock()
	defer envconfigMu.Unlock()

	restore := stageEnv(m)
	defer restore()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("processing config: %w", err)
	}
	return cfg, nil
}
