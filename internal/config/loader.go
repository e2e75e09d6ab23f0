package config

import (
	"fmt"
	"os"
)

// Load reads the .env file at path (the default path when path is empty),
// merges it over the real process environment, and populates a typed
// Config. The merged mapping is never written back to the process
// environment beyond the lifetime of this call.
func Load(path string) (Config, error) {
	fileValues, err := LoadEnvFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loading env file: %w", err)
	}

	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range fileValues {
		merged[k] = v
	}

	cfg, err := buildFromMap(merged)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the minimal admission requirements: a bot token and at
// least one allow-listed chat id.
func Validate(cfg Config) error {
	if cfg.Transport.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if len(cfg.Transport.AllowedChatIDs()) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_CHAT_IDS must contain at least one chat id")
	}
	return nil
}

// stageEnv sets every key in m into the process environment and returns a
// function that restores each touched key to its prior value (or removes
// it if it was previously unset).
func stageEnv(m map[string]string) func() {
	type prior struct {
		value string
		set   bool
	}
	saved := make(map[string]prior, len(m))
	for k, v := range m {
		old, ok := os.LookupEnv(k)
		saved[k] = prior{value: old, set: ok}
		os.Setenv(k, v)
	}
	return func() {
		for k, p := range saved {
			if p.set {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}
}
