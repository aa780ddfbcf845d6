package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. A disabled config yields
// an empty provider. Keys come from the environment, never from the config file.
func ConfigFromModel(mc model.LLMConfig) Config {
	cfg := DefaultConfig()
	if !mc.Enabled {
		return cfg
	}
	cfg.Provider = mc.Provider
	cfg.Model = mc.Model
	cfg.BaseURL = mc.BaseURL
	cfg.APIKey = apiKeyFromEnv(mc.Provider)
	if mc.Timeout > 0 {
		cfg.Timeout = mc.Timeout
	}
	if mc.MaxTokens > 0 {
		cfg.MaxTokens = mc.MaxTokens
	}
	cfg.Temperature = mc.Temperature
	cfg.HTTPProxy = os.Getenv("HTTP_PROXY")
	cfg.HTTPSProxy = os.Getenv("HTTPS_PROXY")
	cfg.NoProxy = os.Getenv("NO_PROXY")
	return cfg
}

func apiKeyFromEnv(provider string) string {
	if key := os.Getenv("CLAIMLENS_LLM_API_KEY"); key != "" {
		return key
	}
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
