package ai

import (
	"fmt"

	"github.com/penguinpowernz/deeptalk/config"
)

// NewClient creates a new AI client based on the provider configuration.
// Every supported provider speaks the OpenAI chat-completions wire format,
// which is the only one the marker-tagged reasoning flow exists on.
func NewClient(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "ollama":
		// Ollama uses OpenAI-compatible API
		return NewOpenAIClient(cfg)
	case "custom":
		// Custom providers assumed to be OpenAI-compatible
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
