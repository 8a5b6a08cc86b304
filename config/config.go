package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// AI Provider settings
	Provider string `mapstructure:"provider"` // "openai", "ollama", "custom"
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"` // OpenAI-compatible endpoint

	// Sampling settings
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"` // Max tokens per response

	// Reasoning marker settings
	StartMarker  string `mapstructure:"start_marker"`  // Opens the deliberation block
	EndMarker    string `mapstructure:"end_marker"`    // Closes the deliberation block
	AssumeOpen   bool   `mapstructure:"assume_open"`   // Stream starts inside the deliberation
	PrependThink bool   `mapstructure:"prepend_think"` // Insert a fresh start marker system message per request

	// Context settings
	MaxHistorySize   int `mapstructure:"max_history_size"`   // Max turns sent back as context
	MaxContextTokens int `mapstructure:"max_context_tokens"` // Token budget for the resent context

	// UI settings
	NoColor bool `mapstructure:"no_color"` // Disable colored output
	Verbose bool `mapstructure:"verbose"`  // Verbose logging

	// Session settings
	SessionDir  string `mapstructure:"session_dir"`  // Where to store sessions
	SaveHistory bool   `mapstructure:"save_history"` // Save conversation history
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		Provider:         "ollama",
		Model:            "deepseek-r1:latest",
		APIKey:           "",
		BaseURL:          "", // Will be set based on provider if empty
		Temperature:      0.6,
		TopP:             0.95,
		MaxTokens:        4096,
		StartMarker:      "<think>",
		EndMarker:        "</think>",
		AssumeOpen:       false,
		PrependThink:     true,
		MaxHistorySize:   100,
		MaxContextTokens: 32768,
		NoColor:          false,
		Verbose:          false,
		SessionDir:       ".deeptalk",
		SaveHistory:      true,
	}

	// Unmarshal viper config into struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load API key from environment if not in config
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		}
	}

	// Set default base URLs if not specified
	if cfg.BaseURL == "" {
		cfg.BaseURL = getDefaultBaseURL(cfg.Provider)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// API key not required for local models like Ollama
	if c.APIKey == "" && c.Provider == "openai" {
		return fmt.Errorf("API key not found. Set OPENAI_API_KEY or DEEPSEEK_API_KEY environment variable")
	}

	if c.Provider != "openai" && c.Provider != "ollama" && c.Provider != "custom" {
		return fmt.Errorf("invalid provider: %s (must be 'openai', 'ollama', or 'custom')", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model not specified")
	}

	if c.BaseURL == "" {
		return fmt.Errorf("base_url not specified")
	}

	if c.StartMarker == "" || c.EndMarker == "" {
		return fmt.Errorf("start_marker and end_marker must not be empty")
	}

	if c.StartMarker == c.EndMarker {
		return fmt.Errorf("start_marker and end_marker must differ")
	}

	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be > 0")
	}

	if c.MaxHistorySize < 0 || c.MaxContextTokens < 0 {
		return fmt.Errorf("context limits must be >= 0")
	}

	return nil
}

// Initialize creates a default config file
func Initialize() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := home + "/.deeptalk.yaml"

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	// Create default config
	defaultConfig := `# DeepTalk Configuration

# AI Provider (openai, ollama, or custom)
# All providers must speak the OpenAI chat-completions API
provider: ollama
model: deepseek-r1:latest

# Base URL for API endpoint (optional - defaults set per provider)
# For Ollama: http://localhost:11434/v1
# For custom OpenAI-compatible servers (text-generation-webui, vLLM, ...)
# base_url: http://localhost:5000/v1

# API Key (or use environment variable)
# Not required for Ollama or local models
# api_key: your-api-key-here

# Sampling
temperature: 0.6       # Model temperature (0.0 - 1.0)
top_p: 0.95            # Nucleus sampling
max_tokens: 4096       # Max tokens per response

# Reasoning markers
start_marker: "<think>"   # Opens the deliberation block
end_marker: "</think>"    # Closes the deliberation block
assume_open: false        # Set when the opening tag lives in the prompt template
prepend_think: true       # Force fresh reasoning by prepending the start marker

# Context
max_history_size: 100      # Max turns resent as context
max_context_tokens: 32768  # Token budget for resent context

# UI
no_color: false        # Disable colored output
verbose: false         # Verbose logging

# Session
session_dir: .deeptalk # Where to store session data
save_history: true     # Save conversation history
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configPath)

	return nil
}

// Display shows the current configuration
func Display(cfg *Config) error {
	fmt.Println("Current Configuration:")
	fmt.Printf("  Provider: %s\n", cfg.Provider)
	fmt.Printf("  Model: %s\n", cfg.Model)
	fmt.Printf("  Base URL: %s\n", cfg.BaseURL)
	if cfg.APIKey != "" {
		fmt.Printf("  API Key: %s\n", maskAPIKey(cfg.APIKey))
	} else {
		fmt.Printf("  API Key: (not set)\n")
	}
	fmt.Printf("  Temperature: %g\n", cfg.Temperature)
	fmt.Printf("  Top-p: %g\n", cfg.TopP)
	fmt.Printf("  Markers: %s ... %s\n", cfg.StartMarker, cfg.EndMarker)
	fmt.Printf("  Assume Open: %t\n", cfg.AssumeOpen)
	fmt.Printf("  Prepend Think: %t\n", cfg.PrependThink)
	fmt.Printf("  Max History: %d turns / %d tokens\n", cfg.MaxHistorySize, cfg.MaxContextTokens)
	return nil
}

// Set updates a configuration value
func Set(key, value string) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

func maskAPIKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// getDefaultBaseURL returns the default base URL for a provider
func getDefaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434/v1"
	case "custom":
		return "" // Must be set by user
	default:
		return ""
	}
}
