package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/chat"
	"github.com/penguinpowernz/deeptalk/internal/history"
	"github.com/penguinpowernz/deeptalk/internal/ui"
)

var (
	version = "dev"
	cfgFile string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	rootCmd := newRootCommand(ctx)
	return rootCmd.Execute()
}

func newRootCommand(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deeptalk [message]",
		Short: "Chat with reasoning LLMs",
		Long: `A conversational client for reasoning LLMs such as DeepSeek-R1.
Shows the model's chain of thought separately from its answer, and keeps
the chain of thought out of the context sent back to the model.

Run without arguments to enter interactive mode, or provide a message to send immediately.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := os.MkdirAll(cfg.SessionDir, 0755); err != nil {
				return fmt.Errorf("failed to create session directory: %w", err)
			}

			f, err := os.OpenFile(filepath.Join(cfg.SessionDir, "deeptalk.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			log.SetOutput(f)

			aiClient, err := ai.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create AI client: %w", err)
			}

			sessionID := viper.GetString("session")
			if sessionID == "" {
				sessionID = generateSessionID()
			}
			history.SetSessionID(sessionID)
			history.SetConfig(*cfg)

			session := chat.NewSession(cfg, aiClient, sessionID)

			// One-shot mode
			if len(args) > 0 {
				return session.SendMessage(ctx, strings.Join(args, " "))
			}

			cm := ui.NewChatModel(ctx, *cfg)
			session.AddObserver(cm)
			cm.AddObserver(session)

			// Enter interactive mode
			go session.InteractiveMode(ctx)
			p := tea.NewProgram(cm, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running interactive mode: %w", err)
			}

			fmt.Println("Ended chat session", sessionID)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deeptalk.yaml)")
	rootCmd.PersistentFlags().String("model", "", "AI model to use (e.g., deepseek-r1:latest)")
	rootCmd.PersistentFlags().String("provider", "", "AI provider (ollama, openai, custom)")
	rootCmd.PersistentFlags().String("session", "", "The session ID to load history from")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file to $HOME/.deeptalk.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Initialize()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return config.Display(cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Set(args[0], args[1])
		},
	})

	return configCmd
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// Search for config in home directory
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deeptalk")

		// Also check XDG config directory
		configDir, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(configDir + "/deeptalk")
		}
	}

	// Read environment variables
	viper.SetEnvPrefix("DEEPTALK")
	viper.AutomaticEnv()

	// Read config file (ignore not found errors)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

func generateSessionID() string {
	return uuid.New().String()[:6]
}
