package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkoukk/tiktoken-go"

	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/convo"
	"github.com/penguinpowernz/deeptalk/internal/history"
)

var (
	DefaultRegistry *Registry
)

func init() {
	DefaultRegistry = NewRegistry()
}

type Session interface {
	GetClient() ai.Provider
	ClearMessages()
	Turns() []convo.Turn
	RequestMessages() []ai.Message
	SetSystemPrompt(string)
	SystemPrompt() string
	DropLastAssistant() bool
	DropLastExchange() bool
}

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     HandlerFunc
}

// HandlerFunc is the function signature for command handlers
type HandlerFunc func(ctx context.Context, args []string, env *Environment) (*Result, error)

// Environment provides context for command execution
type Environment struct {
	Session Session
	Config  *config.Config
}

// Result represents the outcome of a command
type Result struct {
	Message    string // Message to display to user
	ShouldExit bool   // Whether to exit the application
	ClearInput bool   // Whether to clear the input field
	Resubmit   bool   // Whether to stream a new response against the current context
}

// Registry manages all available commands
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates a new command registry with default commands
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
	}

	// Register built-in commands
	r.Register(&Command{
		Name:        "help",
		Aliases:     []string{"h", "?"},
		Description: "Show available commands",
		Usage:       "/help",
		Handler:     helpHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		Aliases:     []string{"c"},
		Description: "Clear conversation history",
		Usage:       "/clear",
		Handler:     clearHandler,
	})

	r.Register(&Command{
		Name:        "exit",
		Aliases:     []string{"quit", "q"},
		Description: "Exit the application",
		Usage:       "/exit",
		Handler:     exitHandler,
	})

	r.Register(&Command{
		Name:        "model",
		Aliases:     []string{"m"},
		Description: "Show or change the AI model",
		Usage:       "/model [model-name]",
		Handler:     modelHandler,
	})

	r.Register(&Command{
		Name:        "models",
		Description: "Show available AI models",
		Usage:       "/models",
		Handler:     modelsHandler,
	})

	r.Register(&Command{
		Name:        "tokens",
		Aliases:     []string{"t"},
		Description: "Show token usage statistics",
		Usage:       "/tokens",
		Handler:     tokensHandler,
	})

	r.Register(&Command{
		Name:        "system",
		Aliases:     []string{"sys"},
		Description: "Show or update system prompt",
		Usage:       "/system [new prompt]",
		Handler:     systemPromptHandler,
	})

	r.Register(&Command{
		Name:        "export",
		Aliases:     []string{"save"},
		Description: "Export the conversation as a text log",
		Usage:       "/export [filename]",
		Handler:     exportHandler,
	})

	r.Register(&Command{
		Name:        "regen",
		Aliases:     []string{"r"},
		Description: "Regenerate the last response with fresh reasoning",
		Usage:       "/regen",
		Handler:     regenHandler,
	})

	r.Register(&Command{
		Name:        "remove",
		Aliases:     []string{"rm"},
		Description: "Remove the last exchange from history",
		Usage:       "/remove",
		Handler:     removeHandler,
	})

	return r
}

// Register adds a command to the registry
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[alias] = cmd
	}
}

// Get retrieves a command by name or alias
func (r *Registry) Get(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns all unique commands (no aliases)
func (r *Registry) List() []*Command {
	seen := make(map[string]bool)
	var result []*Command

	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			result = append(result, cmd)
		}
	}

	return result
}

// Parse parses a message and determines if it's a command
func (r *Registry) Parse(message string) (isCommand bool, cmdName string, args []string) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "/") {
		return false, "", nil
	}

	// Remove leading slash
	trimmed = strings.TrimPrefix(trimmed, "/")

	// Split into parts
	parts := strings.Fields(trimmed)
	if len(parts) == 0 {
		return false, "", nil
	}

	return true, parts[0], parts[1:]
}

// Execute runs a command
func (r *Registry) Execute(ctx context.Context, message string, env *Environment) (*Result, error) {
	isCommand, cmdName, args := r.Parse(message)
	if !isCommand {
		return nil, fmt.Errorf("not a command")
	}

	cmd, ok := r.Get(cmdName)
	if !ok {
		return &Result{
			Message:    fmt.Sprintf("Unknown command: /%s\nType /help for available commands", cmdName),
			ClearInput: true,
		}, nil
	}

	return cmd.Handler(ctx, args, env)
}

// -------------------------------------------------------------------
// Command Handlers
// -------------------------------------------------------------------

func helpHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	var sb strings.Builder
	sb.WriteString("Available Commands:\n\n")

	for _, cmd := range DefaultRegistry.List() {
		sb.WriteString(fmt.Sprintf("  %-12s %s\n", "/"+cmd.Name, cmd.Description))
	}

	return &Result{
		Message:    sb.String(),
		ClearInput: true,
	}, nil
}

func clearHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	env.Session.ClearMessages()
	return &Result{
		Message:    "Conversation history cleared",
		ClearInput: true,
	}, nil
}

func exitHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	return &Result{
		Message:    "Goodbye!",
		ShouldExit: true,
	}, nil
}

func modelHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	// Show current model
	if len(args) == 0 {
		info := env.Session.GetClient().GetModelInfo()
		return &Result{
			Message: fmt.Sprintf("Current model: %s (%s)\nMax tokens: %d\nUse /model <model> to change models",
				info.Name, info.Provider, info.MaxTokens),
			ClearInput: true,
		}, nil
	}

	model := args[0]
	env.Config.Model = model
	return &Result{
		Message:    fmt.Sprintf("Model changed to %s for this session", model),
		ClearInput: true,
	}, nil
}

func modelsHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	models, err := env.Session.GetClient().ListModels(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("Available models:\n")
	for _, model := range models {
		sb.WriteString(fmt.Sprintf("  - %s\n", model))
	}

	return &Result{
		Message:    sb.String(),
		ClearInput: true,
	}, nil
}

func tokensHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}

	dump := func(v any) string { d, _ := json.Marshal(v); return string(d) }

	var sys, in, out []ai.Message
	for _, msg := range env.Session.RequestMessages() {
		switch msg.Role {
		case convo.RoleSystem:
			sys = append(sys, msg)
		case convo.RoleUser:
			in = append(in, msg)
		case convo.RoleAssistant:
			out = append(out, msg)
		}
	}

	system := len(enc.Encode(dump(sys), nil, nil))
	input := len(enc.Encode(dump(in), nil, nil))
	output := len(enc.Encode(dump(out), nil, nil))
	total := system + input + output

	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	return &Result{
		Message: fmt.Sprintf(`  %s: %5d tokens
  %s:  %5d tokens
  %s: %5d tokens
  %s:  %5d tokens
	`,
			style.Render("System"), system,
			style.Render("Input"), input,
			style.Render("Output"), output,
			style.Render("Total"), total,
		),
		ClearInput: true,
	}, nil
}

func systemPromptHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	// Show current system prompt
	if len(args) == 0 {
		prompt := env.Session.SystemPrompt()
		if prompt == "" {
			prompt = "(no system prompt set)"
		}
		return &Result{
			Message:    fmt.Sprintf("System Prompt:\n\n%s", prompt),
			ClearInput: true,
		}, nil
	}

	// Update system prompt
	env.Session.SetSystemPrompt(strings.Join(args, " "))

	return &Result{
		Message:    "System prompt updated for this session",
		ClearInput: true,
	}, nil
}

func exportHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	filename := "chat_log.txt"
	if len(args) > 0 {
		filename = args[0]
	}

	if err := history.ExportLogFile(filename, env.Session.Turns()); err != nil {
		return nil, err
	}

	return &Result{
		Message:    fmt.Sprintf("Log exported as %s", filename),
		ClearInput: true,
	}, nil
}

func regenHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	if !env.Session.DropLastAssistant() {
		return &Result{
			Message:    "Nothing to regenerate",
			ClearInput: true,
		}, nil
	}

	return &Result{
		Message:    "Regenerating last response...",
		ClearInput: true,
		Resubmit:   true,
	}, nil
}

func removeHandler(ctx context.Context, args []string, env *Environment) (*Result, error) {
	if !env.Session.DropLastExchange() {
		return &Result{
			Message:    "Nothing to remove",
			ClearInput: true,
		}, nil
	}

	return &Result{
		Message:    "Removed the last exchange",
		ClearInput: true,
	}, nil
}
