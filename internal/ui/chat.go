package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
)

const maxLineLength = 120

type UIObserver interface {
	Observe(chan any)
}

// ChatModel is the bubbletea model for the REPL
type ChatModel struct {
	ctx           context.Context
	cfg           config.Config
	viewport      viewport.Model
	prompt        Prompt
	spinner       spinner.Model
	messages      []ai.Message
	typing        bool
	thinking      bool
	err           error
	width         int
	height        int
	currentStream *strings.Builder
	in, out       chan any
}

func NewChatModel(ctx context.Context, cfg config.Config) *ChatModel {
	vp := viewport.New(80, 20)
	vp.SetContent(welcomeMessage())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	model := ChatModel{
		ctx:           ctx,
		cfg:           cfg,
		prompt:        NewPrompt(),
		viewport:      vp,
		spinner:       sp,
		messages:      make([]ai.Message, 0),
		currentStream: &strings.Builder{},
		in:            make(chan any),
		out:           make(chan any),
	}

	return &model
}

func (m *ChatModel) addMessage(role, msg string) {
	m.messages = append(m.messages, ai.Message{
		Role:    role,
		Content: msg,
	})
}

func (m *ChatModel) AddObserver(observer UIObserver) {
	observer.Observe(m.out)
}

func (m *ChatModel) Observe(events chan any) {
	m.in = events
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.prompt, taCmd = m.prompt.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Resize components
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6 // Leave room for the prompt and borders

		// Re-render messages with new width
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case EventSlashCommand:
		return m.handleSlashCommand(msg)

	case EventExit:
		return m, tea.Quit

	case EventStreamChunk:
		m.onStreamChunk(string(msg))
		return m, listen(m)

	case EventSystemMsg:
		m.onSystemMessage(string(msg))
		return m, listen(m)

	case EventStreamEnded:
		m.onStreamEnded(string(msg))
		return m, listen(m)

	case EventStreamThink:
		m.onStreamThink(string(msg))
		return m, listen(m)

	case EventStreamCancelled:
		m.onStreamCancelled()
		return m, listen(m)

	case EventStreamStarted:
		m.onStreamStarted()
		return m, listen(m)

	case EventStreamErr:
		m.onStreamErr(msg)
		return m, listen(m)

	case EventAssistantMessage:
		m.onAssistantMessage(string(msg))
		return m, listen(m)
	}

	return m, tea.Batch(taCmd, vpCmd, spCmd)
}

func (m ChatModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var status string
	switch {
	case m.typing:
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("201"))
		status = fmt.Sprintf("%s Typing...", m.spinner.View())
	case m.thinking:
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
		status = fmt.Sprintf("%s Thinking...", m.spinner.View())
	default:
		status = "👍 Ready"
	}

	help := helpStyle.Render("Enter: Send • Ctrl+L: Clear • Ctrl+C: Quit • ESC: Stop AI")

	return fmt.Sprintf(
		"%s\n\n%s\n\n%s\n%s",
		titleStyle.Render("DeepTalk"),
		m.viewport.View(),
		m.prompt.View(),
		lipgloss.JoinHorizontal(lipgloss.Left, status, "  ", help),
	)
}

func (m ChatModel) renderMessages() string {
	if len(m.messages) == 0 {
		return welcomeMessage()
	}

	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case "user":
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case "assistant", "assistant-streaming":
			b.WriteString(assistantStyle.Render("Assistant: "))
			b.WriteString(msg.Content)
			if msg.Role == "assistant-streaming" {
				b.WriteString(cursorStyle.Render("▋"))
			}
			b.WriteString("\n\n")
		case "system":
			b.WriteString(systemStyle.Render("System: "))
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case "slashcmd":
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case "thinking":
			b.WriteString(thinkingStyle.Render(msg.Content))
			b.WriteString("\n\n")
		}
	}

	return wordwrap.String(b.String(), min(m.width, maxLineLength))
}

func welcomeMessage() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Render(`


		░██████████████████████████████████████████████████████████████████
		░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░

		 ██████╗ ███████╗███████╗██████╗ ████████╗ █████╗ ██╗     ██╗  ██╗
		 ██╔══██╗██╔════╝██╔════╝██╔══██╗╚══██╔══╝██╔══██╗██║     ██║ ██╔╝
		 ██║  ██║█████╗  █████╗  ██████╔╝   ██║   ███████║██║     █████╔╝
		 ██║  ██║██╔══╝  ██╔══╝  ██╔═══╝    ██║   ██╔══██║██║     ██╔═██╗
		 ██████╔╝███████╗███████╗██║        ██║   ██║  ██║███████╗██║  ██╗
		 ╚═════╝ ╚══════╝╚══════╝╚═╝        ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝

		░██████████████████████████████████████████████████████████████████
		░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░

		Talk to reasoning models. Type /help for commands.
`)

}

// Styles
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("21")).Bold(true)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
