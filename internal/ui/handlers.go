package ui

import (
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/commands"
)

func (m *ChatModel) onSystemMessage(msg string) {
	m.addMessage("system", msg)
	m.refresh()
}

func (m *ChatModel) onStreamStarted() {
	log.Println("[ui] STREAM STARTED")
	m.typing = false
	m.currentStream.Reset()

	m.thinking = true
	m.addMessage("thinking", "")
	m.refresh()
}

func (m *ChatModel) onStreamThink(chunk string) {
	m.currentStream.WriteString(chunk)

	// Update the last streaming message
	if len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == "thinking" {
		m.messages[len(m.messages)-1].Content = m.currentStream.String()
	}
	m.refresh()
}

func (m *ChatModel) onStreamChunk(chunk string) {
	if m.thinking {
		m.currentStream.Reset()
		// Add a streaming assistant message
		m.addMessage("assistant-streaming", "")
		m.thinking = false
		m.typing = true
	}

	m.currentStream.WriteString(chunk)

	// Update the last streaming message
	if len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == "assistant-streaming" {
		m.messages[len(m.messages)-1].Content = m.currentStream.String()
	}
	m.refresh()
}

func (m *ChatModel) onStreamEnded(finalContent string) {
	m.typing = false
	m.thinking = false

	// the content arrives already segmented; only tidy the edges for display
	finalContent = strings.TrimSpace(finalContent)

	// Finalize the streaming message
	if len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == "assistant-streaming" {
		m.messages[len(m.messages)-1].Role = "assistant"
		m.messages[len(m.messages)-1].Content = finalContent
	}

	// Reset current stream
	m.currentStream.Reset()
	m.refresh()

	log.Println("[ui] we ended! final was ", finalContent)
}

func (m *ChatModel) onStreamErr(err error) {
	log.Println("[ui] STREAM ERROR:", err)
	m.typing = false
	m.thinking = false
	m.currentStream.Reset()
	m.addMessage("system", "Error: "+err.Error())
	m.refresh()
}

func (m *ChatModel) onAssistantMessage(msg string) {
	m.addMessage("assistant", msg)
	m.refresh()
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func listen(m ChatModel) tea.Cmd {
	return func() tea.Msg {
		return <-m.in
	}
}

func (m ChatModel) handleSubmit() (tea.Model, tea.Cmd) {
	if m.typing || m.thinking {
		return m, nil
	}

	userMsg := strings.TrimSpace(m.prompt.Value())
	if userMsg == "" {
		return m, nil
	}

	// Add user message
	m.addMessage("user", userMsg)
	m.refresh()

	// Clear the prompt
	m.prompt.Reset()

	if userMsg[0] != '/' {
		m.thinking = true
	}

	m.currentStream.Reset()

	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { m.out <- EventUserPrompt(userMsg); return nil },
		listen(m),
	)
}

func (m ChatModel) handleSlashCommand(ev EventSlashCommand) (tea.Model, tea.Cmd) {
	res := commands.Result(ev)

	if res.ShouldExit {
		return m, tea.Quit
	}

	if res.Message != "" {
		m.addMessage("slashcmd", res.Message)
		m.refresh()
	}

	if res.Resubmit {
		m.thinking = true
		m.currentStream.Reset()
		return m, tea.Batch(m.spinner.Tick, listen(m))
	}

	return m, listen(m)
}

func (m *ChatModel) onStreamCancelled() {
	log.Println("[ui] STREAM CANCELLED")
	m.typing = false
	m.thinking = false
	m.addMessage("system", "Generation stopped")
	m.refresh()
}

func (m *ChatModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		log.Println("[ui] Cancel pushed...")

		return m, func() tea.Msg {
			if m.thinking || m.typing {
				log.Println("[ui] Canceling stream...")
				m.out <- EventCancelStream{}
				log.Println("[ui] Cancelled stream...")
			}
			return nil
		}

	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEnter:
		return m.handleSubmit()

	case tea.KeyCtrlD:
		return m.handleSubmit()

	case tea.KeyCtrlL:
		m.messages = make([]ai.Message, 0)
		m.viewport.SetContent(welcomeMessage())
	}
	return m, nil
}
