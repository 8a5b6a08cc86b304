package ui

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Prompt is the input textarea, growing from one line up to maxH as the
// user types.
type Prompt struct {
	textarea.Model
	termW int
	minH  int
	maxH  int
	lastH int
}

func NewPrompt() Prompt {
	ti := textarea.New()

	ti.Focus()
	ti.Prompt = userStyle.Render("█ ")
	ti.Placeholder = "Ask the model something... (/help for commands)"
	ti.CharLimit = 0
	ti.SetWidth(80)
	ti.ShowLineNumbers = false
	ti.SetHeight(1)

	ti.FocusedStyle.Base.Background(lipgloss.Color("235"))
	ti.FocusedStyle.Text = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	ti.FocusedStyle.Base.Border(lipgloss.BlockBorder(), true, false).BorderForeground(lipgloss.Color("34")).BorderBackground(lipgloss.Color("235"))
	ti.BlurredStyle.Base.Border(lipgloss.BlockBorder(), true, false).BorderForeground(lipgloss.Color("34")).BorderBackground(lipgloss.Color("235"))

	return Prompt{
		Model: ti,
		minH:  1,
		maxH:  20,
		lastH: -1,
	}
}

func (p Prompt) View() string {
	return p.Model.View()
}

func (p Prompt) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	var cmd tea.Cmd
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		p.termW = msg.Width
		p.Model.SetWidth(p.termW)
	}

	// grow or shrink to fit the wrapped content
	needed := wrapLinesCount(p.Model.Value(), p.Model.Width())
	if needed < p.minH {
		needed = p.minH
	}
	if needed > p.maxH {
		needed = p.maxH
	}
	if needed != p.lastH {
		p.Model.SetHeight(needed)
		p.lastH = needed
	}

	p.Model, cmd = p.Model.Update(msg)

	return p, cmd
}

// wrapLinesCount returns how many display lines s needs at the given width.
func wrapLinesCount(s string, width int) int {
	if width <= 0 {
		return utf8.RuneCountInString(s)
	}
	lines := strings.Split(s, "\n")
	total := 0
	for _, l := range lines {
		if l == "" {
			total++
			continue
		}
		w := 0
		for _, r := range l {
			w += runewidth.RuneWidth(r)
		}
		total += int(math.Ceil(float64(w) / float64(width)))
	}
	if total == 0 {
		return 1
	}
	return total + 1
}
