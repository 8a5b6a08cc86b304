package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/convo"
)

type fakeSession struct {
	turns        []convo.Turn
	systemPrompt string
	cleared      bool
	droppedLast  bool
	droppedPair  bool
}

func (f *fakeSession) GetClient() ai.Provider        { return nil }
func (f *fakeSession) ClearMessages()                { f.cleared = true }
func (f *fakeSession) Turns() []convo.Turn           { return f.turns }
func (f *fakeSession) RequestMessages() []ai.Message { return nil }
func (f *fakeSession) SetSystemPrompt(p string)      { f.systemPrompt = p }
func (f *fakeSession) SystemPrompt() string          { return f.systemPrompt }
func (f *fakeSession) DropLastAssistant() bool       { return f.droppedLast }
func (f *fakeSession) DropLastExchange() bool        { return f.droppedPair }

func env(s Session) *Environment {
	return &Environment{Session: s, Config: &config.Config{}}
}

func TestParse(t *testing.T) {
	isCmd, name, args := DefaultRegistry.Parse("/model deepseek-r1:7b")
	assert.True(t, isCmd)
	assert.Equal(t, "model", name)
	assert.Equal(t, []string{"deepseek-r1:7b"}, args)

	isCmd, _, _ = DefaultRegistry.Parse("tell me about /etc/hosts")
	assert.False(t, isCmd)

	isCmd, _, _ = DefaultRegistry.Parse("  /help  ")
	assert.True(t, isCmd)
}

func TestUnknownCommand(t *testing.T) {
	res, err := DefaultRegistry.Execute(context.Background(), "/bogus", env(&fakeSession{}))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Unknown command")
}

func TestClearCommand(t *testing.T) {
	s := &fakeSession{}
	res, err := DefaultRegistry.Execute(context.Background(), "/clear", env(s))
	require.NoError(t, err)
	assert.True(t, s.cleared)
	assert.False(t, res.ShouldExit)
}

func TestExitCommand(t *testing.T) {
	res, err := DefaultRegistry.Execute(context.Background(), "/exit", env(&fakeSession{}))
	require.NoError(t, err)
	assert.True(t, res.ShouldExit)
}

func TestRegenCommand(t *testing.T) {
	s := &fakeSession{droppedLast: true}
	res, err := DefaultRegistry.Execute(context.Background(), "/regen", env(s))
	require.NoError(t, err)
	assert.True(t, res.Resubmit)

	s = &fakeSession{droppedLast: false}
	res, err = DefaultRegistry.Execute(context.Background(), "/regen", env(s))
	require.NoError(t, err)
	assert.False(t, res.Resubmit)
	assert.Equal(t, "Nothing to regenerate", res.Message)
}

func TestRemoveCommand(t *testing.T) {
	s := &fakeSession{droppedPair: true}
	res, err := DefaultRegistry.Execute(context.Background(), "/remove", env(s))
	require.NoError(t, err)
	assert.False(t, res.Resubmit)
	assert.Contains(t, res.Message, "Removed")
}

func TestSystemPromptCommand(t *testing.T) {
	s := &fakeSession{}
	res, err := DefaultRegistry.Execute(context.Background(), "/system you are terse", env(s))
	require.NoError(t, err)
	assert.Equal(t, "you are terse", s.systemPrompt)
	assert.Contains(t, res.Message, "updated")

	res, err = DefaultRegistry.Execute(context.Background(), "/system", env(s))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "you are terse")
}

func TestExportCommand(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "log.txt")
	s := &fakeSession{turns: []convo.Turn{
		{Role: convo.RoleUser, Content: "Q"},
		{Role: convo.RoleAssistant, Content: "A", Deliberation: "D"},
	}}

	res, err := DefaultRegistry.Execute(context.Background(), "/export "+fn, env(s))
	require.NoError(t, err)
	assert.Contains(t, res.Message, fn)

	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CoT:\nD")
}

func TestAliases(t *testing.T) {
	for alias, name := range map[string]string{
		"h":  "help",
		"c":  "clear",
		"q":  "exit",
		"r":  "regen",
		"rm": "remove",
	} {
		cmd, ok := DefaultRegistry.Get(alias)
		require.True(t, ok, alias)
		assert.Equal(t, name, cmd.Name)
	}
}
