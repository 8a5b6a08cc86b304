package convo

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/penguinpowernz/deeptalk/internal/ai"
)

// Limits bounds what RequestMessages is allowed to hand back. Zero values
// disable the corresponding bound.
type Limits struct {
	MaxTurns  int
	MaxTokens int
}

// Buffer owns the ordered turn history that gets serialized back into each
// request. Turns are append-only; the only mutations are explicit resets and
// the drop operations backing the regen/remove actions.
type Buffer struct {
	mu     sync.Mutex
	turns  []Turn
	limits Limits

	// when set, every projection is fronted with a fresh system message
	// containing the start marker, forcing the model to open a new
	// deliberation instead of reusing a stale one
	prependThink bool
	startMarker  string

	systemPrompt string
}

func NewBuffer(limits Limits) *Buffer {
	return &Buffer{limits: limits}
}

// PrependThink makes RequestMessages insert a system message carrying the
// given start marker ahead of the history.
func (b *Buffer) PrependThink(startMarker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prependThink = true
	b.startMarker = startMarker
}

// SetSystemPrompt sets a system message that fronts every projection. It is
// never stored in the turn history.
func (b *Buffer) SetSystemPrompt(prompt string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemPrompt = prompt
}

func (b *Buffer) SystemPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.systemPrompt
}

// Restore replaces the history with a previously archived set of turns.
func (b *Buffer) Restore(turns []Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = make([]Turn, len(turns))
	copy(b.turns, turns)
}

// AppendUser appends a user turn. Empty text is ignored.
func (b *Buffer) AppendUser(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, Turn{Role: RoleUser, Content: text, At: time.Now()})
}

// AppendAssistant appends the completed turn produced by a segmenter.
func (b *Buffer) AppendAssistant(t Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.Role = RoleAssistant
	b.turns = append(b.turns, t)
}

// Turns returns a copy of the full history, deliberations included.
func (b *Buffer) Turns() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// Reset clears all history.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
}

// DropLast removes the most recent turn if it has the given role, returning
// its content. Used to pop a dangling user prompt on cancel, and the stale
// assistant turn on regen.
func (b *Buffer) DropLast(role string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.turns) == 0 || b.turns[len(b.turns)-1].Role != role {
		return "", false
	}
	last := b.turns[len(b.turns)-1]
	b.turns = b.turns[:len(b.turns)-1]
	return last.Content, true
}

// DropLastExchange removes the trailing user+assistant pair. When the
// history ends with a lone turn instead, just that turn goes.
func (b *Buffer) DropLastExchange() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.turns)
	if n == 0 {
		return false
	}
	if n >= 2 && b.turns[n-2].Role == RoleUser && b.turns[n-1].Role == RoleAssistant {
		b.turns = b.turns[:n-2]
		return true
	}
	b.turns = b.turns[:n-1]
	return true
}

// RequestMessages projects the history into the payload for the next
// request: deliberation text dropped entirely, oldest exchanges evicted
// until the turn and token budgets hold. Eviction always takes whole
// user+assistant pairs so the projection never begins with an orphaned
// assistant turn. Calling it twice without an intervening append returns
// identical results.
func (b *Buffer) RequestMessages() []ai.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([]ai.Message, 0, len(b.turns)+1)
	for _, t := range b.turns {
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Content})
	}

	for len(msgs) > 0 && b.overBudget(msgs) {
		n := 1
		if len(msgs) > 1 && msgs[0].Role == RoleUser && msgs[1].Role == RoleAssistant {
			n = 2
		}
		msgs = msgs[n:]
	}

	// system messages are rebuilt fresh every projection, after truncation,
	// so eviction can never take them
	if b.prependThink {
		sys := ai.Message{Role: RoleSystem, Content: b.startMarker + "\n"}
		msgs = append([]ai.Message{sys}, msgs...)
	}
	if b.systemPrompt != "" {
		sys := ai.Message{Role: RoleSystem, Content: b.systemPrompt}
		msgs = append([]ai.Message{sys}, msgs...)
	}

	return msgs
}

func (b *Buffer) overBudget(msgs []ai.Message) bool {
	if b.limits.MaxTurns > 0 && len(msgs) > b.limits.MaxTurns {
		return true
	}
	if b.limits.MaxTokens > 0 {
		total := 0
		for _, m := range msgs {
			total += countTokens(m.Content)
		}
		if total > b.limits.MaxTokens {
			return true
		}
	}
	return false
}

var countTokens = func(s string) int {
	enc := encoding()
	if enc == nil {
		// rough heuristic when the BPE files aren't available
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		var err error
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Println("[convo] tiktoken unavailable, falling back to byte estimate:", err)
		}
	})
	return enc
}

// dump is used by token accounting that wants the serialized size of a
// value rather than a plain string.
func dump(v any) string {
	d, _ := json.Marshal(v)
	return string(d)
}

// CountMessageTokens returns the token cost of a serialized message list.
func CountMessageTokens(msgs []ai.Message) int {
	return countTokens(dump(msgs))
}
