package chat

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/commands"
	"github.com/penguinpowernz/deeptalk/internal/convo"
	"github.com/penguinpowernz/deeptalk/internal/history"
	"github.com/penguinpowernz/deeptalk/internal/segment"
	"github.com/penguinpowernz/deeptalk/internal/ui"
)

// Observer is anything that wants the session's event channel.
type Observer interface {
	Observe(chan any)
}

// Session manages the conversation state
type Session struct {
	config *config.Config
	client ai.Provider
	buffer *convo.Buffer
	id     string

	mu     sync.Mutex
	stream *Stream

	in, out chan any
}

func NewSession(cfg *config.Config, client ai.Provider, id string) *Session {
	buffer := convo.NewBuffer(convo.Limits{
		MaxTurns:  cfg.MaxHistorySize,
		MaxTokens: cfg.MaxContextTokens,
	})
	if cfg.PrependThink {
		buffer.PrependThink(cfg.StartMarker)
	}

	s := &Session{
		config: cfg,
		client: client,
		buffer: buffer,
		id:     id,
		in:     make(chan any),
		out:    make(chan any),
	}

	if cfg.SaveHistory {
		if hist, err := history.LoadHistory(); err == nil && len(hist.Turns) > 0 {
			buffer.Restore(hist.Turns)
			log.Printf("[session] restored %d turns from session %s", len(hist.Turns), id)
		}
	}

	return s
}

func (s *Session) AddObserver(o Observer) {
	o.Observe(s.out)
}

func (s *Session) Observe(events chan any) {
	s.in = events
}

// InteractiveMode runs the session event loop until the context dies.
// Prompts stream in the background so a cancel event can interrupt them.
func (s *Session) InteractiveMode(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.in:
			switch ev := ev.(type) {
			case ui.EventUserPrompt:
				s.handlePrompt(ctx, string(ev))
			case ui.EventCancelStream:
				s.cancelStream()
			}
		}
	}
}

func (s *Session) handlePrompt(ctx context.Context, prompt string) {
	if isCmd, _, _ := commands.DefaultRegistry.Parse(prompt); isCmd {
		s.runCommand(ctx, prompt)
		return
	}

	s.buffer.AppendUser(enhanceMessage(s.config, prompt))
	s.saveHistory()
	go s.generate(ctx)
}

func (s *Session) runCommand(ctx context.Context, prompt string) {
	res, err := commands.DefaultRegistry.Execute(ctx, prompt, &commands.Environment{
		Session: s,
		Config:  s.config,
	})
	if err != nil {
		s.out <- ui.EventSystemMsg(fmt.Sprintf("Command failed: %v", err))
		return
	}

	s.out <- ui.EventSlashCommand(*res)

	if res.Resubmit {
		go s.generate(ctx)
	}
}

// generate streams one response against the current context and commits the
// resulting turn. A cancelled stream commits nothing and pops the prompt
// that was being answered, so the next request carries no dangling user turn.
func (s *Session) generate(ctx context.Context) {
	stream := NewStream(s.client, s.segmentConfig())

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	stream.OnStart(func() {
		s.out <- ui.EventStreamStarted("")
	})
	stream.OnEvent(func(ev segment.Event) {
		switch ev.Channel {
		case segment.ChannelDeliberation:
			s.out <- ui.EventStreamThink(ev.Text)
		case segment.ChannelAnswer:
			s.out <- ui.EventStreamChunk(ev.Text)
		}
	})
	stream.OnEnd(func(turn convo.Turn) {
		s.commit(turn)
	})

	if err := stream.Start(ctx, s.buffer.RequestMessages()); err != nil {
		log.Println("[session] stream error:", err)
		s.out <- ui.EventStreamErr(err)
		return
	}

	if stream.Cancelled() {
		// same as the original's stop button: the unanswered prompt goes too
		s.buffer.DropLast(convo.RoleUser)
		s.saveHistory()
		s.out <- ui.EventStreamCancelled{}
	}
}

// commit appends the finished turn atomically: it lands in the buffer and
// the archive together, and only fully formed.
func (s *Session) commit(turn convo.Turn) {
	s.buffer.AppendAssistant(turn)
	s.saveHistory()

	s.out <- ui.EventStreamEnded(turn.Content)

	if turn.Unterminated && turn.Content == "" {
		s.out <- ui.EventSystemMsg("The stream ended inside the reasoning block; no answer was produced. Try /regen.")
	}
}

func (s *Session) cancelStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
	}
}

func (s *Session) segmentConfig() segment.Config {
	return segment.Config{
		StartMarker: s.config.StartMarker,
		EndMarker:   s.config.EndMarker,
		AssumeOpen:  s.config.AssumeOpen,
	}
}

func (s *Session) saveHistory() {
	if !s.config.SaveHistory {
		return
	}
	if err := history.SaveContext(s.buffer.RequestMessages()); err != nil {
		log.Println("[session] error saving context:", err)
	}
	if err := history.SaveTurns(s.buffer.Turns()); err != nil {
		log.Println("[session] error saving turns:", err)
	}
}

// SendMessage sends a single message (non-interactive). The answer streams
// to stdout; with verbose on, the deliberation streams to stderr first.
func (s *Session) SendMessage(ctx context.Context, message string) error {
	s.buffer.AppendUser(enhanceMessage(s.config, message))

	stream := NewStream(s.client, s.segmentConfig())
	stream.OnEvent(func(ev segment.Event) {
		switch ev.Channel {
		case segment.ChannelAnswer:
			fmt.Print(ev.Text)
		case segment.ChannelDeliberation:
			if s.config.Verbose {
				fmt.Fprint(os.Stderr, ev.Text)
			}
		}
	})
	stream.OnEnd(func(turn convo.Turn) {
		s.buffer.AppendAssistant(turn)
		s.saveHistory()
	})

	if err := stream.Start(ctx, s.buffer.RequestMessages()); err != nil {
		return err
	}
	fmt.Println()

	return nil
}

// commands.Session implementation

func (s *Session) GetClient() ai.Provider { return s.client }

func (s *Session) ClearMessages() {
	s.buffer.Reset()
	s.saveHistory()
}

func (s *Session) Turns() []convo.Turn { return s.buffer.Turns() }

func (s *Session) RequestMessages() []ai.Message { return s.buffer.RequestMessages() }

func (s *Session) SetSystemPrompt(prompt string) { s.buffer.SetSystemPrompt(prompt) }

func (s *Session) SystemPrompt() string { return s.buffer.SystemPrompt() }

func (s *Session) DropLastAssistant() bool {
	_, ok := s.buffer.DropLast(convo.RoleAssistant)
	if ok {
		s.saveHistory()
	}
	return ok
}

func (s *Session) DropLastExchange() bool {
	ok := s.buffer.DropLastExchange()
	if ok {
		s.saveHistory()
	}
	return ok
}
