package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/convo"
	"github.com/penguinpowernz/deeptalk/internal/segment"
)

type fakeProvider struct {
	chunks []ai.MessageChunk
	block  bool

	streamCtx context.Context
	started   chan struct{}
}

func (f *fakeProvider) SendMessage(ctx context.Context, messages []ai.Message) (*ai.Response, error) {
	return nil, nil
}

func (f *fakeProvider) StreamMessage(ctx context.Context, messages []ai.Message) (<-chan ai.MessageChunk, error) {
	f.streamCtx = ctx
	if f.started != nil {
		defer close(f.started)
	}
	ch := make(chan ai.MessageChunk)
	go func() {
		for _, c := range f.chunks {
			ch <- c
		}
		if f.block {
			<-ctx.Done()
		}
		close(ch)
	}()
	return ch, nil
}

func (f *fakeProvider) GetModelInfo() ai.ModelInfo { return ai.ModelInfo{} }

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func TestStreamSplitsThinkFromAnswer(t *testing.T) {
	provider := &fakeProvider{chunks: []ai.MessageChunk{
		ai.NewChunk("<thi"),
		ai.NewChunk("nk>Hello"),
		ai.NewChunk(" world</th"),
		ai.NewChunk("ink>Answer!"),
	}}

	s := NewStream(provider, segment.Config{})

	var think, answer string
	s.OnEvent(func(ev segment.Event) {
		switch ev.Channel {
		case segment.ChannelDeliberation:
			think += ev.Text
		case segment.ChannelAnswer:
			answer += ev.Text
		}
	})

	var turn convo.Turn
	ended := false
	s.OnEnd(func(t convo.Turn) { turn = t; ended = true })

	require.NoError(t, s.Start(context.Background(), nil))

	require.True(t, ended)
	assert.Equal(t, "Hello world", think)
	assert.Equal(t, "Answer!", answer)
	assert.Equal(t, "Hello world", turn.Deliberation)
	assert.Equal(t, "Answer!", turn.Content)
	assert.False(t, s.Cancelled())
}

func TestStreamPreSplitReasoningDeltas(t *testing.T) {
	provider := &fakeProvider{chunks: []ai.MessageChunk{
		ai.NewThinkChunk("I should greet them."),
		ai.NewChunk("Hello!"),
	}}

	s := NewStream(provider, segment.Config{})

	var turn convo.Turn
	s.OnEnd(func(t convo.Turn) { turn = t })

	require.NoError(t, s.Start(context.Background(), nil))

	assert.Equal(t, "I should greet them.", turn.Deliberation)
	assert.Equal(t, "Hello!", turn.Content)
}

func TestStreamCancel(t *testing.T) {
	provider := &fakeProvider{
		chunks: []ai.MessageChunk{ai.NewChunk("<think>so the user wants")},
		block:  true,
	}

	s := NewStream(provider, segment.Config{})

	ended := false
	s.OnEnd(func(convo.Turn) { ended = true })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, s.Start(ctx, nil))

	assert.True(t, s.Cancelled())
	assert.False(t, ended, "a cancelled stream must not produce a turn")
	assert.Empty(t, s.Deliberation())
	assert.Empty(t, s.Answer())
}

func TestStreamCloseCancelsTransport(t *testing.T) {
	provider := &fakeProvider{block: true, started: make(chan struct{})}
	s := NewStream(provider, segment.Config{})

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background(), nil) }()

	<-provider.started
	s.Close()

	require.NoError(t, <-errc)
	assert.True(t, s.Cancelled())

	// the cancel must reach the transport, not just the read loop
	select {
	case <-provider.streamCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("transport context was never cancelled")
	}
}

func TestStreamStartCallback(t *testing.T) {
	provider := &fakeProvider{chunks: []ai.MessageChunk{ai.NewChunk("hi")}}

	s := NewStream(provider, segment.Config{})
	started := false
	s.OnStart(func() { started = true })

	require.NoError(t, s.Start(context.Background(), nil))
	assert.True(t, started)
}
