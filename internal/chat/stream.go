package chat

import (
	"context"
	"log"

	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/convo"
	"github.com/penguinpowernz/deeptalk/internal/segment"
)

// Stream runs one model response end to end: it pulls chunks from the
// provider, pushes them through the segmenter, and hands the finished turn
// to whoever is listening. One Stream per response.
type Stream struct {
	client ai.Provider
	seg    *segment.Segmenter
	stream <-chan ai.MessageChunk
	waiter context.Context
	cancel func()

	// callbacks
	onEvent func(segment.Event)
	onStart func()
	onEnd   func(convo.Turn)

	cancelled bool
}

func NewStream(client ai.Provider, cfg segment.Config) *Stream {
	return &Stream{
		client:  client,
		seg:     segment.New(cfg),
		onEvent: func(segment.Event) {},
		onStart: func() {},
		onEnd:   func(convo.Turn) {},
	}
}

func (s *Stream) OnStart(f func()) {
	s.onStart = f
}

func (s *Stream) OnEnd(f func(turn convo.Turn)) {
	s.onEnd = f
}

// OnEvent receives every classified span as it is emitted, deliberation and
// answer alike.
func (s *Stream) OnEvent(f func(segment.Event)) {
	s.onEvent = f
}

func (s *Stream) Start(ctx context.Context, cctx []ai.Message) (err error) {
	// this ctx lets callers know the whole stream lifecycle is done with Wait()
	var done func()
	s.waiter, done = context.WithCancel(context.Background())
	defer done()

	// this ctx will let us cancel, or be cancelled. The transport gets it
	// too, so Close tears down the HTTP request and not just the read loop.
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	s.stream, err = s.client.StreamMessage(ctx, cctx)
	if err != nil {
		return err
	}

	s.onStart()
	log.Println("[stream] starting loop")
	for {
		select {
		case <-ctx.Done():
			log.Println("[stream] cancelled")
			s.cancelled = true
			s.seg.Abort()
			return nil
		case chunk, ok := <-s.stream:
			if !ok {
				turn := s.seg.Finish()
				log.Println("[stream] finished")
				s.onEnd(turn)
				return nil
			}

			var events []segment.Event
			switch chunk.Type() {
			case ai.ChunkThink:
				events = s.seg.ConsumeDeliberation(chunk.Content)
			default:
				events = s.seg.Consume(chunk.Content)
			}

			for _, ev := range events {
				s.onEvent(ev)
			}
		}
	}
}

// Close cancels the in-flight stream. The buffered output is discarded and
// no turn is produced.
func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Stream) Wait() {
	if s.waiter != nil {
		<-s.waiter.Done()
	}
}

// Cancelled reports whether the stream was stopped before completion.
func (s *Stream) Cancelled() bool {
	return s.cancelled
}

func (s *Stream) Deliberation() string {
	return s.seg.Deliberation()
}

func (s *Stream) Answer() string {
	return s.seg.Answer()
}
