package segment

import (
	"log"
	"strings"
	"time"

	"github.com/penguinpowernz/deeptalk/internal/convo"
)

// Channels that segmenter events are emitted on.
const (
	ChannelDeliberation = "deliberation"
	ChannelAnswer       = "answer"
)

const (
	DefaultStartMarker = "<think>"
	DefaultEndMarker   = "</think>"
)

// Event is an incremental span of classified text.
type Event struct {
	Channel string
	Text    string
}

// Config controls how a Segmenter recognises the deliberation block.
type Config struct {
	StartMarker string
	EndMarker   string

	// AssumeOpen treats the response as already inside the deliberation
	// when it does not begin with the start marker. Some deployments put
	// the opening tag in the prompt template, so the model output starts
	// mid-deliberation and only the closing tag ever arrives.
	AssumeOpen bool
}

type phase int

const (
	phaseAwaitStart phase = iota
	phaseDeliberating
	phaseAnswering
	phaseDone
)

// Segmenter splits a streamed model response into deliberation and answer
// spans as fragments arrive, regardless of where the transport happens to
// chunk the text. One instance handles exactly one response.
type Segmenter struct {
	cfg   Config
	phase phase

	// pending holds a suffix of consumed text that could still turn out to
	// be the start of a marker. Never longer than the marker it shadows.
	pending string
	warned  bool
	aborted bool

	deliberation strings.Builder
	answer       strings.Builder
}

func New(cfg Config) *Segmenter {
	if cfg.StartMarker == "" {
		cfg.StartMarker = DefaultStartMarker
	}
	if cfg.EndMarker == "" {
		cfg.EndMarker = DefaultEndMarker
	}
	return &Segmenter{cfg: cfg}
}

// Consume feeds the next fragment of the response through the marker scan
// and returns the spans that can be classified so far. Text that might be a
// half-arrived marker is withheld until the next fragment (or Finish)
// settles it. It never fails on malformed input; marker-like text that
// doesn't resolve into a delimiter is passed through as literal content.
func (s *Segmenter) Consume(fragment string) []Event {
	if s.phase == phaseDone {
		panic("segment: Consume called after Finish")
	}
	if fragment == "" {
		return nil
	}

	buf := s.pending + fragment
	s.pending = ""

	var events []Event
	for buf != "" {
		switch s.phase {
		case phaseAwaitStart:
			if s.cfg.AssumeOpen {
				if strings.HasPrefix(buf, s.cfg.StartMarker) {
					buf = buf[len(s.cfg.StartMarker):]
					s.phase = phaseDeliberating
					continue
				}
				if strings.HasPrefix(s.cfg.StartMarker, buf) {
					// could still be the opening marker arriving a few
					// bytes at a time
					s.pending = buf
					return events
				}
				// no opening tag: we were already inside the deliberation
				s.phase = phaseDeliberating
				continue
			}

			if i := strings.Index(buf, s.cfg.StartMarker); i >= 0 {
				if i > 0 {
					events = s.emit(events, ChannelAnswer, buf[:i])
				}
				buf = buf[i+len(s.cfg.StartMarker):]
				s.phase = phaseDeliberating
				continue
			}

			keep := markerOverlap(buf, s.cfg.StartMarker)
			if head := buf[:len(buf)-keep]; head != "" {
				if !s.warned && strings.Contains(head, s.cfg.EndMarker) {
					s.warned = true
					log.Printf("[segment] end marker %q before any start marker, treating as answer text", s.cfg.EndMarker)
				}
				events = s.emit(events, ChannelAnswer, head)
			}
			s.pending = buf[len(buf)-keep:]
			return events

		case phaseDeliberating:
			if i := strings.Index(buf, s.cfg.EndMarker); i >= 0 {
				if i > 0 {
					events = s.emit(events, ChannelDeliberation, buf[:i])
				}
				buf = buf[i+len(s.cfg.EndMarker):]
				s.phase = phaseAnswering
				continue
			}

			keep := markerOverlap(buf, s.cfg.EndMarker)
			if head := buf[:len(buf)-keep]; head != "" {
				events = s.emit(events, ChannelDeliberation, head)
			}
			s.pending = buf[len(buf)-keep:]
			return events

		case phaseAnswering:
			// only one deliberation block per response; everything after
			// the end marker is answer text, markers included
			events = s.emit(events, ChannelAnswer, buf)
			buf = ""
		}
	}

	return events
}

// ConsumeDeliberation records text the server already classified as
// deliberation (e.g. an OpenAI-style reasoning_content delta). No marker
// scanning is applied to it.
func (s *Segmenter) ConsumeDeliberation(fragment string) []Event {
	if s.phase == phaseDone {
		panic("segment: ConsumeDeliberation called after Finish")
	}
	if fragment == "" {
		return nil
	}
	return s.emit(nil, ChannelDeliberation, fragment)
}

// Finish flushes anything still withheld and returns the completed
// assistant turn. A pending tail at end-of-stream was a false-positive
// marker prefix and is committed as literal text to the channel that was
// active when it arrived.
func (s *Segmenter) Finish() convo.Turn {
	if s.phase == phaseDone {
		panic("segment: Finish called twice")
	}

	// an assume-open stream whose first bytes never resolved against the
	// start marker was inside the deliberation all along
	if s.cfg.AssumeOpen && s.phase == phaseAwaitStart {
		s.phase = phaseDeliberating
	}

	if s.pending != "" {
		if s.phase == phaseDeliberating {
			s.deliberation.WriteString(s.pending)
		} else {
			s.answer.WriteString(s.pending)
		}
		s.pending = ""
	}

	unterminated := s.phase == phaseDeliberating
	s.phase = phaseDone

	return convo.Turn{
		Role:         convo.RoleAssistant,
		Content:      s.answer.String(),
		Deliberation: s.deliberation.String(),
		Unterminated: unterminated,
		At:           time.Now(),
	}
}

// Abort discards everything buffered without producing a turn. Safe to call
// more than once, and after Finish.
func (s *Segmenter) Abort() {
	if s.aborted {
		return
	}
	s.aborted = true
	s.phase = phaseDone
	s.pending = ""
	s.deliberation.Reset()
	s.answer.Reset()
}

// Deliberation returns the deliberation text accumulated so far.
func (s *Segmenter) Deliberation() string { return s.deliberation.String() }

// Answer returns the answer text accumulated so far.
func (s *Segmenter) Answer() string { return s.answer.String() }

func (s *Segmenter) emit(events []Event, channel, text string) []Event {
	switch channel {
	case ChannelDeliberation:
		s.deliberation.WriteString(text)
	case ChannelAnswer:
		s.answer.WriteString(text)
	}
	return append(events, Event{Channel: channel, Text: text})
}

// markerOverlap returns the length of the longest strict prefix of marker
// that is also a suffix of buf, i.e. how many trailing bytes could be a
// marker that hasn't finished arriving.
func markerOverlap(buf, marker string) int {
	max := len(marker) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for k := max; k > 0; k-- {
		if buf[len(buf)-k:] == marker[:k] {
			return k
		}
	}
	return 0
}
