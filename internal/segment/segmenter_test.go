package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumeAll(s *Segmenter, fragments []string) (deliberation, answer string) {
	var d, a strings.Builder
	for _, frag := range fragments {
		for _, ev := range s.Consume(frag) {
			switch ev.Channel {
			case ChannelDeliberation:
				d.WriteString(ev.Text)
			case ChannelAnswer:
				a.WriteString(ev.Text)
			}
		}
	}
	return d.String(), a.String()
}

// splitAt cuts s into len(points)+1 contiguous fragments.
func splitAt(s string, points ...int) []string {
	var out []string
	prev := 0
	for _, p := range points {
		out = append(out, s[prev:p])
		prev = p
	}
	return append(out, s[prev:])
}

func TestSegmenterWholeResponse(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"<think>Let me see.</think>The answer is 4."})
	turn := s.Finish()

	assert.Equal(t, "Let me see.", d)
	assert.Equal(t, "The answer is 4.", a)
	assert.Equal(t, "Let me see.", turn.Deliberation)
	assert.Equal(t, "The answer is 4.", turn.Content)
	assert.False(t, turn.Unterminated)
}

// The classification must not depend on where the transport cuts the
// stream, so sweep every one- and two-cut fragmentation of the response.
func TestSegmenterSplitInvariance(t *testing.T) {
	const resp = "<think>Because 2+2.</think>It is 4."

	for i := 1; i < len(resp); i++ {
		s := New(Config{})
		d, a := consumeAll(s, splitAt(resp, i))
		turn := s.Finish()
		require.Equal(t, "Because 2+2.", d, "split at %d", i)
		require.Equal(t, "It is 4.", a, "split at %d", i)
		require.Equal(t, d, turn.Deliberation)
		require.Equal(t, a, turn.Content)
	}

	for i := 1; i < len(resp); i++ {
		for j := i + 1; j < len(resp); j++ {
			s := New(Config{})
			d, a := consumeAll(s, splitAt(resp, i, j))
			s.Finish()
			require.Equal(t, "Because 2+2.", d, "splits at %d,%d", i, j)
			require.Equal(t, "It is 4.", a, "splits at %d,%d", i, j)
		}
	}
}

func TestSegmenterByteAtATime(t *testing.T) {
	const resp = "<think>a</think>b"

	s := New(Config{})
	var frags []string
	for i := 0; i < len(resp); i++ {
		frags = append(frags, resp[i:i+1])
	}
	d, a := consumeAll(s, frags)

	assert.Equal(t, "a", d)
	assert.Equal(t, "b", a)
}

func TestSegmenterNoMarkers(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"Just a plain ", "answer."})
	turn := s.Finish()

	assert.Empty(t, d)
	assert.Equal(t, "Just a plain answer.", a)
	assert.Equal(t, "Just a plain answer.", turn.Content)
	assert.Empty(t, turn.Deliberation)
}

func TestSegmenterTextBeforeStartMarker(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"Sure. <think>hmm</think>Done."})
	s.Finish()

	assert.Equal(t, "hmm", d)
	assert.Equal(t, "Sure. Done.", a)
}

func TestSegmenterEndMarkerWithoutStart(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"oops</think> more"})
	s.Finish()

	assert.Empty(t, d)
	assert.Equal(t, "oops</think> more", a)
}

func TestSegmenterMarkersAfterAnswerAreLiteral(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"<think>x</think>say <think>this</think> verbatim"})
	s.Finish()

	assert.Equal(t, "x", d)
	assert.Equal(t, "say <think>this</think> verbatim", a)
}

func TestSegmenterUnterminatedDeliberation(t *testing.T) {
	s := New(Config{})
	d, a := consumeAll(s, []string{"<think>still going"})
	turn := s.Finish()

	assert.Equal(t, "still going", d)
	assert.Empty(t, a)
	assert.True(t, turn.Unterminated)
	assert.Equal(t, "still going", turn.Deliberation)
	assert.Empty(t, turn.Content)
}

func TestSegmenterPendingFlushedAtFinish(t *testing.T) {
	// trailing bytes that look like a marker starting are withheld, then
	// committed as literal text when the stream ends
	s := New(Config{})
	d, a := consumeAll(s, []string{"answer <thi"})
	turn := s.Finish()

	assert.Empty(t, d)
	assert.Equal(t, "answer ", a)
	assert.Equal(t, "answer <thi", turn.Content)

	s = New(Config{})
	d, _ = consumeAll(s, []string{"<think>reason</thi"})
	turn = s.Finish()

	assert.Equal(t, "reason", d)
	assert.Equal(t, "reason</thi", turn.Deliberation)
	assert.True(t, turn.Unterminated)
}

func TestSegmenterFalseMarkerPrefixResolves(t *testing.T) {
	// "<th" could be a marker arriving; "<thud>" is not, and must come
	// through untouched
	s := New(Config{})
	d, a := consumeAll(s, []string{"<th", "ud> ok"})
	s.Finish()

	assert.Empty(t, d)
	assert.Equal(t, "<thud> ok", a)
}

func TestSegmenterEmptyFragments(t *testing.T) {
	s := New(Config{})
	assert.Nil(t, s.Consume(""))
	d, a := consumeAll(s, []string{"", "<think>a", "", "</think>b", ""})
	s.Finish()

	assert.Equal(t, "a", d)
	assert.Equal(t, "b", a)
}

func TestSegmenterAssumeOpen(t *testing.T) {
	t.Run("no opening tag", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		d, a := consumeAll(s, []string{"reasoning from the first byte</think>answer"})
		s.Finish()

		assert.Equal(t, "reasoning from the first byte", d)
		assert.Equal(t, "answer", a)
	})

	t.Run("opening tag still present", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		d, a := consumeAll(s, []string{"<think>r</think>a"})
		s.Finish()

		assert.Equal(t, "r", d)
		assert.Equal(t, "a", a)
	})

	t.Run("opening tag split across fragments", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		d, a := consumeAll(s, []string{"<th", "ink>r</think>a"})
		s.Finish()

		assert.Equal(t, "r", d)
		assert.Equal(t, "a", a)
	})

	t.Run("marker-like prefix that diverges", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		d, a := consumeAll(s, []string{"<th", "e model considers</think>done"})
		s.Finish()

		assert.Equal(t, "<the model considers", d)
		assert.Equal(t, "done", a)
	})

	t.Run("stream dies inside a partial opening tag", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		s.Consume("<th")
		turn := s.Finish()

		assert.Equal(t, "<th", turn.Deliberation)
		assert.Empty(t, turn.Content)
		assert.True(t, turn.Unterminated)
	})

	t.Run("never closed", func(t *testing.T) {
		s := New(Config{AssumeOpen: true})
		d, a := consumeAll(s, []string{"all reasoning, no answer"})
		turn := s.Finish()

		assert.Equal(t, "all reasoning, no answer", d)
		assert.Empty(t, a)
		assert.True(t, turn.Unterminated)
	})
}

func TestSegmenterCustomMarkers(t *testing.T) {
	s := New(Config{StartMarker: "[REASON]", EndMarker: "[/REASON]"})
	d, a := consumeAll(s, []string{"[REAS", "ON]think[/REA", "SON]talk"})
	s.Finish()

	assert.Equal(t, "think", d)
	assert.Equal(t, "talk", a)
}

func TestSegmenterConsumeDeliberation(t *testing.T) {
	s := New(Config{})
	events := s.ConsumeDeliberation("pre-split reasoning")
	require.Len(t, events, 1)
	assert.Equal(t, ChannelDeliberation, events[0].Channel)

	// marker text inside a pre-split delta is literal, never a delimiter
	s.ConsumeDeliberation("</think>")
	d, a := consumeAll(s, []string{"the answer"})
	turn := s.Finish()

	assert.Empty(t, d)
	assert.Equal(t, "the answer", a)
	assert.Equal(t, "pre-split reasoning</think>", turn.Deliberation)
	assert.Equal(t, "the answer", turn.Content)
}

func TestSegmenterPanicsAfterFinish(t *testing.T) {
	s := New(Config{})
	s.Consume("hello")
	s.Finish()

	assert.Panics(t, func() { s.Consume("more") })
	assert.Panics(t, func() { s.ConsumeDeliberation("more") })
	assert.Panics(t, func() { s.Finish() })
}

func TestSegmenterAbort(t *testing.T) {
	s := New(Config{})
	s.Consume("<think>half a thou")
	s.Abort()
	s.Abort() // idempotent

	assert.Empty(t, s.Deliberation())
	assert.Empty(t, s.Answer())
}

func TestSegmenterEventsMatchAccessors(t *testing.T) {
	s := New(Config{})
	var d, a strings.Builder
	for _, frag := range splitAt("<think>abc</think>defg", 3, 9, 15, 19) {
		for _, ev := range s.Consume(frag) {
			if ev.Channel == ChannelDeliberation {
				d.WriteString(ev.Text)
			} else {
				a.WriteString(ev.Text)
			}
		}
		// accessors may run ahead of emitted events only by withheld bytes
		assert.True(t, strings.HasPrefix(s.Deliberation(), d.String()))
		assert.True(t, strings.HasPrefix(s.Answer(), a.String()))
	}
	turn := s.Finish()
	assert.Equal(t, turn.Deliberation, d.String())
	assert.Equal(t, turn.Content, a.String())
}

func TestMarkerOverlap(t *testing.T) {
	for _, tc := range []struct {
		buf, marker string
		want        int
	}{
		{"hello <", "<think>", 1},
		{"hello <th", "<think>", 3},
		{"hello <think", "<think>", 6},
		{"hello", "<think>", 0},
		{"<", "<think>", 1},
		{"", "<think>", 0},
		{"a<a<t", "<think>", 2},
		{"hello <think>", "<think>", 0}, // whole marker is not a prefix-in-waiting
	} {
		t.Run(fmt.Sprintf("%s in %s", tc.marker, tc.buf), func(t *testing.T) {
			assert.Equal(t, tc.want, markerOverlap(tc.buf, tc.marker))
		})
	}
}
