package think

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		thinking string
		visible  string
		complete bool
	}{
		{name: "empty", in: "", thinking: "", visible: ""},
		{name: "no markers", in: "  plain answer \n", thinking: "", visible: "plain answer"},
		{name: "single section", in: "<think>A</think>B", thinking: "A", visible: "B", complete: true},
		{name: "multiple sections", in: "<think>A</think>X<think>B</think>Y", thinking: "A\nB", visible: "XY", complete: true},
		{name: "unterminated", in: "<think>partial", thinking: "partial", visible: ""},
		{name: "open marker only", in: "<think>", thinking: "", visible: ""},
		{name: "section contents trimmed", in: "<think>\n  Let me check. \n</think>\n\nTitle: X", thinking: "Let me check.", visible: "Title: X", complete: true},
		{name: "text before section", in: "Intro <think>r</think> outro", thinking: "r", visible: "Intro  outro", complete: true},
		{name: "complete then unterminated", in: "<think>A</think>X<think>B", thinking: "A\nB", visible: "X"},
		{name: "unterminated after visible text", in: "Answer so far<think>more", thinking: "more", visible: "Answer so far"},
		{name: "nested opener is content", in: "<think>a<think>b</think>c</think>d", thinking: "a<think>b", visible: "c</think>d", complete: true},
		{name: "opener inside open section keeps it open", in: "<think>a<think>b</think>", thinking: "a<think>b", visible: "", complete: false},
		{name: "stray close marker", in: "A</think>B", thinking: "", visible: "A</think>B"},
		{name: "empty section", in: "<think></think>Answer", thinking: "", visible: "Answer", complete: true},
		{name: "adjacent sections", in: "<think>one</think><think>two</think>", thinking: "one\ntwo", visible: "", complete: true},
		{name: "case sensitive markers", in: "<THINK>x</THINK>y", thinking: "", visible: "<THINK>x</THINK>y"},
		{name: "partial marker stays visible", in: "Hello <thi", thinking: "", visible: "Hello <thi"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.in)
			assert.Equal(t, tc.thinking, got.Thinking, "thinking")
			assert.Equal(t, tc.visible, got.Visible, "visible")
			assert.Equal(t, tc.complete, got.Complete, "complete")
		})
	}
}

func TestExtract_MatchesParse(t *testing.T) {
	in := "<think>A</think>X<think>B</think>Y"
	thinking, visible := Extract(in)
	assert.Equal(t, "A\nB", thinking)
	assert.Equal(t, "XY", visible)
}

func TestExtract_NoMarkerPassthrough(t *testing.T) {
	for _, s := range []string{"", "   ", "hello", "\n multi\nline \t", "a < b > c", "</think>"} {
		thinking, visible := Extract(s)
		assert.Empty(t, thinking, "input %q", s)
		assert.Equal(t, strings.TrimSpace(s), visible, "input %q", s)
	}
}

var invarianceInputs = []string{
	"<think>hello</think>world",
	"<think>A</think>X<think>B</think>Y",
	"<think>Let me check. </think>Title: X",
	"prefix <think>open only and more",
	"<think>a<think>b</think>c</think>d",
	"no markers at all, just words",
	"<think></think><think> x </think> tail <think>",
	"A</think>B<think>C",
}

func feed(chunks []string) State {
	var e Extractor
	var s State
	for _, c := range chunks {
		s = e.Append(c)
	}
	return s
}

func TestAppend_ChunkBoundaryInvariance_TwoAndThreeWay(t *testing.T) {
	for _, in := range invarianceInputs {
		want := Parse(in)
		for i := 0; i <= len(in); i++ {
			require.Equal(t, want, feed([]string{in[:i], in[i:]}), "input %q split at %d", in, i)
			for j := i; j <= len(in); j++ {
				got := feed([]string{in[:i], in[i:j], in[j:]})
				require.Equal(t, want, got, "input %q split at %d,%d", in, i, j)
			}
		}
	}
}

func TestAppend_ChunkBoundaryInvariance_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, in := range invarianceInputs {
		want := Parse(in)
		for round := 0; round < 200; round++ {
			var chunks []string
			rest := in
			for rest != "" {
				n := rng.Intn(len(rest)) + 1
				if rng.Intn(4) == 0 {
					chunks = append(chunks, "")
				}
				chunks = append(chunks, rest[:n])
				rest = rest[n:]
			}
			require.Equal(t, want, feed(chunks), "input %q chunks %q", in, chunks)
		}
	}
}

func TestAppend_SingleCharacterChunks(t *testing.T) {
	in := "<think>hello</think>world"
	chunks := strings.Split(in, "")
	assert.Equal(t, Parse(in), feed(chunks))
}

func TestAppend_SplitMarkers(t *testing.T) {
	var e Extractor
	e.Append("<thi")
	e.Append("nk>hello</th")
	got := e.Append("ink>world")

	assert.Equal(t, "hello", got.Thinking)
	assert.Equal(t, "world", got.Visible)
	assert.True(t, got.Complete)
	assert.Equal(t, Parse("<think>hello</think>world"), got)
}

func TestAppend_SummarizationRun(t *testing.T) {
	var e Extractor
	var states []State
	for _, c := range []string{"<think>", "Let me check. ", "</think>", "Title: X"} {
		states = append(states, e.Append(c))
	}

	final := states[len(states)-1]
	assert.Equal(t, "Let me check.", final.Thinking)
	assert.Equal(t, "Title: X", final.Visible)
	assert.True(t, final.Complete)

	// Partial thinking is visible while the section is still open.
	assert.Equal(t, "Let me check.", states[1].Thinking)
	assert.False(t, states[1].Complete)
	assert.Empty(t, states[1].Visible)
	assert.True(t, states[2].Complete)
}

func TestAppend_CompletionIdempotentUnderWhitespace(t *testing.T) {
	var e Extractor
	done := e.Append("<think>reasoning</think>The answer.")
	require.True(t, done.Complete)

	for _, ws := range []string{" ", "\n", "\t\n  ", ""} {
		got := e.Append(ws)
		assert.Equal(t, done.Thinking, got.Thinking)
		assert.Equal(t, done.Visible, got.Visible)
		assert.True(t, got.Complete)
	}
}

func TestAppend_EmptyChunkKeepsState(t *testing.T) {
	var e Extractor
	before := e.Append("<think>x")
	assert.Equal(t, before, e.Append(""))
	assert.Equal(t, "<think>x", e.Raw())
}

func TestReset_ClearsState(t *testing.T) {
	var e Extractor
	e.Append("<think>old reasoning")
	e.Append(" still going</think>old answer<think>dangling")
	require.NotZero(t, e.Len())

	e.Reset()
	assert.Equal(t, State{}, e.State())
	assert.Empty(t, e.Raw())

	got := e.Append("<think>Z</think>Q")
	assert.Equal(t, "Z", got.Thinking)
	assert.Equal(t, "Q", got.Visible)
	assert.True(t, got.Complete)
}

func TestTrimPartialMarker(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Hello":        "Hello",
		"Hello <":      "Hello",
		"Hello <thi":   "Hello",
		"Hello <think": "Hello",
		"<th":          "",
		"a <b":         "a <b",
		"x <think>":    "x <think>",
		"1 < 2":        "1 < 2",
	}
	for in, want := range cases {
		assert.Equal(t, want, TrimPartialMarker(in), "input %q", in)
	}
}

func TestTrimPartial(t *testing.T) {
	cases := map[string]string{
		"abc</thi":  "abc",
		"abc <":     "abc",
		"abc\t</":   "abc",
		"abc":       "abc",
		"a</b":      "a</b",
		"x</think>": "x</think>",
	}
	for in, want := range cases {
		assert.Equal(t, want, TrimPartial(in, CloseMarker), "input %q", in)
	}
	assert.Equal(t, TrimPartialMarker("Hello <thi"), TrimPartial("Hello <thi", OpenMarker))
}
