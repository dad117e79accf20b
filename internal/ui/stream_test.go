package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/arin/pagesum/internal/think"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// feed replays raw chunks through an extractor into r, like a live stream.
func feed(r *Renderer, chunks ...string) think.State {
	var ext think.Extractor
	var s think.State
	for _, c := range chunks {
		s = ext.Append(c)
		r.Update(s)
	}
	r.Finish(s)
	return s
}

func TestRenderer_VisibleOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{Prefix: "  "})
	feed(r, "<think>hidden</think>", "Hello", " world")

	out := buf.String()
	if !strings.HasPrefix(out, "  Hello world") {
		t.Errorf("expected output to start with prefixed answer, got %q", out)
	}
	if strings.Contains(out, "hidden") || strings.Contains(out, "Thinking") {
		t.Errorf("thinking should not be printed, got %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("output should end with a blank line, got %q", out)
	}
	if r.Text() != "Hello world" {
		t.Errorf("expected Text() 'Hello world', got %q", r.Text())
	}
}

func TestRenderer_ShowThinking(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{ShowThinking: true})
	feed(r, "<think>step", " one</th", "ink>The answer")

	want := "Thinking...\nstep one\n\nThe answer\n\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestRenderer_ThinkingOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{ThinkingOnly: true})
	feed(r, "<think>only this</think>not this")

	out := buf.String()
	if !strings.Contains(out, "only this") {
		t.Errorf("expected thinking, got %q", out)
	}
	if strings.Contains(out, "not this") {
		t.Errorf("answer should be hidden, got %q", out)
	}
}

func TestRenderer_SplitMarkerNeverShown(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{})
	feed(r, "Intro <th", "ink>secret</think> outro")

	out := buf.String()
	if strings.Contains(out, "<") {
		t.Errorf("marker fragment leaked into output: %q", out)
	}
	if !strings.HasPrefix(out, "Intro") || !strings.Contains(out, "outro") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRenderer_IncrementalWrites(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{})

	var ext think.Extractor
	r.Update(ext.Append("a"))
	r.Update(ext.Append(""))
	r.Update(ext.Append("b"))
	if buf.String() != "ab" {
		t.Errorf("expected 'ab' with no repeats, got %q", buf.String())
	}
}

func TestRenderer_RewrittenAnswerReprinted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{})

	r.Update(think.State{Visible: "draft"})
	r.Update(think.State{Visible: "final"})
	r.Finish(think.State{Visible: "final"})

	out := buf.String()
	if !strings.Contains(out, "draft") || !strings.HasSuffix(out, "final\n\n") {
		t.Errorf("expected final text reprinted, got %q", out)
	}
}

func TestRenderer_EmptyStream(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{Prefix: ">> "})
	r.Finish(think.State{})
	if buf.String() != "\n" {
		t.Errorf("expected a single newline, got %q", buf.String())
	}
}

func TestRenderer_SplitCloseMarkerNeverShown(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, RenderOptions{ThinkingOnly: true})

	var ext think.Extractor
	r.Update(ext.Append("<think>plan"))
	r.Update(ext.Append(" </thi"))
	if strings.Contains(buf.String(), "<") {
		t.Errorf("close marker fragment leaked into output: %q", buf.String())
	}
	r.Update(ext.Append("nk>done"))
	r.Finish(ext.State())
	if !strings.Contains(buf.String(), "plan") {
		t.Errorf("expected thinking text, got %q", buf.String())
	}
}

func TestSpinner_ProgressAndResult(t *testing.T) {
	var buf bytes.Buffer
	sp := newSpinner(&buf, "Indexing page")
	sp.Progress("Embedding")(3, 10)
	if sp.s.Suffix != "  Embedding 3/10" {
		t.Errorf("expected progress suffix, got %q", sp.s.Suffix)
	}
	sp.Success("Indexed 10 chunks")
	if !strings.Contains(buf.String(), "✓ Indexed 10 chunks") {
		t.Errorf("expected success line, got %q", buf.String())
	}
}
