package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/arin/pagesum/internal/think"
)

// RenderOptions controls which parts of a streamed response are printed.
type RenderOptions struct {
	// Prefix is written at the start of each printed section.
	Prefix string
	// ShowThinking prints the model's reasoning dimmed above the answer.
	ShowThinking bool
	// ThinkingOnly prints the reasoning and nothing else.
	ThinkingOnly bool
}

// Renderer prints successive think.State values to a terminal. Each Update
// writes only what was added since the last one, so it behaves like a
// token-by-token printer even though it is fed whole states.
type Renderer struct {
	w    io.Writer
	opts RenderOptions
	dim  *color.Color
	head *color.Color

	thinking string
	visible  string
	section  int
	diverged bool
}

const (
	sectionNone = iota
	sectionThinking
	sectionVisible
)

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts RenderOptions) *Renderer {
	if opts.ThinkingOnly {
		opts.ShowThinking = true
	}
	return &Renderer{
		w:    w,
		opts: opts,
		dim:  color.New(color.Faint),
		head: color.New(color.FgHiBlack, color.Italic),
	}
}

// Update prints the part of s not yet on screen.
func (r *Renderer) Update(s think.State) {
	if r.opts.ShowThinking {
		r.printThinking(think.TrimPartial(s.Thinking, think.CloseMarker))
	}
	if !r.opts.ThinkingOnly {
		r.printVisible(think.TrimPartialMarker(s.Visible))
	}
}

// Finish prints whatever the final state adds and ends the output with a
// blank line. If the visible text was rewritten mid-stream, the final
// version is printed again in full.
func (r *Renderer) Finish(s think.State) {
	r.Update(s)
	if !r.opts.ThinkingOnly && r.visible != s.Visible && s.Visible != "" {
		fmt.Fprintf(r.w, "\n\n%s%s", r.opts.Prefix, s.Visible)
		r.visible = s.Visible
	}
	if r.section != sectionNone {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintln(r.w)
}

// Text returns the visible text printed so far.
func (r *Renderer) Text() string {
	return r.visible
}

func (r *Renderer) printThinking(t string) {
	if t == "" || r.section == sectionVisible {
		return
	}
	if !strings.HasPrefix(t, r.thinking) {
		return
	}
	if r.section == sectionNone {
		r.head.Fprintln(r.w, r.opts.Prefix+"Thinking...")
		fmt.Fprint(r.w, r.opts.Prefix)
		r.section = sectionThinking
	}
	r.dim.Fprint(r.w, t[len(r.thinking):])
	r.thinking = t
}

func (r *Renderer) printVisible(v string) {
	if v == "" || v == r.visible {
		return
	}
	if !strings.HasPrefix(v, r.visible) {
		r.diverged = true
		return
	}
	if r.diverged {
		return
	}
	if r.section != sectionVisible {
		if r.section == sectionThinking {
			fmt.Fprint(r.w, "\n\n")
		}
		fmt.Fprint(r.w, r.opts.Prefix)
		r.section = sectionVisible
	}
	fmt.Fprint(r.w, v[len(r.visible):])
	r.visible = v
}
