// Package ui renders streamed model output and progress in the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner shows progress on stderr while a page is fetched, indexed or
// while the model has not produced its first token yet.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg)
}

func newSpinner(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	_ = s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}

// Message replaces the text next to the spinner.
func (sp *Spinner) Message(msg string) {
	sp.s.Lock()
	sp.s.Suffix = "  " + msg
	sp.s.Unlock()
}

// Progress returns a callback that reports done/total on the spinner,
// suitable for index building.
func (sp *Spinner) Progress(label string) func(done, total int) {
	return func(done, total int) {
		sp.Message(fmt.Sprintf("%s %d/%d", label, done, total))
	}
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.s.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Warn stops the spinner and prints a yellow notice.
func (sp *Spinner) Warn(msg string) {
	sp.s.Stop()
	color.New(color.FgYellow).Fprintf(sp.w, "  ! %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.s.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
