// Package think separates model "thinking" from the user-visible answer in
// streamed LLM output delimited by <think>...</think> markers.
//
// The extractor never patches state incrementally. Every call recomputes the
// whole view from the accumulated text, so results do not depend on where the
// stream happened to be split.
package think

import "strings"

const (
	// OpenMarker starts a thinking section.
	OpenMarker = "<think>"
	// CloseMarker ends a thinking section.
	CloseMarker = "</think>"
)

// State is the derived view of the text received so far.
type State struct {
	// Thinking holds the trimmed contents of all complete sections joined by
	// a newline, followed by the content of a trailing unterminated section.
	Thinking string `json:"thinking"`
	// Visible is the text with every section span removed, trimmed.
	Visible string `json:"visible"`
	// Complete is true once at least one section has closed, no section is
	// left open, and the text holds no more opening markers than closing ones.
	Complete bool `json:"complete"`
}

// Extract splits text into its thinking and visible parts.
func Extract(text string) (thinking, visible string) {
	s := Parse(text)
	return s.Thinking, s.Visible
}

// Parse computes the full State for text.
//
// Each opening marker pairs with the first closing marker after it. An
// opening marker found inside an open section is ordinary content. If an
// opening marker has no closing marker after it, everything from that marker
// to the end of text is the unterminated trailing section.
func Parse(text string) State {
	var (
		sections []string
		visible  strings.Builder
		pending  string
		open     bool
		closed   int
	)

	rest := text
	for {
		start := strings.Index(rest, OpenMarker)
		if start < 0 {
			visible.WriteString(rest)
			break
		}
		visible.WriteString(rest[:start])

		body := rest[start+len(OpenMarker):]
		end := strings.Index(body, CloseMarker)
		if end < 0 {
			pending = strings.TrimSpace(body)
			open = true
			break
		}
		sections = append(sections, strings.TrimSpace(body[:end]))
		closed++
		rest = body[end+len(CloseMarker):]
	}

	thinking := strings.Join(sections, "\n")
	if open {
		if len(sections) > 0 {
			thinking += "\n" + pending
		} else {
			thinking = pending
		}
	}

	return State{
		Thinking: thinking,
		Visible:  strings.TrimSpace(visible.String()),
		Complete: closed > 0 && !open && strings.Count(text, OpenMarker) <= strings.Count(text, CloseMarker),
	}
}

// TrimPartialMarker drops a trailing fragment of OpenMarker from s, such as
// "<thi", so a marker split across chunks is not shown while streaming.
// The full marker itself is never a fragment and s is otherwise unchanged.
func TrimPartialMarker(s string) string {
	return TrimPartial(s, OpenMarker)
}

// TrimPartial drops a trailing proper prefix of marker from s, along with
// the whitespace before it.
func TrimPartial(s, marker string) string {
	n := len(marker) - 1
	if n > len(s) {
		n = len(s)
	}
	for k := n; k > 0; k-- {
		if strings.HasSuffix(s, marker[:k]) {
			return strings.TrimRightFunc(s[:len(s)-k], isSpace)
		}
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
