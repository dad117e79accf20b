package think

import "strings"

// Extractor accumulates streamed chunks and exposes the State of everything
// received so far. The zero value is ready to use.
//
// An Extractor belongs to a single streaming session and is not safe for
// concurrent writers.
type Extractor struct {
	raw   strings.Builder
	state State
}

// Append adds chunk to the buffer and returns the recomputed State.
// Empty chunks are accepted and leave the State unchanged.
func (e *Extractor) Append(chunk string) State {
	if chunk == "" {
		return e.state
	}
	e.raw.WriteString(chunk)
	e.state = Parse(e.raw.String())
	return e.state
}

// State returns the State computed after the last Append.
func (e *Extractor) State() State {
	return e.state
}

// Raw returns the concatenation of all chunks received.
func (e *Extractor) Raw() string {
	return e.raw.String()
}

// Len returns the number of bytes buffered.
func (e *Extractor) Len() int {
	return e.raw.Len()
}

// Reset clears the buffer and the cached State.
func (e *Extractor) Reset() {
	e.raw.Reset()
	e.state = State{}
}
