// Package session drives model streams through the think extractor and
// keeps per-page conversation state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arin/pagesum/internal/ai"
	"github.com/arin/pagesum/internal/think"
)

// Status is the lifecycle position of a Stream.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusIdle, StatusStreaming, StatusComplete, StatusFailed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stream status %q", b)
}

var (
	// ErrStreamFailed wraps every upstream failure, including context
	// cancellation, that ends a stream early.
	ErrStreamFailed = errors.New("model stream failed")
	// ErrNotIdle is returned by Run on a stream that has already run and
	// has not been Reset.
	ErrNotIdle = errors.New("stream already used, reset it first")
)

// Metrics describes the timing of the last run.
type Metrics struct {
	FirstChunk time.Duration
	Duration   time.Duration
	Chunks     int
}

// Stream is one streaming session: Idle, then Streaming, then Complete or
// Failed. A finished Stream must be Reset before it can Run again.
//
// Run is driven by a single goroutine. Status, State and the other
// accessors may be called from any goroutine.
type Stream struct {
	mu      sync.RWMutex
	ext     think.Extractor
	status  Status
	state   think.State
	err     error
	metrics Metrics
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

type runOptions struct {
	stopWhen func(think.State) bool
}

// StopWhen ends the run as Complete as soon as pred reports true for the
// current state. The rest of the upstream channel is not drained; the
// caller must cancel the producer's context.
func StopWhen(pred func(think.State) bool) RunOption {
	return func(o *runOptions) { o.stopWhen = pred }
}

// Run consumes ch until it ends, fails, or ctx is cancelled. onUpdate, if
// non-nil, is called with the recomputed state after every non-empty token.
// On failure the partial state is returned with an error wrapping
// ErrStreamFailed.
func (s *Stream) Run(ctx context.Context, ch <-chan ai.StreamDelta, onUpdate func(think.State), opts ...RunOption) (think.State, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.status != StatusIdle {
		state := s.state
		s.mu.Unlock()
		return state, ErrNotIdle
	}
	s.status = StatusStreaming
	s.mu.Unlock()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return s.finish(start, ctx.Err())
		case d, ok := <-ch:
			if !ok || d.Done {
				return s.finish(start, nil)
			}
			if d.Err != nil {
				return s.finish(start, d.Err)
			}
			if d.Token == "" {
				continue
			}

			state := s.append(d.Token, start)
			if onUpdate != nil {
				onUpdate(state)
			}
			if o.stopWhen != nil && o.stopWhen(state) {
				return s.finish(start, nil)
			}
		}
	}
}

func (s *Stream) append(token string, start time.Time) think.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics.Chunks == 0 {
		s.metrics.FirstChunk = time.Since(start)
	}
	s.metrics.Chunks++
	s.state = s.ext.Append(token)
	return s.state
}

func (s *Stream) finish(start time.Time, cause error) (think.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.Duration = time.Since(start)
	if cause != nil {
		s.status = StatusFailed
		s.err = fmt.Errorf("%w: %w", ErrStreamFailed, cause)
		return s.state, s.err
	}
	s.status = StatusComplete
	return s.state, nil
}

// Reset returns the stream to Idle and discards all buffered text.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ext.Reset()
	s.status = StatusIdle
	s.state = think.State{}
	s.err = nil
	s.metrics = Metrics{}
}

// Status returns the lifecycle state.
func (s *Stream) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// State returns the latest extracted state. After a failure it is the
// partial state at the time of the failure.
func (s *Stream) State() think.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the failure of the last run, if any.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Chunks returns how many non-empty tokens were applied.
func (s *Stream) Chunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Chunks
}

// Metrics returns timing for the current or last run.
func (s *Stream) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Raw returns the unprocessed text received so far.
func (s *Stream) Raw() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ext.Raw()
}
