package ai

import (
	"context"
	"strings"
)

// StreamDelta represents a single chunk from a streaming AI response.
type StreamDelta struct {
	// Token is the text fragment. Empty string is valid (heartbeat).
	Token string
	// Done is true when the stream is complete.
	Done bool
	// Err is non-nil if the stream encountered an error.
	Err error
}

// Provider is the single capability any model backend must offer.
// Ollama, OpenAI-compatible servers and the development mock all satisfy
// it, and nothing downstream knows which one it talks to.
type Provider interface {
	// Stream sends prompt to the model and returns a channel that emits
	// tokens as they arrive. The channel is closed when the response ends,
	// after a Done or Err delta. Cancelling ctx stops the producer; a
	// consumer may stop reading at any time as long as it cancels ctx.
	Stream(ctx context.Context, prompt string) <-chan StreamDelta
}

// Collect reads all tokens from a stream channel and returns the
// concatenated result. On error the text received so far is returned
// alongside it.
func Collect(ch <-chan StreamDelta) (string, error) {
	var sb strings.Builder
	for delta := range ch {
		if delta.Err != nil {
			return sb.String(), delta.Err
		}
		if delta.Done {
			break
		}
		sb.WriteString(delta.Token)
	}
	return sb.String(), nil
}

// send delivers d unless ctx is cancelled first. It reports whether the
// delta was delivered.
func send(ctx context.Context, ch chan<- StreamDelta, d StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail emits a terminal error delta.
func fail(ctx context.Context, ch chan<- StreamDelta, err error) {
	send(ctx, ch, StreamDelta{Err: err})
}
