package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var mockResponses = []string{
	"Hello! How can I help you today?",
	"That's an interesting question. Could you tell me more about it?",
	"I understand. Is there anything else you'd like to know?",
	"Yes, I think you're absolutely right about that.",
	"I'm sorry, but could you be more specific about what you're looking for?",
}

var mockCustom = map[string]string{
	"hello":  "Hello! Nice to meet you!",
	"hi":     "Hi there! How are you doing?",
	"test":   "This is a test response from the mock client.",
	"help":   "I'm here to help! What would you like to know?",
	"thanks": "You're welcome! Happy to help anytime.",
}

// MockProvider streams canned responses word by word. It is used for
// offline development and UI work without a model server.
type MockProvider struct {
	// Delay is the pause before each word.
	Delay time.Duration
	// Thinking, when set, is emitted as a think section before the answer.
	Thinking string

	mu  sync.Mutex
	idx int
}

// NewMockProvider returns a MockProvider that pauses delay between words.
func NewMockProvider(delay time.Duration) *MockProvider {
	return &MockProvider{
		Delay:    delay,
		Thinking: "Reading the request and deciding what to say.",
	}
}

// Response returns the text the mock will stream for prompt.
func (m *MockProvider) Response(prompt string) string {
	if r, ok := mockCustom[strings.ToLower(strings.TrimSpace(prompt))]; ok {
		return r
	}

	m.mu.Lock()
	r := mockResponses[m.idx%len(mockResponses)]
	m.idx++
	m.mu.Unlock()

	short := prompt
	if len([]rune(short)) > 30 {
		short = string([]rune(short)[:30]) + "..."
	}
	return fmt.Sprintf("%s\n\n(Mock response to: %s)", r, short)
}

// Stream implements Provider.
func (m *MockProvider) Stream(ctx context.Context, prompt string) <-chan StreamDelta {
	text := m.Response(prompt)
	if m.Thinking != "" {
		text = "<think> " + m.Thinking + " </think> " + text
	}
	words := strings.Fields(text)

	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		for i, w := range words {
			if m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					return
				}
			}
			if i < len(words)-1 {
				w += " "
			}
			if !send(ctx, ch, StreamDelta{Token: w}) {
				return
			}
		}
		send(ctx, ch, StreamDelta{Done: true})
	}()
	return ch
}
