package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/arin/pagesum/internal/think"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider for any OpenAI-compatible chat
// completions endpoint. Reasoning deltas are re-framed with think markers
// so downstream extraction treats them like inline thinking.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for model. An empty baseURL uses the
// library default.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

// Stream implements Provider.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt string) <-chan StreamDelta {
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		if err := p.stream(ctx, prompt, ch); err != nil {
			fail(ctx, ch, err)
		}
	}()
	return ch
}

func (p *OpenAIProvider) stream(ctx context.Context, prompt string, ch chan<- StreamDelta) error {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat completion request failed: %w", err)
	}
	defer stream.Close()

	reasoning := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream interrupted: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		var tok strings.Builder
		if delta.ReasoningContent != "" {
			if !reasoning {
				tok.WriteString(think.OpenMarker)
				reasoning = true
			}
			tok.WriteString(delta.ReasoningContent)
		}
		if delta.Content != "" {
			if reasoning {
				tok.WriteString(think.CloseMarker)
				reasoning = false
			}
			tok.WriteString(delta.Content)
		}
		if tok.Len() == 0 {
			continue
		}
		if !send(ctx, ch, StreamDelta{Token: tok.String()}) {
			return nil
		}
	}

	if reasoning && !send(ctx, ch, StreamDelta{Token: think.CloseMarker}) {
		return nil
	}
	send(ctx, ch, StreamDelta{Done: true})
	return nil
}
