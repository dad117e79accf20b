// Package ai talks to language model backends. It builds the summary and
// page Q&A prompts and streams model output token by token through a
// Provider.
package ai

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/arin/pagesum/internal/config"
)

const (
	// DefaultMaxContentChars caps how much page text goes into a summary
	// prompt.
	DefaultMaxContentChars = 10000
	// MaxHistoryMessages is how many chat messages are kept and replayed.
	MaxHistoryMessages = 10

	RoleUser = "user"
	RoleAI   = "ai"

	defaultLanguage = "English"
)

// ErrEmptyContent is returned when there is no page text to summarize.
var ErrEmptyContent = errors.New("no content to summarize")

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Message is one turn of a page conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is everything the answer prompt is built from.
type Question struct {
	Message string
	Summary string
	Context string
	History []Message
}

// Client builds prompts and streams them through a Provider.
type Client struct {
	provider   Provider
	maxContent int
	language   string
}

// Option configures a Client.
type Option func(*Client)

// WithMaxContentChars sets the page text cap for summary prompts.
func WithMaxContentChars(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxContent = n
		}
	}
}

// WithLanguage sets the language the model is asked to answer in.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// NewClient creates a Client for the backend selected in cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithProvider(p,
		WithMaxContentChars(cfg.MaxContentChars),
		WithLanguage(cfg.Language),
	), nil
}

// NewClientWithProvider creates a Client backed by p.
func NewClientWithProvider(p Provider, opts ...Option) *Client {
	c := &Client{
		provider:   p,
		maxContent: DefaultMaxContentChars,
		language:   defaultLanguage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewProvider returns the Provider named by cfg.Provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.Endpoint, cfg.GeneratePath, cfg.Model), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model), nil
	case config.ProviderMock:
		return NewMockProvider(cfg.MockDelay), nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

// Provider returns the underlying model backend.
func (c *Client) Provider() Provider {
	return c.provider
}

// TruncateContent cuts page text to the configured character cap.
func (c *Client) TruncateContent(content string) string {
	return truncate(content, c.maxContent)
}

// BuildSummaryPrompt renders the summary prompt for page content, cut to the
// configured character cap.
func (c *Client) BuildSummaryPrompt(content string) (string, error) {
	return render("summary.tmpl", map[string]any{
		"Language": c.language,
		"Text":     truncate(content, c.maxContent),
	})
}

// BuildAnswerPrompt renders the page Q&A prompt. Only the most recent
// MaxHistoryMessages of history are included.
func (c *Client) BuildAnswerPrompt(q Question) (string, error) {
	return render("answer.tmpl", map[string]any{
		"Language": c.language,
		"Summary":  q.Summary,
		"Context":  q.Context,
		"History":  TrimHistory(q.History, MaxHistoryMessages),
		"Message":  q.Message,
	})
}

// SummarizeStream asks the model to summarize page content.
func (c *Client) SummarizeStream(ctx context.Context, content string) (<-chan StreamDelta, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	prompt, err := c.BuildSummaryPrompt(content)
	if err != nil {
		return nil, err
	}
	return c.provider.Stream(ctx, prompt), nil
}

// AnswerStream asks the model to answer a question about a page.
func (c *Client) AnswerStream(ctx context.Context, q Question) (<-chan StreamDelta, error) {
	prompt, err := c.BuildAnswerPrompt(q)
	if err != nil {
		return nil, err
	}
	return c.provider.Stream(ctx, prompt), nil
}

// TrimHistory returns the last n messages of history.
func TrimHistory(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return sb.String(), nil
}

// truncate cuts s to at most maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
