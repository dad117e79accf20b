package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arin/pagesum/internal/ai"
	"github.com/arin/pagesum/internal/history"
	"github.com/arin/pagesum/internal/rag"
	"github.com/arin/pagesum/internal/scrape"
	"github.com/arin/pagesum/internal/stats"
	"github.com/arin/pagesum/internal/think"
)

var (
	ErrPageNotFound  = errors.New("page not found")
	ErrBusy          = errors.New("an answer is already streaming for this page")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoContent     = errors.New("page has no readable text")
)

// Fetcher retrieves the readable part of a page. *scrape.Scraper satisfies
// it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scrape.Document, error)
}

// Indexer builds a similarity index over page text. *rag.Builder satisfies
// it.
type Indexer interface {
	Index(ctx context.Context, text string, progress func(done, total int)) (*rag.Index, error)
}

// ChatMessage is one turn of a page conversation. Thinking holds the
// model's reasoning for AI turns and is never replayed to the model.
type ChatMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// Page is an opened web page with its summary and chat.
type Page struct {
	ID        string
	URL       string
	Title     string
	Content   string
	CreatedAt time.Time

	summary *Stream
	answer  *Stream

	mu          sync.Mutex
	messages    []ChatMessage
	index       *rag.Index
	summarizing bool
	answering   bool
	lastErr     string
}

// Snapshot is a copy of a page's state, safe to hand to other goroutines.
type Snapshot struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Title         string        `json:"title"`
	Chars         int           `json:"chars"`
	Chunks        int           `json:"indexed_chunks"`
	CreatedAt     time.Time     `json:"created_at"`
	SummaryStatus Status        `json:"summary_status"`
	Summary       think.State   `json:"summary"`
	Messages      []ChatMessage `json:"messages"`
	Answering     bool          `json:"answering"`
	LastError     string        `json:"last_error,omitempty"`
}

func newPage(doc *scrape.Document) *Page {
	return &Page{
		ID:        uuid.NewString(),
		URL:       doc.URL,
		Title:     doc.Title,
		Content:   doc.Text,
		CreatedAt: time.Now(),
		summary:   &Stream{},
		answer:    &Stream{},
	}
}

// Snapshot copies the page state.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		ID:            p.ID,
		URL:           p.URL,
		Title:         p.Title,
		Chars:         len([]rune(p.Content)),
		Chunks:        p.index.Len(),
		CreatedAt:     p.CreatedAt,
		SummaryStatus: p.summary.Status(),
		Summary:       p.summary.State(),
		Messages:      append([]ChatMessage(nil), p.messages...),
		Answering:     p.answering,
		LastError:     p.lastErr,
	}
}

// Messages returns a copy of the chat history.
func (p *Page) Messages() []ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChatMessage(nil), p.messages...)
}

// Summary returns the current summary state.
func (p *Page) Summary() think.State {
	return p.summary.State()
}

// Manager owns the opened pages and drives their model streams.
type Manager struct {
	client  *ai.Client
	fetcher Fetcher
	indexer Indexer
	model   string

	mu    sync.RWMutex
	pages map[string]*Page
	order []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIndexer enables similarity search over page text. Without one, answers
// use the truncated page text as context.
func WithIndexer(ix Indexer) ManagerOption {
	return func(m *Manager) { m.indexer = ix }
}

// WithModelName sets the model name recorded in stats.
func WithModelName(name string) ManagerOption {
	return func(m *Manager) { m.model = name }
}

// NewManager creates a Manager.
func NewManager(client *ai.Client, fetcher Fetcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:  client,
		fetcher: fetcher,
		pages:   make(map[string]*Page),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open fetches url, indexes its text and registers it as a new page.
func (m *Manager) Open(ctx context.Context, url string) (*Page, error) {
	doc, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoContent
	}

	page := newPage(doc)
	log := logrus.WithFields(logrus.Fields{"page": page.ID, "url": page.URL})

	if m.indexer != nil {
		ix, err := m.indexer.Index(ctx, page.Content, nil)
		if err != nil {
			log.WithError(err).Warn("similarity search unavailable, answers will use page text")
		} else {
			page.index = ix
		}
	}

	m.mu.Lock()
	m.pages[page.ID] = page
	m.order = append(m.order, page.ID)
	m.mu.Unlock()

	log.WithField("chars", len([]rune(page.Content))).Info("page opened")
	return page, nil
}

// Get returns the page with id.
func (m *Manager) Get(id string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[id]
	if !ok {
		return nil, ErrPageNotFound
	}
	return page, nil
}

// List returns snapshots of all pages, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	pages := make([]*Page, 0, len(m.order))
	for _, id := range m.order {
		pages = append(pages, m.pages[id])
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Snapshot())
	}
	return out
}

// Close forgets a page.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[id]; !ok {
		return ErrPageNotFound
	}
	delete(m.pages, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ResetChat clears a page's conversation.
func (m *Manager) ResetChat(id string) error {
	page, err := m.Get(id)
	if err != nil {
		return err
	}
	page.mu.Lock()
	defer page.mu.Unlock()
	if page.answering {
		return ErrBusy
	}
	page.messages = nil
	page.lastErr = ""
	page.answer.Reset()
	return nil
}

// Summarize streams a fresh summary of the page. onUpdate sees every
// intermediate state. opts are passed to the stream run, so StopWhen can end
// it early. On failure the partial state is kept on the page and returned
// with the error.
func (m *Manager) Summarize(ctx context.Context, id string, onUpdate func(think.State), opts ...RunOption) (think.State, error) {
	page, err := m.Get(id)
	if err != nil {
		return think.State{}, err
	}

	page.mu.Lock()
	if page.summarizing {
		page.mu.Unlock()
		return think.State{}, ErrBusy
	}
	page.summarizing = true
	page.mu.Unlock()
	defer func() {
		page.mu.Lock()
		page.summarizing = false
		page.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	page.summary.Reset()
	ch, err := m.client.SummarizeStream(ctx, page.Content)
	if err != nil {
		return think.State{}, err
	}
	state, runErr := page.summary.Run(ctx, ch, onUpdate, opts...)

	m.record(stats.KindSummary, page, page.summary, runErr)

	entry := history.Entry{
		URL:     page.URL,
		Title:   pageTitle(page.Title, state.Visible),
		Summary: state.Visible,
		Success: runErr == nil,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := history.Save(entry); err != nil {
		logrus.WithError(err).Warn("failed to save history")
	}

	page.mu.Lock()
	if page.Title == "" {
		page.Title = entry.Title
	}
	page.lastErr = entry.Error
	page.mu.Unlock()

	return state, runErr
}

// Ask streams an answer to question about the page. Only one answer per
// page streams at a time. A question left unanswered by a failed stream is
// replaced by the next one rather than kept twice.
func (m *Manager) Ask(ctx context.Context, id, question string, onUpdate func(think.State)) (think.State, error) {
	page, err := m.Get(id)
	if err != nil {
		return think.State{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return think.State{}, ErrEmptyQuestion
	}

	page.mu.Lock()
	if page.answering {
		page.mu.Unlock()
		return think.State{}, ErrBusy
	}
	page.answering = true
	if n := len(page.messages); n > 0 && page.messages[n-1].Role == ai.RoleUser {
		page.messages = page.messages[:n-1]
	}
	prior := make([]ai.Message, 0, len(page.messages))
	for _, msg := range page.messages {
		prior = append(prior, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	page.messages = append(page.messages, ChatMessage{Role: ai.RoleUser, Content: question})
	index := page.index
	page.mu.Unlock()
	defer func() {
		page.mu.Lock()
		page.answering = false
		page.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := ai.Question{
		Message: question,
		Summary: page.summary.State().Visible,
		Context: m.pageContext(ctx, page, index, question),
		History: prior,
	}

	page.answer.Reset()
	ch, err := m.client.AnswerStream(ctx, q)
	if err != nil {
		return think.State{}, err
	}
	state, runErr := page.answer.Run(ctx, ch, onUpdate)

	m.record(stats.KindAnswer, page, page.answer, runErr)

	page.mu.Lock()
	if runErr != nil {
		page.lastErr = runErr.Error()
	} else {
		page.lastErr = ""
		page.messages = append(page.messages, ChatMessage{
			Role:     ai.RoleAI,
			Content:  state.Visible,
			Thinking: state.Thinking,
		})
		if n := len(page.messages); n > ai.MaxHistoryMessages {
			page.messages = append([]ChatMessage(nil), page.messages[n-ai.MaxHistoryMessages:]...)
		}
	}
	page.mu.Unlock()

	return state, runErr
}

// pageContext returns the chunks most relevant to question, or the start of
// the page when the search finds nothing.
func (m *Manager) pageContext(ctx context.Context, page *Page, index *rag.Index, question string) string {
	if index != nil {
		text, err := index.Search(ctx, question)
		if err != nil {
			logrus.WithError(err).WithField("page", page.ID).Warn("similarity search failed")
		} else if text != "" {
			return text
		}
	}
	return m.client.TruncateContent(page.Content)
}

func (m *Manager) record(kind string, page *Page, s *Stream, runErr error) {
	metrics := s.Metrics()
	state := s.State()
	rec := stats.Record{
		Kind:              kind,
		URL:               page.URL,
		Model:             m.model,
		FirstChunkLatency: metrics.FirstChunk,
		Duration:          metrics.Duration,
		Chunks:            metrics.Chunks,
		ThinkingChars:     len([]rune(state.Thinking)),
		VisibleChars:      len([]rune(state.Visible)),
		Success:           runErr == nil,
	}
	if err := stats.Save(rec); err != nil {
		logrus.WithError(err).Warn("failed to save stats")
	}

	logrus.WithFields(logrus.Fields{
		"page":     page.ID,
		"kind":     kind,
		"chunks":   metrics.Chunks,
		"duration": metrics.Duration.Round(time.Millisecond),
		"status":   s.Status(),
	}).Info("stream finished")
}

// pageTitle prefers the page's own title and falls back to the "Title:"
// line of the summary.
func pageTitle(title, summary string) string {
	if title != "" {
		return title
	}
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#* "))
		if rest, ok := strings.CutPrefix(line, "Title:"); ok {
			return strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*"))
		}
	}
	return ""
}
