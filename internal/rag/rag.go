package rag

import (
	"context"
	"strings"
)

const (
	// DefaultTopK is how many chunks to retrieve per question.
	DefaultTopK = 5

	// MinScore is the minimum cosine similarity for a chunk to count as
	// relevant.
	MinScore = 0.3
)

// Index answers similarity queries over one page.
type Index struct {
	store    *Store
	embedder Embedder
	topK     int
	minScore float32
}

// NewIndex wraps a populated store.
func NewIndex(store *Store, embedder Embedder) *Index {
	return &Index{
		store:    store,
		embedder: embedder,
		topK:     DefaultTopK,
		minScore: MinScore,
	}
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.store.Len()
}

// Search embeds query and returns the most relevant chunks joined by a
// blank line. An empty index, or one with no chunk scoring at least
// MinScore, yields "".
func (ix *Index) Search(ctx context.Context, query string) (string, error) {
	if ix.Len() == 0 || strings.TrimSpace(query) == "" {
		return "", nil
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	var relevant []string
	for _, r := range ix.store.Search(queryVec, ix.topK) {
		if r.Score >= ix.minScore {
			relevant = append(relevant, r.Doc.Text)
		}
	}
	return strings.Join(relevant, "\n\n"), nil
}
