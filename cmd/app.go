package cmd

import (
	"context"
	"fmt"

	"github.com/arin/pagesum/internal/ai"
	"github.com/arin/pagesum/internal/config"
	"github.com/arin/pagesum/internal/rag"
	"github.com/arin/pagesum/internal/scrape"
	"github.com/arin/pagesum/internal/session"
)

// reportingIndexer forwards embedding progress to a callback that can be
// swapped per page, such as a spinner.
type reportingIndexer struct {
	builder  *rag.Builder
	progress func(done, total int)
}

func (r *reportingIndexer) Index(ctx context.Context, text string, _ func(done, total int)) (*rag.Index, error) {
	return r.builder.Index(ctx, text, r.progress)
}

// newManager wires the model client, scraper and similarity index from cfg.
// The mock provider skips embeddings so it works with no model server.
func newManager(cfg *config.Config) (*session.Manager, *reportingIndexer, error) {
	client, err := ai.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	opts := []session.ManagerOption{session.WithModelName(cfg.Model)}
	var indexer *reportingIndexer
	if cfg.Provider != config.ProviderMock {
		embedder := rag.NewEmbedClient(cfg.EmbedBaseURL(), cfg.EmbedModel)
		indexer = &reportingIndexer{builder: rag.NewBuilder(embedder, cfg.EmbedModel)}
		opts = append(opts, session.WithIndexer(indexer))
	}
	return session.NewManager(client, scrape.New(), opts...), indexer, nil
}
